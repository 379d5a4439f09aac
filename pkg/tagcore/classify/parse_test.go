package classify

import (
	"errors"
	"testing"

	"github.com/entropia/tagcore/pkg/tagcore/internalerr"
)

func TestParseReplyPlainJSON(t *testing.T) {
	reply, err := ParseReply(`{"description":"Una storia","generi":["fantasy"],"topics":["mare"]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Description != "Una storia" {
		t.Errorf("description = %q", reply.Description)
	}
	if len(reply.Generi) != 1 || reply.Generi[0] != "fantasy" {
		t.Errorf("generi = %v", reply.Generi)
	}
	if len(reply.Topics) != 1 || reply.Topics[0] != "mare" {
		t.Errorf("topics = %v", reply.Topics)
	}
}

func TestParseReplyWrappedInProse(t *testing.T) {
	raw := `Ecco il JSON: {"description":"desc","generi":["noir"],"topics":["città"]} Spero sia utile`
	reply, err := ParseReply(raw)
	if err != nil {
		t.Fatalf("prose-wrapped JSON should parse: %v", err)
	}
	if reply.Generi[0] != "noir" {
		t.Errorf("generi = %v", reply.Generi)
	}
}

func TestParseReplyNoJSON(t *testing.T) {
	_, err := ParseReply("non ho trovato nulla di utile")
	if !errors.Is(err, internalerr.ErrClassificationParse) {
		t.Fatalf("expected ErrClassificationParse, got %v", err)
	}
}

func TestParseReplyMalformedJSON(t *testing.T) {
	_, err := ParseReply(`{"description": "unterminated`)
	if !errors.Is(err, internalerr.ErrClassificationParse) {
		t.Fatalf("expected ErrClassificationParse, got %v", err)
	}
}

func TestParseReplyBracesOutOfOrder(t *testing.T) {
	_, err := ParseReply(`} niente {`)
	if !errors.Is(err, internalerr.ErrClassificationParse) {
		t.Fatalf("expected ErrClassificationParse, got %v", err)
	}
}
