package classify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/entropia/tagcore/pkg/tagcore/internalerr"
)

// Reply is the JSON object expected somewhere inside the model's answer.
type Reply struct {
	Description string   `json:"description"`
	Generi      []string `json:"generi"`
	Topics      []string `json:"topics"`
}

// ParseReply locates the JSON object in the model's reply by taking the
// substring from the first '{' to the last '}', tolerating leading and
// trailing prose. Anything else is a parse failure, fatal to the
// classification call.
func ParseReply(raw string) (Reply, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return Reply{}, fmt.Errorf("%w: no JSON object in reply", internalerr.ErrClassificationParse)
	}

	var reply Reply
	if err := json.Unmarshal([]byte(raw[start:end+1]), &reply); err != nil {
		return Reply{}, fmt.Errorf("%w: %v", internalerr.ErrClassificationParse, err)
	}
	return reply, nil
}
