// Command publish runs the full pipeline for one article draft: extract,
// classify, persist, aggregate.
//
// Usage:
//
//	publish -config config.yaml -draft draft.yaml
//
// The draft file mirrors tagcore.Draft:
//
//	title: La città sommersa
//	text: ...
//	author: mrossi
//	categories: [racconti]
//	genres: [fantasy]
//	allow_new_tags: true
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/entropia/tagcore/internal/blob"
	"github.com/entropia/tagcore/internal/embed"
	"github.com/entropia/tagcore/internal/llm"
	"github.com/entropia/tagcore/pkg/tagcore"
	"github.com/entropia/tagcore/pkg/tagcore/classify"
	"github.com/entropia/tagcore/pkg/tagcore/config"
	"github.com/entropia/tagcore/pkg/tagcore/extract"
	"github.com/entropia/tagcore/pkg/tagcore/store/sqlite"
)

type draftFile struct {
	Title        string   `yaml:"title"`
	Text         string   `yaml:"text"`
	BodyLocator  string   `yaml:"body_locator"`
	Author       string   `yaml:"author"`
	AuthorName   string   `yaml:"author_name"`
	Categories   []string `yaml:"categories"`
	Genres       []string `yaml:"genres"`
	Topics       []string `yaml:"topics"`
	AllowNewTags bool     `yaml:"allow_new_tags"`
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	draftPath := flag.String("draft", "", "path to the article draft file")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if *draftPath == "" {
		logger.Fatal().Msg("-draft is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}

	data, err := os.ReadFile(*draftPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("read draft")
	}
	var df draftFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		logger.Fatal().Err(err).Msg("parse draft")
	}

	ctx := context.Background()

	st, err := sqlite.Open(ctx, cfg.Storage.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open store")
	}

	engine := tagcore.New(tagcore.Options{
		Store: st,
		Extractor: &extract.Extractor{
			Downloader: &blob.Downloader{BaseURL: cfg.Blob.BaseURL},
			MaxChars:   cfg.Classifier.MaxChars,
		},
		Classifier: &classify.Classifier{
			Generator: &llm.Client{
				BaseURL: cfg.LLM.BaseURL,
				APIKey:  cfg.LLM.APIKey,
				Model:   cfg.LLM.Model,
			},
			Embedder: &embed.Client{
				BaseURL: cfg.Embedding.BaseURL,
				Model:   cfg.Embedding.Model,
			},
			Temperature: cfg.Classifier.Temperature,
		},
		Categories: cfg.Categories,
		Logger:     logger,
	})
	defer engine.Close()

	if err := engine.SeedCategories(ctx); err != nil {
		logger.Fatal().Err(err).Msg("seed categories")
	}

	article, err := engine.PublishArticle(ctx, tagcore.Draft{
		Title:        df.Title,
		Text:         df.Text,
		BodyLocator:  df.BodyLocator,
		Author:       df.Author,
		AuthorName:   df.AuthorName,
		Categories:   df.Categories,
		Genres:       df.Genres,
		Topics:       df.Topics,
		AllowNewTags: df.AllowNewTags,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("publish")
	}

	logger.Info().
		Str("id", article.ID).
		Str("description", article.Description).
		Int("genres", len(article.Genres)).
		Int("topics", len(article.Topics)).
		Msg("article published")
	fmt.Println(article.ID)
}
