// Command rebuild-counters recomputes every vocabulary counter from the
// full article corpus. Safe to run repeatedly; intended for periodic
// reconciliation or administrative repair after partial counter failures.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/entropia/tagcore/pkg/tagcore/aggregate"
	"github.com/entropia/tagcore/pkg/tagcore/store/sqlite"
)

func main() {
	dbPath := flag.String("db", "entropia.db", "path to the SQLite database")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	ctx := context.Background()
	st, err := sqlite.Open(ctx, *dbPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("open store")
	}
	defer st.Close()

	start := time.Now()
	if err := aggregate.Rebuild(ctx, st, logger); err != nil {
		logger.Fatal().Err(err).Msg("rebuild failed")
	}
	logger.Info().Dur("took", time.Since(start)).Msg("counters rebuilt")
}
