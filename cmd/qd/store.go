package main

import (
	"fmt"
	"strings"

	"github.com/alfredjeanlab/quorum/internal/store"
	"github.com/alfredjeanlab/quorum/internal/store/postgres"
	"github.com/alfredjeanlab/quorum/internal/store/sqlite"
)

// openStore opens the store named by a database URL: postgres:// (or
// postgresql://) for Postgres, sqlite://path for a SQLite file.
func openStore(databaseURL string) (store.Store, string, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		st, err := postgres.New(databaseURL)
		if err != nil {
			return nil, "", err
		}
		return st, "postgres", nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		st, err := sqlite.Open(strings.TrimPrefix(databaseURL, "sqlite://"))
		if err != nil {
			return nil, "", err
		}
		return st, "sqlite", nil
	}
	return nil, "", fmt.Errorf("unsupported database URL %q (want postgres:// or sqlite://)", redactURL(databaseURL))
}

// redactURL drops everything after the scheme so credentials never reach
// logs or error messages.
func redactURL(u string) string {
	if scheme, _, ok := strings.Cut(u, "://"); ok {
		return scheme + "://..."
	}
	return "..."
}
