package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vyomtech/automation/pkg/persistence"
	"github.com/vyomtech/automation/pkg/persistence/file"
	"github.com/vyomtech/automation/pkg/persistence/postgresql"
)

// NewPersistence picks the persistence backend from the database URL scheme:
// postgres:// for PostgreSQL, anything else is treated as a file path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parseScheme(databaseURL) {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to initialize PostgreSQL persistence: %w", err))
		}

		return p
	default:
		return file.NewPersistence(databaseURL)
	}
}

func parseScheme(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")
	if len(parts) < 2 {
		return "file"
	}

	return parts[0]
}
