package persistence

import (
	"context"
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Migrate creates the emails table and its indexes if they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB, d Dialect) error {
	ddl, err := schemaFS.ReadFile("schema/" + d.schemaFile)
	if err != nil {
		return fmt.Errorf("read %s schema: %w", d.name, err)
	}
	if _, err := db.ExecContext(ctx, string(ddl)); err != nil {
		return fmt.Errorf("apply %s schema: %w", d.name, err)
	}
	return nil
}
