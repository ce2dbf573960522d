package upstream

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// OpenDB connects to PostgreSQL and verifies the connection.
func OpenDB(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// CreateTables creates the users table when missing.
func CreateTables(ctx context.Context, db *bun.DB) error {
	models := []interface{}{
		(*UserSchema)(nil),
	}

	for _, model := range models {
		_, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table for model %T: %w", model, err)
		}
	}

	return nil
}

// SeedIfEmpty inserts the default collection into an empty users table.
// The table sequence assigns the ids.
func SeedIfEmpty(ctx context.Context, db *bun.DB) (int, error) {
	count, err := db.NewSelect().Model((*UserSchema)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	seed := DefaultSeed()
	rows := make([]UserSchema, 0, len(seed))
	for _, u := range seed {
		row := UserToUserSchema(u)
		row.ID = 0
		rows = append(rows, row)
	}

	if _, err := db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to seed users: %w", err)
	}
	return len(rows), nil
}
