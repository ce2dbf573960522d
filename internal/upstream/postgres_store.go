package upstream

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/eion/userdesk/internal/users"
)

// PostgresStore implements Store with PostgreSQL storage. Ids come from the
// table sequence; placeholder ids sent by clients are ignored.
type PostgresStore struct {
	db *bun.DB
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(db *bun.DB) *PostgresStore {
	return &PostgresStore{
		db: db,
	}
}

// ListUsers returns every user ordered by id
func (s *PostgresStore) ListUsers(ctx context.Context) ([]users.User, error) {
	var rows []UserSchema
	err := s.db.NewSelect().
		Model(&rows).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	out := make([]users.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, UserSchemaToUser(row))
	}
	return out, nil
}

// GetUser retrieves a user by id
func (s *PostgresStore) GetUser(ctx context.Context, id int) (users.User, error) {
	var schema UserSchema
	err := s.db.NewSelect().
		Model(&schema).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return users.User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return users.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return UserSchemaToUser(schema), nil
}

// CreateUser inserts a new user
func (s *PostgresStore) CreateUser(ctx context.Context, req NewUserRequest) (users.User, error) {
	schema := UserToUserSchema(newUser(0, req, time.Now().UTC()))

	_, err := s.db.NewInsert().
		Model(&schema).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return users.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return UserSchemaToUser(schema), nil
}

// UpdateUser applies the provided fields of update
func (s *PostgresStore) UpdateUser(ctx context.Context, id int, update users.UserUpdate) (users.User, error) {
	if update.Empty() {
		return s.GetUser(ctx, id)
	}

	q := s.db.NewUpdate().
		Model((*UserSchema)(nil)).
		Where("id = ?", id)
	if update.Name != nil {
		q = q.Set("name = ?", *update.Name)
	}
	if update.Email != nil {
		q = q.Set("email = ?", *update.Email)
	}
	if update.Age != nil {
		q = q.Set("age = ?", *update.Age)
	}
	if update.IsActive != nil {
		q = q.Set("is_active = ?", *update.IsActive)
	}

	var schema UserSchema
	err := q.Returning("*").Scan(ctx, &schema)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return users.User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return users.User{}, fmt.Errorf("failed to update user: %w", err)
	}
	return UserSchemaToUser(schema), nil
}

// DeleteUser removes a user
func (s *PostgresStore) DeleteUser(ctx context.Context, id int) error {
	result, err := s.db.NewDelete().
		Model((*UserSchema)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
var _ Store = (*MemoryStore)(nil)
