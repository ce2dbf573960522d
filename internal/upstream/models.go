// Package upstream serves a local REST user collection with the same shape
// as the public endpoint the data client talks to.
package upstream

import (
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/eion/userdesk/internal/users"
)

// ErrNotFound is returned by stores for unknown user ids.
var ErrNotFound = errors.New("user not found")

// NewUserRequest is the body accepted on POST. The id sent by clients is a
// placeholder; it is kept only when it is free.
type NewUserRequest struct {
	ID       int    `json:"id,omitempty"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Age      int    `json:"age"`
	IsActive *bool  `json:"isActive,omitempty"`
}

// UserSchema represents the users table schema in PostgreSQL
type UserSchema struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        int       `bun:"id,pk,autoincrement" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Email     string    `bun:"email,notnull" json:"email"`
	Age       int       `bun:"age,notnull,default:0" json:"age"`
	IsActive  bool      `bun:"is_active,notnull" json:"isActive"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
}

// UserSchemaToUser converts a row into the wire record.
func UserSchemaToUser(schema UserSchema) users.User {
	return users.User{
		ID:        schema.ID,
		Name:      schema.Name,
		Email:     schema.Email,
		Age:       schema.Age,
		IsActive:  schema.IsActive,
		CreatedAt: schema.CreatedAt,
	}
}

// UserToUserSchema converts a wire record into a row.
func UserToUserSchema(user users.User) UserSchema {
	return UserSchema{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Age:       user.Age,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
	}
}

// newUser builds the record a store persists for req.
func newUser(id int, req NewUserRequest, now time.Time) users.User {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return users.User{
		ID:        id,
		Name:      req.Name,
		Email:     req.Email,
		Age:       req.Age,
		IsActive:  active,
		CreatedAt: now,
	}
}

// applyUpdate returns user with the provided fields of update applied.
func applyUpdate(user users.User, update users.UserUpdate) users.User {
	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.Email != nil {
		user.Email = *update.Email
	}
	if update.Age != nil {
		user.Age = *update.Age
	}
	if update.IsActive != nil {
		user.IsActive = *update.IsActive
	}
	return user
}

// DefaultSeed is the collection a memory store starts with.
func DefaultSeed() []users.User {
	created := time.Date(2024, time.January, 15, 9, 30, 0, 0, time.UTC)
	return []users.User{
		{ID: 1, Name: "leanne graham", Email: "leanne@example.com", Age: 34, IsActive: true, CreatedAt: created},
		{ID: 2, Name: "ervin howell", Email: "ervin@gmail.com", Age: 41, IsActive: false, CreatedAt: created.AddDate(0, 1, 0)},
		{ID: 3, Name: "clementine bauch", Email: "clementine@yahoo.com", Age: 27, IsActive: true, CreatedAt: created.AddDate(0, 2, 0)},
		{ID: 4, Name: "patricia lebsack", Email: "patricia@outlook.com", Age: 52, IsActive: true, CreatedAt: created.AddDate(0, 3, 0)},
		{ID: 5, Name: "chelsey dietrich", Email: "chelsey@example.com", Age: 19, IsActive: false, CreatedAt: created.AddDate(0, 4, 0)},
		{ID: 6, Name: "dennis schulist", Email: "dennis@gmail.com", Age: 63, IsActive: true, CreatedAt: created.AddDate(0, 5, 0)},
	}
}
