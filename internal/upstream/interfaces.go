package upstream

import (
	"context"

	"github.com/eion/userdesk/internal/users"
)

// Store defines the interface for user storage operations
type Store interface {
	ListUsers(ctx context.Context) ([]users.User, error)
	GetUser(ctx context.Context, id int) (users.User, error)
	CreateUser(ctx context.Context, req NewUserRequest) (users.User, error)
	UpdateUser(ctx context.Context, id int, update users.UserUpdate) (users.User, error)
	DeleteUser(ctx context.Context, id int) error
}
