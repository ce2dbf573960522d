package users

import (
	"time"
)

// User is the canonical user record handed out by the data client.
// Values are never mutated in place; updates produce new values.
type User struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Age       int       `json:"age"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateUserRequest is the outbound creation payload. The server assigns
// the remaining fields.
type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Age   int    `json:"age"`
}

// UserUpdate carries the fields of a partial update. Nil fields are not sent.
type UserUpdate struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Age      *int    `json:"age,omitempty"`
	IsActive *bool   `json:"isActive,omitempty"`
}

// Empty reports whether no field is set.
func (u UserUpdate) Empty() bool {
	return u.Name == nil && u.Email == nil && u.Age == nil && u.IsActive == nil
}

// APIResponse wraps a payload with a message and a success flag
type APIResponse[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// UpdateFromRequest builds a full field update out of a create payload,
// used when an edit form submits.
func UpdateFromRequest(req CreateUserRequest) UserUpdate {
	name, email, age := req.Name, req.Email, req.Age
	return UserUpdate{Name: &name, Email: &email, Age: &age}
}
