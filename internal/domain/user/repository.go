package user

import (
	"context"
)

// UserRepository returns ErrUserNotFound for missing users and
// ErrUserEmailExists on a duplicate email.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	Create(ctx context.Context, newUser User) (User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, id string, req UpdateUserRequest) (User, error)
	Delete(ctx context.Context, id string) error
	ListByRole(ctx context.Context, role Role) ([]User, error)
}
