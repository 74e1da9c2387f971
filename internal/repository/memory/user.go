package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/user"
	"github.com/google/uuid"
)

type userRepository struct {
	mu       sync.RWMutex
	users    map[string]user.User
	byEmail  map[string]string
	onDelete func(userID string)
}

func NewUserRepository() user.UserRepository {
	return &userRepository{
		users:   make(map[string]user.User),
		byEmail: make(map[string]string),
	}
}

// NewStores returns a user and attendance store pair where deleting a user
// removes that user's attendance records.
func NewStores() (user.UserRepository, attendance.AttendanceRepository) {
	users := &userRepository{
		users:   make(map[string]user.User),
		byEmail: make(map[string]string),
	}
	records := NewAttendanceRepository(users)
	users.onDelete = records.(*attendanceRepository).DeleteByUser
	return users, records
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GetByEmail implements user.UserRepository.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[normalizeEmail(email)]
	if !ok {
		return user.User{}, user.ErrUserNotFound
	}
	return r.users[id], nil
}

// GetByID implements user.UserRepository.
func (r *userRepository) GetByID(ctx context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return user.User{}, user.ErrUserNotFound
	}
	return u, nil
}

// Create implements user.UserRepository.
func (r *userRepository) Create(ctx context.Context, newUser user.User) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := normalizeEmail(newUser.Email)
	if _, exists := r.byEmail[email]; exists {
		return user.User{}, user.ErrUserEmailExists
	}

	now := time.Now()
	newUser.ID = uuid.NewString()
	newUser.Email = email
	newUser.CreatedAt = now
	newUser.UpdatedAt = now

	r.users[newUser.ID] = newUser
	r.byEmail[email] = newUser.ID
	return newUser, nil
}

// ExistsByEmail implements user.UserRepository.
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.byEmail[normalizeEmail(email)]
	return exists, nil
}

// Update implements user.UserRepository.
func (r *userRepository) Update(ctx context.Context, id string, req user.UpdateUserRequest) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return user.User{}, user.ErrUserNotFound
	}
	if req.Name == nil && req.Email == nil && req.Role == nil {
		return user.User{}, user.ErrNoFieldsToUpdate
	}

	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if owner, exists := r.byEmail[email]; exists && owner != id {
			return user.User{}, user.ErrUserEmailExists
		}
		delete(r.byEmail, u.Email)
		u.Email = email
		r.byEmail[email] = id
	}
	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.Role != nil {
		u.Role = user.Role(*req.Role)
	}
	u.UpdatedAt = time.Now()

	r.users[id] = u
	return u, nil
}

// Delete implements user.UserRepository.
func (r *userRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	u, ok := r.users[id]
	if ok {
		delete(r.users, id)
		delete(r.byEmail, u.Email)
	}
	r.mu.Unlock()

	if !ok {
		return user.ErrUserNotFound
	}
	if r.onDelete != nil {
		r.onDelete(id)
	}
	return nil
}

// ListByRole implements user.UserRepository.
func (r *userRepository) ListByRole(ctx context.Context, role user.Role) ([]user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]user.User, 0)
	for _, u := range r.users {
		if u.Role == role {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}
