package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/taskhive/apiserver/internal/access"
	"github.com/taskhive/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	CountByRole(ctx context.Context) (map[types.Role]int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
}

// UserService encapsulates account use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// RegisterInput is the payload for account creation.
type RegisterInput struct {
	Username        string
	Email           string
	Name            string
	Password        string
	PasswordConfirm string
}

// Register validates the input and creates the account. The role is always
// "user": an account and its role are written as one row, so no user can
// exist without a role, and nobody self-selects a privileged role at
// signup. Elevation goes through ChangeRole.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (types.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)
	input.Name = strings.TrimSpace(input.Name)

	if input.Username == "" || input.Email == "" || input.Name == "" || input.Password == "" {
		return types.User{}, fmt.Errorf("%w: missing required fields", ErrValidation)
	}
	if input.Password != input.PasswordConfirm {
		return types.User{}, fmt.Errorf("%w: passwords do not match", ErrValidation)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, err
	}

	return s.repo.Create(ctx, types.User{
		Username:     input.Username,
		Email:        input.Email,
		Name:         input.Name,
		Role:         types.RoleUser,
		PasswordHash: string(hashed),
	})
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

// List returns every account with per-role counts. Admin only.
func (s *UserService) List(ctx context.Context, caller types.User) ([]types.User, map[types.Role]int, error) {
	if !access.Can(caller.Role, access.OpManageUsers) {
		return nil, nil, access.ErrForbidden
	}
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	counts, err := s.repo.CountByRole(ctx)
	if err != nil {
		return nil, nil, err
	}
	return users, counts, nil
}

// ChangeRole sets another user's role. Admin only.
func (s *UserService) ChangeRole(ctx context.Context, caller types.User, userID int, role types.Role) (types.User, error) {
	if !access.Can(caller.Role, access.OpManageUsers) {
		return types.User{}, access.ErrForbidden
	}
	if !role.Known() {
		return types.User{}, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, err
	}
	user.Role = role
	return s.repo.Update(ctx, user)
}

// Delete removes an account. Admin only; an admin cannot delete itself.
// Tasks assigned to the removed user survive with a null assignee.
func (s *UserService) Delete(ctx context.Context, caller types.User, userID int) error {
	if !access.Can(caller.Role, access.OpManageUsers) {
		return access.ErrForbidden
	}
	if caller.ID == userID {
		return fmt.Errorf("%w: cannot delete your own account", ErrValidation)
	}
	return s.repo.Delete(ctx, userID)
}
