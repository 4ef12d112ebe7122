package users

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/clavis-iam/clavis-iam/internal/rbac"
)

// RepositoryPort defines data access methods for user accounts.
type RepositoryPort interface {
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, user User) (*User, error)
	UpdateProfile(ctx context.Context, id int64, name, surname, email string) error
	SetActive(ctx context.Context, id int64, active bool) error
	SetRole(ctx context.Context, id int64, role rbac.Role) error
}

// Service wraps account business rules.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// RegisterInput carries a registration request.
type RegisterInput struct {
	Name            string
	Surname         string
	Email           string
	Password        string
	PasswordConfirm string
	Role            rbac.Role
}

// Register creates a new active account with a bcrypt-hashed credential.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if in.Password != in.PasswordConfirm {
		return nil, ErrPasswordMismatch
	}
	role := in.Role
	if role == "" {
		role = rbac.RoleUser
	}
	if !role.Valid() {
		return nil, rbac.ErrInvalidRole
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, User{
		Name:         strings.TrimSpace(in.Name),
		Surname:      strings.TrimSpace(in.Surname),
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	})
}

// Authenticate validates email/password credentials. Every failure is
// ErrInvalidCredentials; callers learn nothing about which check failed.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// UpdateInput carries a profile patch; nil fields stay untouched.
type UpdateInput struct {
	Name    *string
	Surname *string
	Email   *string
}

// Update applies a profile patch as an explicit read-modify-write:
// fetch the row, compute new values, issue one update command.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserNotFound
	}
	if in.Name != nil {
		user.Name = strings.TrimSpace(*in.Name)
	}
	if in.Surname != nil {
		user.Surname = strings.TrimSpace(*in.Surname)
	}
	if in.Email != nil {
		user.Email = *in.Email
	}
	if err := s.repo.UpdateProfile(ctx, id, user.Name, user.Surname, user.Email); err != nil {
		return nil, err
	}
	return user, nil
}

// Deactivate soft-deletes the account. An already-inactive or unknown
// account reports ErrUserNotFound.
func (s *Service) Deactivate(ctx context.Context, id int64) (*User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserNotFound
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return nil, err
	}
	user.IsActive = false
	return user, nil
}

// ChangeRole reassigns an account's role. Privileged operation; the
// HTTP layer gates it on the administrator role.
func (s *Service) ChangeRole(ctx context.Context, id int64, role rbac.Role) (*User, error) {
	if !role.Valid() {
		return nil, rbac.ErrInvalidRole
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetRole(ctx, id, role); err != nil {
		return nil, err
	}
	user.Role = role
	return user, nil
}

// FindByID exposes account lookup to collaborators.
func (s *Service) FindByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.FindByID(ctx, id)
}
