package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// UserService manages the users known to the tracker.
type UserService struct {
	store  repository.Store
	logger *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(store repository.Store, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{store: store, logger: logger}
}

type userInput struct {
	ID   int64  `validate:"gt=0"`
	Name string `validate:"required,max=100"`
	Role string `validate:"oneof=USER AGENT ADMIN"`
}

type seedFile struct {
	Users []struct {
		ID   int64  `yaml:"id"`
		Name string `yaml:"name"`
		Role string `yaml:"role"`
	} `yaml:"users"`
}

// CreateUser registers a new user. Admin only; an existing id is never
// overwritten, roles change through ChangeRole.
func (s *UserService) CreateUser(ctx context.Context, admin domain.User, user domain.User) (*domain.User, error) {
	if !admin.IsAdmin() {
		return nil, apperrors.NewPermissionDenied("only admin can create users", map[string]any{"actor_id": admin.ID})
	}
	user.Name = strings.TrimSpace(user.Name)
	if err := validateInput(userInput{ID: user.ID, Name: user.Name, Role: string(user.Role)}); err != nil {
		return nil, err
	}
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		_, err := tx.Users().GetByID(ctx, user.ID)
		switch {
		case err == nil:
			return apperrors.NewInvalidState("user already exists", map[string]any{"user_id": user.ID})
		case !errors.Is(err, repository.ErrNotFound):
			return apperrors.MapError(err)
		}
		return apperrors.MapError(tx.Users().Save(ctx, &user))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user created",
		zap.Int64("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.Int64("actor_id", admin.ID))
	return &user, nil
}

func (s *UserService) FindUser(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.store.Users().List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// ChangeRole lets an admin promote or demote a user.
func (s *UserService) ChangeRole(ctx context.Context, admin domain.User, userID int64, role domain.Role) (*domain.User, error) {
	if !admin.IsAdmin() {
		return nil, apperrors.NewPermissionDenied("only admin can change roles", map[string]any{"actor_id": admin.ID})
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}
	var user *domain.User
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		user, err = tx.Users().GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewNotFound("user", map[string]any{"user_id": userID})
			}
			return apperrors.MapError(err)
		}
		user.Role = role
		return apperrors.MapError(tx.Users().Save(ctx, user))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user role changed",
		zap.Int64("user_id", userID),
		zap.String("role", string(role)),
		zap.Int64("actor_id", admin.ID))
	return user, nil
}

// SeedFromFile upserts the users listed in a YAML file of the form
// `users: [{id, name, role}]`. Returns the number of users saved.
func (s *UserService) SeedFromFile(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}

	users := make([]domain.User, 0, len(f.Users))
	for _, u := range f.Users {
		user := domain.User{ID: u.ID, Name: strings.TrimSpace(u.Name), Role: domain.Role(strings.ToUpper(strings.TrimSpace(u.Role)))}
		if err := validateInput(userInput{ID: user.ID, Name: user.Name, Role: string(user.Role)}); err != nil {
			return 0, err
		}
		users = append(users, user)
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		for i := range users {
			if err := tx.Users().Save(ctx, &users[i]); err != nil {
				return apperrors.MapError(err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("users seeded", zap.String("file", path), zap.Int("count", len(users)))
	return len(users), nil
}
