package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"taskflow/internal/model"
	"taskflow/internal/repository"
)

// DTOs for Request validation
type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required"`
}

type LoginUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      *UserResponse `json:"user"`
}

// DTO for returning User without exposing the password hash
type UserResponse struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	Permissions []string  `json:"permissions,omitempty"`
	CreatedAt   string    `json:"created_at"`
}

// TokenIssuer signs access tokens for authenticated users
type TokenIssuer interface {
	IssueToken(userID uuid.UUID, username, role string) (string, time.Time, error)
}

type UserService interface {
	CreateUser(ctx context.Context, actor Actor, req CreateUserRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	CurrentUser(ctx context.Context, actor Actor) (*UserResponse, error)
	ListUsers(ctx context.Context, actor Actor, page, limit int) ([]UserResponse, int64, error)
}

type userService struct {
	repo   repository.UserRepository
	tokens TokenIssuer
	logger *slog.Logger
}

func NewUserService(repo repository.UserRepository, tokens TokenIssuer, logger *slog.Logger) UserService {
	return &userService{repo: repo, tokens: tokens, logger: logger}
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func mapUserToResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}

func (s *userService) CreateUser(ctx context.Context, actor Actor, req CreateUserRequest) (*UserResponse, error) {
	if !actor.Can(model.CapCreateUser) {
		return nil, AuthorizationError("Admin access required")
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, ValidationError("Username is required")
	}
	if !model.ValidRole(req.Role) {
		return nil, ValidationError("Invalid role: must be admin, manager, or staff")
	}
	if len(req.Password) < 6 {
		return nil, ValidationError("Password must be at least 6 characters")
	}
	if req.Email != "" && !emailRegex.MatchString(req.Email) {
		return nil, ValidationError("Invalid email format")
	}

	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return nil, ConflictError("Username already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, storageFailure(s.logger, "check username", err, "")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, storageFailure(s.logger, "hash password", err, "")
	}

	user := &model.User{
		Username: username,
		Email:    strings.TrimSpace(req.Email),
		Password: string(hashedPassword),
		Role:     req.Role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ConflictError("Username already exists")
		}
		return nil, storageFailure(s.logger, "create user", err, "")
	}

	return mapUserToResponse(user), nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, AuthenticationError("Invalid credentials")
		}
		return nil, storageFailure(s.logger, "login", err, "")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, AuthenticationError("Invalid credentials")
	}

	token, expiresAt, err := s.tokens.IssueToken(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, storageFailure(s.logger, "issue token", err, "")
	}

	res := mapUserToResponse(user)
	res.Permissions = model.Permissions(user.Role)
	return &TokenResponse{Token: token, ExpiresAt: expiresAt, User: res}, nil
}

func (s *userService) CurrentUser(ctx context.Context, actor Actor) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, actor.UserID.String())
	if err != nil {
		return nil, storageFailure(s.logger, "current user", err, "User not found")
	}
	res := mapUserToResponse(user)
	res.Permissions = model.Permissions(user.Role)
	return res, nil
}

func (s *userService) ListUsers(ctx context.Context, actor Actor, page, limit int) ([]UserResponse, int64, error) {
	if !actor.Can(model.CapListUsers) {
		return nil, 0, AuthorizationError("Access denied")
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	users, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, storageFailure(s.logger, "list users", err, "")
	}

	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, *mapUserToResponse(&users[i]))
	}
	return responses, total, nil
}
