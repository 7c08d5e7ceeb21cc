package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"admitchat/internal/auth"
	"admitchat/internal/config"
	"admitchat/internal/models"

	"github.com/google/uuid"
)

var (
	// ErrEmailTaken rejects registration against an existing account email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials covers unknown accounts and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Service handles account lifecycle: registration, login, and seeding the
// configured administrator account.
type Service struct {
	db  *sql.DB
	log *slog.Logger
}

// NewService builds a new account service.
func NewService(db *sql.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, log: logger}
}

// Register creates a user with the supplied profile and credentials.
func (s *Service) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	password = strings.TrimSpace(password)
	if name == "" || email == "" || password == "" {
		return nil, errors.New("name, email and password are required")
	}
	if !strings.Contains(email, "@") {
		return nil, errors.New("invalid email address")
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("verify email: %w", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, user.PasswordHash, user.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login validates credentials and returns the account profile.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	password = strings.TrimSpace(password)
	if email == "" || password == "" {
		return nil, errors.New("email and password are required")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?`, email,
	)
	var user models.User
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	ok, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// EnsureAdmin guarantees the configured administrator has an account row so
// the admin can sign in like any other user. The id comes verbatim from
// configuration and is never generated here.
func (s *Service) EnsureAdmin(ctx context.Context, admin config.AdminConfig) error {
	if admin.ID == "" {
		return errors.New("admin id is required")
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, admin.ID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("verify admin: %w", err)
	}
	if exists {
		return nil
	}

	name := strings.TrimSpace(admin.Name)
	if name == "" {
		name = "Administrator"
	}
	email := strings.ToLower(strings.TrimSpace(admin.Email))
	if email == "" {
		email = admin.ID + "@admin.local"
	}
	hash := ""
	if admin.Password != "" {
		var err error
		hash, err = auth.HashPassword(admin.Password)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
	} else {
		s.log.Warn("admin account seeded without a password, admin login is disabled")
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		admin.ID, name, email, hash, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	s.log.Info("seeded administrator account", "id", admin.ID)
	return nil
}
