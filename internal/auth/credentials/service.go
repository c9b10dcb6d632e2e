package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"storefront-auth/internal/auth"
	"storefront-auth/internal/db"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is kept as an alias so callers of this package do not
// need to import auth for the common check.
var ErrInvalidCredentials = auth.ErrInvalidCredentials

type Service struct {
	db *db.DB
}

func NewService(db *db.DB) *Service {
	return &Service{db: db}
}

// Register creates the user row and its password credential in one
// transaction. An email already known to the directory, whether through a
// password or a federated login, is a duplicate.
func (s *Service) Register(
	ctx context.Context,
	fields auth.RegisterFields,
) (auth.Identity, error) {

	if err := fields.Validate(); err != nil {
		return auth.Identity{}, err
	}
	fields = fields.Normalized()

	// 1. Hash password before holding a transaction open
	hash, version, err := HashPassword(fields.Password)
	if err != nil {
		return auth.Identity{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("credentials: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// 2. Create user; the lower(email) unique index rejects duplicates
	var userID uuid.UUID
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (email, email_verified)
		VALUES ($1, false)
		RETURNING id
	`, fields.Email).Scan(&userID)

	if db.IsUniqueViolation(err) {
		return auth.Identity{}, auth.ErrDuplicateEmail
	}
	if err != nil {
		return auth.Identity{}, fmt.Errorf("credentials: insert user: %w", err)
	}

	// 3. Insert credentials
	_, err = tx.ExecContext(ctx, `
		INSERT INTO credentials (user_id, password_hash, hash_version)
		VALUES ($1, $2, $3)
	`, userID, hash, version)

	if err != nil {
		return auth.Identity{}, fmt.Errorf("credentials: insert credential: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return auth.Identity{}, fmt.Errorf("credentials: commit: %w", err)
	}

	return auth.Identity{
		ID:    userID.String(),
		Email: fields.Email,
		Metadata: auth.Metadata{
			Provider:       ProviderName,
			ProviderUserID: userID.String(),
			FullName:       fields.Name,
			Phone:          fields.Phone,
		},
	}, nil
}

// Authenticate verifies an email/password pair. Unknown emails and wrong
// passwords are indistinguishable to the caller; database failures are
// returned as-is.
func (s *Service) Authenticate(
	ctx context.Context,
	email string,
	password string,
) (auth.Identity, error) {

	var (
		cred          Credential
		storedEmail   string
		emailVerified bool
	)

	// 1. Find user + credentials
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.email, u.email_verified, c.password_hash, c.hash_version
		FROM users u
		JOIN credentials c ON c.user_id = u.id
		WHERE LOWER(u.email) = LOWER($1)
	`, strings.TrimSpace(email)).Scan(
		&cred.UserID,
		&storedEmail,
		&emailVerified,
		&cred.PasswordHash,
		&cred.HashVersion,
	)

	if errors.Is(err, sql.ErrNoRows) {
		// hide whether user exists or not
		return auth.Identity{}, ErrInvalidCredentials
	}
	if err != nil {
		return auth.Identity{}, fmt.Errorf("credentials: lookup: %w", err)
	}

	if cred.HashVersion != HashVersionBcrypt {
		return auth.Identity{}, fmt.Errorf("credentials: unsupported hash version %q", cred.HashVersion)
	}

	// 2. Verify password
	if err := VerifyPassword(cred.PasswordHash, password); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return auth.Identity{}, ErrInvalidCredentials
		}
		return auth.Identity{}, fmt.Errorf("credentials: verify: %w", err)
	}

	return auth.Identity{
		ID:            cred.UserID,
		Email:         storedEmail,
		EmailVerified: emailVerified,
		Metadata: auth.Metadata{
			Provider:       ProviderName,
			ProviderUserID: cred.UserID,
		},
	}, nil
}
