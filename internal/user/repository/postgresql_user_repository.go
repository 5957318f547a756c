// Package repository provides data persistence implementations for user entities.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	cryptoDomain "github.com/splitrx/splitrx/internal/crypto/domain"
	"github.com/splitrx/splitrx/internal/database"
	apperrors "github.com/splitrx/splitrx/internal/errors"
	"github.com/splitrx/splitrx/internal/user/domain"
)

// PostgreSQLUserRepository handles user persistence for PostgreSQL.
type PostgreSQLUserRepository struct {
	db *sql.DB
}

// NewPostgreSQLUserRepository creates a new PostgreSQLUserRepository.
func NewPostgreSQLUserRepository(db *sql.DB) *PostgreSQLUserRepository {
	return &PostgreSQLUserRepository{
		db: db,
	}
}

const userColumns = `id, email, password_hash, full_name, role, license_number, public_key,
		encrypted_private_key, private_key_iv, private_key_tag, is_active, created_at, updated_at`

// Create inserts a new user.
func (r *PostgreSQLUserRepository) Create(ctx context.Context, user *domain.User) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO users (` + userColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`

	_, err := querier.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FullName,
		string(user.Role),
		user.LicenseNumber,
		user.PublicKeyPEM,
		user.EncryptedPrivateKey.Ciphertext,
		user.EncryptedPrivateKey.IV,
		user.EncryptedPrivateKey.Tag,
		user.IsActive,
	)
	if err != nil {
		if isPostgreSQLUniqueViolation(err) {
			return domain.ErrUserAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create user")
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *PostgreSQLUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	return scanUser(querier.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves a user by email.
func (r *PostgreSQLUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	return scanUser(querier.QueryRowContext(ctx, query, email))
}

// UpdateKeys replaces the user's key pair.
func (r *PostgreSQLUserRepository) UpdateKeys(
	ctx context.Context,
	id uuid.UUID,
	publicKeyPEM string,
	encryptedPrivateKey cryptoDomain.EncryptedBlob,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE users
			  SET public_key = $2, encrypted_private_key = $3, private_key_iv = $4,
				  private_key_tag = $5, updated_at = NOW()
			  WHERE id = $1`

	result, err := querier.ExecContext(ctx, query,
		id,
		publicKeyPEM,
		encryptedPrivateKey.Ciphertext,
		encryptedPrivateKey.IV,
		encryptedPrivateKey.Tag,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update user keys")
	}

	return requireRowAffected(result, domain.ErrUserNotFound)
}

// SetActive flips the user's active flag.
func (r *PostgreSQLUserRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`

	result, err := querier.ExecContext(ctx, query, id, active)
	if err != nil {
		return apperrors.Wrap(err, "failed to update user active flag")
	}

	return requireRowAffected(result, domain.ErrUserNotFound)
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	var role string

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FullName,
		&role,
		&user.LicenseNumber,
		&user.PublicKeyPEM,
		&user.EncryptedPrivateKey.Ciphertext,
		&user.EncryptedPrivateKey.IV,
		&user.EncryptedPrivateKey.Tag,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, apperrors.Wrap(err, "failed to scan user")
	}

	user.Role = domain.Role(role)
	return &user, nil
}

func requireRowAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read rows affected")
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

// isPostgreSQLUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isPostgreSQLUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "duplicate key") || strings.Contains(errMsg, "unique constraint")
}
