// Package repository provides data persistence implementations for consent records.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/splitrx/splitrx/internal/consent/domain"
	"github.com/splitrx/splitrx/internal/database"
	apperrors "github.com/splitrx/splitrx/internal/errors"
)

// PostgreSQLConsentRepository handles consent record persistence for PostgreSQL.
type PostgreSQLConsentRepository struct {
	db *sql.DB
}

// NewPostgreSQLConsentRepository creates a new PostgreSQLConsentRepository.
func NewPostgreSQLConsentRepository(db *sql.DB) *PostgreSQLConsentRepository {
	return &PostgreSQLConsentRepository{
		db: db,
	}
}

const consentColumns = `id, patient_id, granted_to, scope, granted_at, revoked_at, created_at`

// Create inserts a consent record.
func (r *PostgreSQLConsentRepository) Create(ctx context.Context, record *domain.ConsentRecord) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO consent_records (id, patient_id, granted_to, scope, granted_at, created_at)
			  VALUES ($1, $2, $3, $4, $5, NOW())`

	_, err := querier.ExecContext(ctx, query,
		record.ID,
		record.PatientID,
		record.GrantedTo,
		record.Scope,
		record.GrantedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create consent record")
	}
	return nil
}

// GetByID retrieves a consent record.
func (r *PostgreSQLConsentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ConsentRecord, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + consentColumns + ` FROM consent_records WHERE id = $1`

	var record domain.ConsentRecord
	err := querier.QueryRowContext(ctx, query, id).Scan(
		&record.ID,
		&record.PatientID,
		&record.GrantedTo,
		&record.Scope,
		&record.GrantedAt,
		&record.RevokedAt,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrConsentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get consent record")
	}

	return &record, nil
}

// Revoke stamps revoked_at on an active grant.
func (r *PostgreSQLConsentRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE consent_records SET revoked_at = NOW()
			  WHERE id = $1 AND revoked_at IS NULL`

	result, err := querier.ExecContext(ctx, query, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to revoke consent")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read rows affected")
	}
	if affected == 0 {
		return domain.ErrConsentAlreadyRevoked
	}
	return nil
}

// RevokeAllForPatient revokes every active grant of the patient. Used by data
// erasure.
func (r *PostgreSQLConsentRepository) RevokeAllForPatient(ctx context.Context, patientID uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE consent_records SET revoked_at = NOW()
			  WHERE patient_id = $1 AND revoked_at IS NULL`

	if _, err := querier.ExecContext(ctx, query, patientID); err != nil {
		return apperrors.Wrap(err, "failed to revoke consents for patient")
	}
	return nil
}

// ListForPatient returns the patient's consent records, newest grants first.
func (r *PostgreSQLConsentRepository) ListForPatient(
	ctx context.Context,
	patientID uuid.UUID,
) ([]*domain.ConsentRecord, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + consentColumns + ` FROM consent_records
			  WHERE patient_id = $1
			  ORDER BY granted_at DESC`

	rows, err := querier.QueryContext(ctx, query, patientID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list consent records")
	}
	defer func() {
		_ = rows.Close()
	}()

	records := make([]*domain.ConsentRecord, 0)
	for rows.Next() {
		var record domain.ConsentRecord
		err := rows.Scan(
			&record.ID,
			&record.PatientID,
			&record.GrantedTo,
			&record.Scope,
			&record.GrantedAt,
			&record.RevokedAt,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan consent record")
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate consent records")
	}

	return records, nil
}

// HasActiveConsent reports whether the patient has an unrevoked grant for the
// given user. Satisfies the consent check of the prescription listing path.
func (r *PostgreSQLConsentRepository) HasActiveConsent(
	ctx context.Context,
	patientID, grantedTo uuid.UUID,
) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT EXISTS (
				SELECT 1 FROM consent_records
				WHERE patient_id = $1 AND granted_to = $2 AND revoked_at IS NULL
			  )`

	var exists bool
	if err := querier.QueryRowContext(ctx, query, patientID, grantedTo).Scan(&exists); err != nil {
		return false, apperrors.Wrap(err, "failed to check consent")
	}
	return exists, nil
}
