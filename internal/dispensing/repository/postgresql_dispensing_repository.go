// Package repository provides data persistence implementations for dispensing records.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/splitrx/splitrx/internal/database"
	"github.com/splitrx/splitrx/internal/dispensing/domain"
	apperrors "github.com/splitrx/splitrx/internal/errors"
)

// PostgreSQLDispensingRepository handles dispensing record persistence for PostgreSQL.
type PostgreSQLDispensingRepository struct {
	db *sql.DB
}

// NewPostgreSQLDispensingRepository creates a new PostgreSQLDispensingRepository.
func NewPostgreSQLDispensingRepository(db *sql.DB) *PostgreSQLDispensingRepository {
	return &PostgreSQLDispensingRepository{
		db: db,
	}
}

const recordColumns = `id, prescription_id, pharmacist_id, pharmacy_name,
		signature_valid, integrity_valid, verification_hash, dispensed_at, created_at`

// Create inserts a dispensing record. The unique constraint on
// prescription_id is the final guard against double dispensing.
func (r *PostgreSQLDispensingRepository) Create(ctx context.Context, record *domain.DispensingRecord) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO dispensing_records (` + recordColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`

	_, err := querier.ExecContext(ctx, query,
		record.ID,
		record.PrescriptionID,
		record.PharmacistID,
		record.PharmacyName,
		record.SignatureValid,
		record.IntegrityValid,
		record.VerificationHash,
		record.DispensedAt,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return apperrors.Wrap(apperrors.ErrStateConflict, "prescription already dispensed")
		}
		return apperrors.Wrap(err, "failed to create dispensing record")
	}
	return nil
}

// GetByPrescriptionID retrieves the dispensing record of a prescription.
func (r *PostgreSQLDispensingRepository) GetByPrescriptionID(
	ctx context.Context,
	prescriptionID uuid.UUID,
) (*domain.DispensingRecord, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + recordColumns + ` FROM dispensing_records WHERE prescription_id = $1`

	var record domain.DispensingRecord
	err := querier.QueryRowContext(ctx, query, prescriptionID).Scan(
		&record.ID,
		&record.PrescriptionID,
		&record.PharmacistID,
		&record.PharmacyName,
		&record.SignatureValid,
		&record.IntegrityValid,
		&record.VerificationHash,
		&record.DispensedAt,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Wrap(apperrors.ErrNotFound, "dispensing record not found")
		}
		return nil, apperrors.Wrap(err, "failed to get dispensing record")
	}

	return &record, nil
}

// historyLimit caps the pharmacist's history view at the most recent entries.
const historyLimit = 50

// ListByPharmacist returns the pharmacist's dispensing history, newest first,
// joined with the prescription number and the participants' names.
func (r *PostgreSQLDispensingRepository) ListByPharmacist(
	ctx context.Context,
	pharmacistID uuid.UUID,
) ([]*domain.HistoryEntry, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT dr.id, dr.prescription_id, dr.pharmacist_id, dr.pharmacy_name,
					 dr.signature_valid, dr.integrity_valid, dr.verification_hash,
					 dr.dispensed_at, dr.created_at,
					 p.prescription_number, pt.full_name, d.full_name
			  FROM dispensing_records dr
			  JOIN prescriptions p ON p.id = dr.prescription_id
			  JOIN users pt ON pt.id = p.patient_id
			  JOIN users d ON d.id = p.doctor_id
			  WHERE dr.pharmacist_id = $1
			  ORDER BY dr.dispensed_at DESC
			  LIMIT $2`

	rows, err := querier.QueryContext(ctx, query, pharmacistID, historyLimit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list dispensing records")
	}
	defer func() {
		_ = rows.Close()
	}()

	entries := make([]*domain.HistoryEntry, 0)
	for rows.Next() {
		var entry domain.HistoryEntry
		err := rows.Scan(
			&entry.ID,
			&entry.PrescriptionID,
			&entry.PharmacistID,
			&entry.PharmacyName,
			&entry.SignatureValid,
			&entry.IntegrityValid,
			&entry.VerificationHash,
			&entry.DispensedAt,
			&entry.CreatedAt,
			&entry.PrescriptionNumber,
			&entry.PatientName,
			&entry.DoctorName,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan dispensing record")
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate dispensing records")
	}

	return entries, nil
}
