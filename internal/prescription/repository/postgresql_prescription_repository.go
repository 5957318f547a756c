// Package repository provides data persistence implementations for prescriptions.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/splitrx/splitrx/internal/database"
	apperrors "github.com/splitrx/splitrx/internal/errors"
	"github.com/splitrx/splitrx/internal/prescription/domain"
)

// PostgreSQLPrescriptionRepository handles prescription persistence for PostgreSQL.
type PostgreSQLPrescriptionRepository struct {
	db *sql.DB
}

// NewPostgreSQLPrescriptionRepository creates a new PostgreSQLPrescriptionRepository.
func NewPostgreSQLPrescriptionRepository(db *sql.DB) *PostgreSQLPrescriptionRepository {
	return &PostgreSQLPrescriptionRepository{
		db: db,
	}
}

const prescriptionColumns = `p.id, p.prescription_number, p.doctor_id, p.patient_id,
		p.encrypted_payload, p.payload_iv, p.payload_tag, p.payload_hash, p.signature,
		p.status, p.issued_at, p.expires_at, p.dispensed_at, p.dispensed_by,
		p.created_at, p.updated_at, u.public_key`

const prescriptionJoin = `FROM prescriptions p JOIN users u ON u.id = p.doctor_id`

// Create inserts a new prescription.
func (r *PostgreSQLPrescriptionRepository) Create(ctx context.Context, prescription *domain.Prescription) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO prescriptions (id, prescription_number, doctor_id, patient_id,
				encrypted_payload, payload_iv, payload_tag, payload_hash, signature,
				status, issued_at, expires_at, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())`

	_, err := querier.ExecContext(ctx, query,
		prescription.ID,
		prescription.PrescriptionNumber,
		prescription.DoctorID,
		prescription.PatientID,
		prescription.EncryptedPayload.Ciphertext,
		prescription.EncryptedPayload.IV,
		prescription.EncryptedPayload.Tag,
		prescription.PayloadHash,
		prescription.Signature,
		string(prescription.Status),
		prescription.IssuedAt,
		prescription.ExpiresAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create prescription")
	}
	return nil
}

// GetByID retrieves a prescription with the issuing doctor's public key.
func (r *PostgreSQLPrescriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Prescription, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + prescriptionColumns + ` ` + prescriptionJoin + ` WHERE p.id = $1`

	return scanPrescription(querier.QueryRowContext(ctx, query, id))
}

// GetByIDForUpdate retrieves a prescription and locks its row for the rest of
// the current transaction. Concurrent dispense attempts serialize here; only
// the first sees the active status. Must be called inside a transaction.
func (r *PostgreSQLPrescriptionRepository) GetByIDForUpdate(
	ctx context.Context,
	id uuid.UUID,
) (*domain.Prescription, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + prescriptionColumns + ` ` + prescriptionJoin + `
			  WHERE p.id = $1
			  FOR UPDATE OF p`

	return scanPrescription(querier.QueryRowContext(ctx, query, id))
}

// ListByPatient returns the patient's prescriptions, newest first.
func (r *PostgreSQLPrescriptionRepository) ListByPatient(
	ctx context.Context,
	patientID uuid.UUID,
) ([]*domain.Prescription, error) {
	return r.list(ctx, "p.patient_id", patientID)
}

// ListByPatientAndDoctor returns the patient's prescriptions authored by the
// given doctor, newest first. Doctor reads go through here: authorship is
// checked in the query, not in application code.
func (r *PostgreSQLPrescriptionRepository) ListByPatientAndDoctor(
	ctx context.Context,
	patientID, doctorID uuid.UUID,
) ([]*domain.Prescription, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + prescriptionColumns + ` ` + prescriptionJoin + `
			  WHERE p.patient_id = $1 AND p.doctor_id = $2
			  ORDER BY p.issued_at DESC`

	rows, err := querier.QueryContext(ctx, query, patientID, doctorID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list prescriptions")
	}
	return collectPrescriptions(rows)
}

// ListByDoctor returns the prescriptions the doctor issued, newest first.
func (r *PostgreSQLPrescriptionRepository) ListByDoctor(
	ctx context.Context,
	doctorID uuid.UUID,
) ([]*domain.Prescription, error) {
	return r.list(ctx, "p.doctor_id", doctorID)
}

func (r *PostgreSQLPrescriptionRepository) list(
	ctx context.Context,
	column string,
	id uuid.UUID,
) ([]*domain.Prescription, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + prescriptionColumns + ` ` + prescriptionJoin + `
			  WHERE ` + column + ` = $1
			  ORDER BY p.issued_at DESC`

	rows, err := querier.QueryContext(ctx, query, id)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list prescriptions")
	}
	return collectPrescriptions(rows)
}

func collectPrescriptions(rows *sql.Rows) ([]*domain.Prescription, error) {
	defer func() {
		_ = rows.Close()
	}()

	prescriptions := make([]*domain.Prescription, 0)
	for rows.Next() {
		prescription, err := scanPrescriptionRow(rows)
		if err != nil {
			return nil, err
		}
		prescriptions = append(prescriptions, prescription)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate prescriptions")
	}

	return prescriptions, nil
}

// UpdateStatus moves an active prescription into a terminal state. The WHERE
// clause enforces the state machine at the database level.
func (r *PostgreSQLPrescriptionRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.Status,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE prescriptions SET status = $2, updated_at = NOW()
			  WHERE id = $1 AND status = 'active'`

	result, err := querier.ExecContext(ctx, query, id, string(status))
	if err != nil {
		return apperrors.Wrap(err, "failed to update prescription status")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read rows affected")
	}
	if affected == 0 {
		return domain.ErrPrescriptionNotActive
	}
	return nil
}

// MarkDispensed records a successful dispense on an active prescription.
func (r *PostgreSQLPrescriptionRepository) MarkDispensed(
	ctx context.Context,
	id uuid.UUID,
	pharmacistID uuid.UUID,
	dispensedAt time.Time,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE prescriptions
			  SET status = 'dispensed', dispensed_at = $3, dispensed_by = $2, updated_at = NOW()
			  WHERE id = $1 AND status = 'active'`

	result, err := querier.ExecContext(ctx, query, id, pharmacistID, dispensedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark prescription dispensed")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read rows affected")
	}
	if affected == 0 {
		return domain.ErrPrescriptionNotActive
	}
	return nil
}

// CancelAllActiveForPatient cancels every active prescription of the patient
// and returns the affected ids. Used by data erasure.
func (r *PostgreSQLPrescriptionRepository) CancelAllActiveForPatient(
	ctx context.Context,
	patientID uuid.UUID,
) ([]uuid.UUID, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE prescriptions SET status = 'cancelled', updated_at = NOW()
			  WHERE patient_id = $1 AND status = 'active'
			  RETURNING id`

	rows, err := querier.QueryContext(ctx, query, patientID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to cancel prescriptions for patient")
	}
	defer func() {
		_ = rows.Close()
	}()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan cancelled prescription id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate cancelled prescriptions")
	}

	return ids, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrescription(row *sql.Row) (*domain.Prescription, error) {
	prescription, err := scanPrescriptionFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPrescriptionNotFound
		}
		return nil, err
	}
	return prescription, nil
}

func scanPrescriptionRow(rows *sql.Rows) (*domain.Prescription, error) {
	return scanPrescriptionFrom(rows)
}

func scanPrescriptionFrom(scanner rowScanner) (*domain.Prescription, error) {
	var p domain.Prescription
	var status string

	err := scanner.Scan(
		&p.ID,
		&p.PrescriptionNumber,
		&p.DoctorID,
		&p.PatientID,
		&p.EncryptedPayload.Ciphertext,
		&p.EncryptedPayload.IV,
		&p.EncryptedPayload.Tag,
		&p.PayloadHash,
		&p.Signature,
		&status,
		&p.IssuedAt,
		&p.ExpiresAt,
		&p.DispensedAt,
		&p.DispensedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.DoctorPublicKeyPEM,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, apperrors.Wrap(err, "failed to scan prescription")
	}

	p.Status = domain.Status(status)
	return &p, nil
}
