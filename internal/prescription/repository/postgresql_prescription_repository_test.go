package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/splitrx/splitrx/internal/crypto/domain"
	"github.com/splitrx/splitrx/internal/database"
	"github.com/splitrx/splitrx/internal/prescription/domain"
	"github.com/splitrx/splitrx/internal/testutil"
)

func testPrescription(doctorID, patientID uuid.UUID, issuedAt time.Time) *domain.Prescription {
	return &domain.Prescription{
		ID:                 uuid.Must(uuid.NewV7()),
		PrescriptionNumber: domain.NewPrescriptionNumber(issuedAt),
		DoctorID:           doctorID,
		PatientID:          patientID,
		EncryptedPayload: cryptoDomain.EncryptedBlob{
			Ciphertext: "deadbeef",
			IV:         "000000000000000000000000",
			Tag:        "00000000000000000000000000000000",
		},
		PayloadHash: strings.Repeat("ab", 32),
		Signature:   "cafebabe",
		Status:      domain.StatusActive,
		IssuedAt:    issuedAt,
		ExpiresAt:   issuedAt.AddDate(0, 0, 30),
	}
}

func TestPostgreSQLPrescriptionRepository_CreateAndGet(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLPrescriptionRepository(db)
	ctx := context.Background()

	doctorID := testutil.CreateTestUser(t, db, "doctor", "doctor@example.com")
	patientID := testutil.CreateTestUser(t, db, "patient", "patient@example.com")

	now := time.Now().UTC().Truncate(time.Microsecond)
	prescription := testPrescription(doctorID, patientID, now)
	require.NoError(t, repo.Create(ctx, prescription))

	t.Run("GetByID", func(t *testing.T) {
		got, err := repo.GetByID(ctx, prescription.ID)
		require.NoError(t, err)

		assert.Equal(t, prescription.PrescriptionNumber, got.PrescriptionNumber)
		assert.Equal(t, domain.StatusActive, got.Status)
		assert.Equal(t, prescription.EncryptedPayload, got.EncryptedPayload)
		assert.Equal(t, prescription.PayloadHash, got.PayloadHash)
		assert.True(t, prescription.IssuedAt.Equal(got.IssuedAt))
		// The issuing doctor's public key rides along from the join.
		assert.Contains(t, got.DoctorPublicKeyPEM, "BEGIN PUBLIC KEY")
		assert.Nil(t, got.DispensedAt)
		assert.Nil(t, got.DispensedBy)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetByID(ctx, uuid.Must(uuid.NewV7()))
		assert.ErrorIs(t, err, domain.ErrPrescriptionNotFound)
	})

	t.Run("GetByIDForUpdate", func(t *testing.T) {
		txManager := database.NewTxManager(db)
		err := txManager.WithTx(ctx, func(ctx context.Context) error {
			got, err := repo.GetByIDForUpdate(ctx, prescription.ID)
			require.NoError(t, err)
			assert.Equal(t, prescription.ID, got.ID)
			return nil
		})
		require.NoError(t, err)
	})
}

func TestPostgreSQLPrescriptionRepository_List(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLPrescriptionRepository(db)
	ctx := context.Background()

	doctorID := testutil.CreateTestUser(t, db, "doctor", "doctor@example.com")
	otherDoctorID := testutil.CreateTestUser(t, db, "doctor", "doctor2@example.com")
	patientID := testutil.CreateTestUser(t, db, "patient", "patient@example.com")
	otherPatientID := testutil.CreateTestUser(t, db, "patient", "other@example.com")

	now := time.Now().UTC().Truncate(time.Microsecond)
	older := testPrescription(doctorID, patientID, now.Add(-time.Hour))
	newer := testPrescription(doctorID, patientID, now)
	foreign := testPrescription(otherDoctorID, patientID, now)
	unrelated := testPrescription(doctorID, otherPatientID, now)
	for _, p := range []*domain.Prescription{older, newer, foreign, unrelated} {
		require.NoError(t, repo.Create(ctx, p))
	}

	t.Run("ListByPatient_NewestFirst", func(t *testing.T) {
		got, err := repo.ListByPatient(ctx, patientID)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, older.ID, got[2].ID)
	})

	t.Run("ListByPatientAndDoctor_AuthoredOnly", func(t *testing.T) {
		got, err := repo.ListByPatientAndDoctor(ctx, patientID, doctorID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		for _, p := range got {
			assert.Equal(t, doctorID, p.DoctorID)
			assert.Equal(t, patientID, p.PatientID)
		}
	})

	t.Run("ListByDoctor", func(t *testing.T) {
		got, err := repo.ListByDoctor(ctx, doctorID)
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("ListByPatient_Empty", func(t *testing.T) {
		got, err := repo.ListByPatient(ctx, uuid.Must(uuid.NewV7()))
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestPostgreSQLPrescriptionRepository_StateMachine(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLPrescriptionRepository(db)
	ctx := context.Background()

	doctorID := testutil.CreateTestUser(t, db, "doctor", "doctor@example.com")
	patientID := testutil.CreateTestUser(t, db, "patient", "patient@example.com")
	pharmacistID := testutil.CreateTestUser(t, db, "pharmacist", "pharmacist@example.com")

	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("UpdateStatus_OnlyFromActive", func(t *testing.T) {
		prescription := testPrescription(doctorID, patientID, now)
		require.NoError(t, repo.Create(ctx, prescription))

		require.NoError(t, repo.UpdateStatus(ctx, prescription.ID, domain.StatusExpired))

		// A terminal prescription never transitions again.
		err := repo.UpdateStatus(ctx, prescription.ID, domain.StatusCancelled)
		assert.ErrorIs(t, err, domain.ErrPrescriptionNotActive)
	})

	t.Run("MarkDispensed", func(t *testing.T) {
		prescription := testPrescription(doctorID, patientID, now)
		require.NoError(t, repo.Create(ctx, prescription))

		dispensedAt := now.Add(time.Minute)
		require.NoError(t, repo.MarkDispensed(ctx, prescription.ID, pharmacistID, dispensedAt))

		got, err := repo.GetByID(ctx, prescription.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDispensed, got.Status)
		require.NotNil(t, got.DispensedAt)
		assert.True(t, dispensedAt.Equal(*got.DispensedAt))
		require.NotNil(t, got.DispensedBy)
		assert.Equal(t, pharmacistID, *got.DispensedBy)

		// Second dispense loses the status guard.
		err = repo.MarkDispensed(ctx, prescription.ID, pharmacistID, dispensedAt)
		assert.ErrorIs(t, err, domain.ErrPrescriptionNotActive)
	})

	t.Run("CancelAllActiveForPatient", func(t *testing.T) {
		active := testPrescription(doctorID, patientID, now)
		dispensed := testPrescription(doctorID, patientID, now)
		require.NoError(t, repo.Create(ctx, active))
		require.NoError(t, repo.Create(ctx, dispensed))
		require.NoError(t, repo.MarkDispensed(ctx, dispensed.ID, pharmacistID, now))

		ids, err := repo.CancelAllActiveForPatient(ctx, patientID)
		require.NoError(t, err)
		assert.Contains(t, ids, active.ID)
		assert.NotContains(t, ids, dispensed.ID)

		got, err := repo.GetByID(ctx, active.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, got.Status)

		got, err = repo.GetByID(ctx, dispensed.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDispensed, got.Status)
	})
}
