package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/splitrx/splitrx/internal/crypto/domain"
	"github.com/splitrx/splitrx/internal/testutil"
	"github.com/splitrx/splitrx/internal/user/domain"
)

func testUser(email string, role domain.Role) *domain.User {
	license := "CRM-9999"
	user := &domain.User{
		ID:           uuid.Must(uuid.NewV7()),
		Email:        email,
		PasswordHash: "argon2id$hash",
		FullName:     "Integration Test User",
		Role:         role,
		PublicKeyPEM: "-----BEGIN PUBLIC KEY-----\nabc\n-----END PUBLIC KEY-----",
		EncryptedPrivateKey: cryptoDomain.EncryptedBlob{
			Ciphertext: "deadbeef",
			IV:         "000000000000000000000000",
			Tag:        "00000000000000000000000000000000",
		},
		IsActive: true,
	}
	if role.RequiresLicense() {
		user.LicenseNumber = &license
	}
	return user
}

func TestPostgreSQLUserRepository_CreateAndGet(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLUserRepository(db)
	ctx := context.Background()

	user := testUser("doctor@example.com", domain.RoleDoctor)
	require.NoError(t, repo.Create(ctx, user))

	t.Run("GetByID", func(t *testing.T) {
		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Email, got.Email)
		assert.Equal(t, domain.RoleDoctor, got.Role)
		assert.Equal(t, user.EncryptedPrivateKey, got.EncryptedPrivateKey)
		require.NotNil(t, got.LicenseNumber)
		assert.Equal(t, "CRM-9999", *got.LicenseNumber)
	})

	t.Run("GetByEmail", func(t *testing.T) {
		got, err := repo.GetByEmail(ctx, user.Email)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetByID(ctx, uuid.Must(uuid.NewV7()))
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		dup := testUser(user.Email, domain.RolePatient)
		err := repo.Create(ctx, dup)
		assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
	})
}

func TestPostgreSQLUserRepository_UpdateKeys(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLUserRepository(db)
	ctx := context.Background()

	user := testUser("rotate@example.com", domain.RolePatient)
	require.NoError(t, repo.Create(ctx, user))

	newBlob := cryptoDomain.EncryptedBlob{
		Ciphertext: "cafef00d",
		IV:         "111111111111111111111111",
		Tag:        "11111111111111111111111111111111",
	}
	require.NoError(t, repo.UpdateKeys(ctx, user.ID, "new-public-key", newBlob))

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-public-key", got.PublicKeyPEM)
	assert.Equal(t, newBlob, got.EncryptedPrivateKey)

	t.Run("NotFound", func(t *testing.T) {
		err := repo.UpdateKeys(ctx, uuid.Must(uuid.NewV7()), "pk", newBlob)
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}

func TestPostgreSQLUserRepository_SetActive(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLUserRepository(db)
	ctx := context.Background()

	user := testUser("inactive@example.com", domain.RolePatient)
	require.NoError(t, repo.Create(ctx, user))

	require.NoError(t, repo.SetActive(ctx, user.ID, false))

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}
