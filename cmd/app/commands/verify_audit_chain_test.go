package commands

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auditDomain "github.com/splitrx/splitrx/internal/audit/domain"
)

type mockLedgerUseCase struct {
	mock.Mock
}

func (m *mockLedgerUseCase) Append(ctx context.Context, event *auditDomain.Event) (*auditDomain.AuditEntry, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auditDomain.AuditEntry), args.Error(1)
}

func (m *mockLedgerUseCase) AppendInTx(ctx context.Context, event *auditDomain.Event) (*auditDomain.AuditEntry, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auditDomain.AuditEntry), args.Error(1)
}

func (m *mockLedgerUseCase) VerifyChain(ctx context.Context) (*auditDomain.ChainVerification, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auditDomain.ChainVerification), args.Error(1)
}

func (m *mockLedgerUseCase) ListForResource(ctx context.Context, resourceID uuid.UUID) ([]*auditDomain.AuditEntry, error) {
	args := m.Called(ctx, resourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*auditDomain.AuditEntry), args.Error(1)
}

func (m *mockLedgerUseCase) ListForUser(ctx context.Context, userID uuid.UUID) ([]*auditDomain.AuditEntry, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*auditDomain.AuditEntry), args.Error(1)
}

func TestVerifyAuditChain(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("text-output-valid", func(t *testing.T) {
		mockUseCase := &mockLedgerUseCase{}
		mockUseCase.On("VerifyChain", ctx).
			Return(&auditDomain.ChainVerification{Valid: true, TotalEntries: 42}, nil)

		var out bytes.Buffer
		err := verifyAuditChain(ctx, mockUseCase, logger, &out, "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), "Total Entries:  42")
		require.Contains(t, out.String(), "Status: PASSED")
		mockUseCase.AssertExpectations(t)
	})

	t.Run("json-output-valid", func(t *testing.T) {
		mockUseCase := &mockLedgerUseCase{}
		mockUseCase.On("VerifyChain", ctx).
			Return(&auditDomain.ChainVerification{Valid: true, TotalEntries: 7}, nil)

		var out bytes.Buffer
		err := verifyAuditChain(ctx, mockUseCase, logger, &out, "json")

		require.NoError(t, err)
		require.Contains(t, out.String(), `"valid": true`)
		require.Contains(t, out.String(), `"total_entries": 7`)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("broken-chain-returns-error", func(t *testing.T) {
		brokenID := uuid.New()
		mockUseCase := &mockLedgerUseCase{}
		mockUseCase.On("VerifyChain", ctx).
			Return(&auditDomain.ChainVerification{Valid: false, TotalEntries: 42, BrokenAtID: &brokenID}, nil)

		var out bytes.Buffer
		err := verifyAuditChain(ctx, mockUseCase, logger, &out, "text")

		require.Error(t, err)
		require.Contains(t, err.Error(), "integrity check failed")
		require.Contains(t, out.String(), "Status: FAILED")
		require.Contains(t, out.String(), brokenID.String())
	})

	t.Run("empty-ledger", func(t *testing.T) {
		mockUseCase := &mockLedgerUseCase{}
		mockUseCase.On("VerifyChain", ctx).
			Return(&auditDomain.ChainVerification{Valid: true, TotalEntries: 0}, nil)

		var out bytes.Buffer
		err := verifyAuditChain(ctx, mockUseCase, logger, &out, "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), "No entries in ledger")
	})
}
