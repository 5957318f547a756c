// Package repository implements ledger persistence for PostgreSQL.
// The audit_log table is append-only: database triggers reject UPDATE and
// DELETE, so immutability does not depend on application discipline.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/splitrx/splitrx/internal/audit/domain"
	"github.com/splitrx/splitrx/internal/database"
	apperrors "github.com/splitrx/splitrx/internal/errors"
)

// PostgreSQLLedgerRepository implements AuditEntry persistence for PostgreSQL.
// Uses transaction support via database.GetTx(): every method runs on the
// caller's transaction when one is present in the context.
type PostgreSQLLedgerRepository struct {
	db *sql.DB
}

// NewPostgreSQLLedgerRepository creates a new PostgreSQL ledger repository.
func NewPostgreSQLLedgerRepository(db *sql.DB) *PostgreSQLLedgerRepository {
	return &PostgreSQLLedgerRepository{db: db}
}

const entryColumns = `id, timestamp, actor_id, actor_role, action, resource_type,
		resource_id, resource_owner_id, metadata, previous_hash, entry_hash`

// LockLedger serializes concurrent appenders for the remainder of the current
// transaction. SHARE ROW EXCLUSIVE conflicts with itself, so two appends can
// never both read the same tail hash and fork the chain, while readers are
// not blocked. Must be called inside a transaction.
func (p *PostgreSQLLedgerRepository) LockLedger(ctx context.Context) error {
	querier := database.GetTx(ctx, p.db)

	if _, err := querier.ExecContext(ctx, `LOCK TABLE audit_log IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return apperrors.Wrap(err, "failed to lock audit_log")
	}
	return nil
}

// TailHash returns the entry hash of the most recently inserted entry, or the
// sentinel when the ledger is empty. Always read under LockLedger within the
// appending transaction; the tail is never cached in memory.
func (p *PostgreSQLLedgerRepository) TailHash(ctx context.Context) (string, error) {
	querier := database.GetTx(ctx, p.db)

	var tail string
	err := querier.QueryRowContext(
		ctx,
		`SELECT entry_hash FROM audit_log ORDER BY timestamp DESC, id DESC LIMIT 1`,
	).Scan(&tail)
	if err != nil {
		if err == sql.ErrNoRows {
			return auditDomain.SentinelHash, nil
		}
		return "", apperrors.Wrap(err, "failed to read ledger tail")
	}

	return tail, nil
}

// Insert appends a fully computed entry. Handles nil metadata as database NULL.
func (p *PostgreSQLLedgerRepository) Insert(ctx context.Context, entry *auditDomain.AuditEntry) error {
	querier := database.GetTx(ctx, p.db)

	var metadataJSON []byte
	var err error

	if entry.Metadata != nil {
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return apperrors.Wrap(err, "failed to marshal audit entry metadata")
		}
	}

	query := `INSERT INTO audit_log (` + entryColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = querier.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.Timestamp,
		entry.ActorID,
		entry.ActorRole.String(),
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		entry.ResourceOwnerID,
		metadataJSON,
		entry.PreviousHash,
		entry.EntryHash,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to insert audit entry")
	}

	return nil
}

// ListAscending returns every entry in chain order (insertion order). Used by
// the chain verifier, which walks the whole ledger front to back.
func (p *PostgreSQLLedgerRepository) ListAscending(ctx context.Context) ([]*auditDomain.AuditEntry, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + entryColumns + `
			  FROM audit_log
			  ORDER BY timestamp ASC, id ASC`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit entries")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanEntries(rows)
}

// ListForResource returns all entries tied to a resource, newest first.
func (p *PostgreSQLLedgerRepository) ListForResource(
	ctx context.Context,
	resourceID uuid.UUID,
) ([]*auditDomain.AuditEntry, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + entryColumns + `
			  FROM audit_log
			  WHERE resource_id = $1
			  ORDER BY timestamp DESC, id DESC`

	rows, err := querier.QueryContext(ctx, query, resourceID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit entries for resource")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanEntries(rows)
}

// LatestActivation returns the timestamp of the user's most recent
// registration or reactivation event, or the zero time when none exists.
func (p *PostgreSQLLedgerRepository) LatestActivation(
	ctx context.Context,
	userID uuid.UUID,
) (time.Time, error) {
	querier := database.GetTx(ctx, p.db)

	var ts time.Time
	err := querier.QueryRowContext(
		ctx,
		`SELECT timestamp FROM audit_log
		 WHERE resource_id = $1 AND action IN ($2, $3)
		 ORDER BY timestamp DESC
		 LIMIT 1`,
		userID,
		auditDomain.ActionUserRegistered,
		auditDomain.ActionUserReactivated,
	).Scan(&ts)
	if err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, nil
		}
		return time.Time{}, apperrors.Wrap(err, "failed to read latest activation")
	}

	return ts, nil
}

// ListForUserSince returns entries owned by the user at or after the floor
// timestamp, newest first, capped at limit.
func (p *PostgreSQLLedgerRepository) ListForUserSince(
	ctx context.Context,
	userID uuid.UUID,
	since time.Time,
	limit int,
) ([]*auditDomain.AuditEntry, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + entryColumns + `
			  FROM audit_log
			  WHERE resource_owner_id = $1 AND timestamp >= $2
			  ORDER BY timestamp DESC, id DESC
			  LIMIT $3`

	rows, err := querier.QueryContext(ctx, query, userID, since, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit entries for user")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanEntries(rows)
}

// scanEntries scans a result set of full entry rows. Handles NULL metadata
// by leaving the map nil.
func scanEntries(rows *sql.Rows) ([]*auditDomain.AuditEntry, error) {
	entries := make([]*auditDomain.AuditEntry, 0)
	for rows.Next() {
		var entry auditDomain.AuditEntry
		var metadataJSON []byte
		var role string

		err := rows.Scan(
			&entry.ID,
			&entry.Timestamp,
			&entry.ActorID,
			&role,
			&entry.Action,
			&entry.ResourceType,
			&entry.ResourceID,
			&entry.ResourceOwnerID,
			&metadataJSON,
			&entry.PreviousHash,
			&entry.EntryHash,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan audit entry")
		}

		entry.ActorRole = auditDomain.ActorRole(role)

		if metadataJSON != nil {
			if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
				return nil, apperrors.Wrap(err, "failed to unmarshal audit entry metadata")
			}
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate audit entries")
	}

	return entries, nil
}
