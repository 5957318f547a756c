package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAuditChainTamperDetection writes a few ledger entries through the API,
// then alters one row directly in the database and checks that the chain walk
// pinpoints it. The append-only triggers are dropped and recreated around the
// mutation; an attacker with schema privileges is exactly the threat the hash
// chain exists for.
func TestAuditChainTamperDetection(t *testing.T) {
	env := setupAPITest(t)

	adminID := registerUser(t, env, "admin", "chain-admin@example.com", "")
	registerUser(t, env, "patient", "chain-patient@example.com", "")
	registerUser(t, env, "doctor", "chain-doctor@example.com", "CRM-99999")

	// Baseline: the chain verifies.
	resp, body := env.request(t, http.MethodGet, "/v1/audit/verify", adminID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "chain verify failed: %s", body)

	var verification struct {
		Valid        bool    `json:"valid"`
		TotalEntries int     `json:"total_entries"`
		BrokenAtID   *string `json:"broken_at_id"`
	}
	decode(t, body, &verification)
	require.True(t, verification.Valid)
	require.GreaterOrEqual(t, verification.TotalEntries, 3)

	// Tamper with the oldest entry behind the application's back.
	_, err := env.db.Exec("DROP TRIGGER IF EXISTS audit_log_no_update ON audit_log")
	require.NoError(t, err)

	var tamperedID string
	err = env.db.QueryRow(
		`UPDATE audit_log SET action = 'FORGED_ACTION'
		 WHERE id = (SELECT id FROM audit_log ORDER BY timestamp, id LIMIT 1)
		 RETURNING id`,
	).Scan(&tamperedID)
	require.NoError(t, err)

	_, err = env.db.Exec(`CREATE TRIGGER audit_log_no_update
		BEFORE UPDATE ON audit_log
		FOR EACH ROW EXECUTE FUNCTION reject_audit_log_mutation()`)
	require.NoError(t, err)

	// The chain walk must report the altered entry.
	resp, body = env.request(t, http.MethodGet, "/v1/audit/verify", adminID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, body, &verification)

	assert.False(t, verification.Valid)
	require.NotNil(t, verification.BrokenAtID)
	assert.Equal(t, tamperedID, *verification.BrokenAtID)
}
