// Package integration provides end-to-end tests for the prescription API.
// The full stack runs against a real PostgreSQL database: DI container, Gin
// router, crypto services and the audit ledger. Tests skip when no database
// is reachable.
package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitrx/splitrx/internal/app"
	"github.com/splitrx/splitrx/internal/config"
	apphttp "github.com/splitrx/splitrx/internal/http"
	"github.com/splitrx/splitrx/internal/testutil"
)

// testEnv holds the running stack for one integration test.
type testEnv struct {
	container *app.Container
	db        *sql.DB
	server    *httptest.Server
}

// setupAPITest boots the full stack against the test database.
func setupAPITest(t *testing.T) *testEnv {
	t.Helper()

	testutil.SkipIfNoPostgres(t)
	gin.SetMode(gin.TestMode)

	db := testutil.SetupPostgresDB(t)

	cfg := &config.Config{
		ServerHost:                "localhost",
		ServerPort:                8080,
		DBConnectionString:        testutil.GetPostgresTestDSN(),
		DBMaxOpenConnections:      10,
		DBMaxIdleConnections:      5,
		DBConnMaxLifetime:         time.Hour,
		LogLevel:                  "error",
		MasterSecret:              "integration-test-master-secret-0123456789",
		MasterSecretSalt:          "integration-test-salt",
		PrescriptionMaxExpiryDays: 365,
	}

	container := app.NewContainer(cfg)

	httpSrv, err := container.HTTPServer()
	require.NoError(t, err, "failed to get HTTP server")

	server := httptest.NewServer(httpSrv.GetHandler())

	env := &testEnv{
		container: container,
		db:        db,
		server:    server,
	}

	t.Cleanup(func() {
		env.server.Close()
		if err := env.container.Shutdown(context.Background()); err != nil {
			t.Logf("container shutdown error: %v", err)
		}
		testutil.TeardownDB(t, env.db)
	})

	return env
}

// request performs an HTTP request against the test server. A zero actorID
// leaves the caller identity header unset.
func (env *testEnv) request(
	t *testing.T,
	method, path string,
	actorID uuid.UUID,
	body interface{},
) (*http.Response, []byte) {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request body")
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, env.server.URL+path, bodyReader)
	require.NoError(t, err, "failed to create request")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actorID != uuid.Nil {
		req.Header.Set(apphttp.ActorIDHeader, actorID.String())
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err, "failed to perform request")

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")
	require.NoError(t, resp.Body.Close())

	return resp, respBody
}

// decode unmarshals a JSON response body into out.
func decode(t *testing.T, body []byte, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(body, out), "failed to decode response: %s", body)
}

const testPassword = "Str0ng!Passw0rd"

// registerUser creates an account through the public registration endpoint.
func registerUser(t *testing.T, env *testEnv, role, email, license string) uuid.UUID {
	t.Helper()

	payload := map[string]interface{}{
		"email":     email,
		"password":  testPassword,
		"full_name": "Test " + role,
		"role":      role,
	}
	if license != "" {
		payload["license_number"] = license
	}

	resp, body := env.request(t, http.MethodPost, "/v1/users", uuid.Nil, payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "registration failed: %s", body)

	var user struct {
		ID           string `json:"id"`
		PublicKeyPEM string `json:"public_key"`
	}
	decode(t, body, &user)
	require.NotEmpty(t, user.PublicKeyPEM, "registration must return the public key")

	return uuid.MustParse(user.ID)
}

func TestPrescriptionLifecycle(t *testing.T) {
	env := setupAPITest(t)

	doctorID := registerUser(t, env, "doctor", "doctor@example.com", "CRM-12345")
	patientID := registerUser(t, env, "patient", "patient@example.com", "")
	pharmacistID := registerUser(t, env, "pharmacist", "pharmacist@example.com", "CRF-67890")
	adminID := registerUser(t, env, "admin", "admin@example.com", "")

	t.Run("login", func(t *testing.T) {
		resp, body := env.request(t, http.MethodPost, "/v1/login", uuid.Nil, map[string]string{
			"email":    "patient@example.com",
			"password": testPassword,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "login failed: %s", body)

		resp, _ = env.request(t, http.MethodPost, "/v1/login", uuid.Nil, map[string]string{
			"email":    "patient@example.com",
			"password": "wrong-password",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("missing-actor-header", func(t *testing.T) {
		resp, _ := env.request(t, http.MethodGet, "/v1/users/me", uuid.Nil, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	var prescriptionID string

	t.Run("doctor-issues-prescription", func(t *testing.T) {
		resp, body := env.request(t, http.MethodPost, "/v1/prescriptions", doctorID, map[string]interface{}{
			"patient_id": patientID.String(),
			"medications": []map[string]string{
				{"name": "Amoxicillin", "dosage": "500mg", "frequency": "3x daily", "duration": "7 days"},
			},
			"notes":           "Take with food",
			"expires_in_days": 30,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode, "issue failed: %s", body)

		var created struct {
			ID                 string `json:"id"`
			PrescriptionNumber string `json:"prescription_number"`
			Status             string `json:"status"`
		}
		decode(t, body, &created)
		assert.Equal(t, "active", created.Status)
		assert.NotEmpty(t, created.PrescriptionNumber)
		prescriptionID = created.ID
	})

	t.Run("patient-cannot-issue", func(t *testing.T) {
		resp, _ := env.request(t, http.MethodPost, "/v1/prescriptions", patientID, map[string]interface{}{
			"patient_id": patientID.String(),
			"medications": []map[string]string{
				{"name": "Ibuprofen", "dosage": "200mg", "frequency": "2x daily", "duration": "3 days"},
			},
			"expires_in_days": 30,
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("patient-reads-decrypted-payload", func(t *testing.T) {
		resp, body := env.request(t, http.MethodGet, "/v1/prescriptions/"+prescriptionID, patientID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, "get failed: %s", body)

		var got struct {
			Payload *struct {
				Medications []struct {
					Name string `json:"name"`
				} `json:"medications"`
				Notes string `json:"notes"`
			} `json:"payload"`
		}
		decode(t, body, &got)
		require.NotNil(t, got.Payload, "single reads must include the decrypted payload")
		require.Len(t, got.Payload.Medications, 1)
		assert.Equal(t, "Amoxicillin", got.Payload.Medications[0].Name)
		assert.Equal(t, "Take with food", got.Payload.Notes)
	})

	t.Run("qr-code", func(t *testing.T) {
		resp, body := env.request(t, http.MethodGet, "/v1/prescriptions/"+prescriptionID+"/qr", patientID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
		assert.NotEmpty(t, body)
	})

	t.Run("consent-gates-listing", func(t *testing.T) {
		listPath := "/v1/patients/" + patientID.String() + "/prescriptions"

		resp, _ := env.request(t, http.MethodGet, listPath, doctorID, nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "listing without consent must be rejected")

		resp, body := env.request(t, http.MethodPost, "/v1/consents", patientID, map[string]string{
			"granted_to": doctorID.String(),
			"scope":      "prescriptions.read",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode, "grant failed: %s", body)

		var consent struct {
			ID string `json:"id"`
		}
		decode(t, body, &consent)

		resp, body = env.request(t, http.MethodGet, listPath, doctorID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, "listing with consent failed: %s", body)

		var listing struct {
			Prescriptions []struct {
				ID      string `json:"id"`
				Payload *struct {
					Medications []struct {
						Name string `json:"name"`
					} `json:"medications"`
				} `json:"payload"`
			} `json:"prescriptions"`
		}
		decode(t, body, &listing)
		require.Len(t, listing.Prescriptions, 1)
		assert.Equal(t, prescriptionID, listing.Prescriptions[0].ID)
		require.NotNil(t, listing.Prescriptions[0].Payload, "listings include decrypted payloads")
		require.Len(t, listing.Prescriptions[0].Payload.Medications, 1)
		assert.Equal(t, "Amoxicillin", listing.Prescriptions[0].Payload.Medications[0].Name)

		resp, _ = env.request(t, http.MethodDelete, "/v1/consents/"+consent.ID, patientID, nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, _ = env.request(t, http.MethodGet, listPath, doctorID, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "revoked consent must stop listings")
	})

	t.Run("pharmacist-verifies-and-dispenses", func(t *testing.T) {
		verifyPath := "/v1/dispensing/" + prescriptionID + "/verify"

		resp, body := env.request(t, http.MethodGet, verifyPath, pharmacistID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, "verify failed: %s", body)

		var report struct {
			SignatureValid bool            `json:"signature_valid"`
			IntegrityValid bool            `json:"integrity_valid"`
			Dispensable    bool            `json:"dispensable"`
			Payload        json.RawMessage `json:"payload"`
		}
		decode(t, body, &report)
		assert.True(t, report.SignatureValid)
		assert.True(t, report.IntegrityValid)
		assert.True(t, report.Dispensable)
		assert.NotEmpty(t, report.Payload, "a dispensable prescription reveals its payload to the pharmacist")

		resp, body = env.request(t, http.MethodPost, "/v1/dispensing/"+prescriptionID, pharmacistID, map[string]string{
			"pharmacy_name": "Central Pharmacy",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode, "dispense failed: %s", body)

		var dispensed struct {
			VerificationHash string `json:"verification_hash"`
		}
		decode(t, body, &dispensed)
		assert.Regexp(t, `^[0-9a-f]{64}$`, dispensed.VerificationHash)

		// Exactly once: the second attempt conflicts.
		resp, body = env.request(t, http.MethodPost, "/v1/dispensing/"+prescriptionID, pharmacistID, map[string]string{
			"pharmacy_name": "Central Pharmacy",
		})
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		var errResp struct {
			Error string `json:"error"`
		}
		decode(t, body, &errResp)
		assert.Equal(t, "state_conflict", errResp.Error)

		resp, body = env.request(t, http.MethodGet, verifyPath, pharmacistID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decode(t, body, &report)
		assert.False(t, report.Dispensable)

		resp, body = env.request(t, http.MethodGet, "/v1/dispensing/history", pharmacistID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var history struct {
			Records []struct {
				PrescriptionID     string `json:"prescription_id"`
				PharmacyName       string `json:"pharmacy_name"`
				PrescriptionNumber string `json:"prescription_number"`
				PatientName        string `json:"patient_name"`
				DoctorName         string `json:"doctor_name"`
			} `json:"records"`
		}
		decode(t, body, &history)
		require.Len(t, history.Records, 1)
		assert.Equal(t, prescriptionID, history.Records[0].PrescriptionID)
		assert.Equal(t, "Central Pharmacy", history.Records[0].PharmacyName)
		assert.NotEmpty(t, history.Records[0].PrescriptionNumber)
		assert.Equal(t, "Test patient", history.Records[0].PatientName)
		assert.Equal(t, "Test doctor", history.Records[0].DoctorName)
	})

	t.Run("audit-trail", func(t *testing.T) {
		resp, body := env.request(t, http.MethodGet, "/v1/audit/verify", adminID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, "chain verify failed: %s", body)

		var verification struct {
			Valid        bool `json:"valid"`
			TotalEntries int  `json:"total_entries"`
		}
		decode(t, body, &verification)
		assert.True(t, verification.Valid)
		assert.Greater(t, verification.TotalEntries, 5)

		resp, _ = env.request(t, http.MethodGet, "/v1/audit/verify", doctorID, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "chain verify is admin only")

		resp, body = env.request(t, http.MethodGet, "/v1/audit/resource/"+prescriptionID, adminID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var resourceLogs struct {
			Entries []struct {
				Action string `json:"action"`
			} `json:"entries"`
		}
		decode(t, body, &resourceLogs)
		require.NotEmpty(t, resourceLogs.Entries)

		actions := make([]string, 0, len(resourceLogs.Entries))
		for _, entry := range resourceLogs.Entries {
			actions = append(actions, entry.Action)
		}
		assert.Contains(t, actions, "PRESCRIPTION_CREATED")
		assert.Contains(t, actions, "PRESCRIPTION_DISPENSED")

		resp, _ = env.request(t, http.MethodGet, "/v1/audit/user/"+patientID.String(), patientID, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode, "users can read their own trail")

		resp, _ = env.request(t, http.MethodGet, "/v1/audit/user/"+patientID.String(), doctorID, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "other users cannot")
	})

	t.Run("erasure", func(t *testing.T) {
		resp, _ := env.request(t, http.MethodPost, "/v1/erasure", patientID, nil)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		// The deactivated account can no longer authenticate.
		resp, _ = env.request(t, http.MethodPost, "/v1/login", uuid.Nil, map[string]string{
			"email":    "patient@example.com",
			"password": testPassword,
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		// The ledger keeps its integrity across the wind-down.
		resp, body := env.request(t, http.MethodGet, "/v1/audit/verify", adminID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var verification struct {
			Valid bool `json:"valid"`
		}
		decode(t, body, &verification)
		assert.True(t, verification.Valid)
	})
}

// TestConcurrentDispense races two pharmacists for the same prescription.
// The row lock serializes them: one settles it, the other hits the terminal
// status and conflicts, and only a single dispensing record exists afterwards.
func TestConcurrentDispense(t *testing.T) {
	env := setupAPITest(t)

	doctorID := registerUser(t, env, "doctor", "doctor@example.com", "CRM-12345")
	patientID := registerUser(t, env, "patient", "patient@example.com", "")
	pharmacistID := registerUser(t, env, "pharmacist", "pharmacist@example.com", "CRF-67890")
	rivalID := registerUser(t, env, "pharmacist", "rival@example.com", "CRF-67891")

	resp, body := env.request(t, http.MethodPost, "/v1/prescriptions", doctorID, map[string]interface{}{
		"patient_id": patientID.String(),
		"medications": []map[string]string{
			{"name": "Amoxicillin", "dosage": "500mg", "frequency": "3x daily", "duration": "7 days"},
		},
		"expires_in_days": 30,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "issue failed: %s", body)

	var created struct {
		ID string `json:"id"`
	}
	decode(t, body, &created)

	// Raw requests here: the shared helper asserts on t, which must not
	// happen off the test goroutine.
	dispense := func(actor uuid.UUID) (int, string, error) {
		reqBody := bytes.NewReader([]byte(`{"pharmacy_name":"Central Pharmacy"}`))
		req, err := http.NewRequest(http.MethodPost, env.server.URL+"/v1/dispensing/"+created.ID, reqBody)
		if err != nil {
			return 0, "", err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(apphttp.ActorIDHeader, actor.String())

		client := &http.Client{Timeout: 10 * time.Second}
		resp, err := client.Do(req)
		if err != nil {
			return 0, "", err
		}
		defer resp.Body.Close()

		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return resp.StatusCode, errResp.Error, nil
	}

	statuses := make([]int, 2)
	errorCodes := make([]string, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, actor := range []uuid.UUID{pharmacistID, rivalID} {
		wg.Add(1)
		go func(i int, actor uuid.UUID) {
			defer wg.Done()
			statuses[i], errorCodes[i], errs[i] = dispense(actor)
		}(i, actor)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	winners, conflicts := 0, 0
	for i, status := range statuses {
		switch status {
		case http.StatusCreated:
			winners++
		case http.StatusConflict:
			conflicts++
			assert.Equal(t, "state_conflict", errorCodes[i])
		}
	}
	assert.Equal(t, 1, winners, "exactly one dispense succeeds: %v", statuses)
	assert.Equal(t, 1, conflicts, "the loser conflicts: %v", statuses)

	var recordCount int
	require.NoError(t, env.db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM dispensing_records WHERE prescription_id = $1", created.ID).
		Scan(&recordCount))
	assert.Equal(t, 1, recordCount, "the race settles into a single dispensing record")
}
