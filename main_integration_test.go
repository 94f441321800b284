package main_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	testAppBinary  = "./rental_test_app"
	testAppPort    = "8089"
	testAppURL     = "http://localhost:" + testAppPort
	testDbName     = "testdb_rental_integration"
	startupTimeout = 15 * time.Second
	pingEndpoint   = testAppURL + "/api/ping"
)

// TestMain builds the binary and runs it in both API and worker modes
// against live Mongo and Redis.
func TestMain(m *testing.M) {
	defer func() {
		_ = os.Remove(testAppBinary)
	}()

	godotenv.Load()
	if os.Getenv("MONGO_URI") == "" {
		log.Println("MONGO_URI not set, skipping integration tests.")
		return
	}

	log.Println("Integration Test Setup: Building application...")
	buildCmd := exec.Command("go", "build", "-o", testAppBinary, ".")
	if buildOutput, err := buildCmd.CombinedOutput(); err != nil {
		log.Printf("Failed to build application: %v\nOutput:\n%s", err, string(buildOutput))
		os.Exit(1)
	}

	if err := dropTestDB(); err != nil {
		log.Printf("Failed to reset test database: %v", err)
		os.Exit(1)
	}
	defer func() { _ = dropTestDB() }()

	commonEnv := append(os.Environ(),
		"MONGO_DB_NAME="+testDbName,
		"JWT_SECRET=integration-test-secret",
		"GIN_MODE=release",
		"MOCK_SERVICES=true",
		"REDIS_ADDR=localhost:6379",
		"SMTP_FROM_ADDRESS=test@example.com",
		"RATE_LIMIT_SOFT_BUCKET_SIZE=500",
		"RATE_LIMIT_SOFT_REFILL_RATE=500",
		"RATE_LIMIT_HARD_BUCKET_SIZE=1000",
		"RATE_LIMIT_HARD_REFILL_RATE=1000",
	)

	apiCmd := exec.Command(testAppBinary, "-m", "api")
	apiCmd.Env = append(commonEnv, "API_PORT="+testAppPort)
	apiCmd.Stderr = os.Stderr
	apiCmd.Stdout = os.Stdout
	if err := apiCmd.Start(); err != nil {
		log.Printf("Failed to start API process: %v", err)
		os.Exit(1)
	}

	bgCmd := exec.Command(testAppBinary, "-m", "bg")
	bgCmd.Env = commonEnv
	bgCmd.Stderr = os.Stderr
	bgCmd.Stdout = os.Stdout
	if err := bgCmd.Start(); err != nil {
		_ = apiCmd.Process.Kill()
		log.Printf("Failed to start background worker: %v", err)
		os.Exit(1)
	}

	stop := func(cmd *exec.Cmd, name string) {
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			log.Printf("Teardown: SIGTERM to %s failed: %v. Killing.", name, err)
			_ = cmd.Process.Kill()
			return
		}
		_, _ = cmd.Process.Wait()
	}
	defer stop(apiCmd, "API process")
	defer stop(bgCmd, "background worker")

	if !waitForServer(pingEndpoint, startupTimeout) {
		log.Println("Server did not become ready in time.")
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func dropTestDB() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(os.Getenv("MONGO_URI")))
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)
	return client.Database(testDbName).Drop(ctx)
}

func waitForServer(url string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return true
			}
		}
		time.Sleep(250 * time.Millisecond)
	}
	return false
}

// doJSON performs an HTTP request with an optional bearer token and decodes
// the JSON response body.
func doJSON(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, testAppURL+path, reqBody)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]interface{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp.StatusCode, decoded
}

func registerUser(t *testing.T, email, role string, extra map[string]interface{}) string {
	t.Helper()
	body := map[string]interface{}{
		"email":     email,
		"password":  "secret123",
		"full_name": "Integration Tester",
		"phone":     "+254700123456",
		"role":      role,
	}
	for k, v := range extra {
		body[k] = v
	}
	code, resp := doJSON(t, "POST", "/api/auth/register", "", body)
	require.Equal(t, http.StatusCreated, code, "register %s: %v", email, resp)
	token, _ := resp["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func createProperty(t *testing.T, landlordToken, title string) string {
	t.Helper()
	code, resp := doJSON(t, "POST", "/api/properties", landlordToken, map[string]interface{}{
		"title":         title,
		"description":   "Integration test property",
		"property_type": "apartment",
		"price":         30000,
		"location":      map[string]interface{}{"address": "Moi Ave", "city": "Nairobi"},
		"contact_info":  map[string]interface{}{"phone": "+254700123456"},
	})
	require.Equal(t, http.StatusCreated, code, "create property: %v", resp)
	property := resp["property"].(map[string]interface{})
	id, _ := property["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestIntegration_AuthFlow(t *testing.T) {
	token := registerUser(t, "auth-flow@example.com", "tenant", nil)

	// Duplicate registration conflicts.
	code, _ := doJSON(t, "POST", "/api/auth/register", "", map[string]interface{}{
		"email":     "auth-flow@example.com",
		"password":  "secret123",
		"full_name": "Someone Else",
		"phone":     "+254700000001",
		"role":      "tenant",
	})
	assert.Equal(t, http.StatusConflict, code)

	// Login.
	code, resp := doJSON(t, "POST", "/api/auth/login", "", map[string]interface{}{
		"email":    "auth-flow@example.com",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, resp["token"])

	// Wrong password.
	code, _ = doJSON(t, "POST", "/api/auth/login", "", map[string]interface{}{
		"email":    "auth-flow@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, code)

	// Me.
	code, resp = doJSON(t, "GET", "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, code)
	user := resp["user"].(map[string]interface{})
	assert.Equal(t, "auth-flow@example.com", user["email"])

	// No token.
	code, _ = doJSON(t, "GET", "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestIntegration_PropertyLifecycle(t *testing.T) {
	landlordToken := registerUser(t, "prop-landlord@example.com", "landlord",
		map[string]interface{}{"company_name": "Makau Homes"})
	tenantToken := registerUser(t, "prop-tenant@example.com", "tenant", nil)

	propertyID := createProperty(t, landlordToken, "Integration flat")

	// Tenants cannot create listings.
	code, _ := doJSON(t, "POST", "/api/properties", tenantToken, map[string]interface{}{"title": "nope"})
	assert.Equal(t, http.StatusForbidden, code)

	// Tenant can view, and views are counted.
	code, resp := doJSON(t, "GET", "/api/properties/"+propertyID, tenantToken, nil)
	assert.Equal(t, http.StatusOK, code)
	property := resp["property"].(map[string]interface{})
	assert.Equal(t, "Integration flat", property["title"])

	// Owner updates.
	code, resp = doJSON(t, "PUT", "/api/properties/"+propertyID, landlordToken, map[string]interface{}{
		"price": 32000,
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 32000.0, resp["property"].(map[string]interface{})["price"])

	// Tenant saves and lists saved.
	code, _ = doJSON(t, "POST", "/api/properties/"+propertyID+"/save", tenantToken, nil)
	assert.Equal(t, http.StatusOK, code)
	code, resp = doJSON(t, "GET", "/api/users/saved-properties", tenantToken, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, resp["properties"], 1)
}

func TestIntegration_InquiryLifecycle(t *testing.T) {
	landlordToken := registerUser(t, "inq-landlord@example.com", "landlord",
		map[string]interface{}{"company_name": "Makau Homes"})
	tenantToken := registerUser(t, "inq-tenant@example.com", "tenant", nil)
	propertyID := createProperty(t, landlordToken, "Inquiry flat")

	// Tenant opens an inquiry.
	code, resp := doJSON(t, "POST", "/api/inquiries", tenantToken, map[string]interface{}{
		"property_id": propertyID,
		"message":     "Is this still available?",
	})
	require.Equal(t, http.StatusCreated, code, "create inquiry: %v", resp)
	inquiry := resp["inquiry"].(map[string]interface{})
	inquiryID := inquiry["id"].(string)
	assert.Equal(t, "pending", inquiry["status"])

	// A second active inquiry conflicts.
	code, _ = doJSON(t, "POST", "/api/inquiries", tenantToken, map[string]interface{}{
		"property_id": propertyID,
		"message":     "again",
	})
	assert.Equal(t, http.StatusConflict, code)

	// Landlord's first read marks it seen without changing the status.
	inq := func(resp map[string]interface{}) map[string]interface{} {
		return resp["inquiry"].(map[string]interface{})
	}
	code, resp = doJSON(t, "GET", "/api/inquiries/"+inquiryID, landlordToken, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pending", inq(resp)["status"])
	assert.Equal(t, true, inq(resp)["viewed_by_landlord"])

	// Landlord replies.
	code, resp = doJSON(t, "POST", "/api/inquiries/"+inquiryID+"/reply", landlordToken, map[string]interface{}{
		"message": "Yes, come see it",
	})
	assert.Equal(t, http.StatusOK, code)
	replied := resp["inquiry"].(map[string]interface{})
	assert.Equal(t, "replied", replied["status"])
	assert.Len(t, replied["replies"], 1)

	// Confirm before any schedule is a bad request.
	code, _ = doJSON(t, "POST", "/api/inquiries/"+inquiryID+"/confirm-viewing", tenantToken, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	// Tenant cannot schedule.
	code, _ = doJSON(t, "POST", "/api/inquiries/"+inquiryID+"/schedule", tenantToken, map[string]interface{}{
		"date": time.Now().AddDate(0, 0, 3).Format(time.RFC3339),
		"time": "10:00",
	})
	assert.Equal(t, http.StatusForbidden, code)

	// Landlord schedules.
	code, resp = doJSON(t, "POST", "/api/inquiries/"+inquiryID+"/schedule", landlordToken, map[string]interface{}{
		"date": time.Now().AddDate(0, 0, 3).Format(time.RFC3339),
		"time": "10:00",
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "scheduled", resp["inquiry"].(map[string]interface{})["status"])

	// Tenant confirms, twice (idempotent).
	for i := 0; i < 2; i++ {
		code, resp = doJSON(t, "POST", "/api/inquiries/"+inquiryID+"/confirm-viewing", tenantToken, nil)
		assert.Equal(t, http.StatusOK, code)
		viewing := resp["inquiry"].(map[string]interface{})["scheduled_viewing"].(map[string]interface{})
		assert.Equal(t, true, viewing["confirmed"])
	}

	// Complete releases the slot.
	code, _ = doJSON(t, "PATCH", "/api/inquiries/"+inquiryID+"/status", landlordToken, map[string]interface{}{
		"status": "completed",
	})
	assert.Equal(t, http.StatusOK, code)

	code, _ = doJSON(t, "POST", "/api/inquiries", tenantToken, map[string]interface{}{
		"property_id": propertyID,
		"message":     "second round",
	})
	assert.Equal(t, http.StatusCreated, code)

	// A stranger cannot read the conversation.
	strangerToken := registerUser(t, "inq-stranger@example.com", "tenant", nil)
	code, _ = doJSON(t, "GET", "/api/inquiries/"+inquiryID, strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	// Role-scoped lists.
	code, resp = doJSON(t, "GET", "/api/inquiries", landlordToken, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2.0, resp["total"])
}
