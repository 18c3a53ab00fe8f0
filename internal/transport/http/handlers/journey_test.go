package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"revwork/internal/app/server"
	"revwork/internal/platform/config"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func startTestApp(t *testing.T) (*server.App, *httptest.Server) {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := config.Config{
		DatabaseURL:       dbURL,
		JWTSecret:         "test-secret",
		Environment:       "test",
		MigrationsDir:     "../../../../migrations",
		SeedAdminEmail:    "admin@test.local",
		SeedAdminPassword: "ChangeMe123!",
		EmailFrom:         "no-reply@test.local",
		RunMigrations:     true,
		RunSeed:           true,
		MaxBodyBytes:      1048576,
		LoginRatePerMin:   1000,
	}

	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	t.Cleanup(app.Close)

	ts := httptest.NewServer(app.Router)
	t.Cleanup(ts.Close)
	return app, ts
}

func TestOrgJourney(t *testing.T) {
	_, ts := startTestApp(t)
	client := ts.Client()

	adminToken := login(t, client, ts.URL, "admin@test.local", "ChangeMe123!")
	uid := uuid.NewString()[:8]

	deptID := createNamed(t, client, ts.URL+"/api/v1/departments", adminToken, map[string]any{"name": "Engineering-" + uid})
	createNamed(t, client, ts.URL+"/api/v1/designations", adminToken, map[string]any{"title": "Engineer-" + uid})

	managerID := createEmployee(t, client, ts.URL, adminToken, map[string]any{
		"firstName":     "Manny",
		"lastName":      "Manager",
		"email":         "manny-" + uid + "@example.com",
		"departmentId":  deptID,
		"loginPassword": "Manager123!",
		"loginRole":     "manager",
	})
	aliceID := createEmployee(t, client, ts.URL, adminToken, map[string]any{
		"firstName":     "Alice",
		"lastName":      "Able",
		"email":         "alice-" + uid + "@example.com",
		"departmentId":  deptID,
		"managerId":     managerID,
		"loginPassword": "Alice123!",
	})

	// Self-management and cycles are refused.
	putJSONStatus(t, client, ts.URL+"/api/v1/employees/"+managerID+"/manager", adminToken,
		map[string]any{"managerId": managerID}, http.StatusConflict)
	env := putJSONStatus(t, client, ts.URL+"/api/v1/employees/"+managerID+"/manager", adminToken,
		map[string]any{"managerId": aliceID}, http.StatusConflict)
	if env.Error == nil || env.Error.Code != "hierarchy_cycle" {
		t.Fatalf("expected hierarchy_cycle error, got %+v", env.Error)
	}

	// A valid manager still has no manager after the refused attempts.
	aliceToken := login(t, client, ts.URL, "alice-"+uid+"@example.com", "Alice123!")
	profile := getJSON(t, client, ts.URL+"/api/v1/profile", aliceToken)
	var profilePayload struct {
		Employee struct {
			ID        string `json:"id"`
			ManagerID string `json:"managerId"`
		} `json:"employee"`
	}
	if err := json.Unmarshal(profile.Data, &profilePayload); err != nil {
		t.Fatalf("failed to decode profile: %v", err)
	}
	if profilePayload.Employee.ID != aliceID || profilePayload.Employee.ManagerID != managerID {
		t.Fatalf("unexpected profile employee: %+v", profilePayload.Employee)
	}

	// Employees cannot browse other records or the directory listing.
	getJSONStatus(t, client, ts.URL+"/api/v1/employees/"+managerID, aliceToken, http.StatusForbidden)
	getJSONStatus(t, client, ts.URL+"/api/v1/employees", aliceToken, http.StatusForbidden)

	// Managers see their reports.
	managerToken := login(t, client, ts.URL, "manny-"+uid+"@example.com", "Manager123!")
	reports := getJSON(t, client, ts.URL+"/api/v1/employees/"+managerID+"/reports", managerToken)
	var reportList []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(reports.Data, &reportList); err != nil {
		t.Fatalf("failed to decode reports: %v", err)
	}
	found := false
	for _, rep := range reportList {
		if rep.ID == aliceID {
			found = true
		}
	}
	if !found {
		t.Fatal("expected alice among the manager's direct reports")
	}

	// Company holidays: admin maintains the calendar, everyone reads it.
	holidayName := "Founders Day " + uid
	postJSONStatus(t, client, ts.URL+"/api/v1/holidays", aliceToken,
		map[string]any{"name": holidayName, "date": "2031-12-20"}, http.StatusForbidden)
	postJSON(t, client, ts.URL+"/api/v1/holidays", adminToken,
		map[string]any{"name": holidayName, "date": "2031-12-20"})
	postJSONStatus(t, client, ts.URL+"/api/v1/holidays", adminToken,
		map[string]any{"name": holidayName, "date": "2031-12-20"}, http.StatusConflict)
	postJSONStatus(t, client, ts.URL+"/api/v1/holidays", adminToken,
		map[string]any{"name": holidayName, "date": "not-a-date"}, http.StatusBadRequest)

	calendar := getJSON(t, client, ts.URL+"/api/v1/holidays?year=2031", aliceToken)
	var holidays []struct {
		Name string `json:"name"`
		Date string `json:"date"`
	}
	if err := json.Unmarshal(calendar.Data, &holidays); err != nil {
		t.Fatalf("failed to decode holidays: %v", err)
	}
	found = false
	for _, day := range holidays {
		if day.Name == holidayName {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s in the 2031 calendar", holidayName)
	}
}

func login(t *testing.T, client *http.Client, baseURL, email, password string) string {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	})
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	if payload.Token == "" {
		t.Fatal("expected token")
	}
	return payload.Token
}

func createEmployee(t *testing.T, client *http.Client, baseURL, token string, body map[string]any) string {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/employees", token, body)
	var payload struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("failed to decode employee response: %v", err)
	}
	if payload.ID == "" {
		t.Fatal("expected employee id")
	}
	return payload.ID
}

func createNamed(t *testing.T, client *http.Client, url, token string, body map[string]any) string {
	t.Helper()
	resp := postJSON(t, client, url, token, body)
	var payload struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	if payload.ID == "" {
		t.Fatal("expected id")
	}
	return payload.ID
}

func doJSON(t *testing.T, client *http.Client, method, url, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewBuffer(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	return resp, raw
}

func decodeEnvelope(t *testing.T, raw []byte) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return env
}

func postJSON(t *testing.T, client *http.Client, url, token string, body any) envelope {
	t.Helper()
	resp, raw := doJSON(t, client, http.MethodPost, url, token, body)
	if resp.StatusCode >= 400 {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}
	return decodeEnvelope(t, raw)
}

func postJSONStatus(t *testing.T, client *http.Client, url, token string, body any, want int) envelope {
	t.Helper()
	resp, raw := doJSON(t, client, http.MethodPost, url, token, body)
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, string(raw))
	}
	return decodeEnvelope(t, raw)
}

func putJSONStatus(t *testing.T, client *http.Client, url, token string, body any, want int) envelope {
	t.Helper()
	resp, raw := doJSON(t, client, http.MethodPut, url, token, body)
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, string(raw))
	}
	return decodeEnvelope(t, raw)
}

func getJSON(t *testing.T, client *http.Client, url, token string) envelope {
	t.Helper()
	resp, raw := doJSON(t, client, http.MethodGet, url, token, nil)
	if resp.StatusCode >= 400 {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}
	return decodeEnvelope(t, raw)
}

func getJSONStatus(t *testing.T, client *http.Client, url, token string, want int) envelope {
	t.Helper()
	resp, raw := doJSON(t, client, http.MethodGet, url, token, nil)
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, string(raw))
	}
	return decodeEnvelope(t, raw)
}

func fmtDate(t time.Time) string {
	return t.Format("2006-01-02")
}
