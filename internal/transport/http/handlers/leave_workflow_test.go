package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type balanceRow struct {
	LeaveTypeID   string `json:"leaveTypeId"`
	AllocatedDays int    `json:"allocatedDays"`
	UsedDays      int    `json:"usedDays"`
	RemainingDays int    `json:"remainingDays"`
}

type applicationRow struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	TotalDays       int    `json:"totalDays"`
	ManagerComments string `json:"managerComments"`
}

func TestLeaveLedgerWorkflow(t *testing.T) {
	_, ts := startTestApp(t)
	client := ts.Client()

	adminToken := login(t, client, ts.URL, "admin@test.local", "ChangeMe123!")
	uid := uuid.NewString()[:8]

	// Keep every date inside one calendar year so all ledger activity
	// lands on a single year row.
	base := time.Now().AddDate(0, 0, 7)
	if base.AddDate(0, 0, 60).Year() != base.Year() {
		base = time.Date(base.Year()+1, time.January, 5, 0, 0, 0, 0, time.UTC)
	}
	year := base.Year()
	yearQ := "?year=" + strconv.Itoa(year)

	deptID := createNamed(t, client, ts.URL+"/api/v1/departments", adminToken, map[string]any{"name": "Ops-" + uid})
	managerID := createEmployee(t, client, ts.URL, adminToken, map[string]any{
		"firstName":     "Mara",
		"lastName":      "Lead",
		"email":         "mara-" + uid + "@example.com",
		"departmentId":  deptID,
		"loginPassword": "Manager123!",
		"loginRole":     "manager",
	})
	bobID := createEmployee(t, client, ts.URL, adminToken, map[string]any{
		"firstName":     "Bob",
		"lastName":      "Worker",
		"email":         "bob-" + uid + "@example.com",
		"departmentId":  deptID,
		"managerId":     managerID,
		"loginPassword": "Worker123!",
	})

	typeID := createNamed(t, client, ts.URL+"/api/v1/leave/types", adminToken, map[string]any{
		"name":           "Casual-" + uid,
		"code":           "C" + uid[:6],
		"maxDaysPerYear": 12,
	})

	// Quota assignment is idempotent per employee-year.
	postJSON(t, client, ts.URL+"/api/v1/leave/quotas/employee/"+bobID+yearQ, adminToken, nil)
	env := postJSONStatus(t, client, ts.URL+"/api/v1/leave/quotas/employee/"+bobID+yearQ, adminToken, nil, http.StatusConflict)
	if env.Error == nil || env.Error.Code != "quota_exists" {
		t.Fatalf("expected quota_exists, got %+v", env.Error)
	}

	if bal := findBalance(t, client, ts.URL, adminToken, bobID, yearQ, typeID); bal.AllocatedDays != 12 || bal.UsedDays != 0 || bal.RemainingDays != 12 {
		t.Fatalf("fresh balance = %+v, want 12/0/12", bal)
	}

	bobToken := login(t, client, ts.URL, "bob-"+uid+"@example.com", "Worker123!")
	managerToken := login(t, client, ts.URL, "mara-"+uid+"@example.com", "Manager123!")

	// Oversubscription is refused before anything is written.
	env = postJSONStatus(t, client, ts.URL+"/api/v1/leave/applications", bobToken, map[string]any{
		"leaveTypeId": typeID,
		"startDate":   fmtDate(base.AddDate(0, 0, 30)),
		"endDate":     fmtDate(base.AddDate(0, 0, 42)),
		"reason":      "long trip",
	}, http.StatusUnprocessableEntity)
	if env.Error == nil || env.Error.Code != "insufficient_balance" {
		t.Fatalf("expected insufficient_balance, got %+v", env.Error)
	}

	// A three-day request goes through the full approve cycle.
	appID := submitLeave(t, client, ts.URL, bobToken, typeID, base, base.AddDate(0, 0, 2), "family visit")

	pending := getJSON(t, client, ts.URL+"/api/v1/leave/applications/pending", managerToken)
	var pendingList []applicationRow
	if err := json.Unmarshal(pending.Data, &pendingList); err != nil {
		t.Fatalf("failed to decode pending list: %v", err)
	}
	if len(pendingList) == 0 || pendingList[0].ID != appID {
		t.Fatalf("expected %s in manager pending queue, got %+v", appID, pendingList)
	}
	if pendingList[0].TotalDays != 3 {
		t.Fatalf("total days = %d, want 3", pendingList[0].TotalDays)
	}

	// Nobody approves their own request.
	postJSONStatus(t, client, ts.URL+"/api/v1/leave/applications/"+appID+"/approve", bobToken, nil, http.StatusForbidden)

	approved := postJSON(t, client, ts.URL+"/api/v1/leave/applications/"+appID+"/approve", managerToken, map[string]any{"comments": "enjoy"})
	var approvedApp applicationRow
	if err := json.Unmarshal(approved.Data, &approvedApp); err != nil {
		t.Fatalf("failed to decode approval: %v", err)
	}
	if approvedApp.Status != "approved" {
		t.Fatalf("status = %s, want approved", approvedApp.Status)
	}

	if bal := findBalance(t, client, ts.URL, managerToken, bobID, yearQ, typeID); bal.AllocatedDays != 12 || bal.UsedDays != 3 || bal.RemainingDays != 9 {
		t.Fatalf("post-approval balance = %+v, want 12/3/9", bal)
	}

	// Approving twice is an invalid transition.
	postJSONStatus(t, client, ts.URL+"/api/v1/leave/applications/"+appID+"/approve", managerToken, nil, http.StatusConflict)

	// Revoking puts the days back.
	revoked := postJSON(t, client, ts.URL+"/api/v1/leave/applications/"+appID+"/revoke", managerToken, map[string]any{"reason": "project deadline"})
	var revokedApp applicationRow
	if err := json.Unmarshal(revoked.Data, &revokedApp); err != nil {
		t.Fatalf("failed to decode revoke: %v", err)
	}
	if revokedApp.Status != "cancelled" {
		t.Fatalf("status = %s, want cancelled", revokedApp.Status)
	}
	if revokedApp.ManagerComments != "REVOKED: project deadline" {
		t.Fatalf("comments = %q", revokedApp.ManagerComments)
	}

	if bal := findBalance(t, client, ts.URL, managerToken, bobID, yearQ, typeID); bal.UsedDays != 0 || bal.RemainingDays != 12 {
		t.Fatalf("post-revoke balance = %+v, want 12/0/12", bal)
	}

	// Reject leaves the ledger alone; rejecting without comments fails.
	rejectID := submitLeave(t, client, ts.URL, bobToken, typeID, base.AddDate(0, 0, 10), base.AddDate(0, 0, 11), "errand")
	postJSONStatus(t, client, ts.URL+"/api/v1/leave/applications/"+rejectID+"/reject", managerToken, nil, http.StatusBadRequest)
	rejected := postJSON(t, client, ts.URL+"/api/v1/leave/applications/"+rejectID+"/reject", managerToken, map[string]any{"comments": "busy week"})
	var rejectedApp applicationRow
	if err := json.Unmarshal(rejected.Data, &rejectedApp); err != nil {
		t.Fatalf("failed to decode reject: %v", err)
	}
	if rejectedApp.Status != "rejected" {
		t.Fatalf("status = %s, want rejected", rejectedApp.Status)
	}
	if bal := findBalance(t, client, ts.URL, managerToken, bobID, yearQ, typeID); bal.UsedDays != 0 || bal.RemainingDays != 12 {
		t.Fatalf("post-reject balance = %+v, want 12/0/12", bal)
	}

	// Owner cancel of a pending request; overlap of an open request is a
	// conflict until then.
	cancelID := submitLeave(t, client, ts.URL, bobToken, typeID, base.AddDate(0, 0, 20), base.AddDate(0, 0, 22), "appointment")
	env = postJSONStatus(t, client, ts.URL+"/api/v1/leave/applications", bobToken, map[string]any{
		"leaveTypeId": typeID,
		"startDate":   fmtDate(base.AddDate(0, 0, 21)),
		"endDate":     fmtDate(base.AddDate(0, 0, 23)),
		"reason":      "double booked",
	}, http.StatusConflict)
	if env.Error == nil || env.Error.Code != "conflict" {
		t.Fatalf("expected conflict for overlap, got %+v", env.Error)
	}
	postJSONStatus(t, client, ts.URL+"/api/v1/leave/applications/"+cancelID+"/cancel", managerToken, nil, http.StatusForbidden)
	cancelled := postJSON(t, client, ts.URL+"/api/v1/leave/applications/"+cancelID+"/cancel", bobToken, nil)
	var cancelledApp applicationRow
	if err := json.Unmarshal(cancelled.Data, &cancelledApp); err != nil {
		t.Fatalf("failed to decode cancel: %v", err)
	}
	if cancelledApp.Status != "cancelled" {
		t.Fatalf("status = %s, want cancelled", cancelledApp.Status)
	}

	// Admin correction keeps the ledger equation intact.
	postJSON(t, client, ts.URL+"/api/v1/leave/balances/"+bobID+"/adjust", adminToken, map[string]any{
		"leaveTypeId":   typeID,
		"year":          year,
		"allocatedDays": 15,
		"usedDays":      2,
	})
	if bal := findBalance(t, client, ts.URL, adminToken, bobID, yearQ, typeID); bal.AllocatedDays != 15 || bal.UsedDays != 2 || bal.RemainingDays != 13 {
		t.Fatalf("post-adjust balance = %+v, want 15/2/13", bal)
	}

	// The submit trigger left the manager a notification.
	unread := getJSON(t, client, ts.URL+"/api/v1/notifications/unread-count", managerToken)
	var unreadPayload struct {
		Unread int `json:"unread"`
	}
	if err := json.Unmarshal(unread.Data, &unreadPayload); err != nil {
		t.Fatalf("failed to decode unread count: %v", err)
	}
	if unreadPayload.Unread == 0 {
		t.Fatal("expected manager notifications from submissions")
	}

	// Decisions land in the audit trail.
	trail := getJSON(t, client, ts.URL+"/api/v1/admin/audit?action=leave.revoked", adminToken)
	var trailEvents []struct {
		EntityID string `json:"entityId"`
		Action   string `json:"action"`
	}
	if err := json.Unmarshal(trail.Data, &trailEvents); err != nil {
		t.Fatalf("failed to decode audit trail: %v", err)
	}
	found := false
	for _, evt := range trailEvents {
		if evt.EntityID == appID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected audit event for %s among %d events", appID, len(trailEvents))
	}
	getJSONStatus(t, client, ts.URL+"/api/v1/admin/audit", bobToken, http.StatusForbidden)
}

func TestDepartmentQuotaAssignment(t *testing.T) {
	_, ts := startTestApp(t)
	client := ts.Client()

	adminToken := login(t, client, ts.URL, "admin@test.local", "ChangeMe123!")
	uid := uuid.NewString()[:8]
	year := time.Now().Year()
	yearQ := "?year=" + strconv.Itoa(year)

	deptID := createNamed(t, client, ts.URL+"/api/v1/departments", adminToken, map[string]any{"name": "Field-" + uid})
	for i := 0; i < 3; i++ {
		createEmployee(t, client, ts.URL, adminToken, map[string]any{
			"firstName":    "Member",
			"lastName":     fmt.Sprintf("Num%d", i),
			"email":        fmt.Sprintf("member%d-%s@example.com", i, uid),
			"departmentId": deptID,
		})
	}

	first := postJSON(t, client, ts.URL+"/api/v1/leave/quotas/department/"+deptID+yearQ, adminToken, nil)
	var report struct {
		Assigned int `json:"assigned"`
		Skipped  int `json:"skipped"`
	}
	if err := json.Unmarshal(first.Data, &report); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}
	if report.Assigned != 3 || report.Skipped != 0 {
		t.Fatalf("first run report = %+v, want 3 assigned", report)
	}

	second := postJSON(t, client, ts.URL+"/api/v1/leave/quotas/department/"+deptID+yearQ, adminToken, nil)
	if err := json.Unmarshal(second.Data, &report); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}
	if report.Assigned != 0 || report.Skipped != 3 {
		t.Fatalf("second run report = %+v, want 3 skipped", report)
	}
}

func TestConcurrentApprovalsShareOneBalance(t *testing.T) {
	_, ts := startTestApp(t)
	client := ts.Client()

	adminToken := login(t, client, ts.URL, "admin@test.local", "ChangeMe123!")
	uid := uuid.NewString()[:8]

	base := time.Now().AddDate(0, 0, 7)
	if base.AddDate(0, 0, 30).Year() != base.Year() {
		base = time.Date(base.Year()+1, time.January, 5, 0, 0, 0, 0, time.UTC)
	}
	year := base.Year()
	yearQ := "?year=" + strconv.Itoa(year)

	deptID := createNamed(t, client, ts.URL+"/api/v1/departments", adminToken, map[string]any{"name": "Race-" + uid})
	managerID := createEmployee(t, client, ts.URL, adminToken, map[string]any{
		"firstName":     "Rita",
		"lastName":      "Lead",
		"email":         "rita-" + uid + "@example.com",
		"departmentId":  deptID,
		"loginPassword": "Manager123!",
		"loginRole":     "manager",
	})
	bobID := createEmployee(t, client, ts.URL, adminToken, map[string]any{
		"firstName":     "Ben",
		"lastName":      "Worker",
		"email":         "ben-" + uid + "@example.com",
		"departmentId":  deptID,
		"managerId":     managerID,
		"loginPassword": "Worker123!",
	})
	typeID := createNamed(t, client, ts.URL+"/api/v1/leave/types", adminToken, map[string]any{
		"name":           "Race-" + uid,
		"code":           "R" + uid[:6],
		"maxDaysPerYear": 10,
	})
	postJSON(t, client, ts.URL+"/api/v1/leave/quotas/employee/"+bobID+yearQ, adminToken, nil)

	bobToken := login(t, client, ts.URL, "ben-"+uid+"@example.com", "Worker123!")
	managerToken := login(t, client, ts.URL, "rita-"+uid+"@example.com", "Manager123!")

	// Two non-overlapping requests that each fit the quota alone but
	// not together. Whichever approval wins the conditional update
	// books the days; the other must fail instead of overdrawing.
	firstID := submitLeave(t, client, ts.URL, bobToken, typeID, base, base.AddDate(0, 0, 6), "week one")
	secondID := submitLeave(t, client, ts.URL, bobToken, typeID, base.AddDate(0, 0, 10), base.AddDate(0, 0, 16), "week two")

	type outcome struct {
		status int
		body   []byte
		err    error
	}
	results := make(chan outcome, 2)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for _, appID := range []string{firstID, secondID} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			<-start
			status, body, err := postRaw(client, ts.URL+"/api/v1/leave/applications/"+id+"/approve", managerToken, nil)
			results <- outcome{status: status, body: body, err: err}
		}(appID)
	}
	close(start)
	wg.Wait()
	close(results)

	approved, refused := 0, 0
	for res := range results {
		if res.err != nil {
			t.Fatalf("approve request failed: %v", res.err)
		}
		switch res.status {
		case http.StatusOK:
			approved++
		case http.StatusUnprocessableEntity:
			refused++
			env := decodeEnvelope(t, res.body)
			if env.Error == nil || env.Error.Code != "insufficient_balance" {
				t.Fatalf("expected insufficient_balance, got %+v", env.Error)
			}
		default:
			t.Fatalf("unexpected approve status %d: %s", res.status, string(res.body))
		}
	}
	if approved != 1 || refused != 1 {
		t.Fatalf("approved=%d refused=%d, want exactly one of each", approved, refused)
	}

	bal := findBalance(t, client, ts.URL, adminToken, bobID, yearQ, typeID)
	if bal.UsedDays != 7 || bal.RemainingDays != 3 {
		t.Fatalf("balance after race = %+v, want 10/7/3", bal)
	}
	if bal.RemainingDays < 0 {
		t.Fatalf("balance went negative: %+v", bal)
	}
}

func TestConcurrentQuotaAssignment(t *testing.T) {
	_, ts := startTestApp(t)
	client := ts.Client()

	adminToken := login(t, client, ts.URL, "admin@test.local", "ChangeMe123!")
	uid := uuid.NewString()[:8]
	yearQ := "?year=" + strconv.Itoa(time.Now().Year())

	deptID := createNamed(t, client, ts.URL+"/api/v1/departments", adminToken, map[string]any{"name": "Grant-" + uid})
	carolID := createEmployee(t, client, ts.URL, adminToken, map[string]any{
		"firstName":    "Carol",
		"lastName":     "New",
		"email":        "carol-" + uid + "@example.com",
		"departmentId": deptID,
	})

	// Both callers race the same employee-year; the unique constraint
	// picks one winner and the loser gets the conflict, never a 500.
	results := make(chan int, 2)
	errs := make(chan error, 2)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			status, _, err := postRaw(client, ts.URL+"/api/v1/leave/quotas/employee/"+carolID+yearQ, adminToken, nil)
			results <- status
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("assignment request failed: %v", err)
		}
	}
	created, conflicted := 0, 0
	for status := range results {
		switch status {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicted++
		default:
			t.Fatalf("unexpected assignment status %d", status)
		}
	}
	if created != 1 || conflicted != 1 {
		t.Fatalf("created=%d conflicted=%d, want exactly one of each", created, conflicted)
	}
}

// postRaw is safe to call from helper goroutines; assertions stay on
// the test goroutine.
func postRaw(client *http.Client, url, token string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(http.MethodPost, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}

func submitLeave(t *testing.T, client *http.Client, baseURL, token, typeID string, start, end time.Time, reason string) string {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/leave/applications", token, map[string]any{
		"leaveTypeId": typeID,
		"startDate":   fmtDate(start),
		"endDate":     fmtDate(end),
		"reason":      reason,
	})
	var app applicationRow
	if err := json.Unmarshal(resp.Data, &app); err != nil {
		t.Fatalf("failed to decode application: %v", err)
	}
	if app.ID == "" || app.Status != "pending" {
		t.Fatalf("unexpected application: %+v", app)
	}
	return app.ID
}

func findBalance(t *testing.T, client *http.Client, baseURL, token, employeeID, yearQ, typeID string) balanceRow {
	t.Helper()
	resp := getJSON(t, client, baseURL+"/api/v1/leave/balances/"+employeeID+yearQ, token)
	var balances []balanceRow
	if err := json.Unmarshal(resp.Data, &balances); err != nil {
		t.Fatalf("failed to decode balances: %v", err)
	}
	for _, bal := range balances {
		if bal.LeaveTypeID == typeID {
			return bal
		}
	}
	t.Fatalf("no balance row for type %s", typeID)
	return balanceRow{}
}
