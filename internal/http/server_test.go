package http

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	applog "budgetledger/internal/log"
	"budgetledger/internal/services"
	"budgetledger/internal/storage"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	loc := time.UTC
	svc := Services{
		Ledger:        services.NewLedgerService(repo, nil, loc),
		Categories:    services.NewCategoryService(repo, loc),
		Budgets:       services.NewBudgetService(repo, loc),
		Subscriptions: services.NewSubscriptionService(repo, loc),
		Goals:         services.NewGoalService(repo, nil, loc),
		Dashboard:     services.NewDashboardService(repo, loc),
		Reports:       services.NewReportService(repo, loc),
	}

	opts.JWTSecret = testSecret
	opts.Location = loc
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.Config{Output: io.Discard})
	}
	s := NewServer(":0", svc, opts)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return signed
}

// do sends a request as user 7 unless a token is given in headers.
func do(t *testing.T, s *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("marshal body: %v", err)
			}
			reader = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token(t, jwt.MapClaims{"sub": "7"}))
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthAndReadiness(t *testing.T) {
	s := newTestServer(t, Options{Ready: stubPinger{err: errors.New("db down")}})

	health := httptest.NewRecorder()
	s.Handler.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if health.Code != http.StatusOK {
		t.Errorf("/healthz status = %d", health.Code)
	}

	ready := httptest.NewRecorder()
	s.Handler.ServeHTTP(ready, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if ready.Code != http.StatusServiceUnavailable {
		t.Errorf("/readyz status = %d, want 503", ready.Code)
	}
	if health.Header().Get("X-Request-ID") == "" {
		t.Error("request id header missing")
	}
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t, Options{})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"numeric user_id claim", "Bearer " + token(t, jwt.MapClaims{"user_id": 9}), http.StatusOK},
		{"string sub claim", "Bearer " + token(t, jwt.MapClaims{"sub": "9"}), http.StatusOK},
		{"non numeric sub", "Bearer " + token(t, jwt.MapClaims{"sub": "alice"}), http.StatusUnauthorized},
		{"no subject", "Bearer " + token(t, jwt.MapClaims{"name": "x"}), http.StatusUnauthorized},
		{"expired", "Bearer " + token(t, jwt.MapClaims{"sub": "9", "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			s.Handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestAuthentication_RejectsOtherSecret(t *testing.T) {
	s := newTestServer(t, Options{})
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "7"}).SignedString([]byte("another-secret-another-secret-xx"))
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLedgerFlow(t *testing.T) {
	s := newTestServer(t, Options{})

	if rec := do(t, s, http.MethodPost, "/api/v1/accounts/provision", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("provision status = %d: %s", rec.Code, rec.Body.String())
	}

	income := do(t, s, http.MethodPost, "/api/v1/income", map[string]any{
		"amount": "1000.00", "category": "Salary", "description": "March pay", "occurredAt": "2025-03-01",
	}, nil)
	if income.Code != http.StatusCreated {
		t.Fatalf("income status = %d: %s", income.Code, income.Body.String())
	}
	flow := decodeBody[map[string]any](t, income)
	if flow["type"] != "INCOME" || flow["amount"] != 1000.0 {
		t.Errorf("income response = %v", flow)
	}

	expense := do(t, s, http.MethodPost, "/api/v1/expenses", map[string]any{"amount": 25.5, "category": "Food"}, nil)
	if expense.Code != http.StatusCreated {
		t.Fatalf("expense status = %d: %s", expense.Code, expense.Body.String())
	}

	accounts := decodeBody[[]map[string]any](t, do(t, s, http.MethodGet, "/api/v1/accounts", nil, nil))
	if len(accounts) != 1 || accounts[0]["balance"] != 974.5 {
		t.Errorf("accounts = %v, want one account holding 974.50", accounts)
	}

	recent := decodeBody[[]map[string]any](t, do(t, s, http.MethodGet, "/api/v1/transactions?limit=1", nil, nil))
	if len(recent) != 1 || recent[0]["type"] != "EXPENSE" {
		t.Errorf("recent = %v", recent)
	}

	dash := decodeBody[map[string]any](t, do(t, s, http.MethodGet, "/api/v1/dashboard?month=2025-03", nil, nil))
	if dash["totalBalance"] != 974.5 {
		t.Errorf("dashboard totalBalance = %v", dash["totalBalance"])
	}
}

func TestAccountBalance(t *testing.T) {
	s := newTestServer(t, Options{})
	provision := decodeBody[map[string]any](t, do(t, s, http.MethodPost, "/api/v1/accounts/provision", nil, nil))
	do(t, s, http.MethodPost, "/api/v1/income", map[string]any{"amount": "80.00"}, nil)

	rec := do(t, s, http.MethodGet, "/api/v1/accounts/"+jsonID(provision["id"])+"/balance", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[map[string]any](t, rec); got["balance"] != 80.0 {
		t.Errorf("balance = %v, want 80", got["balance"])
	}

	if rec := do(t, s, http.MethodGet, "/api/v1/accounts/9999/balance", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown account status = %d, want 404", rec.Code)
	}
}

func TestReportsAndExport(t *testing.T) {
	s := newTestServer(t, Options{})
	do(t, s, http.MethodPost, "/api/v1/accounts/provision", nil, nil)
	for _, body := range []map[string]any{
		{"amount": "1000.00", "category": "Salary", "occurredAt": "2025-03-01"},
	} {
		if rec := do(t, s, http.MethodPost, "/api/v1/income", body, nil); rec.Code != http.StatusCreated {
			t.Fatalf("income status = %d: %s", rec.Code, rec.Body.String())
		}
	}
	for _, body := range []map[string]any{
		{"amount": "40.00", "category": "Food", "description": "Lunch, with friends", "occurredAt": "2025-03-02"},
		{"amount": "10.00", "occurredAt": "2025-03-31"},
		{"amount": "5.00", "category": "Food", "occurredAt": "2025-04-01"},
	} {
		if rec := do(t, s, http.MethodPost, "/api/v1/expenses", body, nil); rec.Code != http.StatusCreated {
			t.Fatalf("expense status = %d: %s", rec.Code, rec.Body.String())
		}
	}

	rec := do(t, s, http.MethodGet, "/api/v1/reports?from=2025-03-01&to=2025-03-31", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("report status = %d: %s", rec.Code, rec.Body.String())
	}
	report := decodeBody[map[string]any](t, rec)
	if report["totalIncome"] != 1000.0 || report["totalExpense"] != 50.0 || report["balance"] != 950.0 || report["transfer"] != 0.0 {
		t.Errorf("report = %v", report)
	}
	byCategory, _ := report["expenseByCategory"].([]any)
	if len(byCategory) != 2 {
		t.Fatalf("expenseByCategory = %v", report["expenseByCategory"])
	}
	if last, _ := byCategory[1].(map[string]any); last["name"] != "Uncategorized" {
		t.Errorf("second category = %v, want Uncategorized", last)
	}

	if rec := do(t, s, http.MethodGet, "/api/v1/reports?from=2025-03-01", nil, nil); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("open report status = %d, want 422", rec.Code)
	}

	trend := decodeBody[map[string]any](t, do(t, s, http.MethodGet, "/api/v1/reports/trend?period=year", nil, nil))
	if trend["period"] != "YEAR" {
		t.Errorf("trend = %v", trend)
	}

	export := do(t, s, http.MethodGet, "/api/v1/transactions/export?from=2025-03-01&to=2025-03-31", nil, nil)
	if export.Code != http.StatusOK {
		t.Fatalf("export status = %d: %s", export.Code, export.Body.String())
	}
	if ct := export.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	records, err := csv.NewReader(export.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("got %d csv records, want header and 3 rows: %v", len(records), records)
	}
	if strings.Join(records[0], ",") != "ID,Type,Description,Category,Amount,Date" {
		t.Errorf("header = %v", records[0])
	}
	if records[1][1] != "INCOME" || records[2][2] != "Lunch, with friends" || records[2][3] != "Food" || records[2][4] != "40.00" {
		t.Errorf("rows = %v", records[1:])
	}
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t, Options{})
	do(t, s, http.MethodPost, "/api/v1/accounts/provision", nil, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"zero amount", http.MethodPost, "/api/v1/expenses", map[string]any{"amount": 0}, http.StatusUnprocessableEntity},
		{"unknown field", http.MethodPost, "/api/v1/expenses", map[string]any{"amount": 1, "colour": "red"}, http.StatusUnprocessableEntity},
		{"malformed json", http.MethodPost, "/api/v1/expenses", "{", http.StatusUnprocessableEntity},
		{"bad date", http.MethodPost, "/api/v1/expenses", map[string]any{"amount": 1, "occurredAt": "yesterday"}, http.StatusUnprocessableEntity},
		{"missing account name", http.MethodPost, "/api/v1/accounts", map[string]any{"name": ""}, http.StatusUnprocessableEntity},
		{"duplicate account name", http.MethodPost, "/api/v1/accounts", map[string]any{"name": "cash"}, http.StatusConflict},
		{"bad id", http.MethodDelete, "/api/v1/goals/abc", nil, http.StatusUnprocessableEntity},
		{"missing goal", http.MethodDelete, "/api/v1/goals/999", nil, http.StatusNotFound},
		{"bad month", http.MethodGet, "/api/v1/dashboard?month=2025-13", nil, http.StatusUnprocessableEntity},
		{"unknown route", http.MethodGet, "/api/v1/nope", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.path, tt.body, nil)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			if rec.Header().Get("Content-Type") != "application/json" {
				t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestValidationDetailsUseJSONNames(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := do(t, s, http.MethodPost, "/api/v1/categories/merge", map[string]any{"sourceIds": []int64{}, "targetId": 0}, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody[errorResponse](t, rec)
	if _, ok := body.Details["targetId"]; !ok {
		t.Errorf("details = %v, want targetId", body.Details)
	}
	if _, ok := body.Details["sourceIds"]; !ok {
		t.Errorf("details = %v, want sourceIds", body.Details)
	}
}

func TestUnsupportedContentType(t *testing.T) {
	s := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts", strings.NewReader("name=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token(t, jwt.MapClaims{"sub": "7"}))
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", rec.Code)
	}
}

func TestIdempotencyKey(t *testing.T) {
	s := newTestServer(t, Options{})
	do(t, s, http.MethodPost, "/api/v1/accounts/provision", nil, nil)

	body := map[string]any{"amount": "12.00", "description": "coffee"}
	key := map[string]string{HeaderIdempotencyKey: "abc-1"}

	first := do(t, s, http.MethodPost, "/api/v1/expenses", body, key)
	second := do(t, s, http.MethodPost, "/api/v1/expenses", body, key)
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("statuses = %d, %d", first.Code, second.Code)
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("second response should be a replay")
	}
	if first.Body.String() != second.Body.String() {
		t.Errorf("replayed body differs:\n%s\n%s", first.Body.String(), second.Body.String())
	}

	// Same key on another route is a different request.
	if rec := do(t, s, http.MethodPost, "/api/v1/income", body, key); rec.Header().Get("Idempotent-Replayed") != "" {
		t.Error("income must not replay the expense response")
	}

	recent := decodeBody[[]map[string]any](t, do(t, s, http.MethodGet, "/api/v1/transactions", nil, nil))
	expenses := 0
	for _, f := range recent {
		if f["type"] == "EXPENSE" {
			expenses++
		}
	}
	if expenses != 1 {
		t.Errorf("recorded %d expenses, want 1", expenses)
	}
}

func TestIdempotencyKey_ValidationFailureIsReplayed(t *testing.T) {
	s := newTestServer(t, Options{})
	do(t, s, http.MethodPost, "/api/v1/accounts/provision", nil, nil)

	key := map[string]string{HeaderIdempotencyKey: "bad-1"}
	first := do(t, s, http.MethodPost, "/api/v1/expenses", map[string]any{"amount": 0}, key)
	second := do(t, s, http.MethodPost, "/api/v1/expenses", map[string]any{"amount": 5}, key)
	if first.Code != http.StatusUnprocessableEntity || second.Code != http.StatusUnprocessableEntity {
		t.Errorf("statuses = %d, %d; the stored outcome wins for a reused key", first.Code, second.Code)
	}
}

func TestGoalsAndSubscriptions(t *testing.T) {
	s := newTestServer(t, Options{})
	do(t, s, http.MethodPost, "/api/v1/accounts/provision", nil, nil)
	do(t, s, http.MethodPost, "/api/v1/income", map[string]any{"amount": 100}, nil)

	created := do(t, s, http.MethodPost, "/api/v1/goals", map[string]any{"name": "Bike", "targetAmount": 80, "dueDate": "2025-12-31"}, nil)
	if created.Code != http.StatusCreated {
		t.Fatalf("create goal status = %d: %s", created.Code, created.Body.String())
	}
	goal := decodeBody[map[string]any](t, created)
	goalPath := "/api/v1/goals/" + jsonID(goal["id"])

	accounts := decodeBody[[]map[string]any](t, do(t, s, http.MethodGet, "/api/v1/accounts", nil, nil))
	var cashID string
	for _, a := range accounts {
		if a["type"] == "CASH" {
			cashID = jsonID(a["id"])
		}
	}

	tooMuch := do(t, s, http.MethodPost, goalPath+"/contributions", "{\"fromAccountId\": "+cashID+", \"amount\": 150}", nil)
	if tooMuch.Code != http.StatusConflict {
		t.Errorf("overdrawn contribution status = %d, want 409", tooMuch.Code)
	}

	ok := do(t, s, http.MethodPost, goalPath+"/contributions", "{\"fromAccountId\": "+cashID+", \"amount\": 80}", nil)
	if ok.Code != http.StatusCreated {
		t.Fatalf("contribution status = %d: %s", ok.Code, ok.Body.String())
	}
	res := decodeBody[map[string]any](t, ok)
	if res["sourceBalance"] != 20.0 || res["goalBalance"] != 80.0 {
		t.Errorf("contribution = %v", res)
	}
	if g := res["goal"].(map[string]any); g["status"] != "COMPLETED" || g["progressPercent"] != 100.0 {
		t.Errorf("goal after contribution = %v", g)
	}

	sub := do(t, s, http.MethodPost, "/api/v1/subscriptions", map[string]any{
		"merchant": "Streaming", "amount": "12.00", "frequency": "yearly", "startDate": "2025-01-15",
	}, nil)
	if sub.Code != http.StatusCreated {
		t.Fatalf("create subscription status = %d: %s", sub.Code, sub.Body.String())
	}
	subBody := decodeBody[map[string]any](t, sub)
	if subBody["frequency"] != "YEARLY" || subBody["monthlyEquivalent"] != 1.0 {
		t.Errorf("subscription = %v", subBody)
	}

	subPath := "/api/v1/subscriptions/" + jsonID(subBody["id"])
	paused := decodeBody[map[string]any](t, do(t, s, http.MethodPost, subPath+"/pause", nil, nil))
	if paused["isActive"] != false {
		t.Errorf("paused = %v", paused)
	}
	active := decodeBody[[]map[string]any](t, do(t, s, http.MethodGet, "/api/v1/subscriptions?active=true", nil, nil))
	if len(active) != 0 {
		t.Errorf("active subscriptions = %v", active)
	}

	if rec := do(t, s, http.MethodDelete, subPath, nil, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete subscription status = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, subPath, nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get deleted subscription status = %d", rec.Code)
	}
}

func TestCategoriesAndBudgets(t *testing.T) {
	s := newTestServer(t, Options{})
	do(t, s, http.MethodPost, "/api/v1/accounts/provision", nil, nil)

	created := do(t, s, http.MethodPost, "/api/v1/categories", map[string]any{"name": "Books"}, nil)
	if created.Code != http.StatusCreated {
		t.Fatalf("create category status = %d: %s", created.Code, created.Body.String())
	}
	id := jsonID(decodeBody[map[string]any](t, created)["id"])

	set := do(t, s, http.MethodPut, "/api/v1/categories/"+id+"/budgets/2025-03", map[string]any{"amount": 50}, nil)
	if set.Code != http.StatusOK {
		t.Fatalf("set budget status = %d: %s", set.Code, set.Body.String())
	}
	do(t, s, http.MethodPost, "/api/v1/expenses", "{\"amount\": 60, \"categoryId\": "+id+", \"occurredAt\": \"2025-03-10\"}", nil)

	sum := decodeBody[map[string]any](t, do(t, s, http.MethodGet, "/api/v1/categories/"+id+"/budgets/2025-03", nil, nil))
	if sum["remaining"] != -10.0 || sum["expenseVsBudgetPct"] != "120" {
		t.Errorf("budget summary = %v", sum)
	}

	cats := decodeBody[[]map[string]any](t, do(t, s, http.MethodGet, "/api/v1/categories", nil, nil))
	var uncategorized string
	for _, c := range cats {
		if c["name"] == "Uncategorized" {
			uncategorized = jsonID(c["id"])
		}
	}
	if rec := do(t, s, http.MethodDelete, "/api/v1/categories/"+uncategorized, nil, nil); rec.Code != http.StatusConflict {
		t.Errorf("deleting a system category status = %d, want 409", rec.Code)
	}

	if rec := do(t, s, http.MethodDelete, "/api/v1/categories/"+id+"/budgets/2025-04", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("deleting a missing budget status = %d, want 404", rec.Code)
	}
}

func jsonID(v any) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}
