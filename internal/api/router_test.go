package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	stripewebhook "github.com/stripe/stripe-go/v76/webhook"

	"github.com/baharkarakas/charity-faceoff/internal/auth"
	"github.com/baharkarakas/charity-faceoff/internal/config"
	"github.com/baharkarakas/charity-faceoff/internal/db"
	"github.com/baharkarakas/charity-faceoff/internal/feed"
	"github.com/baharkarakas/charity-faceoff/internal/models"
	repo "github.com/baharkarakas/charity-faceoff/internal/repository"
	"github.com/baharkarakas/charity-faceoff/internal/repository/sqlite"
	"github.com/baharkarakas/charity-faceoff/internal/services"
	"github.com/baharkarakas/charity-faceoff/internal/webhook"
)

const testSecret = "whsec_test"

type testApp struct {
	handler http.Handler
	repos   repo.Repositories
}

type syncSubmitter struct{}

func (syncSubmitter) TrySubmit(f func()) bool { f(); return true }

func newTestApp(t *testing.T, webhookSecret string) *testApp {
	t.Helper()
	sqlDB, err := db.OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	repos := sqlite.NewRepositories(sqlDB)
	if err := services.SeedTeams(context.Background(), repos.Ledger, []models.Team{
		{ID: "X", Name: "Team X", CharityName: "X Fund", DonationTotal: 25750},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	hash, err := auth.HashPassword("letmein-admin")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	tm := auth.NewTokenManager("access", "refresh", "test", time.Minute, time.Hour)
	totals := services.NewTotalsService(repos.Ledger)
	hub := feed.NewHub(totals)
	rc := services.NewReconciler(
		webhook.NewVerifier(webhookSecret, 0),
		services.NewSettlementService(repos.Ledger, hub),
		repos.WebhookEvents, repos.Issues, syncSubmitter{},
		services.ReconcileOptions{Currency: "usd"},
	)

	h := NewRouter(RouterDeps{
		Cfg:         config.Config{RateRPS: 0},
		TM:          tm,
		Reconciler:  rc,
		Checkout:    services.NewCheckoutService(repos.Ledger, nil, "http://localhost", "usd"),
		Totals:      totals,
		Admin:       services.NewAdminService(repos.Ledger, repos.Issues, repos.AuditLogs, hub),
		Diagnostics: services.NewDiagnosticsService(repos, "", webhookSecret),
		Auth:        services.NewAuthService(tm, hash),
		Hub:         hub,
	})
	return &testApp{handler: h, repos: repos}
}

func (a *testApp) do(t *testing.T, method, path string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func completed(eventID, sessionID, teamID string, amountTotal int64) []byte {
	b, _ := json.Marshal(map[string]any{
		"id":   eventID,
		"type": "checkout.session.completed",
		"data": map[string]any{"object": map[string]any{
			"id": sessionID, "amount_total": amountTotal, "currency": "usd",
			"payment_status": "paid", "metadata": map[string]string{"teamId": teamID},
		}},
	})
	return b
}

func signed(payload []byte) map[string]string {
	h := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{Payload: payload, Secret: testSecret}).Header
	return map[string]string{webhook.SignatureHeader: h}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, testSecret)
	if rec := app.do(t, http.MethodGet, "/health", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestWebhookOutcomes(t *testing.T) {
	app := newTestApp(t, testSecret)
	payload := completed("evt_1", "cs_1", "X", 2500)

	rec := app.do(t, http.MethodPost, "/webhooks/stripe", payload, signed(payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["received"] != true || body["outcome"] != "applied" {
		t.Fatalf("unexpected body %v", body)
	}

	rec = app.do(t, http.MethodPost, "/webhooks/stripe", payload, signed(payload))
	if body := decode(t, rec); rec.Code != http.StatusOK || body["outcome"] != "already_processed" {
		t.Fatalf("expected 200 already_processed, got %d %v", rec.Code, body)
	}

	unknown := completed("evt_z", "cs_z", "teamZZZ", 2500)
	rec = app.do(t, http.MethodPost, "/webhooks/stripe", unknown, signed(unknown))
	if body := decode(t, rec); rec.Code != http.StatusOK || body["outcome"] != "failed" {
		t.Fatalf("expected 200 failed, got %d %v", rec.Code, body)
	}

	team, _ := app.repos.Ledger.GetTeam(context.Background(), "X")
	if team.DonationTotal != 25775 {
		t.Fatalf("expected 25775, got %d", team.DonationTotal)
	}
}

func TestWebhookRejections(t *testing.T) {
	app := newTestApp(t, testSecret)
	payload := completed("evt_1", "cs_1", "X", 2500)

	rec := app.do(t, http.MethodPost, "/webhooks/stripe", payload, map[string]string{webhook.SignatureHeader: "t=1,v1=00"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec := app.do(t, http.MethodGet, "/webhooks/stripe", nil, nil); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	big := bytes.Repeat([]byte("a"), 70<<10)
	if rec := app.do(t, http.MethodPost, "/webhooks/stripe", big, signed(big)); rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	team, _ := app.repos.Ledger.GetTeam(context.Background(), "X")
	if team.DonationTotal != 25750 {
		t.Fatalf("expected untouched total, got %d", team.DonationTotal)
	}
}

func TestWebhookWithoutSecret(t *testing.T) {
	app := newTestApp(t, "")
	payload := completed("evt_1", "cs_1", "X", 2500)
	if rec := app.do(t, http.MethodPost, "/webhooks/stripe", payload, signed(payload)); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestCheckoutValidation(t *testing.T) {
	app := newTestApp(t, testSecret)
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "fractional", body: `{"teamId":"X","charityName":"X Fund","amount":"12.5"}`, want: http.StatusBadRequest},
		{name: "negative", body: `{"teamId":"X","charityName":"X Fund","amount":-1}`, want: http.StatusBadRequest},
		{name: "over ceiling", body: `{"teamId":"X","charityName":"X Fund","amount":9007199254740992}`, want: http.StatusBadRequest},
		{name: "missing team", body: `{"charityName":"X Fund","amount":5}`, want: http.StatusBadRequest},
		{name: "bad json", body: `{`, want: http.StatusBadRequest},
		{name: "unknown team", body: `{"teamId":"nope","charityName":"X Fund","amount":5}`, want: http.StatusBadRequest},
		{name: "no provider", body: `{"teamId":"X","charityName":"X Fund","selectedAmount":"5"}`, want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(t, http.MethodPost, "/api/v1/checkout/sessions", []byte(tt.body), nil)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestTotalsEndpoints(t *testing.T) {
	app := newTestApp(t, testSecret)

	rec := app.do(t, http.MethodGet, "/api/v1/totals", nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"donation_total":25750`) {
		t.Fatalf("unexpected list %d %s", rec.Code, rec.Body.String())
	}
	if rec := app.do(t, http.MethodGet, "/api/v1/totals/X", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := app.do(t, http.MethodGet, "/api/v1/totals/nope", nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func login(t *testing.T, app *testApp) string {
	t.Helper()
	rec := app.do(t, http.MethodPost, "/api/v1/admin/login", []byte(`{"password":"letmein-admin"}`), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	return decode(t, rec)["access_token"].(string)
}

func TestAdminRoutes(t *testing.T) {
	app := newTestApp(t, testSecret)

	if rec := app.do(t, http.MethodPost, "/api/v1/admin/login", []byte(`{"password":"nope"}`), nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := app.do(t, http.MethodGet, "/api/v1/admin/diagnostics", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	bearer := map[string]string{"Authorization": "Bearer " + login(t, app)}
	rec := app.do(t, http.MethodPost, "/api/v1/admin/teams/X/total", []byte(`{"amount":50,"increment":true}`), bearer)
	if rec.Code != http.StatusOK {
		t.Fatalf("adjust: %d %s", rec.Code, rec.Body.String())
	}
	if body := decode(t, rec); body["new_total"] != float64(25800) {
		t.Fatalf("unexpected body %v", body)
	}
	if rec := app.do(t, http.MethodPost, "/api/v1/admin/teams/X/total", []byte(`{"amount":1}`), bearer); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for decrease, got %d", rec.Code)
	}
	if rec := app.do(t, http.MethodGet, "/api/v1/admin/teams/X/audit", nil, bearer); rec.Code != http.StatusOK {
		t.Fatalf("audit: %d", rec.Code)
	}
	if rec := app.do(t, http.MethodGet, "/api/v1/admin/teams/nope/donations", nil, bearer); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := app.do(t, http.MethodGet, "/api/v1/admin/diagnostics", nil, bearer); rec.Code != http.StatusOK {
		t.Fatalf("diagnostics: %d", rec.Code)
	}

	unknown := completed("evt_z", "cs_z", "teamZZZ", 2500)
	app.do(t, http.MethodPost, "/webhooks/stripe", unknown, signed(unknown))
	issues, _ := app.repos.Issues.ListOpen(context.Background(), 10)
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(issues))
	}
	if rec := app.do(t, http.MethodPost, "/api/v1/admin/issues/"+issues[0].ID+"/resolve", nil, bearer); rec.Code != http.StatusOK {
		t.Fatalf("resolve: %d %s", rec.Code, rec.Body.String())
	}
	if rec := app.do(t, http.MethodPost, "/api/v1/admin/issues/"+issues[0].ID+"/resolve", nil, bearer); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second resolve, got %d", rec.Code)
	}
}

func TestTotalsStream(t *testing.T) {
	app := newTestApp(t, testSecret)
	srv := httptest.NewServer(app.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/totals/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	r := bufio.NewReader(resp.Body)

	name, data := readEvent(t, r)
	if name != "snapshot" || !strings.Contains(data, `"donation_total":25750`) {
		t.Fatalf("unexpected first event %s %s", name, data)
	}

	payload := completed("evt_1", "cs_1", "X", 2500)
	postReq, _ := http.NewRequest(http.MethodPost, srv.URL+"/webhooks/stripe", bytes.NewReader(payload))
	postReq.Header.Set(webhook.SignatureHeader, signed(payload)[webhook.SignatureHeader])
	postResp, err := http.DefaultClient.Do(postReq)
	if err != nil {
		t.Fatalf("post webhook: %v", err)
	}
	postResp.Body.Close()

	name, data = readEvent(t, r)
	if name != "totals" || !strings.Contains(data, `"donation_total":25775`) {
		t.Fatalf("unexpected update %s %s", name, data)
	}
}

func readEvent(t *testing.T, r *bufio.Reader) (name, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read event: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "" && name != "":
			return name, data
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}
