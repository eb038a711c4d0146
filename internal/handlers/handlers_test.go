package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/esarmiem/navegantes-payment-e-learning/internal/apperr"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/config"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/middleware"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/models"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/notify"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/provider"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/reconcile"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/repository"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/signature"
)

var fixedNow = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeFetcher struct {
	txs map[string]*provider.Transaction
	err error
}

func (f *fakeFetcher) GetTransaction(_ context.Context, id string) (*provider.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	tx, ok := f.txs[id]
	if !ok {
		return nil, apperr.Upstream("Failed to verify transaction with provider", http.StatusNotFound, nil)
	}
	return tx, nil
}

type countingNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *countingNotifier) Notify(context.Context, notify.Activation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return nil
}

type testEnv struct {
	cfg      *config.Config
	repo     *repository.GormCustomerRepository
	fetcher  *fakeFetcher
	notifier *countingNotifier
	engine   *gin.Engine
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := repository.OpenSQLite("file:" + t.Name() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	repo := repository.NewGormCustomerRepository(db)
	if err := repo.InitDB(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{
		Environment:      config.EnvSandbox,
		IntegritySecret:  "test_integrity",
		WebhookSecret:    "test_webhook",
		PublicKeySandbox: "pub_test_key",
		Currency:         "COP",
	}
	fetcher := &fakeFetcher{txs: map[string]*provider.Transaction{}}
	n := &countingNotifier{}
	rec := reconcile.NewReconciler(repo, n, nil, reconcile.ApprovedSticky, cfg.Currency)

	ph := NewPaymentHandler(cfg, fetcher, rec)
	rh := NewRegistrationHandler(cfg, repo)

	r := gin.New()
	r.GET("/plans", rh.ListPlans)
	r.POST("/registrations", rh.CreateRegistration)
	r.GET("/registrations/:reference", rh.GetRegistration)
	r.POST("/integrity-signature", ph.IntegritySignature)
	r.POST("/verify-transaction", ph.VerifyTransaction)
	r.POST("/webhook", middleware.RawBody(), middleware.WebhookSignature(signature.NewVerifier(cfg.WebhookSecret)), ph.Webhook)

	return &testEnv{cfg: cfg, repo: repo, fetcher: fetcher, notifier: n, engine: r}
}

func (e *testEnv) seed(t *testing.T, ref string) {
	t.Helper()
	c := &models.Customer{
		ID:             "cust-" + ref,
		FirstNames:     "Ana",
		LastNames:      "Pérez",
		Identification: "1020304050",
		Email:          "ana@example.co",
		Phone:          "3001234567",
		Plan:           models.PlanBronce,
		AmountInCents:  15000000,
		Reference:      ref,
	}
	if err := e.repo.Create(context.Background(), c); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func (e *testEnv) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestIntegritySignature(t *testing.T) {
	env := setupEnv(t)

	w := env.do(http.MethodPost, "/integrity-signature", `{"reference":"NAV-1","amount_minor_units":15000000,"currency":"COP"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body.String())
	}
	want, _ := signature.Generate("NAV-1", 15000000, "COP", "test_integrity")
	body := decode(t, w)
	if body["signature"] != want || body["reference"] != "NAV-1" || body["currency"] != "COP" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestIntegritySignatureMissingAmount(t *testing.T) {
	env := setupEnv(t)

	w := env.do(http.MethodPost, "/integrity-signature", `{"reference":"NAV-1","currency":"COP"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}
	if _, ok := decode(t, w)["signature"]; ok {
		t.Fatal("no digest expected on validation failure")
	}
}

func TestIntegritySignatureMissingSecret(t *testing.T) {
	env := setupEnv(t)
	env.cfg.IntegritySecret = ""

	w := env.do(http.MethodPost, "/integrity-signature", `{"reference":"NAV-1","amount_minor_units":100,"currency":"COP"}`, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", w.Code)
	}
}

func TestVerifyTransactionApproved(t *testing.T) {
	env := setupEnv(t)
	env.seed(t, "NAV-123")
	env.fetcher.txs["txn-1"] = &provider.Transaction{ID: "txn-1", Reference: "NAV-123", Status: "APPROVED"}

	w := env.do(http.MethodPost, "/verify-transaction", `{"transaction_id":"txn-1"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["success"] != true {
		t.Fatalf("expected success, got %v", body)
	}
	customer := body["customer"].(map[string]any)
	if customer["estado_transaccion"] != "approved" || customer["id_transaccion_wompi"] != "txn-1" {
		t.Fatalf("unexpected customer %v", customer)
	}
	if env.notifier.calls != 1 {
		t.Fatalf("expected one notification, got %d", env.notifier.calls)
	}
}

func TestVerifyTransactionDeclined(t *testing.T) {
	env := setupEnv(t)
	env.seed(t, "NAV-123")
	env.fetcher.txs["txn-2"] = &provider.Transaction{ID: "txn-2", Reference: "NAV-123", Status: "DECLINED"}

	w := env.do(http.MethodPost, "/verify-transaction", `{"transaction_id":"txn-2"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	if decode(t, w)["success"] != false {
		t.Fatal("declined transaction must report success=false")
	}
	stored, _ := env.repo.GetByReference(context.Background(), "NAV-123")
	if stored.Status != models.StatusDeclined {
		t.Fatalf("status = %s, want declined", stored.Status)
	}
	if env.notifier.calls != 0 {
		t.Fatal("no notification expected for a decline")
	}
}

func TestVerifyTransactionErrors(t *testing.T) {
	env := setupEnv(t)
	env.fetcher.txs["txn-orphan"] = &provider.Transaction{ID: "txn-orphan", Reference: "NAV-unknown", Status: "APPROVED"}

	if w := env.do(http.MethodPost, "/verify-transaction", `{}`, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing id: expected 400 got %d", w.Code)
	}
	if w := env.do(http.MethodPost, "/verify-transaction", `{"transaction_id":"txn-orphan"}`, nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown customer: expected 404 got %d", w.Code)
	}
	if w := env.do(http.MethodPost, "/verify-transaction", `{"transaction_id":"txn-missing"}`, nil); w.Code != http.StatusNotFound {
		t.Fatalf("provider 404 should propagate, got %d", w.Code)
	}

	env.fetcher.err = apperr.Upstream("Failed to verify transaction with provider", 0, nil)
	if w := env.do(http.MethodPost, "/verify-transaction", `{"transaction_id":"txn-1"}`, nil); w.Code != http.StatusBadGateway {
		t.Fatalf("unreachable provider: expected 502 got %d", w.Code)
	}
}

func webhookBody(status string) string {
	return `{"event":"transaction.updated","data":{"transaction":{"id":"txn-1","reference":"NAV-123","status":"` + status + `","amount_in_cents":15000000,"currency":"COP"}},"environment":"test"}`
}

func (e *testEnv) webhook(body, secret string) *httptest.ResponseRecorder {
	return e.do(http.MethodPost, "/webhook", body, map[string]string{
		middleware.SignatureHeader: signature.Sign([]byte(body), secret),
	})
}

func TestWebhookApprovedReplayNotifiesOnce(t *testing.T) {
	env := setupEnv(t)
	env.seed(t, "NAV-123")
	body := webhookBody("APPROVED")

	for i := 0; i < 2; i++ {
		w := env.webhook(body, "test_webhook")
		if w.Code != http.StatusOK || decode(t, w)["success"] != true {
			t.Fatalf("delivery %d: got %d %s", i+1, w.Code, w.Body.String())
		}
	}

	stored, _ := env.repo.GetByReference(context.Background(), "NAV-123")
	if stored.Status != models.StatusApproved {
		t.Fatalf("status = %s, want approved", stored.Status)
	}
	if env.notifier.calls != 1 {
		t.Fatalf("replayed webhook sent %d notifications", env.notifier.calls)
	}
}

func TestWebhookBadSignature(t *testing.T) {
	env := setupEnv(t)
	env.seed(t, "NAV-123")

	w := env.webhook(webhookBody("APPROVED"), "not_the_secret")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", w.Code)
	}
	stored, _ := env.repo.GetByReference(context.Background(), "NAV-123")
	if stored.Status != models.StatusPending {
		t.Fatal("rejected delivery must not change the record")
	}
}

func TestWebhookMalformed(t *testing.T) {
	env := setupEnv(t)

	if w := env.webhook(`{not json`, "test_webhook"); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid json: expected 400 got %d", w.Code)
	}
	if w := env.webhook(`{"event":"transaction.updated","data":{}}`, "test_webhook"); w.Code != http.StatusBadRequest {
		t.Fatalf("missing transaction: expected 400 got %d", w.Code)
	}
}

func TestWebhookAcknowledgesUnhandledCases(t *testing.T) {
	env := setupEnv(t)

	if w := env.webhook(`{"event":"nequi_token.updated","data":{}}`, "test_webhook"); w.Code != http.StatusOK {
		t.Fatalf("other events: expected 200 got %d", w.Code)
	}
	// Unknown reference is logged and acknowledged.
	if w := env.webhook(webhookBody("APPROVED"), "test_webhook"); w.Code != http.StatusOK {
		t.Fatalf("unknown reference: expected 200 got %d", w.Code)
	}
}

func TestCreateRegistration(t *testing.T) {
	env := setupEnv(t)

	w := env.do(http.MethodPost, "/registrations", `{
		"nombres":"Ana","apellidos":"Pérez","identificacion":"1020304050",
		"correo_electronico":"ana@example.co","telefono":"3001234567",
		"fecha_nacimiento":"1990-05-01","direccion":"Cra 1 # 2-3","ciudad":"Cartagena",
		"plan_seleccionado":"plata"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", w.Code, w.Body.String())
	}

	var resp models.RegistrationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(resp.Reference, "NAV-") || resp.AmountInCents != 25000000 || resp.PublicKey != "pub_test_key" {
		t.Fatalf("unexpected response %+v", resp)
	}
	want, _ := signature.Generate(resp.Reference, 25000000, "COP", "test_integrity")
	if resp.Signature != want {
		t.Fatal("registration signature does not match the integrity signature")
	}

	got := env.do(http.MethodGet, "/registrations/"+resp.Reference, "", nil)
	if got.Code != http.StatusOK {
		t.Fatalf("get registration: %d", got.Code)
	}
	if decode(t, got)["estado_transaccion"] != "pending" {
		t.Fatal("new registration must be pending")
	}
}

func TestCreateRegistrationValidation(t *testing.T) {
	env := setupEnv(t)

	if w := env.do(http.MethodPost, "/registrations", `{"nombres":"Ana"}`, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing fields: expected 400 got %d", w.Code)
	}
	w := env.do(http.MethodPost, "/registrations", `{
		"nombres":"Ana","apellidos":"Pérez","identificacion":"1","correo_electronico":"ana@example.co",
		"telefono":"1","fecha_nacimiento":"1990-05-01","direccion":"x","ciudad":"y","plan_seleccionado":"platino"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown plan: expected 400 got %d", w.Code)
	}
	if w := env.do(http.MethodGet, "/registrations/NAV-none", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown reference: expected 404 got %d", w.Code)
	}
}

func TestListPlans(t *testing.T) {
	env := setupEnv(t)
	w := env.do(http.MethodGet, "/plans", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	plans := decode(t, w)["plans"].([]any)
	if len(plans) != 3 || plans[0].(map[string]any)["id"] != "bronce" {
		t.Fatalf("unexpected plans %v", plans)
	}
}

func TestNewReference(t *testing.T) {
	a := NewReference(fixedNow)
	b := NewReference(fixedNow)
	if a == b {
		t.Fatal("references must be unique")
	}
	if !strings.HasPrefix(a, "NAV-1735689600000-") || len(a) != len("NAV-1735689600000-")+9 {
		t.Fatalf("unexpected reference %q", a)
	}
}
