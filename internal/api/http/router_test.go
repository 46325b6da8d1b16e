package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bridge/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bridge/internal/domain"
	"github.com/spec-kit/ticket-bridge/internal/ingest"
	"github.com/spec-kit/ticket-bridge/internal/observability"
	"github.com/spec-kit/ticket-bridge/internal/registry"
	"github.com/spec-kit/ticket-bridge/internal/service"
)

type recordingSender struct {
	texts []string
}

func (s *recordingSender) SendText(_ context.Context, _, body string) error {
	s.texts = append(s.texts, body)
	return nil
}

func (s *recordingSender) SendFile(context.Context, string, string, string, string) (string, error) {
	return "https://files.example/upload", nil
}

func newTestApp(t *testing.T) (*fiber.App, *registry.Registry, *recordingSender) {
	t.Helper()
	reg := registry.New()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	sender := &recordingSender{}
	engine := service.NewEngine(service.EngineDependencies{
		Registry: reg,
		Sync: service.NewSynchronizer(service.SyncDependencies{
			Registry: reg,
			Logger:   logger,
			Metrics:  metrics,
		}),
		Sender:  sender,
		Logger:  logger,
		Metrics: metrics,
	})
	classifier := ingest.NewClassifier(nil, nil, logger, metrics)
	deduper := ingest.NewReceiptDeduper(nil, time.Hour, logger)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:  handlers.NewHealthHandler(nil, nil),
		Webhook: handlers.NewWebhookHandler(classifier, deduper, engine, logger),
		Tickets: handlers.NewTicketsHandler(engine, t.TempDir()),
	})
	return app, reg, sender
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode body %q: %v", raw, err)
	}
	return out
}

func seedTicketViaWebhook(t *testing.T, app *fiber.App, sender, text string) {
	t.Helper()
	payload := `{
		"typeWebhook": "incomingMessageReceived",
		"senderData": {"sender": "` + sender + `", "senderName": "Alice"},
		"messageData": {
			"typeMessage": "textMessage",
			"chatId": "` + sender + `",
			"textMessageData": {"textMessage": "` + text + `"}
		}
	}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("webhook request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("webhook status = %d", resp.StatusCode)
	}
}

func TestWebhookCreatesTicket(t *testing.T) {
	app, reg, sender := newTestApp(t)

	seedTicketViaWebhook(t, app, "+1000", "Hello")

	ticket, ok := reg.FindOpenTicket("+1000")
	if !ok || ticket.ID != "T1" {
		t.Fatalf("ticket = %+v, ok=%v", ticket, ok)
	}
	if len(sender.texts) != 1 || !strings.Contains(sender.texts[0], "#T1") {
		t.Fatalf("welcome = %v", sender.texts)
	}
}

func TestWebhookIgnoresNonIncoming(t *testing.T) {
	app, reg, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook",
		strings.NewReader(`{"typeWebhook": "stateInstanceChanged"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	body := decodeBody(t, resp)
	if body["status"] != "ignored" {
		t.Fatalf("body = %v", body)
	}
	if len(reg.List()) != 0 {
		t.Fatal("non-incoming webhook mutated the registry")
	}
}

func TestListTicketsWithStatusFilter(t *testing.T) {
	app, _, _ := newTestApp(t)
	seedTicketViaWebhook(t, app, "+1000", "Hello")
	seedTicketViaWebhook(t, app, "+2000", "Hi")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/dashboard/tickets?status=open", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	body := decodeBody(t, resp)
	data := body["data"].(map[string]any)
	stats := data["stats"].(map[string]any)
	if stats["total"].(float64) != 2 || stats["open"].(float64) != 2 {
		t.Fatalf("stats = %v", stats)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/dashboard/tickets?status=bogus", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bogus filter status = %d, want 400", resp.StatusCode)
	}
}

func TestReplyEndpoint(t *testing.T) {
	app, reg, _ := newTestApp(t)
	seedTicketViaWebhook(t, app, "+1000", "Hello")

	req := httptest.NewRequest(http.MethodPost, "/dashboard/tickets/T1/reply",
		strings.NewReader(`{"message": "How can I help?"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	ticket, _ := reg.Get("T1")
	last := ticket.LastMessage()
	if last == nil || last.Author != domain.AuthorAgent {
		t.Fatalf("last message = %+v", last)
	}
}

func TestReplyEmptyMessageRejected(t *testing.T) {
	app, _, _ := newTestApp(t)
	seedTicketViaWebhook(t, app, "+1000", "Hello")

	req := httptest.NewRequest(http.MethodPost, "/dashboard/tickets/T1/reply",
		strings.NewReader(`{"message": "   "}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	errObj := body["error"].(map[string]any)
	if errObj["code"] != "VALIDATION_FAILED" {
		t.Fatalf("error = %v", errObj)
	}
}

func TestCloseEndpointConflictOnSecondClose(t *testing.T) {
	app, _, _ := newTestApp(t)
	seedTicketViaWebhook(t, app, "+1000", "Hello")

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/dashboard/tickets/T1/close", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first close status = %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/dashboard/tickets/T1/close", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second close status = %d, want 409", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["error"].(map[string]any)["code"] != "ALREADY_CLOSED" {
		t.Fatalf("body = %v", body)
	}
}

func TestGetTicketNotFound(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/dashboard/tickets/T9", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHealthLive(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
