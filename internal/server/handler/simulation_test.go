package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nexustrade/perpsim/internal/domain"
	"github.com/nexustrade/perpsim/internal/engine"
)

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}

func discardTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSimHandler(t *testing.T) (*SimulationHandler, *engine.Engine) {
	t.Helper()
	logger := discardTestLogger()
	eng := engine.New(engine.Config{
		Pair:         "SUI-PERP",
		CandleWindow: 10,
		BookDepth:    5,
		BasePrice:    150,
		Seed:         7,
	}, nil, nil, logger)
	return NewSimulationHandler(eng, logger), eng
}

func TestConnectLifecycle(t *testing.T) {
	h, _ := newSimHandler(t)

	// No session yet.
	rec := httptest.NewRecorder()
	h.GetSession(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GetSession without session: status = %d, want 404", rec.Code)
	}

	// Invalid wallet is a client error.
	rec = httptest.NewRecorder()
	h.Connect(rec, httptest.NewRequest(http.MethodPost, "/api/session/connect",
		jsonBody(`{"wallet":"nope"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Connect bad wallet: status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Connect(rec, httptest.NewRequest(http.MethodPost, "/api/session/connect",
		jsonBody(`{"wallet":"0x2222222222222222222222222222222222222222"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("Connect: status = %d, want 200; body %s", rec.Code, rec.Body)
	}

	var session domain.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.Wallet == "" || session.ConnectedAt.IsZero() {
		t.Errorf("session not populated: %+v", session)
	}

	rec = httptest.NewRecorder()
	h.GetSession(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GetSession: status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Disconnect(rec, httptest.NewRequest(http.MethodDelete, "/api/session", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Disconnect: status = %d, want 200", rec.Code)
	}
}

func TestExecuteTradeEndToEnd(t *testing.T) {
	h, eng := newSimHandler(t)
	if _, err := eng.Connect("0x2222222222222222222222222222222222222222"); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	h.ExecuteTrade(rec, httptest.NewRequest(http.MethodPost, "/api/positions",
		jsonBody(`{"Type":"long","OrderType":"market","Size":1000,"Leverage":5}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("ExecuteTrade: status = %d, want 201; body %s", rec.Code, rec.Body)
	}

	var result engine.TradeResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Position == nil {
		t.Fatal("market trade returned no position")
	}
	if result.Position.Margin != 200 {
		t.Errorf("margin = %v, want 200", result.Position.Margin)
	}

	rec = httptest.NewRecorder()
	h.ListPositions(rec, httptest.NewRequest(http.MethodGet, "/api/positions", nil))
	var listed positionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode positions: %v", err)
	}
	if len(listed.Positions) != 1 || listed.Positions[0].ID != result.Position.ID {
		t.Errorf("positions list = %+v, want the opened position", listed.Positions)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/positions/"+result.Position.ID, nil)
	req.SetPathValue("id", result.Position.ID)
	h.ClosePosition(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("ClosePosition: status = %d; body %s", rec.Code, rec.Body)
	}

	var ev domain.TradeEvent
	if err := json.Unmarshal(rec.Body.Bytes(), &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.Reason != domain.ReasonManualClose {
		t.Errorf("reason = %q, want %q", ev.Reason, domain.ReasonManualClose)
	}
}

func TestExecuteTradeRejections(t *testing.T) {
	h, eng := newSimHandler(t)

	// Without a session the engine refuses mutations.
	rec := httptest.NewRecorder()
	h.ExecuteTrade(rec, httptest.NewRequest(http.MethodPost, "/api/positions",
		jsonBody(`{"Type":"long","OrderType":"market","Size":1000,"Leverage":5}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("no session: status = %d, want 400", rec.Code)
	}

	if _, err := eng.Connect("0x2222222222222222222222222222222222222222"); err != nil {
		t.Fatal(err)
	}

	rec = httptest.NewRecorder()
	h.ExecuteTrade(rec, httptest.NewRequest(http.MethodPost, "/api/positions",
		jsonBody(`{"Type":"long","OrderType":"market","Size":1000,"Leverage":99}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("excess leverage: status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ExecuteTrade(rec, httptest.NewRequest(http.MethodPost, "/api/positions",
		jsonBody(`not json`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", rec.Code)
	}
}

func TestOrderEndpoints(t *testing.T) {
	h, eng := newSimHandler(t)
	if _, err := eng.Connect("0x2222222222222222222222222222222222222222"); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	h.ExecuteTrade(rec, httptest.NewRequest(http.MethodPost, "/api/positions",
		jsonBody(`{"Type":"long","OrderType":"limit","Size":500,"Leverage":2,"Price":10}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("place limit: status = %d; body %s", rec.Code, rec.Body)
	}
	var result engine.TradeResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Order == nil {
		t.Fatal("limit trade returned no order")
	}

	rec = httptest.NewRecorder()
	h.ListOrders(rec, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	var listed ordersResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed.Orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(listed.Orders))
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/orders/"+result.Order.ID, nil)
	req.SetPathValue("id", result.Order.ID)
	h.CancelOrder(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: status = %d; body %s", rec.Code, rec.Body)
	}

	// A second cancel of the same order is a conflict.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/api/orders/"+result.Order.ID, nil)
	req.SetPathValue("id", result.Order.ID)
	h.CancelOrder(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("double cancel: status = %d, want 409", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/api/orders/missing", nil)
	req.SetPathValue("id", "missing")
	h.CancelOrder(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown cancel: status = %d, want 404", rec.Code)
	}
}

func TestListEndpointsNeverReturnNull(t *testing.T) {
	h, _ := newSimHandler(t)

	checks := []struct {
		name string
		call func(w http.ResponseWriter, r *http.Request)
		key  string
	}{
		{"positions", h.ListPositions, "positions"},
		{"orders", h.ListOrders, "orders"},
		{"history", h.GetHistory, "history"},
	}

	for _, c := range checks {
		t.Run(c.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c.call(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			var body map[string]json.RawMessage
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if string(body[c.key]) != "[]" {
				t.Errorf("%s = %s, want []", c.key, body[c.key])
			}
		})
	}
}
