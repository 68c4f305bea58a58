package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/ride-dispatch/internal/auth"
	"github.com/example/ride-dispatch/internal/config"
	"github.com/example/ride-dispatch/internal/dispatch"
	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/hub"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/storage"
)

type testEnv struct {
	server *Server
	coord  *dispatch.Coordinator
	auth   *auth.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg, err := config.LoadServerConfig()
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMemoryStore()
	h := hub.New(logger, time.Second)
	coord := dispatch.New(store, store, geo.NewIndex(), h, logger)
	am := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	return &testEnv{server: NewServer(cfg, coord, h, am, logger), coord: coord, auth: am}
}

func (e *testEnv) token(t *testing.T, p models.Principal) string {
	t.Helper()
	token, err := e.auth.Issue(p)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, req)
	return w
}

func createBody() map[string]interface{} {
	return map[string]interface{}{
		"pickup_address":      "MG Road",
		"pickup_lat":          12.9716,
		"pickup_lng":          77.5946,
		"destination_address": "Koramangala",
		"destination_lat":     12.9352,
		"destination_lng":     77.6245,
		"vehicle_class":       "economy",
	}
}

func TestCreateRideRequiresAuth(t *testing.T) {
	e := newTestEnv(t)
	if w := e.do(t, http.MethodPost, "/api/v1/rides", "", createBody()); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestCreateRideRiderOnly(t *testing.T) {
	e := newTestEnv(t)
	driverTok := e.token(t, models.Principal{UserID: "d1", Role: models.RoleDriver})
	if w := e.do(t, http.MethodPost, "/api/v1/rides", driverTok, createBody()); w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestCreateRideComputesEstimates(t *testing.T) {
	e := newTestEnv(t)
	tok := e.token(t, models.Principal{UserID: "r1", Role: models.RoleRider})
	w := e.do(t, http.MethodPost, "/api/v1/rides", tok, createBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}
	var got models.Ride
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusPending || got.ID == "" {
		t.Fatalf("unexpected ride %+v", got)
	}
	if got.DistanceKm < 5.17 || got.DistanceKm > 5.20 {
		t.Fatalf("distance = %f", got.DistanceKm)
	}
	if got.EstimatedFare < 101 || got.EstimatedFare > 103 {
		t.Fatalf("fare = %f", got.EstimatedFare)
	}
	e.coord.Wait()
}

func TestAcceptConflictMapsTo409(t *testing.T) {
	e := newTestEnv(t)
	riderTok := e.token(t, models.Principal{UserID: "r1", Role: models.RoleRider})
	w := e.do(t, http.MethodPost, "/api/v1/rides", riderTok, createBody())
	var created models.Ride
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	e.coord.Wait()

	d1 := e.token(t, models.Principal{UserID: "d1", Role: models.RoleDriver})
	d2 := e.token(t, models.Principal{UserID: "d2", Role: models.RoleDriver})
	accept := map[string]interface{}{"status": "accepted"}

	if w := e.do(t, http.MethodPatch, "/api/v1/rides/"+created.ID, d1, accept); w.Code != http.StatusOK {
		t.Fatalf("first accept = %d, body=%s", w.Code, w.Body.String())
	}
	if w := e.do(t, http.MethodPatch, "/api/v1/rides/"+created.ID, d2, accept); w.Code != http.StatusConflict {
		t.Fatalf("second accept = %d, want 409", w.Code)
	}
	e.coord.Wait()
}

func TestRateValidation(t *testing.T) {
	e := newTestEnv(t)
	riderTok := e.token(t, models.Principal{UserID: "r1", Role: models.RoleRider})
	w := e.do(t, http.MethodPost, "/api/v1/rides", riderTok, createBody())
	var created models.Ride
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	e.coord.Wait()

	bad := map[string]interface{}{"rating": 9}
	if w := e.do(t, http.MethodPost, "/api/v1/rides/"+created.ID+"/rate", riderTok, bad); w.Code != http.StatusBadRequest {
		t.Fatalf("rating 9 = %d, want 400", w.Code)
	}
}

func TestCancelRide(t *testing.T) {
	e := newTestEnv(t)
	riderTok := e.token(t, models.Principal{UserID: "r1", Role: models.RoleRider})
	w := e.do(t, http.MethodPost, "/api/v1/rides", riderTok, createBody())
	var created models.Ride
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	e.coord.Wait()

	if w := e.do(t, http.MethodDelete, "/api/v1/rides/"+created.ID, riderTok, nil); w.Code != http.StatusNoContent {
		t.Fatalf("cancel = %d", w.Code)
	}
	w = e.do(t, http.MethodGet, "/api/v1/rides/"+created.ID, riderTok, nil)
	var got models.Ride
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Status != models.StatusCancelled {
		t.Fatalf("status = %s", got.Status)
	}
	e.coord.Wait()
}

func TestUnknownRideIs404(t *testing.T) {
	e := newTestEnv(t)
	tok := e.token(t, models.Principal{UserID: "r1", Role: models.RoleRider})
	if w := e.do(t, http.MethodGet, "/api/v1/rides/nope", tok, nil); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestAvailableRidesDriverOnly(t *testing.T) {
	e := newTestEnv(t)
	tok := e.token(t, models.Principal{UserID: "r1", Role: models.RoleRider})
	if w := e.do(t, http.MethodGet, "/api/v1/rides/available", tok, nil); w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestWebSocketEcho(t *testing.T) {
	e := newTestEnv(t)
	srv := httptest.NewServer(e.server)
	defer srv.Close()

	tok := e.token(t, models.Principal{UserID: "r1", Role: models.RoleRider})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + tok
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.MessageEvent
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatal(err)
	}
	if got.Type != models.EventMessage || got.Data != "hello" {
		t.Fatalf("echo = %+v", got)
	}
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	e := newTestEnv(t)
	srv := httptest.NewServer(e.server)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("resp = %+v", resp)
	}
}
