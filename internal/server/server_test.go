package server

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"netbridge/pkg/channel"
	"netbridge/pkg/storage"
	"netbridge/pkg/transport"
	"netbridge/pkg/transport/registry"
)

type stubTransport struct{}

func (s *stubTransport) Name() string { return "stub" }
func (s *stubTransport) Init() error  { return nil }
func (s *stubTransport) Shutdown()    {}
func (s *stubTransport) Poll() int    { return 3 }
func (s *stubTransport) Send(buf []byte, to *net.UDPAddr) (int, error) {
	return len(buf), nil
}
func (s *stubTransport) Recv(buf []byte) (int, *net.UDPAddr, error) {
	return 0, nil, nil
}

var _ transport.Transport = (*stubTransport)(nil)

func setupTestServer(t *testing.T) *Server {
	t.Helper()

	store, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	reg := registry.New(&stubTransport{})
	channels := channel.NewChannelManager(nil, reg)

	return New(channels, reg, store)
}

func TestStatusEndpoint(t *testing.T) {
	srv := setupTestServer(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var status map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}

	if status["transport"] != "stub" {
		t.Errorf("expected current transport name, got %v", status["transport"])
	}
	if status["pending"] != float64(3) {
		t.Errorf("expected pending=3 from Poll, got %v", status["pending"])
	}
}

func TestServersEndpoint(t *testing.T) {
	srv := setupTestServer(t)

	if err := srv.db.SaveServer(storage.Server{
		Address:   "10.0.0.1:27015",
		Name:      "lan",
		Transport: "udp",
		LastSeen:  time.Now(),
	}); err != nil {
		t.Fatalf("SaveServer failed: %v", err)
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/servers", nil)
	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var servers []storage.Server
	if err := json.NewDecoder(w.Body).Decode(&servers); err != nil {
		t.Fatalf("failed to decode servers: %v", err)
	}
	if len(servers) != 1 || servers[0].Address != "10.0.0.1:27015" {
		t.Errorf("unexpected server list: %v", servers)
	}
}

func TestOfferRejectsBadRequests(t *testing.T) {
	srv := setupTestServer(t)

	// Не-POST
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/signal/offer", nil)
	srv.Handler().ServeHTTP(w, r)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET, got %d", w.Code)
	}

	// Мусор вместо JSON
	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/api/signal/offer", strings.NewReader("not json"))
	srv.Handler().ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad JSON, got %d", w.Code)
	}
}
