package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"netbridge/pkg/channel"
	"netbridge/pkg/storage"
	"netbridge/pkg/transport/registry"
)

// Server - HTTP сигналинг для WebRTC каналов плюс статусный API.
// Это внешняя по отношению к транспортному ядру обвязка: через нее
// браузерный клиент обменивается offer/answer, после чего пакеты идут
// уже мимо HTTP - по каналу данных.
type Server struct {
	channels *channel.ChannelManager
	registry *registry.Registry
	db       *storage.Storage
	mux      *http.ServeMux
}

func New(channels *channel.ChannelManager, reg *registry.Registry, db *storage.Storage) *Server {
	s := &Server{
		channels: channels,
		registry: reg,
		db:       db,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("/api/signal/offer", s.handleOffer)
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/servers", s.handleServers)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Start(addr string) error {
	log.Printf("Signaling server started at http://localhost%s", addr)
	return http.ListenAndServe(addr, s.mux)
}

// handleOffer принимает SDP offer и возвращает answer.
// Когда канал откроется, его бэкенд сам станет текущим транспортом.
func (s *Server) handleOffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var offer channel.Offer
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		http.Error(w, "invalid offer", http.StatusBadRequest)
		return
	}

	answer, err := s.channels.CreateAnswer(r.Context(), offer)
	if err != nil {
		log.Printf("Failed to create answer: %v", err)
		http.Error(w, "failed to create answer", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(answer)
}

// handleStatus отдает текущее состояние транспортного слоя
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	current := s.registry.Current()

	status := map[string]interface{}{
		"transport": current.Name(),
		"pending":   current.Poll(),
		"channels":  s.channels.GetActiveChannels(),
		"time":      time.Now().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// handleServers отдает список известных серверов из хранилища
func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		http.Error(w, "storage is not configured", http.StatusServiceUnavailable)
		return
	}

	servers, err := s.db.ListServers()
	if err != nil {
		log.Printf("Failed to list servers: %v", err)
		http.Error(w, "failed to list servers", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(servers)
}
