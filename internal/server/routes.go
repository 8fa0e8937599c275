// Package server exposes the relay hub over HTTP.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/BioHazard786/liveclass/internal/relay"
	"github.com/BioHazard786/liveclass/internal/wire"
)

// Options configures the HTTP surface.
type Options struct {
	// AllowedOrigins lists browser origins accepted on /ws. Empty or "*"
	// accepts any origin; requests without an Origin header always pass.
	AllowedOrigins []string

	// ReadLimit caps a single inbound frame in bytes.
	ReadLimit int64

	Logger *slog.Logger
}

// NewRouter registers the relay routes on a fresh router.
func NewRouter(hub *relay.Hub, opts Options) *mux.Router {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", healthCheckHandler).Methods(http.MethodGet)
	r.HandleFunc("/rooms", RoomsHandler(hub, opts.Logger)).Methods(http.MethodGet)
	r.HandleFunc("/ws", ServeWs(hub, opts))
	return r
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling relay is healthy."))
}

// RoomsHandler reports room occupancy as JSON.
func RoomsHandler(hub *relay.Hub, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, err := hub.Rooms(r.Context())
		if err != nil {
			log.Warn("rooms query failed", "error", err)
			http.Error(w, "relay unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(rooms); err != nil {
			log.Warn("failed to write rooms", "error", err)
		}
	}
}

// ServeWs upgrades the request and attaches a new relay client to the hub.
// The frame codec is chosen per connection with ?codec=json|msgpack.
func ServeWs(hub *relay.Hub, opts Options) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		codec, err := wire.CodecByName(r.URL.Query().Get("codec"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("failed to upgrade connection", "remote", r.RemoteAddr, "error", err)
			return
		}

		client := relay.NewClient(hub, conn, codec)
		hub.Register(client)

		go client.WritePump()
		go client.ReadPump(opts.ReadLimit)
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	allowAll := len(allowed) == 0
	hosts := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			allowAll = true
		}
		hosts[strings.TrimSuffix(strings.ToLower(origin), "/")] = true
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if allowAll || origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return hosts[strings.ToLower(u.Scheme+"://"+u.Host)]
	}
}
