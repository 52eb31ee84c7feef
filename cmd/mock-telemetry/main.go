package main

import (
	"crypto/subtle"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kx0101/sessioncheck/internal/models"
	"github.com/kx0101/sessioncheck/internal/sessiongen"
)

func main() {
	port := flag.Int("port", 8090, "Port to run the mock telemetry API on")
	count := flag.Int("count", 50, "Number of sessions to serve")
	seed := flag.Uint64("seed", 1, "Random seed for the generated sessions")
	user := flag.String("user", "demo", "Username accepted by /v1/auth/token")
	password := flag.String("password", "demo", "Password accepted by /v1/auth/token")
	flag.Parse()

	h := newHandlers(sessiongen.New(*seed, time.Now()).Generate(*count), *user, *password)

	addr := fmt.Sprintf("127.0.0.1:%d", *port)
	fmt.Printf("Mock telemetry API serving %d sessions on http://%s/\n", *count, addr)

	if err := http.ListenAndServe(addr, h.routes()); err != nil {
		log.Fatal(err)
	}
}

type Handlers struct {
	sessions []models.Session
	user     string
	password string
	token    string
}

func newHandlers(sessions []models.Session, user, password string) *Handlers {
	return &Handlers{
		sessions: sessions,
		user:     user,
		password: password,
		token:    uuid.New().String(),
	}
}

func (h *Handlers) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/token", h.tokenHandler)
	mux.HandleFunc("GET /v1/sessions", h.authorized(h.listHandler))
	mux.HandleFunc("GET /v1/sessions/{id}", h.authorized(h.getHandler))

	return mux
}

func (h *Handlers) tokenHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Username != h.user || req.Password != h.password {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	writeJSON(w, map[string]string{"token": h.token})
}

func (h *Handlers) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}

func (h *Handlers) listHandler(w http.ResponseWriter, r *http.Request) {
	app := strings.ToLower(r.URL.Query().Get("app"))
	device := strings.ToLower(r.URL.Query().Get("device"))

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = len(h.sessions)
	}

	matched := make([]models.Session, 0, limit)
	for _, s := range h.sessions {
		if len(matched) == limit {
			break
		}

		if app != "" && !containsFold(s, app, "appName", "packageName") {
			continue
		}

		if device != "" && !containsFold(s, device, "deviceModel", "manufacturer") {
			continue
		}

		matched = append(matched, s)
	}

	writeJSON(w, map[string]any{"sessions": matched})
}

func (h *Handlers) getHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	for _, s := range h.sessions {
		if s.ID() == id {
			writeJSON(w, s)
			return
		}
	}

	http.Error(w, "Session not found", http.StatusNotFound)
}

func containsFold(s models.Session, needle string, keys ...string) bool {
	for _, key := range keys {
		if v, ok := s[key].(string); ok && strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}

	return false
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}
