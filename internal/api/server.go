// Package api is the local bridge server: it exposes the processing
// pipeline over HTTP and keeps the one-shot query-parameter handoff
// channel of the original page-load flow.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/pindapp/pind/internal/domain"
	"github.com/pindapp/pind/internal/logging"
	"github.com/pindapp/pind/internal/mapview"
	"github.com/pindapp/pind/internal/session"
	"github.com/pindapp/pind/internal/view"
)

// Default viewport used when the caller does not say how big its map is.
const (
	defaultViewportW = 1280
	defaultViewportH = 720
)

// Server bridges HTTP requests to the controller and session store.
type Server struct {
	ctrl     *view.Controller
	sessions *session.Store
	addr     string
}

// New creates a bridge server.
func New(ctrl *view.Controller, sessions *session.Store, addr string) *Server {
	return &Server{ctrl: ctrl, sessions: sessions, addr: addr}
}

// Run starts the server and blocks.
func (s *Server) Run() error {
	logging.Info().Str("addr", s.addr).Msg("bridge server listening")
	return http.ListenAndServe(s.addr, s.Routes())
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))

	r.Get("/", s.index)
	r.Get("/health", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/process", s.process)
		r.Get("/history", s.history)
		r.Post("/history/refresh", s.refreshHistory)
		r.Post("/history/{id}/check", s.checkHistory)
		r.Get("/visible", s.visible)
		r.Get("/select", s.getSelection)
		r.Post("/select", s.setSelection)
		r.Delete("/select", s.clearSelection)
		r.Get("/session", s.sessionInfo)
		r.Post("/login", s.login)
		r.Post("/register", s.register)
		r.Post("/logout", s.logout)
		r.Post("/error/clear", s.clearError)
	})

	return r
}

// index consumes the one-shot handoff parameters and strips them with a
// redirect so a reload cannot replay them. Malformed values are dropped
// silently.
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	consumed := false

	if s.sessions.ConsumeHandoff(params) {
		consumed = true
	}

	if locParam := params.Get("locations"); locParam != "" {
		var payload struct {
			Places []domain.RawPlace `json:"places"`
		}
		if err := json.Unmarshal([]byte(locParam), &payload); err == nil && payload.Places != nil {
			s.ctrl.InjectLocations(payload.Places)
		} else {
			logging.Warn().Msg("ignoring malformed locations handoff")
		}
		consumed = true
	}

	if consumed || params.Get("token") != "" || params.Get("user_info") != "" {
		http.Redirect(w, r, r.URL.Path, http.StatusFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"service": "pind"})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ProcessRequest is the request body for submitting a video URL.
type ProcessRequest struct {
	URL string `json:"url"`
}

// ProcessResponse carries the resulting place list and, when the call
// surfaced one, the display message.
type ProcessResponse struct {
	Places []domain.Place `json:"places"`
	Error  string         `json:"error,omitempty"`
}

func (s *Server) process(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	// Fetch errors are part of the page state, not an HTTP failure of
	// the bridge itself.
	_ = s.ctrl.ProcessURL(r.Context(), req.URL)

	writeJSON(w, http.StatusOK, ProcessResponse{
		Places: s.ctrl.Locations(),
		Error:  s.ctrl.Err(),
	})
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": s.ctrl.History(),
		"error":   s.ctrl.Err(),
	})
}

func (s *Server) refreshHistory(w http.ResponseWriter, r *http.Request) {
	_ = s.ctrl.RefreshHistory(r.Context())
	s.history(w, r)
}

func (s *Server) checkHistory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Checked bool `json:"checked"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.ctrl.Toggle(chi.URLParam(r, "id"), req.Checked)
	writeJSON(w, http.StatusOK, map[string]any{"entries": s.ctrl.History()})
}

// VisibleResponse is everything a map widget needs for one paint.
type VisibleResponse struct {
	Markers  []mapview.Marker          `json:"markers"`
	Viewport *mapview.Viewport         `json:"viewport,omitempty"`
	GeoJSON  mapview.FeatureCollection `json:"geojson"`
	Empty    string                    `json:"empty_state,omitempty"`
}

func (s *Server) visible(w http.ResponseWriter, r *http.Request) {
	width := queryInt(r, "w", defaultViewportW)
	height := queryInt(r, "h", defaultViewportH)

	visible := s.ctrl.VisibleLocations()
	markers := mapview.Markers(visible)
	resp := VisibleResponse{
		Markers: markers,
		GeoJSON: mapview.GeoJSON(markers),
	}

	if vp, err := mapview.FitBounds(visible, width, height); err == nil {
		resp.Viewport = &vp
	} else {
		resp.Empty = mapview.EmptyStateMessage
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getSelection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"selected": s.ctrl.Selected()})
}

func (s *Server) setSelection(w http.ResponseWriter, r *http.Request) {
	var p domain.Place
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.ctrl.Select(&p)
	writeJSON(w, http.StatusOK, map[string]any{"selected": s.ctrl.Selected()})
}

func (s *Server) clearSelection(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Select(nil)
	writeJSON(w, http.StatusOK, map[string]any{"selected": nil})
}

// SessionResponse describes the current authentication state.
type SessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *domain.User `json:"user,omitempty"`
	ExpiresAt     string       `json:"expires_at,omitempty"`
}

func (s *Server) sessionInfo(w http.ResponseWriter, r *http.Request) {
	resp := SessionResponse{Authenticated: s.sessions.IsAuthenticated()}
	if sess := s.sessions.Current(); sess != nil {
		user := sess.User
		resp.User = &user
		if exp := s.sessions.ExpiresAt(); !exp.IsZero() {
			resp.ExpiresAt = exp.UTC().Format("2006-01-02T15:04:05Z07:00")
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// CredentialsRequest is the body for login and register.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	s.authenticate(w, r, s.sessions.Login)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	s.authenticate(w, r, s.sessions.Register)
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, email, password string) (domain.Session, error)) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	if _, err := op(r.Context(), req.Email, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	_ = s.ctrl.RefreshHistory(r.Context())
	s.sessionInfo(w, r)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Logout()
	_ = s.ctrl.RefreshHistory(r.Context())
	s.sessionInfo(w, r)
}

func (s *Server) clearError(w http.ResponseWriter, r *http.Request) {
	s.ctrl.ClearError()
	writeJSON(w, http.StatusOK, map[string]string{})
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
