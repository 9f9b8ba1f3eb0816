// Package server exposes page analysis over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"fc-troll-detector/internal/cache"
	"fc-troll-detector/internal/config"
	"fc-troll-detector/internal/forum"
	"fc-troll-detector/internal/metrics"
	"fc-troll-detector/internal/model"
	"fc-troll-detector/internal/session"
	"fc-troll-detector/internal/trust"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// live is the configuration new sessions are created from.
type live struct {
	cfg    config.Config
	client *forum.Client
}

// Server creates sessions on demand and keeps them in a registry.
type Server struct {
	current   atomic.Pointer[live]
	store     cache.Store
	persister trust.Persister
	sessions  *session.Registry
	gatherer  prometheus.Gatherer
}

func New(cfg config.Config, store cache.Store, persister trust.Persister, sessions *session.Registry, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{store: store, persister: persister, sessions: sessions, gatherer: gatherer}
	s.SetConfig(cfg)
	return s
}

// SetConfig swaps the configuration used by sessions created from now
// on. Existing sessions keep the snapshot they started with.
func (s *Server) SetConfig(cfg config.Config) {
	s.current.Store(&live{
		cfg:    cfg,
		client: forum.NewClient(cfg.Forum.BaseURL, cfg.Forum.UserAgent, cfg.ForumTimeout()),
	})
}

// Config returns the live configuration.
func (s *Server) Config() config.Config { return s.current.Load().cfg }

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeText(w, http.StatusOK, "ok") })
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/annotate", s.annotate)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", s.getSession)
		r.Get("/results", s.getResults)
		r.Post("/trust/{username}", s.toggleTrust)
	})
	return r
}

// TrustAction is the path trust buttons of a session post to.
func TrustAction(sessionID, username string) string {
	return "/sessions/" + url.PathEscape(sessionID) + "/trust/" + url.PathEscape(username)
}

func (s *Server) annotate(w http.ResponseWriter, r *http.Request) {
	l := s.current.Load()
	target := strings.TrimSpace(r.URL.Query().Get("url"))
	if target == "" {
		writeText(w, http.StatusBadRequest, "missing url")
		return
	}
	if !strings.HasPrefix(target, l.client.BaseURL()+"/") {
		writeText(w, http.StatusBadRequest, "url must be a forum page under "+l.client.BaseURL())
		return
	}
	mode, err := session.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	p, err := session.LoadPage(r.Context(), l.client, target, "")
	if err != nil {
		slog.Warn("server: load page failed", "url", target, "error", err)
		writeText(w, http.StatusBadGateway, "could not load page")
		return
	}
	sess := session.New(p, mode, session.Deps{
		Config:      l.cfg,
		Client:      l.client,
		Store:       s.store,
		Persister:   s.persister,
		TrustAction: TrustAction,
	})
	if _, err := sess.Analyze(r.Context(), force); err != nil {
		switch {
		case errors.Is(err, session.ErrAutoAnalyzeOff):
			w.Header().Set("X-Analysis", "disabled")
		case errors.Is(err, session.ErrUnsupported):
			writeText(w, http.StatusUnprocessableEntity, err.Error())
			return
		default:
			writeText(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	s.sessions.Put(sess)
	w.Header().Set("X-Session-ID", sess.ID)
	s.writeHTML(w, sess)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeText(w, http.StatusNotFound, "unknown or expired session")
	}
	return sess, ok
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.lookup(w, r); ok {
		s.writeHTML(w, sess)
	}
}

func (s *Server) getResults(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, struct {
		ID      string             `json:"id"`
		URL     string             `json:"url"`
		Mode    session.Mode       `json:"mode"`
		Created time.Time          `json:"created"`
		Results []model.Assessment `json:"results"`
	}{sess.ID, sess.URL(), sess.Mode, sess.Created, sess.Results()})
}

func (s *Server) toggleTrust(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	username := chi.URLParam(r, "username")
	if u, err := url.PathUnescape(username); err == nil {
		username = u
	}
	trusted, err := sess.ToggleTrust(r.Context(), username)
	if err != nil {
		slog.Error("server: toggle trust failed", "session", sess.ID, "user", username, "error", err)
		writeText(w, http.StatusInternalServerError, "could not update trusted users")
		return
	}
	w.Header().Set("X-Session-ID", sess.ID)
	w.Header().Set("X-Trusted", strconv.FormatBool(trusted))
	s.writeHTML(w, sess)
}

func (s *Server) writeHTML(w http.ResponseWriter, sess *session.Session) {
	html, err := sess.HTML()
	if err != nil {
		writeText(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg + "\n"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("server: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// NotifyConfigUpdated handles a CONFIG_UPDATED event: cfg becomes the
// snapshot for new sessions.
func (s *Server) NotifyConfigUpdated(cfg config.Config) {
	s.SetConfig(cfg)
	metrics.ConfigReloads.Inc()
	slog.Info("server: configuration updated", "type", "CONFIG_UPDATED")
}
