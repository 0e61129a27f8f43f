package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/roniherschmann/linktally/internal/config"
	"github.com/roniherschmann/linktally/internal/core"
	"github.com/roniherschmann/linktally/internal/metrics"
	"github.com/roniherschmann/linktally/internal/store"
)

type Router struct {
	cfg config.Config
	svc *core.Service
}

func NewRouter(cfg config.Config, svc *core.Service) http.Handler {
	r := chi.NewRouter()
	// Logging middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", dur).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}))

	api := &Router{cfg: cfg, svc: svc}

	// "heath" is the path deployed clients already probe.
	r.MethodFunc(http.MethodGet, "/heath", api.handleHeath)
	r.MethodFunc(http.MethodGet, "/healthz", api.handleHealth)
	r.MethodFunc(http.MethodGet, "/readyz", api.handleReady)

	// Metrics
	r.MethodFunc(http.MethodGet, "/metrics", metrics.Handler)

	r.MethodFunc(http.MethodGet, "/get-info", api.handleGetInfo)
	r.MethodFunc(http.MethodGet, "/compare/{word}/{hash}", api.handleCompare)
	r.MethodFunc(http.MethodPost, "/shorten", api.handleShorten)
	r.MethodFunc(http.MethodPost, "/store-visitor-id", api.handleStoreVisitor)

	// Redirect path
	r.MethodFunc(http.MethodGet, "/{shortId}", api.handleRedirect)

	return r
}

type shortenReq struct {
	OriginalURL string `json:"originalUrl"`
}

type shortenResp struct {
	ShortURL string `json:"shortUrl"`
}

type visitReq struct {
	VisitorID string `json:"visitorId"`
	ShortID   string `json:"shortId"`
	City      string `json:"city"`
}

type infoResp struct {
	Success bool              `json:"success"`
	URLData []store.ShortLink `json:"urlData"`
}

type successResp struct {
	Success bool `json:"success"`
}

type messageResp struct {
	Message string `json:"message"`
}

type errorResp struct {
	Error string `json:"error"`
}

func (rt *Router) handleShorten(w http.ResponseWriter, r *http.Request) {
	var req shortenReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, messageResp{Message: "invalid json"}, http.StatusBadRequest)
		return
	}
	link, err := rt.svc.Create(r.Context(), req.OriginalURL)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("create link")
		writeJSON(w, messageResp{Message: "could not create short url"}, http.StatusInternalServerError)
		return
	}
	writeJSON(w, shortenResp{
		ShortURL: strings.TrimRight(rt.cfg.ShortBaseURL, "/") + "/" + link.ShortID,
	}, http.StatusOK)
	metrics.Shortens.Inc()
}

// handleRedirect sends the visitor to the frontend, which fingerprints
// them and posts back to /store-visitor-id. No visit is recorded here.
func (rt *Router) handleRedirect(w http.ResponseWriter, r *http.Request) {
	shortID := chi.URLParam(r, "shortId")
	target, err := rt.svc.Target(r.Context(), shortID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			hlog.FromRequest(r).Error().Err(err).Str("short_id", shortID).Msg("resolve link")
		}
		writeJSON(w, messageResp{Message: "URL not found"}, http.StatusNotFound)
		return
	}
	metrics.Redirects.Inc()
	http.Redirect(w, r, frontendURL(rt.cfg.FrontendURL, shortID, target), http.StatusFound)
}

func (rt *Router) handleStoreVisitor(w http.ResponseWriter, r *http.Request) {
	var req visitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, messageResp{Message: "invalid json"}, http.StatusBadRequest)
		return
	}
	_, err := rt.svc.Attribute(r.Context(), req.ShortID, req.VisitorID, req.City)
	switch {
	case err == nil:
		writeJSON(w, successResp{Success: true}, http.StatusOK)
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, messageResp{Message: "URL not found"}, http.StatusNotFound)
	default:
		hlog.FromRequest(r).Error().Err(err).Str("short_id", req.ShortID).Msg("record visit")
		writeJSON(w, messageResp{Message: "could not record visit"}, http.StatusInternalServerError)
	}
}

func (rt *Router) handleGetInfo(w http.ResponseWriter, r *http.Request) {
	links, err := rt.svc.List(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("list links")
		writeJSON(w, messageResp{Message: "Error occured : No data found"}, http.StatusNotFound)
		return
	}
	writeJSON(w, infoResp{Success: true, URLData: links}, http.StatusOK)
}

func (rt *Router) handleCompare(w http.ResponseWriter, r *http.Request) {
	ok, err := core.CompareWord(pathParam(r, "word"), pathParam(r, "hash"))
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("compare hash")
		writeJSON(w, errorResp{Error: "Error comparing the word"}, http.StatusInternalServerError)
		return
	}
	writeJSON(w, successResp{Success: ok}, http.StatusOK)
}

func (rt *Router) handleHeath(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Server is running"))
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (rt *Router) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := rt.svc.Ping(r.Context()); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("store not ready")
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// pathParam returns the decoded value of a route parameter. chi matches on
// RawPath when the request set one (an escaped "/" inside a bcrypt hash),
// and on the already decoded Path otherwise.
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v
	}
	if d, err := url.PathUnescape(v); err == nil {
		return d
	}
	return v
}

func frontendURL(base, shortID, target string) string {
	return strings.TrimRight(base, "/") + "/?shortId=" + encodeURIComponent(shortID) +
		"&originalUrl=" + encodeURIComponent(target)
}

// encodeURIComponent escapes s the way browsers do for a query value:
// spaces become %20 and the marks !'()* stay literal.
func encodeURIComponent(s string) string {
	e := url.QueryEscape(s)
	e = strings.ReplaceAll(e, "+", "%20")
	for _, m := range []string{"!", "'", "(", ")", "*"} {
		e = strings.ReplaceAll(e, url.QueryEscape(m), m)
	}
	return e
}
