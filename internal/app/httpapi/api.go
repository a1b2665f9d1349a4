// Package httpapi exposes the REST surface of the likes service and
// translates HTTP requests into service calls.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ridersalliance/petition-likes/internal/app/likes"
	"github.com/ridersalliance/petition-likes/internal/domain"
	"github.com/ridersalliance/petition-likes/internal/platform/metrics"
)

// ClientIDHeader carries the self-asserted opaque client token.
// http.Header.Get canonicalizes names, so any request casing matches.
const ClientIDHeader = "X-Client-Id"

// SchemaEnsurer guards storage access behind the lazy schema bootstrap.
type SchemaEnsurer interface {
	Ensure(ctx context.Context) error
}

// Options are the request-shaping knobs resolved from config at startup.
type Options struct {
	AllowedOrigins    string
	ClientIPHeader    string
	RetryAfterSeconds int
	// ExposeErrorDetail attaches raw error text to 500 bodies; only ever
	// enabled in local development.
	ExposeErrorDetail bool
}

// API bundles the HTTP handlers around the like service.
type API struct {
	service domain.LikeService
	schema  SchemaEnsurer
	cors    CORSPolicy
	opts    Options
	logger  *slog.Logger
}

func New(service domain.LikeService, schema SchemaEnsurer, opts Options, logger *slog.Logger) *API {
	if opts.ClientIPHeader == "" {
		opts.ClientIPHeader = "X-Forwarded-For"
	}
	return &API{
		service: service,
		schema:  schema,
		cors:    NewCORSPolicy(opts.AllowedOrigins),
		opts:    opts,
		logger:  logger,
	}
}

func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("/likes/", a.handleLikes)
	mux.HandleFunc("/likes", a.handleLikes)
	mux.HandleFunc("/healthz", a.handleHealthz)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type countResponse struct {
	PetitionSlug string `json:"petition_slug"`
	Likes        int64  `json:"likes"`
}

type likeResponse struct {
	countResponse
	Liked bool `json:"liked"`
}

type errorResponse struct {
	Error        string `json:"error"`
	PetitionSlug string `json:"petition_slug,omitempty"`
	Likes        *int64 `json:"likes,omitempty"`
	Detail       string `json:"detail,omitempty"`
}

func (a *API) handleLikes(w http.ResponseWriter, r *http.Request) {
	applyCORS(w.Header(), a.cors.Resolve(r.Header.Get("Origin")))

	// Preflights never touch storage.
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if a.schema != nil {
		if err := a.schema.Ensure(r.Context()); err != nil {
			metrics.ObserveLikeRequest(r.Method, "error")
			a.logger.Error("schema bootstrap failed", "err", err)
			a.respondInternalError(w, err)
			return
		}
	}

	rawSlug := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/likes"), "/")

	switch r.Method {
	case http.MethodGet:
		a.getCount(w, r, rawSlug)
	case http.MethodPost:
		a.postLike(w, r, rawSlug)
	default:
		metrics.ObserveLikeRequest(r.Method, "method_not_allowed")
		w.Header().Set("Allow", "GET,POST,OPTIONS")
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
	}
}

func (a *API) getCount(w http.ResponseWriter, r *http.Request, rawSlug string) {
	slug, total, err := a.service.Count(r.Context(), rawSlug)
	if err != nil {
		if errors.Is(err, likes.ErrInvalidSlug) {
			metrics.ObserveLikeRequest(r.Method, "invalid")
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationMessage(err)})
			return
		}
		metrics.ObserveLikeRequest(r.Method, "error")
		a.logger.Error("count read failed", "err", err, "slug", rawSlug)
		a.respondInternalError(w, err)
		return
	}

	metrics.ObserveLikeRequest(r.Method, "ok")
	writeJSON(w, http.StatusOK, countResponse{PetitionSlug: string(slug), Likes: total})
}

func (a *API) postLike(w http.ResponseWriter, r *http.Request, rawSlug string) {
	clientToken := r.Header.Get(ClientIDHeader)
	clientIP := a.clientIP(r)

	result, err := a.service.Like(r.Context(), rawSlug, clientToken, clientIP)
	switch {
	case err == nil:
		status := "duplicate"
		if result.Liked {
			status = "accepted"
			metrics.IncLikeRecorded()
			a.logger.Info("like recorded", "slug", result.PetitionSlug, "likes", result.Likes)
		}
		metrics.ObserveLikeRequest(r.Method, status)
		writeJSON(w, http.StatusOK, likeResponse{
			countResponse: countResponse{PetitionSlug: string(result.PetitionSlug), Likes: result.Likes},
			Liked:         result.Liked,
		})
	case errors.Is(err, likes.ErrInvalidSlug), errors.Is(err, likes.ErrInvalidClientID):
		metrics.ObserveLikeRequest(r.Method, "invalid")
		a.logger.Warn("rejected like request", "err", err, "slug", rawSlug)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationMessage(err)})
	case errors.Is(err, likes.ErrRateLimited):
		metrics.ObserveLikeRequest(r.Method, "rate_limited")
		a.logger.Warn("like throttled", "slug", result.PetitionSlug)
		w.Header().Set("Retry-After", strconv.Itoa(a.opts.RetryAfterSeconds))
		total := result.Likes
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Error:        "Rate limit exceeded",
			PetitionSlug: string(result.PetitionSlug),
			Likes:        &total,
		})
	default:
		metrics.ObserveLikeRequest(r.Method, "error")
		a.logger.Error("like failed", "err", err, "slug", rawSlug)
		a.respondInternalError(w, err)
	}
}

// clientIP trusts the configured edge header only; the raw socket address
// belongs to the proxy, not the caller.
func (a *API) clientIP(r *http.Request) string {
	value := r.Header.Get(a.opts.ClientIPHeader)
	if value == "" {
		return likes.UnknownIP
	}
	// Edge proxies append hops; the first entry is the client.
	first := strings.TrimSpace(strings.Split(value, ",")[0])
	if first == "" {
		return likes.UnknownIP
	}
	return first
}

func (a *API) respondInternalError(w http.ResponseWriter, err error) {
	body := errorResponse{Error: "Internal server error"}
	if a.opts.ExposeErrorDetail {
		body.Detail = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, body)
}

// validationMessage keeps response bodies stable for clients regardless
// of how the underlying sentinel errors are worded.
func validationMessage(err error) string {
	if errors.Is(err, likes.ErrInvalidClientID) {
		return "Missing or invalid client identifier"
	}
	return "Invalid petition slug"
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
