package httpapp

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/alphabot-ai/inkwell/internal/auth"
	"github.com/alphabot-ai/inkwell/internal/config"
	"github.com/alphabot-ai/inkwell/internal/rate"
	"github.com/alphabot-ai/inkwell/internal/store"

	_ "github.com/alphabot-ai/inkwell/docs" // swagger docs
)

type Server struct {
	store   store.Store
	auth    *auth.Service
	limiter rate.Limiter
	cfg     config.Config
	log     zerolog.Logger
	router  chi.Router
}

func NewServer(st store.Store, authSvc *auth.Service, limiter rate.Limiter, cfg config.Config, log zerolog.Logger) *Server {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.MaxPageSize < cfg.PageSize {
		cfg.MaxPageSize = cfg.PageSize
	}
	s := &Server{store: st, auth: authSvc, limiter: limiter, cfg: cfg, log: log}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.StripSlashes)
	r.Use(s.metricsMiddleware, s.requestIDMiddleware, s.panicRecoveryMiddleware, s.loggingMiddleware)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) { notFound(w) })
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) { methodNotAllowed(w) })

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	r.Get("/robots.txt", s.serveRobotsTxt)
	r.Get("/sitemap.xml", s.serveSitemap)

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", s.handleVersion)

		r.Post("/token", s.handleToken)
		r.Post("/token/refresh", s.handleTokenRefresh)
		r.Post("/logout", s.handleLogout)
		r.Post("/register", s.handleRegister)

		r.Route("/users", func(r chi.Router) {
			r.Get("/me", s.handleGetMe)
			r.Put("/me", s.handleUpdateMe)
			r.Patch("/me", s.handleUpdateMe)
			r.Get("/{id}", s.handleGetUser)
			r.Get("/{id}/blogs", s.handleUserBlogs)
			r.Get("/{id}/followers", s.handleUserFollowers)
			r.Get("/{id}/following", s.handleUserFollowing)
			r.Post("/{id}/follow", s.handleToggleFollow)
		})

		r.Route("/blogs", func(r chi.Router) {
			r.Get("/", s.handleListBlogs)
			r.Post("/", s.handleCreateBlog)
			r.Get("/{slug}", s.handleGetBlog)
			r.Put("/{slug}", s.handleUpdateBlog)
			r.Patch("/{slug}", s.handleUpdateBlog)
			r.Delete("/{slug}", s.handleDeleteBlog)
			r.Get("/{slug}/analytics", s.handleBlogAnalytics)
			r.Get("/{slug}/comments", s.handleListBlogComments)
			r.Post("/{slug}/comments", s.handleCreateComment)
		})

		r.Route("/comments/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetComment)
			r.Put("/", s.handleUpdateComment)
			r.Patch("/", s.handleUpdateComment)
			r.Delete("/", s.handleDeleteComment)
		})
		r.Post("/admin/comments/{id}/approval", s.handleCommentApproval)

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.handleListCategories)
			r.Post("/", s.handleCreateCategory)
			r.Get("/{slug}", s.handleGetCategory)
			r.Put("/{slug}", s.handleUpdateCategory)
			r.Patch("/{slug}", s.handleUpdateCategory)
			r.Delete("/{slug}", s.handleDeleteCategory)
		})

		r.Route("/tags", func(r chi.Router) {
			r.Get("/", s.handleListTags)
			r.Post("/", s.handleCreateTag)
			r.Get("/{slug}", s.handleGetTag)
			r.Put("/{slug}", s.handleUpdateTag)
			r.Patch("/{slug}", s.handleUpdateTag)
			r.Delete("/{slug}", s.handleDeleteTag)
		})

		r.Route("/follows", func(r chi.Router) {
			r.Get("/", s.handleListFollows)
			r.Post("/", s.handleCreateFollow)
			r.Get("/{id}", s.handleGetFollow)
			r.Delete("/{id}", s.handleDeleteFollow)
		})

		r.Get("/search", s.handleSearch)
	})
	return r
}

// handleVersion godoc
//
//	@Summary	Build information
//	@Tags		Meta
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Router		/api/version/ [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    s.cfg.Version,
		"commit":     s.cfg.Commit,
		"build_time": s.cfg.BuildTime,
	})
}

// handleHealth godoc
//
//	@Summary	Liveness and database check
//	@Tags		Meta
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Failure	503	{object}	map[string]string
//	@Router		/healthz [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("health check failed")
		writeError(w, http.StatusServiceUnavailable, errors.New("database unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// allowRateLimit applies limit per minute to the client IP and, when known,
// to the authenticated user.
func (s *Server) allowRateLimit(w http.ResponseWriter, r *http.Request, action string, limit int, userID int64) bool {
	if limit <= 0 {
		return true
	}
	ipKey := fmt.Sprintf("%s:ip:%s", action, s.clientIP(r))
	if ok, retry := s.limiter.Allow(ipKey, limit, time.Minute); !ok {
		rateLimitRejects.WithLabelValues(action).Inc()
		writeRateLimit(w, retry)
		return false
	}
	if userID > 0 {
		userKey := fmt.Sprintf("%s:user:%d", action, userID)
		if ok, retry := s.limiter.Allow(userKey, limit, time.Minute); !ok {
			rateLimitRejects.WithLabelValues(action).Inc()
			writeRateLimit(w, retry)
			return false
		}
	}
	return true
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}

// optionalAuth returns the caller, or nil for an anonymous request. A bearer
// that is present but invalid or expired is answered with 401.
func (s *Server) optionalAuth(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	if bearerToken(r) == "" {
		return nil, true
	}
	p, ok := s.requireAuth(w, r)
	if !ok {
		return nil, false
	}
	return &p, true
}

func (s *Server) requireAuth(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	bearer := bearerToken(r)
	if bearer == "" {
		writeError(w, http.StatusUnauthorized, errors.New("authentication credentials were not provided"))
		return auth.Principal{}, false
	}
	p, err := s.auth.Authenticate(r.Context(), bearer)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, err)
			return auth.Principal{}, false
		}
		s.internalError(w, r, err)
		return auth.Principal{}, false
	}
	return p, true
}

// hasAdminSecret reports whether the request carries the configured
// X-Admin-Secret header.
func (s *Server) hasAdminSecret(r *http.Request) bool {
	given := r.Header.Get("X-Admin-Secret")
	if given == "" || s.cfg.AdminSecret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(s.cfg.AdminSecret)) == 1
}

func (s *Server) clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// writeStoreError maps store sentinels to responses; anything else is a 500.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		notFound(w)
	case errors.Is(err, store.ErrDuplicateUsername):
		writeError(w, http.StatusConflict, errors.New("a user with that username already exists"))
	case errors.Is(err, store.ErrDuplicateName):
		writeError(w, http.StatusConflict, errors.New("an entry with this name already exists"))
	case errors.Is(err, store.ErrDuplicateSlug):
		writeError(w, http.StatusConflict, errors.New("an entry with this slug already exists"))
	case errors.Is(err, store.ErrDuplicateFollow):
		writeError(w, http.StatusConflict, errors.New("you are already following this user"))
	case errors.Is(err, store.ErrInvalidReference):
		writeError(w, http.StatusBadRequest, errors.New("referenced object does not exist"))
	default:
		s.internalError(w, r, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error().Err(err).
		Str("request_id", requestIDFrom(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("request failed")
	writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
}

func readJSON(body io.ReadCloser, dest any) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

// writeValidation reports per-field input errors with status 400.
func writeValidation(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":  "invalid input",
		"fields": fields,
	})
}

func writeRateLimit(w http.ResponseWriter, retry time.Duration) {
	secs := int(retry.Seconds())
	if retry > 0 && secs == 0 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"error":       "rate limit exceeded",
		"retry_after": secs,
	})
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, errors.New("not found"))
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func forbidden(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusForbidden, errors.New(msg))
}

// pathID parses a numeric path parameter; ok is false when it is not a
// positive integer, in which case a 404 has been written.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		notFound(w)
		return 0, false
	}
	return id, true
}
