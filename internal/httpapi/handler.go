package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/Hamza-Xoho/digital-surveyor/internal/db"
	"github.com/Hamza-Xoho/digital-surveyor/internal/domain"
	"github.com/Hamza-Xoho/digital-surveyor/internal/metrics"
	"github.com/Hamza-Xoho/digital-surveyor/internal/sqlcgen"
	"github.com/Hamza-Xoho/digital-surveyor/internal/view"
)

const (
	requestTimeout = 15 * time.Second
	// Assessments run the whole backend pipeline and routinely take tens of seconds.
	assessTimeout = 2 * time.Minute
)

// ViewService is the interactive assessment view.
type ViewService interface {
	Snapshot() view.Snapshot
	Submit(ctx context.Context, raw string) (view.Snapshot, error)
	Enter(ctx context.Context, raw string) (view.Snapshot, bool, error)
	DismissError(ctx context.Context) (view.Snapshot, error)
	ToggleVehicle(class string) (view.Snapshot, error)
	ClearSelection() view.Snapshot
	UpdateNotes(ctx context.Context, notes string) (view.Snapshot, error)
}

type SessionService interface {
	IsLoggedIn() bool
	IsValid(token string) bool
	Expiry() (time.Time, bool)
	Set(token string) error
	Clear() error
}

type VehicleCatalogue interface {
	List() []domain.VehicleProfile
	Refresh(ctx context.Context) error
	RefreshedAt() time.Time
}

type HistoryQueries interface {
	ListRecentAssessments(ctx context.Context, arg sqlcgen.ListRecentAssessmentsParams) ([]sqlcgen.AssessmentSnapshot, error)
	GetAssessmentSnapshot(ctx context.Context, id string) (sqlcgen.AssessmentSnapshot, error)
}

// Deps wires the handler. Every field is optional; routes backed by a missing
// dependency answer 503.
type Deps struct {
	Pool      *db.Pool
	History   HistoryQueries
	View      ViewService
	Session   SessionService
	Catalogue VehicleCatalogue
	Metrics   *metrics.Metrics
	Feed      http.Handler
	StaticDir string
}

type Handler struct {
	log       zerolog.Logger
	pool      *db.Pool
	history   HistoryQueries
	view      ViewService
	session   SessionService
	catalogue VehicleCatalogue
	metrics   *metrics.Metrics
	feed      http.Handler
	staticDir string
}

func NewHandler(log zerolog.Logger, deps Deps) *Handler {
	h := &Handler{
		log:       log,
		pool:      deps.Pool,
		history:   deps.History,
		view:      deps.View,
		session:   deps.Session,
		catalogue: deps.Catalogue,
		metrics:   deps.Metrics,
		feed:      deps.Feed,
		staticDir: deps.StaticDir,
	}
	if h.history == nil && deps.Pool != nil {
		h.history = deps.Pool.Queries()
	}
	return h
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.accessLog)

	// Long-lived: the map command stream.
	r.Get("/ws", h.handleFeed)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		// Health
		r.Get("/healthz", h.handleHealthz)
		r.Get("/readyz", h.handleReadyZ)
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	})

	// API
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Route("/view", func(r chi.Router) {
				r.With(middleware.Timeout(assessTimeout)).Post("/submit", h.handleViewSubmit)
				r.With(middleware.Timeout(assessTimeout)).Post("/enter", h.handleViewEnter)

				r.Group(func(r chi.Router) {
					r.Use(middleware.Timeout(requestTimeout))
					r.Get("/", h.handleGetView)
					r.Post("/selection", h.handleViewSelection)
					r.Delete("/error", h.handleDismissError)
					r.Patch("/notes", h.handleViewNotes)
				})
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(requestTimeout))

				r.Get("/vehicles", h.handleListVehicles)
				r.Get("/postcodes/format", h.handleFormatPostcode)

				r.Route("/session", func(r chi.Router) {
					r.Get("/", h.handleGetSession)
					r.Put("/", h.handlePutSession)
					r.Delete("/", h.handleDeleteSession)
				})

				r.Route("/history", func(r chi.Router) {
					r.Get("/", h.handleListHistory)
					r.Get("/{id}", h.handleGetHistory)
				})
			})
		})
	})

	if h.staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(h.staticDir)))
	}

	return r
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		h.metrics.ObserveHTTPRequest(r.Method, routePattern(r), ww.Status(), elapsed)
		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", elapsed.Milliseconds()).
			Msg("http_request")
	})
}

// routePattern keeps metric label cardinality bounded by using the matched chi pattern.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

// parseLimitParam clamps to ceiling and falls back to fallback when value is empty.
func parseLimitParam(value string, fallback, ceiling int) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.New("invalid value")
	}
	if parsed <= 0 {
		return 0, errors.New("must be positive")
	}
	if parsed > ceiling {
		parsed = ceiling
	}
	return parsed, nil
}

func isInvalidUUID(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "22P02"
	}
	return false
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleReadyZ reports ready once the view is wired. The database is optional; when
// configured it must answer a ping.
func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.view == nil {
		h.writeError(w, http.StatusServiceUnavailable, "view_unavailable", "view not configured", nil)
		return
	}

	if h.pool != nil {
		if err := h.pool.Ping(ctx); err != nil {
			h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not ready", map[string]any{"error": err.Error()})
			return
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true, "history": h.history != nil})
}

func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		h.writeError(w, http.StatusServiceUnavailable, "feed_unavailable", "map feed not configured", nil)
		return
	}
	h.feed.ServeHTTP(w, r)
}
