package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inkwell-analytics/insight/internal/analytics"
	"github.com/inkwell-analytics/insight/internal/config"
	"github.com/inkwell-analytics/insight/internal/dashboard"
	"github.com/inkwell-analytics/insight/internal/database"
	"github.com/inkwell-analytics/insight/internal/geo"
	"github.com/inkwell-analytics/insight/internal/metrics"
	"github.com/inkwell-analytics/insight/internal/middleware"
	"github.com/inkwell-analytics/insight/internal/models"
	"github.com/inkwell-analytics/insight/internal/storage"
)

const (
	maxIngestBytes   = 10 << 20
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	DB      *database.PostgresDB
	Redis   *database.RedisDB
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Server wraps the HTTP handlers and the dashboard service.
type Server struct {
	dashboard *dashboard.Service
	store     storage.WorkItemStore
	db        *database.PostgresDB
	redis     *database.RedisDB
	geo       geo.Provider
	logger    *zap.Logger
	config    *config.Config
	metrics   *metrics.Metrics
}

// NewServer wires storage, caching, enrichment and the dashboard
// service. PostgreSQL and Redis are optional; without them the server
// runs on in-memory storage with caching disabled.
func NewServer(deps *Dependencies) *Server {
	var store storage.WorkItemStore
	if deps.DB != nil {
		pgStore := storage.NewPostgresWorkItemStore(deps.DB.Pool)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := pgStore.EnsureSchema(ctx)
		cancel()
		if err != nil {
			deps.Logger.Warn("schema setup failed, using in-memory storage", zap.Error(err))
			store = storage.NewInMemoryWorkItemStore()
		} else {
			store = pgStore
		}
	} else {
		store = storage.NewInMemoryWorkItemStore()
	}

	var cache *dashboard.Cache
	if deps.Redis != nil {
		cache = dashboard.NewCache(deps.Redis.Client, deps.Config.Cache.TTL, deps.Logger)
	}

	var geoProvider geo.Provider
	if deps.Config.Geo.Enabled {
		provider, err := geo.NewMaxMindProvider(deps.Config.Geo.DatabasePath)
		if err != nil {
			deps.Logger.Warn("geo enrichment disabled", zap.Error(err))
		} else {
			geoProvider = provider
		}
	}

	return &Server{
		dashboard: dashboard.NewService(store, cache, deps.Logger, deps.Metrics),
		store:     store,
		db:        deps.DB,
		redis:     deps.Redis,
		geo:       geoProvider,
		logger:    deps.Logger,
		config:    deps.Config,
		metrics:   deps.Metrics,
	}
}

// Dashboard exposes the dashboard service, for the cache warmer.
func (s *Server) Dashboard() *dashboard.Service {
	return s.dashboard
}

// Close releases server-owned resources.
func (s *Server) Close() {
	if s.geo != nil {
		if err := s.geo.Close(); err != nil {
			s.logger.Warn("failed to close geo provider", zap.Error(err))
		}
	}
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus metrics
	if s.config.Metrics.Enabled {
		mux.Handle(s.config.Metrics.Path, metrics.Handler())
	}

	// Dashboard pages
	mux.HandleFunc("/dashboard/overview", s.handleOverview)
	mux.HandleFunc("/dashboard/revenue", s.handleRevenue)
	mux.HandleFunc("/dashboard/customers", s.handleCustomers)
	mux.HandleFunc("/dashboard/quality", s.handleQuality)
	mux.HandleFunc("/dashboard/operations", s.handleOperations)
	mux.HandleFunc("/dashboard/operations/preview", s.handleOperationsPreview)
	mux.HandleFunc("/dashboard/operations/unassigned", s.handleListUnassigned)
	mux.HandleFunc("/dashboard/operations/late", s.handleListLate)
	mux.HandleFunc("/dashboard/filters", s.handleFilterOptions)

	// Ingest
	mux.HandleFunc("/workitems", s.handleWorkItems)
	mux.HandleFunc("/workitems/", s.handleWorkItemByID)

	recovery := middleware.NewRecoveryMiddleware(s.logger)
	logging := middleware.NewLoggingMiddleware(s.logger)
	rateLimit := middleware.NewRateLimitMiddleware(s.config.RateLimit, s.logger)
	rateLimit.SetMetrics(s.metrics)
	auth := middleware.NewAuthMiddleware(s.config.Auth, s.logger)

	return recovery.Handler(logging.Handler(rateLimit.Handler(auth.Handler(mux))))
}

// ---- Health ----

// handleHealth pings the connected backends. Fallback modes (in-memory
// storage, disabled cache) are healthy by definition; a configured
// backend that stops answering degrades the service.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	storageState := "memory"
	cacheState := "disabled"

	if s.db != nil {
		if err := s.db.Health(ctx); err != nil {
			status = "degraded"
			storageState = "unreachable"
		} else {
			storageState = "postgres"
		}
	}
	if s.redis != nil {
		if err := s.redis.Health(ctx); err != nil {
			status = "degraded"
			cacheState = "unreachable"
		} else {
			cacheState = "redis"
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  status,
		"storage": storageState,
		"cache":   cacheState,
	})
}

// ---- Dashboard pages ----

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp, err := s.dashboard.Overview(r.Context(), parseFilters(r))
	if err != nil {
		s.pageError(w, "overview", err)
		return
	}
	s.jsonResponse(w, resp)
}

func (s *Server) handleRevenue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp, err := s.dashboard.Revenue(r.Context(), parseFilters(r))
	if err != nil {
		s.pageError(w, "revenue", err)
		return
	}
	s.jsonResponse(w, resp)
}

func (s *Server) handleCustomers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp, err := s.dashboard.Customers(r.Context(), parseFilters(r))
	if err != nil {
		s.pageError(w, "customers", err)
		return
	}
	s.jsonResponse(w, resp)
}

func (s *Server) handleQuality(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp, err := s.dashboard.Quality(r.Context(), parseFilters(r))
	if err != nil {
		s.pageError(w, "quality", err)
		return
	}
	s.jsonResponse(w, resp)
}

func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp, err := s.dashboard.Operations(r.Context(), parseFilters(r))
	if err != nil {
		s.pageError(w, "operations", err)
		return
	}
	s.jsonResponse(w, resp)
}

func (s *Server) handleOperationsPreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp, err := s.dashboard.OperationsPreview(r.Context(), parseFilters(r))
	if err != nil {
		s.pageError(w, "operations preview", err)
		return
	}
	s.jsonResponse(w, resp)
}

func (s *Server) handleListUnassigned(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit, offset := parsePage(r)
	resp, err := s.dashboard.ListUnassigned(r.Context(), parseFilters(r), limit, offset)
	if err != nil {
		s.pageError(w, "unassigned listing", err)
		return
	}
	s.jsonResponse(w, resp)
}

func (s *Server) handleListLate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit, offset := parsePage(r)
	resp, err := s.dashboard.ListLate(r.Context(), parseFilters(r), limit, offset)
	if err != nil {
		s.pageError(w, "late listing", err)
		return
	}
	s.jsonResponse(w, resp)
}

func (s *Server) handleFilterOptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp, err := s.dashboard.FilterOptions(r.Context(), parseFilters(r))
	if err != nil {
		s.pageError(w, "filter options", err)
		return
	}
	s.jsonResponse(w, resp)
}

// ---- Ingest ----

func (s *Server) handleWorkItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.handleIngest(w, r)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBytes))
	if err != nil {
		s.errorResponse(w, "failed to read body", http.StatusBadRequest)
		return
	}

	items, err := decodeIngest(body)
	if err != nil {
		if analytics.IsInvalidInput(err) {
			s.errorResponse(w, err.Error(), http.StatusBadRequest)
		} else {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
		}
		return
	}

	valid := make([]*models.WorkItem, 0, len(items))
	rejected := 0
	for _, item := range items {
		if item.ItemID == "" {
			item.ItemID = uuid.NewString()
		}
		s.enrichLocation(r, item)
		item.Normalize()
		if err := item.Validate(); err != nil {
			rejected++
			s.logger.Debug("rejected work item",
				zap.String("item_id", item.ItemID),
				zap.Error(err),
			)
			continue
		}
		valid = append(valid, item)
	}

	if len(valid) > 0 {
		if err := s.store.UpsertBatch(r.Context(), valid); err != nil {
			s.logger.Error("failed to store work items", zap.Error(err))
			s.errorResponse(w, "failed to store work items", http.StatusInternalServerError)
			return
		}
	}

	s.metrics.RecordIngest(len(valid), rejected)
	if count, err := s.store.CountAll(r.Context()); err == nil {
		s.metrics.SetStoredItems(count)
	}

	s.jsonResponse(w, map[string]int{
		"accepted": len(valid),
		"rejected": rejected,
	})
}

// decodeIngest accepts a single work item object or an array of them.
// Any other JSON shape is rejected as invalid input.
func decodeIngest(body []byte) ([]*models.WorkItem, error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, &analytics.InvalidInputError{Reason: "empty body"}
	}

	switch trimmed[0] {
	case '[':
		var items []*models.WorkItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	case '{':
		var item models.WorkItem
		if err := json.Unmarshal(trimmed, &item); err != nil {
			return nil, err
		}
		return []*models.WorkItem{&item}, nil
	default:
		return nil, &analytics.InvalidInputError{Reason: "payload must be a work item or an array of work items"}
	}
}

// enrichLocation fills an empty student location from the client IP.
func (s *Server) enrichLocation(r *http.Request, item *models.WorkItem) {
	if s.geo == nil || item.StudentLocation != "" {
		return
	}

	ip := geo.ClientIP(r.RemoteAddr, r.Header.Get("X-Forwarded-For"), r.Header.Get("X-Real-IP"))
	start := time.Now()
	location, err := s.geo.Locate(ip)
	s.metrics.RecordGeoLookup(time.Since(start), err)
	if err != nil {
		s.logger.Debug("geo lookup failed", zap.String("ip", ip), zap.Error(err))
		return
	}
	item.StudentLocation = location
}

func (s *Server) handleWorkItemByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	itemID := strings.TrimPrefix(r.URL.Path, "/workitems/")
	if itemID == "" || strings.Contains(itemID, "/") {
		s.errorResponse(w, "not found", http.StatusNotFound)
		return
	}

	item, err := s.store.GetByItemID(r.Context(), itemID)
	if err != nil {
		s.logger.Error("failed to get work item", zap.String("item_id", itemID), zap.Error(err))
		s.errorResponse(w, "failed to get work item", http.StatusInternalServerError)
		return
	}
	if item == nil {
		s.errorResponse(w, "not found", http.StatusNotFound)
		return
	}
	s.jsonResponse(w, item)
}

// ---- Request parsing ----

func parseFilters(r *http.Request) analytics.Filters {
	q := r.URL.Query()
	f := analytics.Filters{
		DateRange: analytics.DateRange{
			Preset: q.Get("range"),
			From:   q.Get("from"),
			To:     q.Get("to"),
		},
		Turnaround:   q.Get("turnaround"),
		Status:       q.Get("status"),
		Acquisition:  q.Get("acquisition"),
		Draft:        q.Get("draft"),
		CustomerType: q.Get("customer_type"),
	}
	if f.DateRange.Preset == "" {
		if f.DateRange.From != "" && f.DateRange.To != "" {
			f.DateRange.Preset = analytics.RangeCustom
		} else {
			f.DateRange.Preset = analytics.Range90d
		}
	}
	return f
}

func parsePage(r *http.Request) (limit, offset int) {
	limit = defaultPageLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			offset = n
		}
	}
	return limit, offset
}

// ---- Responses ----

func (s *Server) pageError(w http.ResponseWriter, page string, err error) {
	s.logger.Error("dashboard query failed", zap.String("page", page), zap.Error(err))
	s.errorResponse(w, "failed to build "+page, http.StatusInternalServerError)
}

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
