package httpapi

import (
	"net/http"

	"wisefido-patient-status/internal/metrics"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux     *http.ServeMux
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewRouter(m *metrics.Collector, logger *zap.Logger) *Router {
	r := &Router{
		mux:     http.NewServeMux(),
		metrics: m,
		logger:  logger,
	}
	r.mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		writeRouteError(w, req, http.StatusNotFound)
	})
	return r
}

// Handle registers h; pattern doubles as the route metrics label.
func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.Handle(pattern, instrument(r.metrics, pattern, h))
}

// HandleHandler 支持 http.Handler 接口（/metrics 等）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	withRecover(r.logger, withRequestLog(r.logger, r.mux)).ServeHTTP(w, req)
}

// RegisterPatientStatusRoutes /api/v1/patient-status[/...]
func (r *Router) RegisterPatientStatusRoutes(h *PatientStatusHandler) {
	r.Handle(patientStatusBase, h.ServeHTTP)
	r.Handle(patientStatusBase+"/", h.ServeHTTP)
}

// RegisterAuthRoutes /api/v1/auth/token
func (r *Router) RegisterAuthRoutes(h *AuthHandler) {
	r.Handle("/api/v1/auth/token", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			writeRouteError(w, req, http.StatusMethodNotAllowed)
			return
		}
		h.IssueToken(w, req)
	})
}

// RegisterProbeRoutes health check + prometheus scrape endpoint, both unauthenticated
func (r *Router) RegisterProbeRoutes(health *HealthHandler) {
	r.Handle("/healthz", health.ServeHTTP)
	if r.metrics != nil {
		r.HandleHandler("/metrics", r.metrics.Handler())
	}
}
