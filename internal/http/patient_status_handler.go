package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"wisefido-patient-status/internal/domain"
	"wisefido-patient-status/internal/service"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

const patientStatusBase = "/api/v1/patient-status"

// PatientStatusStore is satisfied by *service.PatientStatusService.
type PatientStatusStore interface {
	Create(ctx context.Context, input domain.CreatePatientStatusInput, actorID string) (*domain.PatientStatus, error)
	FindAll(ctx context.Context, filter domain.PatientStatusFilter) ([]domain.PatientStatus, error)
	FindOne(ctx context.Context, id string, includeDeleted bool) (*domain.PatientStatus, error)
	Update(ctx context.Context, id string, patch domain.UpdatePatientStatusPatch, actorID string) (*domain.PatientStatus, error)
	SoftDelete(ctx context.Context, id string, actorID string) (*domain.PatientStatus, error)
	Restore(ctx context.Context, id string, actorID string) (*domain.PatientStatus, error)
	GetStatistics(ctx context.Context) (*domain.PatientStatusStatistics, error)
}

// Guard is satisfied by *service.AccessControl.
type Guard interface {
	Authenticate(ctx context.Context, header string) (*domain.Identity, error)
	Authorize(op service.Operation, identity *domain.Identity) error
}

// PatientStatusHandler 患者状态 API
type PatientStatusHandler struct {
	store  PatientStatusStore
	guard  Guard
	logger *zap.Logger
}

func NewPatientStatusHandler(store PatientStatusStore, guard Guard, logger *zap.Logger) *PatientStatusHandler {
	return &PatientStatusHandler{store: store, guard: guard, logger: logger}
}

// ServeHTTP 路由分发
//
//	GET  /api/v1/patient-status
//	POST /api/v1/patient-status
//	GET  /api/v1/patient-status/statistics
//	GET  /api/v1/patient-status/export
//	GET  /api/v1/patient-status/{id}
//	POST /api/v1/patient-status/{id}/update|soft-delete|restore
func (h *PatientStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, patientStatusBase), "/")
	parts := strings.Split(rest, "/")

	switch {
	case rest == "":
		switch r.Method {
		case http.MethodGet:
			h.List(w, r)
		case http.MethodPost:
			h.Create(w, r)
		default:
			writeRouteError(w, r, http.StatusMethodNotAllowed)
		}
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			writeRouteError(w, r, http.StatusNotFound)
			return
		}
		switch parts[0] {
		case "statistics":
			h.Statistics(w, r)
		case "export":
			h.Export(w, r)
		default:
			h.Get(w, r, parts[0])
		}
	case len(parts) == 2:
		if r.Method != http.MethodPost {
			writeRouteError(w, r, http.StatusNotFound)
			return
		}
		id := parts[0]
		switch parts[1] {
		case "update":
			h.Update(w, r, id)
		case "soft-delete":
			h.SoftDelete(w, r, id)
		case "restore":
			h.Restore(w, r, id)
		default:
			writeRouteError(w, r, http.StatusNotFound)
		}
	default:
		writeRouteError(w, r, http.StatusNotFound)
	}
}

// authorize authenticates the caller and checks op against the role table.
// On failure the error envelope is already written.
func (h *PatientStatusHandler) authorize(w http.ResponseWriter, r *http.Request, op service.Operation) (*domain.Identity, bool) {
	identity, err := h.guard.Authenticate(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}
	if err := h.guard.Authorize(op, identity); err != nil {
		h.logger.Debug("Access denied",
			zap.String("operation", string(op)),
			zap.String("user_id", identity.ID),
			zap.String("role", string(identity.Role)),
		)
		writeError(w, r, h.logger, err)
		return nil, false
	}
	return identity, true
}

var listQueryParams = map[string]bool{
	"status":         true,
	"department":     true,
	"patientId":      true,
	"includeDeleted": true,
}

// parseFilter reads list/export query parameters; unknown parameters are rejected.
func parseFilter(r *http.Request) (domain.PatientStatusFilter, error) {
	q := r.URL.Query()
	var details []string
	unknown := lo.Filter(lo.Keys(map[string][]string(q)), func(name string, _ int) bool { return !listQueryParams[name] })
	sort.Strings(unknown)
	for _, name := range unknown {
		details = append(details, "property "+name+" should not exist")
	}

	var filter domain.PatientStatusFilter
	if s := q.Get("status"); s != "" {
		st := domain.PatientStatusType(s)
		if !st.Valid() {
			details = append(details, statusListMessage)
		} else {
			filter.Status = &st
		}
	}
	filter.Department = q.Get("department")
	filter.PatientID = q.Get("patientId")

	includeDeleted, err := parseBoolQuery(r, "includeDeleted")
	if err != nil {
		details = append(details, service.AsError(err).Details...)
	}
	filter.IncludeDeleted = includeDeleted

	if len(details) > 0 {
		return filter, service.NewValidationError(details)
	}
	return filter, nil
}

func (h *PatientStatusHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, service.OpList); !ok {
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	records, err := h.store.FindAll(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(http.StatusOK, fmt.Sprintf("Found %d patient status records", len(records)), records))
}

func (h *PatientStatusHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, service.OpStatistics); !ok {
		return
	}
	stats, err := h.store.GetStatistics(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(http.StatusOK, "Statistics retrieved successfully", stats))
}

func (h *PatientStatusHandler) Get(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.authorize(w, r, service.OpGet); !ok {
		return
	}
	includeDeleted, err := parseBoolQuery(r, "includeDeleted")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	rec, err := h.store.FindOne(r.Context(), id, includeDeleted)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(http.StatusOK, "Patient status retrieved successfully", rec))
}

func (h *PatientStatusHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.authorize(w, r, service.OpCreate)
	if !ok {
		return
	}
	var input domain.CreatePatientStatusInput
	if err := readBodyJSON(r, maxBodyBytes, &input); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := validateStruct(&input); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	rec, err := h.store.Create(r.Context(), input, identity.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(http.StatusCreated, "Patient status created successfully", rec))
}

func (h *PatientStatusHandler) Update(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := h.authorize(w, r, service.OpUpdate)
	if !ok {
		return
	}
	var patch domain.UpdatePatientStatusPatch
	if err := readBodyJSON(r, maxBodyBytes, &patch); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := validateStruct(&patch); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	rec, err := h.store.Update(r.Context(), id, patch, identity.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(http.StatusOK, "Patient status updated successfully", rec))
}

func (h *PatientStatusHandler) SoftDelete(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := h.authorize(w, r, service.OpSoftDelete)
	if !ok {
		return
	}
	rec, err := h.store.SoftDelete(r.Context(), id, identity.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(http.StatusOK, "Patient status soft deleted successfully", rec))
}

func (h *PatientStatusHandler) Restore(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := h.authorize(w, r, service.OpRestore)
	if !ok {
		return
	}
	rec, err := h.store.Restore(r.Context(), id, identity.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(http.StatusOK, "Patient status restored successfully", rec))
}
