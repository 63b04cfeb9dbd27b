package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/daimoniac/vesselfit/internal/assessment"
	"github.com/daimoniac/vesselfit/internal/audit"
	"github.com/daimoniac/vesselfit/internal/errors"
	"github.com/daimoniac/vesselfit/internal/queue"
	"github.com/daimoniac/vesselfit/internal/statestore"
	"github.com/daimoniac/vesselfit/internal/types"
)

// maxBodyBytes bounds request bodies; an inspection of a few hundred
// components fits comfortably.
const maxBodyBytes = 4 << 20

// decodeBody reads a JSON request body into v
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return fmt.Errorf("request body is empty")
		}
		return err
	}
	return nil
}

// handleCalculate calculates one component
// @Summary Calculate component
// @Description Validate a component reading, then calculate minimum required thickness, MAWP, corrosion rates, remaining life, next inspection and status. The calculation is recorded in the audit trail.
// @Tags Calculations
// @Accept json
// @Produce json
// @Param X-User-ID header string false "Caller user id recorded in the audit trail"
// @Param X-User-Name header string false "Caller display name"
// @Param request body types.ComponentInput true "Component reading"
// @Success 200 {object} CalculationResponse
// @Failure 400 {object} ErrorResponse "Malformed request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} CalculationErrorResponse "Material not found, with suggestions"
// @Failure 422 {object} CalculationErrorResponse "Input failed validation"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /calculations [post]
func (s *APIServer) handleCalculate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var in types.ComponentInput
	if err := decodeBody(w, r, &in); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	res, summary, err := s.assessment.CalculateComponent(r.Context(), in, actorFromRequest(r))
	if err != nil {
		s.respondCalculationError(w, err, summary)
		return
	}

	s.respondJSON(w, http.StatusOK, CalculationResponse{Result: res, Validation: summary})
}

// handleValidateInput screens a component reading without calculating it
// @Summary Validate component
// @Description Screen a component reading without calculating it. Nothing is written to the audit trail; the summary carries the verdict.
// @Tags Calculations
// @Accept json
// @Produce json
// @Param request body types.ComponentInput true "Component reading"
// @Success 200 {object} types.ValidationSummary
// @Failure 400 {object} ErrorResponse "Malformed request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Security BearerAuth
// @Router /calculations/validate [post]
func (s *APIServer) handleValidateInput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var in types.ComponentInput
	if err := decodeBody(w, r, &in); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	s.respondJSON(w, http.StatusOK, s.assessment.Engine().ValidateInput(in))
}

// respondCalculationError maps a calculation failure to its status code
func (s *APIServer) respondCalculationError(w http.ResponseWriter, err error, summary types.ValidationSummary) {
	var verr *assessment.ValidationError
	switch {
	case errors.Is(err, errors.ErrMaterialNotFound):
		s.respondJSON(w, http.StatusNotFound, toCalculationErrorResponse(err, summary))
	case errors.As(err, &verr):
		s.respondJSON(w, http.StatusUnprocessableEntity, toCalculationErrorResponse(err, summary))
	case isCalcError(err):
		s.respondJSON(w, http.StatusUnprocessableEntity, toCalculationErrorResponse(err, summary))
	case errors.Is(err, errors.ErrInvalidInput):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("calculation failed", "error", err.Error())
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Calculation failed: %v", err))
	}
}

func isCalcError(err error) bool {
	_, ok := errors.KindOf(err)
	return ok
}

// handleAssessVessel assesses every component of an inspection
// @Summary Assess vessel
// @Description Calculate every component of an inspection and report the governing MAWP, the worst status and the earliest next inspection. Components that fail validation are reported and skipped.
// @Tags Calculations
// @Accept json
// @Produce json
// @Param X-User-ID header string false "Caller user id recorded in the audit trail"
// @Param X-User-Name header string false "Caller display name"
// @Param request body types.Inspection true "Inspection with its component readings"
// @Success 200 {object} types.VesselAssessment
// @Failure 400 {object} ErrorResponse "Malformed request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /vessels/assess [post]
func (s *APIServer) handleAssessVessel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var insp types.Inspection
	if err := decodeBody(w, r, &insp); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	result, err := s.assessment.AssessVessel(r.Context(), insp, actorFromRequest(r))
	if err != nil {
		if errors.Is(err, errors.ErrInvalidInput) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("vessel assessment failed",
			"inspection_id", insp.InspectionID,
			"error", err.Error())
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Assessment failed: %v", err))
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

// handleAllowableStress looks up allowable stress for a material at a temperature
// @Summary Allowable stress
// @Description Look up the allowable stress of a material at a design temperature (°F). Values between breakpoints are interpolated; values outside the table are extrapolated and reported with status "error".
// @Tags Materials
// @Produce json
// @Param spec query string true "Material specification, e.g. SA-516 Grade 70"
// @Param temperature query number true "Design temperature in °F"
// @Success 200 {object} materials.StressLookup
// @Failure 400 {object} ErrorResponse "Missing or invalid parameter"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} CalculationErrorResponse "Material not found, with suggestions"
// @Failure 422 {object} CalculationErrorResponse "Stress out of physical range"
// @Security BearerAuth
// @Router /materials/stress [get]
func (s *APIServer) handleAllowableStress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	spec := parseQueryParam(r, "spec")
	if spec == "" {
		s.respondError(w, http.StatusBadRequest, "spec is required")
		return
	}
	temperature, err := strconv.ParseFloat(parseQueryParam(r, "temperature"), 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "temperature must be a number")
		return
	}

	lookup, err := s.resolver.AllowableStress(spec, temperature)
	if err != nil {
		s.respondCalculationError(w, err, types.ValidationSummary{})
		return
	}

	s.respondJSON(w, http.StatusOK, lookup)
}

// handleValidateMaterial normalizes a material specification
// @Summary Validate material
// @Description Normalize a material specification and suggest close matches when it is unknown
// @Tags Materials
// @Produce json
// @Param spec query string true "Material specification"
// @Success 200 {object} MaterialValidationResponse
// @Failure 400 {object} ErrorResponse "Missing parameter"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Security BearerAuth
// @Router /materials/validate [get]
func (s *APIServer) handleValidateMaterial(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	spec := parseQueryParam(r, "spec")
	if spec == "" {
		s.respondError(w, http.StatusBadRequest, "spec is required")
		return
	}

	// An unknown material is a valid answer here, not a failed request
	validation, _ := s.resolver.ValidateMaterial(spec)
	s.respondJSON(w, http.StatusOK, MaterialValidationResponse{Spec: spec, MaterialValidation: validation})
}

// handleLogDataChange records a data change reported by a CRUD collaborator
// @Summary Log data change
// @Description Append a create, update or delete of an inspection or component to the audit trail
// @Tags Audit
// @Accept json
// @Produce json
// @Param X-User-ID header string true "User who made the change"
// @Param X-User-Name header string false "User display name"
// @Param request body DataChangeRequest true "Change to record"
// @Success 201 {object} statestore.AuditEntry
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "API is in read-only mode"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /audit/changes [post]
func (s *APIServer) handleLogDataChange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req DataChangeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	switch req.Action {
	case audit.ActionCreate, audit.ActionUpdate, audit.ActionDelete:
	default:
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("action must be %s, %s or %s", audit.ActionCreate, audit.ActionUpdate, audit.ActionDelete))
		return
	}

	actor := actorFromRequest(r)
	if actor.UserID == "" {
		s.respondError(w, http.StatusBadRequest, HeaderUserID+" header is required")
		return
	}

	entry, err := s.audit.LogDataChange(r.Context(), req.EntityType, req.EntityID, actor.UserID, actor.UserName, req.Action, req.PreviousValues, req.NewValues)
	if err != nil {
		if errors.Is(err, errors.ErrInvalidInput) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("failed to log data change",
			"entity_type", req.EntityType,
			"entity_id", req.EntityID,
			"error", err.Error())
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to log data change: %v", err))
		return
	}

	s.respondJSON(w, http.StatusCreated, entry)
}

// parseAuditFilter reads the audit query parameters
func parseAuditFilter(r *http.Request) (statestore.AuditFilter, error) {
	filter := statestore.AuditFilter{
		EntityType: parseQueryParam(r, "entity_type"),
		EntityID:   parseQueryParam(r, "entity_id"),
		Action:     parseQueryParam(r, "action"),
		UserID:     parseQueryParam(r, "user_id"),
	}

	from, err := parseQueryParamTime(r, "from")
	if err != nil {
		return filter, err
	}
	to, err := parseQueryParamTime(r, "to")
	if err != nil {
		return filter, err
	}
	// A bare date includes the whole day
	if to != nil && len(parseQueryParam(r, "to")) == len(time.DateOnly) {
		end := to.Add(24*time.Hour - time.Nanosecond)
		to = &end
	}
	filter.From, filter.To = from, to
	return filter, nil
}

// handleQueryAudit lists audit entries, newest first
// @Summary Query audit log
// @Description List audit entries with optional filters, newest first. Each entry carries its checksum verification result.
// @Tags Audit
// @Produce json
// @Param entity_type query string false "Filter by entity type"
// @Param entity_id query string false "Filter by entity id"
// @Param action query string false "Filter by action"
// @Param user_id query string false "Filter by user id"
// @Param from query string false "Earliest timestamp (RFC 3339 or YYYY-MM-DD)"
// @Param to query string false "Latest timestamp (RFC 3339 or YYYY-MM-DD)"
// @Param limit query int false "Maximum number of results" default(100)
// @Param offset query int false "Pagination offset" default(0)
// @Success 200 {object} AuditQueryResponse
// @Failure 400 {object} ErrorResponse "Invalid parameter"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /audit [get]
func (s *APIServer) handleQueryAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	filter, err := parseAuditFilter(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.Limit = parseQueryParamInt(r, "limit", 100)
	filter.Offset = parseQueryParamInt(r, "offset", 0)
	if filter.Limit < 1 || filter.Limit > 1000 || filter.Offset < 0 {
		s.respondError(w, http.StatusBadRequest, "limit must be between 1 and 1000 and offset must not be negative")
		return
	}

	entries, err := s.audit.Query(r.Context(), filter)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to query audit log: %v", err))
		return
	}

	s.respondJSON(w, http.StatusOK, AuditQueryResponse{
		Entries: toAuditEntryResponses(s.audit, entries),
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	})
}

// handleExportAudit exports matching audit entries with an integrity verdict
// @Summary Export audit log
// @Description Export audit entries in chronological order. integrityVerified is true only when every exported checksum verifies.
// @Tags Audit
// @Produce json
// @Param entity_type query string false "Filter by entity type"
// @Param entity_id query string false "Filter by entity id"
// @Param action query string false "Filter by action"
// @Param user_id query string false "Filter by user id"
// @Param from query string false "Earliest timestamp (RFC 3339 or YYYY-MM-DD)"
// @Param to query string false "Latest timestamp (RFC 3339 or YYYY-MM-DD)"
// @Success 200 {object} audit.Export
// @Failure 400 {object} ErrorResponse "Invalid parameter"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /audit/export [get]
func (s *APIServer) handleExportAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	filter, err := parseAuditFilter(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	export, err := s.audit.Export(r.Context(), filter)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to export audit log: %v", err))
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=audit-export-%s.json", export.ExportDate.UTC().Format("20060102T150405Z")))
	s.respondJSON(w, http.StatusOK, export)
}

// handleVerifyChain verifies the checksum chain of one entity
// @Summary Verify audit chain
// @Description Verify every checksum of an entity's audit history and the links between consecutive entries
// @Tags Audit
// @Produce json
// @Param entity_type query string true "Entity type"
// @Param entity_id query string true "Entity id"
// @Success 200 {object} audit.ChainVerification
// @Failure 400 {object} ErrorResponse "Missing parameter"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /audit/verify [get]
func (s *APIServer) handleVerifyChain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	entityType := parseQueryParam(r, "entity_type")
	entityID := parseQueryParam(r, "entity_id")
	if entityType == "" || entityID == "" {
		s.respondError(w, http.StatusBadRequest, "entity_type and entity_id are required")
		return
	}

	result, err := s.audit.VerifyChain(r.Context(), entityType, entityID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to verify chain: %v", err))
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

// handleAuditReport renders the audit report of an inspection
// @Summary Inspection audit report
// @Description Render the plain-text audit report of an inspection: integrity summary, chronological trail and calculation traceability
// @Tags Audit
// @Produce plain
// @Param id path string true "Inspection id"
// @Success 200 {string} string "Audit report"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "No audit entries for the inspection"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /inspections/{id}/audit-report [get]
func (s *APIServer) handleAuditReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	inspectionID := r.PathValue("id")
	report, err := s.audit.GenerateInspectionAuditReport(r.Context(), inspectionID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to generate report: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, report)
}

// handleRecalculate queues inspections for recalculation
// @Summary Recalculate inspections
// @Description Queue one or more inspections for background recalculation. An inspection that is already queued or running is rejected; when nothing could be queued for that reason the reply is 409.
// @Tags Recalculation
// @Accept json
// @Produce json
// @Param X-User-ID header string false "Caller user id recorded in the audit trail"
// @Param X-User-Name header string false "Caller display name"
// @Param request body RecalculateRequest true "Inspections to recalculate"
// @Success 202 {object} RecalculateResponse
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "API is in read-only mode"
// @Failure 409 {object} RecalculateResponse "Already queued"
// @Failure 503 {object} ErrorResponse "Recalculation is not available"
// @Security BearerAuth
// @Router /inspections/recalculate [post]
func (s *APIServer) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.submitter == nil {
		s.respondError(w, http.StatusServiceUnavailable, "Recalculation is not available")
		return
	}

	var req RecalculateRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if len(req.Inspections) == 0 {
		s.respondError(w, http.StatusBadRequest, "at least one inspection is required")
		return
	}
	for i, insp := range req.Inspections {
		if insp.InspectionID == "" || len(insp.Components) == 0 {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("inspection %d needs an inspectionId and components", i+1))
			return
		}
	}

	actor := actorFromRequest(r)
	resp := RecalculateResponse{Runs: []*statestore.RecalculationRun{}}
	conflicts := 0
	for _, insp := range req.Inspections {
		task := &queue.RecalculationTask{
			ID:          uuid.NewString(),
			Inspection:  insp,
			Source:      queue.SourceAPI,
			RequestedBy: actor.UserID,
			UserName:    actor.UserName,
			Origin:      r.RemoteAddr,
			EnqueuedAt:  time.Now().UTC(),
		}

		run, err := s.submitter.Submit(r.Context(), task)
		if err != nil {
			if errors.Is(err, queue.ErrAlreadyQueued) {
				conflicts++
			} else {
				s.logger.Error("failed to enqueue recalculation",
					"inspection_id", insp.InspectionID,
					"error", err.Error())
			}
			resp.Rejected = append(resp.Rejected, RecalculateRejection{InspectionID: insp.InspectionID, Error: err.Error()})
			continue
		}
		resp.Runs = append(resp.Runs, run)
		resp.Queued++
	}

	s.logger.Info("recalculation requested",
		"requested", len(req.Inspections),
		"queued", resp.Queued,
		"rejected", len(resp.Rejected),
		"user_id", actor.UserID)

	status := http.StatusAccepted
	switch {
	case resp.Queued == 0 && conflicts == len(req.Inspections):
		status = http.StatusConflict
	case resp.Queued == 0:
		status = http.StatusServiceUnavailable
	}
	s.respondJSON(w, status, resp)
}

// handleListRuns lists the recalculation runs of an inspection
// @Summary List recalculation runs
// @Description List recalculation runs of an inspection, newest first
// @Tags Recalculation
// @Produce json
// @Param id path string true "Inspection id"
// @Param limit query int false "Maximum number of results" default(20)
// @Success 200 {array} statestore.RecalculationRun
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Failure 503 {object} ErrorResponse "Recalculation is not available"
// @Security BearerAuth
// @Router /inspections/{id}/runs [get]
func (s *APIServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.runs == nil {
		s.respondError(w, http.StatusServiceUnavailable, "Recalculation is not available")
		return
	}

	runs, err := s.runs.ListRuns(r.Context(), r.PathValue("id"), parseQueryParamInt(r, "limit", 20))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list runs: %v", err))
		return
	}

	s.respondJSON(w, http.StatusOK, runs)
}
