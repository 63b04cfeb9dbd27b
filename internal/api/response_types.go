package api

import (
	"github.com/daimoniac/vesselfit/internal/audit"
	"github.com/daimoniac/vesselfit/internal/errors"
	"github.com/daimoniac/vesselfit/internal/materials"
	"github.com/daimoniac/vesselfit/internal/statestore"
	"github.com/daimoniac/vesselfit/internal/types"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CalculationErrorResponse reports a component that could not be calculated.
// Engineering errors carry their kind, the code clause and, for unknown
// materials, ranked suggestions.
type CalculationErrorResponse struct {
	Error         string                  `json:"error"`
	Kind          string                  `json:"kind,omitempty"`
	Field         string                  `json:"field,omitempty"`
	CodeReference string                  `json:"codeReference,omitempty"`
	Suggestion    string                  `json:"suggestion,omitempty"`
	Suggestions   []string                `json:"suggestions,omitempty"`
	Validation    types.ValidationSummary `json:"validation"`
}

// CalculationResponse is the reply to a successful component calculation.
type CalculationResponse struct {
	Result     *types.CalculationResult `json:"result"`
	Validation types.ValidationSummary  `json:"validation"`
}

// MaterialValidationResponse is the reply to a material validation.
type MaterialValidationResponse struct {
	Spec string `json:"spec"`
	materials.MaterialValidation
}

// DataChangeRequest is a create, update or delete reported by a CRUD
// collaborator. The caller identity comes from the request headers.
type DataChangeRequest struct {
	EntityType     string `json:"entityType"`
	EntityID       string `json:"entityId"`
	Action         string `json:"action"`
	PreviousValues any    `json:"previousValues,omitempty"`
	NewValues      any    `json:"newValues,omitempty"`
}

// AuditEntryResponse represents an audit entry for API responses, with its
// checksum verification result.
type AuditEntryResponse struct {
	*statestore.AuditEntry
	Verified bool `json:"verified"`
}

// AuditQueryResponse is a page of audit entries.
type AuditQueryResponse struct {
	Entries []AuditEntryResponse `json:"entries"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

// RecalculateRequest lists the inspections to recalculate.
type RecalculateRequest struct {
	Inspections []types.Inspection `json:"inspections"`
}

// RecalculateRejection explains why one inspection was not queued.
type RecalculateRejection struct {
	InspectionID string `json:"inspectionId"`
	Error        string `json:"error"`
}

// RecalculateResponse is the reply to a recalculation request.
type RecalculateResponse struct {
	Queued   int                            `json:"queued"`
	Runs     []*statestore.RecalculationRun `json:"runs"`
	Rejected []RecalculateRejection         `json:"rejected,omitempty"`
}

// toCalculationErrorResponse maps a calculation failure to its reply body
func toCalculationErrorResponse(err error, summary types.ValidationSummary) CalculationErrorResponse {
	resp := CalculationErrorResponse{Error: err.Error(), Validation: summary}
	var calcErr *errors.CalcError
	if errors.As(err, &calcErr) {
		resp.Kind = string(calcErr.Kind)
		resp.Field = calcErr.Field
		resp.CodeReference = calcErr.CodeReference
		resp.Suggestion = calcErr.Suggestion
		resp.Suggestions = calcErr.Candidates
	}
	return resp
}

// toAuditEntryResponses pairs entries with their verification result
func toAuditEntryResponses(svc *audit.Service, entries []*statestore.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = AuditEntryResponse{AuditEntry: e, Verified: svc.VerifyChecksum(e)}
	}
	return out
}
