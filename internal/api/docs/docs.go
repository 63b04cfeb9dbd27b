// Package docs holds the OpenAPI description served at /swagger/.
// Regenerate with: swag init -g internal/api/api.go -o internal/api/docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "vesselfit"
        },
        "license": {
            "name": "Apache 2.0",
            "url": "https://www.apache.org/licenses/LICENSE-2.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/audit": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "List audit entries with optional filters, newest first. Each entry carries its checksum verification result.",
                "produces": ["application/json"],
                "tags": ["Audit"],
                "summary": "Query audit log",
                "parameters": [
                    {"type": "string", "description": "Filter by entity type", "name": "entity_type", "in": "query"},
                    {"type": "string", "description": "Filter by entity id", "name": "entity_id", "in": "query"},
                    {"type": "string", "description": "Filter by action", "name": "action", "in": "query"},
                    {"type": "string", "description": "Filter by user id", "name": "user_id", "in": "query"},
                    {"type": "string", "description": "Earliest timestamp (RFC 3339 or YYYY-MM-DD)", "name": "from", "in": "query"},
                    {"type": "string", "description": "Latest timestamp (RFC 3339 or YYYY-MM-DD)", "name": "to", "in": "query"},
                    {"type": "integer", "default": 100, "description": "Maximum number of results", "name": "limit", "in": "query"},
                    {"type": "integer", "default": 0, "description": "Pagination offset", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.AuditQueryResponse"}},
                    "400": {"description": "Invalid parameter", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/audit/changes": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Append a create, update or delete of an inspection or component to the audit trail",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Audit"],
                "summary": "Log data change",
                "parameters": [
                    {"type": "string", "description": "User who made the change", "name": "X-User-ID", "in": "header", "required": true},
                    {"type": "string", "description": "User display name", "name": "X-User-Name", "in": "header"},
                    {"description": "Change to record", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.DataChangeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/statestore.AuditEntry"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "403": {"description": "API is in read-only mode", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/audit/export": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Export audit entries in chronological order. integrityVerified is true only when every exported checksum verifies.",
                "produces": ["application/json"],
                "tags": ["Audit"],
                "summary": "Export audit log",
                "parameters": [
                    {"type": "string", "description": "Filter by entity type", "name": "entity_type", "in": "query"},
                    {"type": "string", "description": "Filter by entity id", "name": "entity_id", "in": "query"},
                    {"type": "string", "description": "Filter by action", "name": "action", "in": "query"},
                    {"type": "string", "description": "Filter by user id", "name": "user_id", "in": "query"},
                    {"type": "string", "description": "Earliest timestamp (RFC 3339 or YYYY-MM-DD)", "name": "from", "in": "query"},
                    {"type": "string", "description": "Latest timestamp (RFC 3339 or YYYY-MM-DD)", "name": "to", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/audit.Export"}},
                    "400": {"description": "Invalid parameter", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/audit/verify": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Verify every checksum of an entity's audit history and the links between consecutive entries",
                "produces": ["application/json"],
                "tags": ["Audit"],
                "summary": "Verify audit chain",
                "parameters": [
                    {"type": "string", "description": "Entity type", "name": "entity_type", "in": "query", "required": true},
                    {"type": "string", "description": "Entity id", "name": "entity_id", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/audit.ChainVerification"}},
                    "400": {"description": "Missing parameter", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/calculations": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Validate a component reading, then calculate minimum required thickness, MAWP, corrosion rates, remaining life, next inspection and status. The calculation is recorded in the audit trail.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Calculations"],
                "summary": "Calculate component",
                "parameters": [
                    {"type": "string", "description": "Caller user id recorded in the audit trail", "name": "X-User-ID", "in": "header"},
                    {"type": "string", "description": "Caller display name", "name": "X-User-Name", "in": "header"},
                    {"description": "Component reading", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.ComponentInput"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.CalculationResponse"}},
                    "400": {"description": "Malformed request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "404": {"description": "Material not found, with suggestions", "schema": {"$ref": "#/definitions/api.CalculationErrorResponse"}},
                    "422": {"description": "Input failed validation", "schema": {"$ref": "#/definitions/api.CalculationErrorResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/calculations/validate": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Screen a component reading without calculating it. Nothing is written to the audit trail; the summary carries the verdict.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Calculations"],
                "summary": "Validate component",
                "parameters": [
                    {"description": "Component reading", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.ComponentInput"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ValidationSummary"}},
                    "400": {"description": "Malformed request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/inspections/recalculate": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Queue one or more inspections for background recalculation. An inspection that is already queued or running is rejected; when nothing could be queued for that reason the reply is 409.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Recalculation"],
                "summary": "Recalculate inspections",
                "parameters": [
                    {"type": "string", "description": "Caller user id recorded in the audit trail", "name": "X-User-ID", "in": "header"},
                    {"type": "string", "description": "Caller display name", "name": "X-User-Name", "in": "header"},
                    {"description": "Inspections to recalculate", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.RecalculateRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/api.RecalculateResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "403": {"description": "API is in read-only mode", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "409": {"description": "Already queued", "schema": {"$ref": "#/definitions/api.RecalculateResponse"}},
                    "503": {"description": "Recalculation is not available", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/inspections/{id}/audit-report": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Render the plain-text audit report of an inspection: integrity summary, chronological trail and calculation traceability",
                "produces": ["text/plain"],
                "tags": ["Audit"],
                "summary": "Inspection audit report",
                "parameters": [
                    {"type": "string", "description": "Inspection id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Audit report", "schema": {"type": "string"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "404": {"description": "No audit entries for the inspection", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/inspections/{id}/runs": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "List recalculation runs of an inspection, newest first",
                "produces": ["application/json"],
                "tags": ["Recalculation"],
                "summary": "List recalculation runs",
                "parameters": [
                    {"type": "string", "description": "Inspection id", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "default": 20, "description": "Maximum number of results", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/statestore.RecalculationRun"}}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "503": {"description": "Recalculation is not available", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/materials/stress": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Look up the allowable stress of a material at a design temperature (°F). Values between breakpoints are interpolated; values outside the table are extrapolated and reported with status \"error\".",
                "produces": ["application/json"],
                "tags": ["Materials"],
                "summary": "Allowable stress",
                "parameters": [
                    {"type": "string", "description": "Material specification, e.g. SA-516 Grade 70", "name": "spec", "in": "query", "required": true},
                    {"type": "number", "description": "Design temperature in °F", "name": "temperature", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/materials.StressLookup"}},
                    "400": {"description": "Missing or invalid parameter", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "404": {"description": "Material not found, with suggestions", "schema": {"$ref": "#/definitions/api.CalculationErrorResponse"}},
                    "422": {"description": "Stress out of physical range", "schema": {"$ref": "#/definitions/api.CalculationErrorResponse"}}
                }
            }
        },
        "/materials/validate": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Normalize a material specification and suggest close matches when it is unknown",
                "produces": ["application/json"],
                "tags": ["Materials"],
                "summary": "Validate material",
                "parameters": [
                    {"type": "string", "description": "Material specification", "name": "spec", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.MaterialValidationResponse"}},
                    "400": {"description": "Missing parameter", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/vessels/assess": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Calculate every component of an inspection and report the governing MAWP, the worst status and the earliest next inspection. Components that fail validation are reported and skipped.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Calculations"],
                "summary": "Assess vessel",
                "parameters": [
                    {"type": "string", "description": "Caller user id recorded in the audit trail", "name": "X-User-ID", "in": "header"},
                    {"type": "string", "description": "Caller display name", "name": "X-User-Name", "in": "header"},
                    {"description": "Inspection with its component readings", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.Inspection"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.VesselAssessment"}},
                    "400": {"description": "Malformed request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.AuditQueryResponse": {"type": "object", "properties": {
            "entries": {"type": "array", "items": {"$ref": "#/definitions/statestore.AuditEntry"}},
            "limit": {"type": "integer"},
            "offset": {"type": "integer"}
        }},
        "api.CalculationErrorResponse": {"type": "object", "properties": {
            "error": {"type": "string"},
            "kind": {"type": "string"},
            "field": {"type": "string"},
            "codeReference": {"type": "string"},
            "suggestion": {"type": "string"},
            "suggestions": {"type": "array", "items": {"type": "string"}},
            "validation": {"$ref": "#/definitions/types.ValidationSummary"}
        }},
        "api.CalculationResponse": {"type": "object", "properties": {
            "result": {"$ref": "#/definitions/types.CalculationResult"},
            "validation": {"$ref": "#/definitions/types.ValidationSummary"}
        }},
        "api.DataChangeRequest": {"type": "object", "properties": {
            "entityType": {"type": "string"},
            "entityId": {"type": "string"},
            "action": {"type": "string", "enum": ["create", "update", "delete"]},
            "previousValues": {"type": "object"},
            "newValues": {"type": "object"}
        }},
        "api.ErrorResponse": {"type": "object", "properties": {
            "error": {"type": "string"}
        }},
        "api.MaterialValidationResponse": {"type": "object", "properties": {
            "spec": {"type": "string"},
            "isValid": {"type": "boolean"},
            "normalizedSpec": {"type": "string"},
            "suggestions": {"type": "array", "items": {"type": "string"}}
        }},
        "api.RecalculateRequest": {"type": "object", "properties": {
            "inspections": {"type": "array", "items": {"$ref": "#/definitions/types.Inspection"}}
        }},
        "api.RecalculateResponse": {"type": "object", "properties": {
            "queued": {"type": "integer"},
            "runs": {"type": "array", "items": {"$ref": "#/definitions/statestore.RecalculationRun"}},
            "rejected": {"type": "array", "items": {"type": "object", "properties": {
                "inspectionId": {"type": "string"},
                "error": {"type": "string"}
            }}}
        }},
        "audit.ChainVerification": {"type": "object", "properties": {
            "entityType": {"type": "string"},
            "entityId": {"type": "string"},
            "entries": {"type": "integer"},
            "valid": {"type": "boolean"},
            "brokenEntryId": {"type": "string"},
            "kind": {"type": "string"},
            "reason": {"type": "string"}
        }},
        "audit.Export": {"type": "object", "properties": {
            "exportDate": {"type": "string"},
            "totalEntries": {"type": "integer"},
            "entries": {"type": "array", "items": {"$ref": "#/definitions/statestore.AuditEntry"}},
            "integrityVerified": {"type": "boolean"},
            "failedEntryIds": {"type": "array", "items": {"type": "string"}}
        }},
        "materials.StressLookup": {"type": "object", "properties": {
            "stress": {"type": "number"},
            "status": {"type": "string", "enum": ["ok", "ok_interpolated", "error", "override"]},
            "normalizedSpec": {"type": "string"},
            "temperature": {"type": "number"},
            "tableReference": {"type": "string"},
            "message": {"type": "string"}
        }},
        "statestore.AuditEntry": {"type": "object", "properties": {
            "id": {"type": "string"},
            "timestamp": {"type": "string"},
            "action": {"type": "string"},
            "entityType": {"type": "string"},
            "entityId": {"type": "string"},
            "userId": {"type": "string"},
            "userName": {"type": "string"},
            "previousValues": {"type": "object"},
            "newValues": {"type": "object"},
            "calculationInputs": {"type": "object"},
            "calculationOutputs": {"type": "object"},
            "codeReferences": {"type": "array", "items": {"type": "string"}},
            "metadata": {"type": "object"},
            "previousChecksum": {"type": "string"},
            "checksum": {"type": "string"},
            "verified": {"type": "boolean"}
        }},
        "statestore.RecalculationRun": {"type": "object", "properties": {
            "id": {"type": "string"},
            "inspectionId": {"type": "string"},
            "source": {"type": "string"},
            "requestedBy": {"type": "string"},
            "status": {"type": "string", "enum": ["queued", "running", "completed", "failed"]},
            "components": {"type": "integer"},
            "skipped": {"type": "integer"},
            "errorMessage": {"type": "string"},
            "createdAt": {"type": "string"},
            "updatedAt": {"type": "string"}
        }},
        "types.ComponentInput": {"type": "object", "properties": {
            "inspectionId": {"type": "string"},
            "componentId": {"type": "string"},
            "name": {"type": "string"},
            "componentType": {"type": "string", "enum": ["shell", "head"]},
            "headType": {"type": "string", "enum": ["hemispherical", "ellipsoidal", "torispherical", "flat"]},
            "insideDiameter": {"type": "number"},
            "crownRadius": {"type": "number"},
            "knuckleRadius": {"type": "number"},
            "aspectRatio": {"type": "number"},
            "attachmentFactor": {"type": "number"},
            "designPressure": {"type": "number"},
            "designTemperature": {"type": "number"},
            "materialSpec": {"type": "string"},
            "allowableStress": {"type": "number"},
            "jointEfficiency": {"type": "number"},
            "nominalThickness": {"type": "number"},
            "actualThickness": {"type": "number"},
            "previousThickness": {"type": "number"},
            "designCorrosionAllowance": {"type": "number"},
            "specificGravity": {"type": "number"},
            "liquidHeight": {"type": "number"},
            "installDate": {"type": "string", "example": "2000-01-01"},
            "previousInspectionDate": {"type": "string", "example": "2020-01-01"},
            "inspectionDate": {"type": "string", "example": "2025-01-01"}
        }},
        "types.CalculationResult": {"type": "object", "properties": {
            "inspectionId": {"type": "string"},
            "componentId": {"type": "string"},
            "componentType": {"type": "string"},
            "minimumRequiredThickness": {"type": "number"},
            "mawp": {"type": "number"},
            "derivedCorrosionAllowance": {"type": "number"},
            "longTermCorrosionRate": {"type": "number"},
            "shortTermCorrosionRate": {"type": "number"},
            "governingCorrosionRate": {"type": "number"},
            "remainingLife": {"description": "years, or the string \"unbounded\" when no corrosion is measured"},
            "remainingLifeDisplay": {"type": "string"},
            "nextInspectionInterval": {"type": "number"},
            "nextInspectionDate": {"type": "string"},
            "status": {"type": "string", "enum": ["acceptable", "monitoring", "critical"]},
            "statusReason": {"type": "string"},
            "allowableStressUsed": {"type": "number"},
            "stressStatus": {"type": "string"},
            "codeReferences": {"type": "array", "items": {"type": "string"}},
            "calculatedAt": {"type": "string"}
        }},
        "types.Inspection": {"type": "object", "properties": {
            "inspectionId": {"type": "string"},
            "components": {"type": "array", "items": {"$ref": "#/definitions/types.ComponentInput"}}
        }},
        "types.ValidationSummary": {"type": "object", "properties": {
            "results": {"type": "array", "items": {"type": "object"}},
            "completeness": {"type": "number"},
            "passRate": {"type": "number"},
            "score": {"type": "number"},
            "status": {"type": "string", "enum": ["passed", "pending", "warning", "failed"]}
        }},
        "types.VesselAssessment": {"type": "object", "properties": {
            "inspectionId": {"type": "string"},
            "components": {"type": "array", "items": {"type": "object"}},
            "governingMawp": {"type": "number"},
            "governingComponentId": {"type": "string"},
            "designPressure": {"type": "number"},
            "rerateRequired": {"type": "boolean"},
            "rerateRecommendation": {"type": "string"},
            "worstStatus": {"type": "string"},
            "nextInspectionInterval": {"type": "number"},
            "nextInspectionDate": {"type": "string"},
            "calculated": {"type": "integer"},
            "skipped": {"type": "integer"}
        }}
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Enter your API key (with or without \"Bearer \" prefix)",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "vesselfit API",
	Description:      "REST API for pressure vessel fitness-for-service calculations and the tamper-evident audit trail.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
