package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "FieldOps API",
        "description": "Field operations tracking and compensation approval",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Assignments", "description": "Job assignment feed and lifecycle"},
        {"name": "Submissions", "description": "Completed work submissions"},
        {"name": "Decisions", "description": "Supervisor approval pipeline"},
        {"name": "Sync", "description": "Offline mutation queue sync"},
        {"name": "Reports", "description": "Payout exports"}
    ],
    "paths": {
        "/assignments": {
            "get": {
                "tags": ["Assignments"],
                "summary": "List assignments",
                "parameters": [
                    {"name": "project_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "description": "Comma separated statuses"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/{id}": {
            "get": {
                "tags": ["Assignments"],
                "summary": "Get assignment",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/{id}/claim": {
            "post": {
                "tags": ["Assignments"],
                "summary": "Claim an available assignment",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Assignment not available", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/{id}/release": {
            "post": {
                "tags": ["Assignments"],
                "summary": "Release a claimed assignment",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Assignment not claimed by caller", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/{id}/lock": {
            "post": {
                "tags": ["Assignments"],
                "summary": "Lock an approved assignment",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Assignment not approved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/submissions": {
            "get": {
                "tags": ["Submissions"],
                "summary": "List submissions",
                "parameters": [
                    {"name": "assignment_id", "in": "query", "type": "string"},
                    {"name": "worker_id", "in": "query", "type": "string"},
                    {"name": "work_date", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Submissions"],
                "summary": "Submit completed work",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSubmissionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate submission", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/submissions/{id}": {
            "get": {
                "tags": ["Submissions"],
                "summary": "Get submission",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/submissions/{id}/decision": {
            "post": {
                "tags": ["Decisions"],
                "summary": "Approve or reject a pending submission",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DecideRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already decided", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/decisions": {
            "get": {
                "tags": ["Decisions"],
                "summary": "List committed decisions",
                "parameters": [
                    {"name": "submission_id", "in": "query", "type": "string"},
                    {"name": "decided_by", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync/mutations": {
            "post": {
                "tags": ["Sync"],
                "summary": "Upload queued offline mutations",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PushMutationsRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync/drain": {
            "post": {
                "tags": ["Sync"],
                "summary": "Replay unsynced mutations in order",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DrainRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync/conflicts": {
            "get": {
                "tags": ["Sync"],
                "summary": "List conflicted mutations for a device",
                "parameters": [
                    {"name": "device_id", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync/mutations/{seq}": {
            "delete": {
                "tags": ["Sync"],
                "summary": "Withdraw an unsynced mutation",
                "parameters": [
                    {"name": "seq", "in": "path", "type": "integer", "required": true},
                    {"name": "device_id", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "No content"},
                    "409": {"description": "Already synced", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/submissions": {
            "get": {
                "tags": ["Reports"],
                "summary": "Export decided submissions",
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "description": "csv or pdf"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    },
    "definitions": {
        "CreateSubmissionRequest": {
            "type": "object",
            "required": ["assignment_id", "work_date"],
            "properties": {
                "assignment_id": {"type": "string"},
                "work_date": {"type": "string", "example": "2026-03-14"},
                "quantity_completed": {"type": "number"},
                "hours_worked": {"type": "number"},
                "agreed_rate_pence": {"type": "integer"},
                "safety_checks_completed": {"type": "boolean"}
            }
        },
        "DecideRequest": {
            "type": "object",
            "required": ["outcome"],
            "properties": {
                "outcome": {"type": "string", "enum": ["APPROVED", "REJECTED"]},
                "reason": {"type": "string"},
                "override_total_pence": {"type": "integer"},
                "override_reason": {"type": "string"}
            }
        },
        "PushMutationsRequest": {
            "type": "object",
            "required": ["device_id", "mutations"],
            "properties": {
                "device_id": {"type": "string"},
                "mutations": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/QueuedMutation"}
                }
            }
        },
        "QueuedMutation": {
            "type": "object",
            "required": ["seq", "kind", "payload"],
            "properties": {
                "seq": {"type": "integer"},
                "kind": {"type": "string", "enum": ["SUBMIT", "DECIDE"]},
                "payload": {"type": "object"}
            }
        },
        "DrainRequest": {
            "type": "object",
            "required": ["device_id"],
            "properties": {
                "device_id": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
