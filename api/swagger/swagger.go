package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "School Results API",
        "description": "Result entry, approval, class ranking and broadsheet exports",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Auth", "description": "Login and current user"},
        {"name": "Results", "description": "Result entry and lifecycle"},
        {"name": "Performance", "description": "Class rankings and student summaries"},
        {"name": "Subjects", "description": "Subject roster and maxima"},
        {"name": "Rosters", "description": "Classes and students"},
        {"name": "Exports", "description": "Broadsheet downloads and export jobs"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Issue an access token",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/results": {
            "get": {
                "tags": ["Results"],
                "summary": "List result records",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "class_id", "type": "string"},
                    {"in": "query", "name": "subject_id", "type": "string"},
                    {"in": "query", "name": "student_id", "type": "string"},
                    {"in": "query", "name": "term", "type": "string", "enum": ["First Term", "Second Term", "Third Term"]},
                    {"in": "query", "name": "session", "type": "string"},
                    {"in": "query", "name": "status", "type": "string", "description": "comma separated statuses"},
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "limit", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Results"],
                "summary": "Submit or resubmit one result",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/SubmitResultRequest"}}
                ],
                "responses": {
                    "201": {"description": "Stored", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Record already finalized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Score out of range", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/results/bulk": {
            "post": {
                "tags": ["Results"],
                "summary": "Submit a class subject sheet",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/BulkSubmitRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/results/approve": {
            "post": {
                "tags": ["Results"],
                "summary": "Approve submitted results in scope",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ResultScope"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid transition", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/results/print": {
            "post": {
                "tags": ["Results"],
                "summary": "Mark approved results in scope as printed",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ResultScope"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classes/{id}/performance": {
            "get": {
                "tags": ["Performance"],
                "summary": "Ranked class performance",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "query", "name": "session", "required": true, "type": "string"},
                    {"in": "query", "name": "term", "type": "string"},
                    {"in": "query", "name": "tie", "type": "string", "enum": ["input", "name"]},
                    {"in": "query", "name": "include_pending", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classes/{id}/broadsheet": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a broadsheet",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "query", "name": "session", "required": true, "type": "string"},
                    {"in": "query", "name": "term", "type": "string"},
                    {"in": "query", "name": "format", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File"}
                }
            }
        },
        "/students/{id}/summary": {
            "get": {
                "tags": ["Performance"],
                "summary": "One student's ranked summary",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "query", "name": "class_id", "type": "string"},
                    {"in": "query", "name": "session", "required": true, "type": "string"},
                    {"in": "query", "name": "term", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/subjects/{id}/maxima": {
            "put": {
                "tags": ["Subjects"],
                "summary": "Update subject maxima",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/UpdateSubjectMaximaRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/broadsheets": {
            "post": {
                "tags": ["Exports"],
                "summary": "Queue a broadsheet export",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{id}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export job status",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/download/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a finished export via signed token",
                "parameters": [
                    {"in": "path", "name": "token", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "SubmitResultRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "class_id": {"type": "string"},
                "term": {"type": "string"},
                "session": {"type": "string"},
                "test1": {"type": "number"},
                "test2": {"type": "number"},
                "exam": {"type": "number"}
            }
        },
        "BulkSubmitRequest": {
            "type": "object",
            "properties": {
                "class_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "term": {"type": "string"},
                "session": {"type": "string"},
                "mode": {"type": "string", "enum": ["atomic", "partialOnError"]},
                "items": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "student_id": {"type": "string"},
                            "test1": {"type": "number"},
                            "test2": {"type": "number"},
                            "exam": {"type": "number"}
                        }
                    }
                }
            }
        },
        "ResultScope": {
            "type": "object",
            "properties": {
                "class_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "term": {"type": "string"},
                "session": {"type": "string"}
            }
        },
        "UpdateSubjectMaximaRequest": {
            "type": "object",
            "properties": {
                "test1_max": {"type": "number"},
                "test2_max": {"type": "number"},
                "exam_max": {"type": "number"}
            }
        },
        "ExportRequest": {
            "type": "object",
            "properties": {
                "class_id": {"type": "string"},
                "session": {"type": "string"},
                "term": {"type": "string"},
                "tie": {"type": "string"},
                "format": {"type": "string", "enum": ["csv", "pdf"]}
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
