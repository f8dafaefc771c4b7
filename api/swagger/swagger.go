package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Timetable Ingest API",
        "description": "Decodes university timetable responses into normalized course occurrences",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Timetable", "description": "Timetable ingestion, storage and export"}
    ],
    "paths": {
        "/timetable/import": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Decode and expand a timetable document",
                "consumes": ["application/json"],
                "parameters": [
                    {"name": "persist", "in": "query", "type": "boolean"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CourseResponse"}}
                ],
                "responses": {
                    "200": {"description": "Expanded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "201": {"description": "Expanded and stored", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "413": {"description": "Payload too large", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Document could not be decoded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Persistence disabled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/imports/batch": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Expand several documents concurrently",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BatchImportRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/imports/async": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Queue a document for background import",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CourseResponse"}}
                ],
                "responses": {
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/imports/jobs/{jobId}": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Background import status",
                "parameters": [
                    {"name": "jobId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown job", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/periods": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Fixed daily period table",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/imports": {
            "get": {
                "tags": ["Timetable"],
                "summary": "List stored imports",
                "parameters": [
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/imports/{id}": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Get a stored import",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/imports/{id}/occurrences": {
            "get": {
                "tags": ["Timetable"],
                "summary": "List stored occurrences",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "week", "in": "query", "type": "integer"},
                    {"name": "day", "in": "query", "type": "integer"},
                    {"name": "teacher", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/imports/{id}/exports": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Render a stored import",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "201": {"description": "Rendered", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/cache": {
            "delete": {
                "tags": ["Timetable"],
                "summary": "Drop memoised document expansions",
                "responses": {
                    "204": {"description": "Purged"},
                    "503": {"description": "Cache disabled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/exports/download": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Download a rendered export",
                "produces": ["text/csv", "application/pdf", "text/calendar"],
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "400": {"description": "Invalid token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "410": {"description": "Link expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CourseResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "msg": {"type": "string"},
                "datas": {
                    "type": "object",
                    "properties": {
                        "arrangedList": {"type": "array", "items": {"type": "object"}},
                        "notArrangeList": {"type": "array", "items": {"type": "object"}},
                        "practiceList": {"type": "array", "items": {"type": "object"}}
                    }
                }
            }
        },
        "BatchImportRequest": {
            "type": "object",
            "required": ["documents"],
            "properties": {
                "documents": {"type": "array", "items": {"type": "string"}},
                "persist": {"type": "boolean"}
            }
        },
        "ExportRequest": {
            "type": "object",
            "required": ["format"],
            "properties": {
                "format": {"type": "string", "enum": ["csv", "pdf", "ics"]},
                "termStart": {"type": "string", "format": "date"}
            }
        },
        "Occurrence": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "day": {"type": "integer"},
                "room": {"type": "string"},
                "teacher": {"type": "string"},
                "start_period": {"type": "integer"},
                "end_period": {"type": "integer"},
                "start_week": {"type": "integer"},
                "end_week": {"type": "integer"},
                "type": {"type": "string", "enum": ["ALL", "ODD", "EVEN"]},
                "credit": {"type": "number"},
                "note": {"type": "string"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"}
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
