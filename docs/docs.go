// Package docs - OpenAPI описание HTTP API для /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.HealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.HealthResponse"}}
                }
            }
        },
        "/api/v1/runs": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Runs"],
                "summary": "List recent runs",
                "parameters": [
                    {"type": "integer", "description": "Max runs (default 20, max 200)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/utils.SuccessResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/utils.ErrorResponse"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Runs"],
                "summary": "Queue a rescale run",
                "parameters": [
                    {"description": "Indicators to rescale", "name": "request", "in": "body", "required": true,
                     "schema": {"$ref": "#/definitions/dto.SubmitRunRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/utils.SuccessResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/utils.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/utils.ErrorResponse"}}
                }
            }
        },
        "/api/v1/runs/{run_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Runs"],
                "summary": "Get run with per-indicator results",
                "parameters": [
                    {"type": "string", "description": "Run ID", "name": "run_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/utils.SuccessResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/utils.ErrorResponse"}}
                }
            }
        },
        "/api/v1/runs/{run_id}/indicators/{indicator}/summaries/{kind}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Results"],
                "summary": "Get unit summary table",
                "parameters": [
                    {"type": "string", "description": "Run ID", "name": "run_id", "in": "path", "required": true},
                    {"type": "string", "description": "Indicator", "name": "indicator", "in": "path", "required": true},
                    {"type": "string", "description": "Unit kind", "name": "kind", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/utils.SuccessResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/utils.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/utils.ErrorResponse"}}
                }
            }
        },
        "/api/v1/runs/{run_id}/indicators/{indicator}/accuracy": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Results"],
                "summary": "Get accuracy reports",
                "parameters": [
                    {"type": "string", "description": "Run ID", "name": "run_id", "in": "path", "required": true},
                    {"type": "string", "description": "Indicator", "name": "indicator", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/utils.SuccessResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/utils.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "dto.SubmitRunRequest": {
            "type": "object",
            "required": ["indicators"],
            "properties": {
                "indicators": {"type": "array", "maxItems": 500, "minItems": 1, "items": {"type": "string"},
                               "example": ["acacia_aneura", "triodia_spp"]}
            }
        },
        "handler.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "healthy"},
                "time": {"type": "string"},
                "dependencies": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "errors.AppError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "details": {"type": "object", "additionalProperties": true}
            }
        },
        "utils.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"$ref": "#/definitions/errors.AppError"}
            }
        },
        "utils.SuccessResponse": {
            "type": "object",
            "properties": {
                "data": {},
                "meta": {
                    "type": "object",
                    "properties": {
                        "total": {"type": "integer"},
                        "limit": {"type": "integer"},
                        "time_ms": {"type": "number"}
                    }
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Landscape Rescale API",
	Description:      "Run catalog for landscape-scale rescaling of site-level vegetation indicators: queue runs, read unit summary tables and accuracy reports.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
