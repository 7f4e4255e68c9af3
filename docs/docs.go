// Package docs registers the OpenAPI description served under /swagger/.
// Keep it in step with the @Router annotations in internal/transport/http/handler.go.
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
        "/webhook": {
            "post": {
                "description": "Receives Telegram updates. Button presses are recorded; every well-formed update is acknowledged.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["telegram"],
                "summary": "Telegram webhook",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Webhook secret configured with setWebhook",
                        "name": "X-Telegram-Bot-Api-Secret-Token",
                        "in": "header"
                    },
                    {
                        "description": "Telegram update",
                        "name": "update",
                        "in": "body",
                        "required": true,
                        "schema": {"type": "object"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "properties": {"ok": {"type": "boolean"}}}},
                    "400": {"description": "Invalid request body"},
                    "401": {"description": "Bad webhook secret"}
                }
            }
        },
        "/api/v1/reports/weekly": {
            "get": {
                "description": "Counts per status, completion ratio and snoozes for the seven days ending on date",
                "produces": ["application/json"],
                "tags": ["reports"],
                "summary": "Weekly report",
                "parameters": [
                    {"type": "string", "description": "Telegram chat id", "name": "user_id", "in": "query", "required": true},
                    {"type": "string", "description": "Last day of the week, YYYY-MM-DD; today by default", "name": "date", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/report.Summary"}},
                    "400": {"description": "Missing user_id or bad date"},
                    "500": {"description": "Internal server error"}
                }
            }
        },
        "/api/v1/tasks/events": {
            "get": {
                "description": "Lifecycle events of one task, oldest first",
                "produces": ["application/json"],
                "tags": ["tasks"],
                "summary": "Task event log",
                "parameters": [
                    {"type": "string", "description": "Task ID", "name": "task_id", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "properties": {
                                "task_id": {"type": "string"},
                                "events": {"type": "array", "items": {"$ref": "#/definitions/http.eventResponse"}}
                            }
                        }
                    },
                    "400": {"description": "Missing task_id"},
                    "404": {"description": "Task not found"},
                    "500": {"description": "Internal server error"}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["health"],
                "summary": "Liveness check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    },
    "definitions": {
        "report.Summary": {
            "type": "object",
            "properties": {
                "user_id": {"type": "string"},
                "week_start": {"type": "string"},
                "week_end": {"type": "string"},
                "counts": {"type": "object", "additionalProperties": {"type": "integer"}},
                "total": {"type": "integer"},
                "done": {"type": "integer"},
                "completion": {"type": "number"},
                "snoozes_used": {"type": "integer"}
            }
        },
        "http.eventResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "task_id": {"type": "string"},
                "user_id": {"type": "string"},
                "event_type": {"type": "string"},
                "from_status": {"type": "string"},
                "created_at": {"type": "string"},
                "meta": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Reminder Service API",
	Description:      "Telegram webhook and read API of the workout reminder bot",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
