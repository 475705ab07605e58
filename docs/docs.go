package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "description": "Personal task tracker and work-hours log with live updates",
        "title": "Tracker API",
        "version": "1.0"
    },
    "host": "localhost:8080",
    "basePath": "/api/v1",
    "schemes": ["http"],
    "paths": {
        "/auth/sign-up": {
            "post": {
                "tags": ["auth"],
                "summary": "Create an account",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/SignUpRequest"}}
                ],
                "responses": {
                    "201": {"description": "Signed in", "schema": {"$ref": "#/definitions/Credentials"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "401": {"description": "Rejected by the identity provider", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/auth/sign-in": {
            "post": {
                "tags": ["auth"],
                "summary": "Sign in with email and password",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/SignInRequest"}}
                ],
                "responses": {
                    "200": {"description": "Signed in", "schema": {"$ref": "#/definitions/Credentials"}},
                    "401": {"description": "Wrong email or password", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/auth/google": {
            "get": {
                "tags": ["auth"],
                "summary": "Start Google sign-in",
                "responses": {
                    "307": {"description": "Redirect to Google"},
                    "401": {"description": "Google sign-in is not configured", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/auth/google/callback": {
            "get": {
                "tags": ["auth"],
                "summary": "Finish Google sign-in",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "query", "name": "code", "type": "string", "required": true},
                    {"in": "query", "name": "state", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Signed in", "schema": {"$ref": "#/definitions/Credentials"}},
                    "401": {"description": "Cancelled or rejected", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/auth/sign-out": {
            "post": {
                "tags": ["auth"],
                "summary": "Sign out",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Signed out", "schema": {"$ref": "#/definitions/MessageResponse"}},
                    "401": {"description": "Invalid token", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/auth/password-reset": {
            "post": {
                "tags": ["auth"],
                "summary": "Send a password reset message",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/PasswordResetRequest"}}
                ],
                "responses": {
                    "202": {"description": "Reset message sent", "schema": {"$ref": "#/definitions/MessageResponse"}},
                    "401": {"description": "Unknown email", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/auth/password-reset/confirm": {
            "post": {
                "tags": ["auth"],
                "summary": "Set a new password with a reset code",
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/ConfirmPasswordResetRequest"}}
                ],
                "responses": {
                    "200": {"description": "Password updated", "schema": {"$ref": "#/definitions/MessageResponse"}},
                    "401": {"description": "Invalid code or weak password", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["auth"],
                "summary": "Current user",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Signed-in user", "schema": {"$ref": "#/definitions/User"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/auth/state": {
            "get": {
                "tags": ["auth"],
                "summary": "Stream auth state",
                "description": "Server-sent auth-state events: the token's user now, and null once signed out",
                "produces": ["text/event-stream"],
                "parameters": [
                    {"in": "query", "name": "token", "type": "string", "description": "ID token when the Authorization header cannot be set"}
                ],
                "responses": {"200": {"description": "Event stream"}}
            }
        },
        "/tasks": {
            "get": {
                "tags": ["tasks"],
                "summary": "List a day's tasks",
                "description": "Tasks of the given day, newest first. Defaults to today.",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "date", "type": "string", "description": "Day as YYYY-MM-DD"}
                ],
                "responses": {
                    "200": {"description": "Tasks", "schema": {"type": "array", "items": {"$ref": "#/definitions/Task"}}},
                    "400": {"description": "Invalid date", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            },
            "post": {
                "tags": ["tasks"],
                "summary": "Create a task",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/CreateTaskRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Task"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/tasks/stream": {
            "get": {
                "tags": ["tasks"],
                "summary": "Stream a day's tasks",
                "security": [{"BearerAuth": []}],
                "produces": ["text/event-stream"],
                "parameters": [
                    {"in": "query", "name": "date", "type": "string", "description": "Day as YYYY-MM-DD"}
                ],
                "responses": {"200": {"description": "Event stream of tasks events"}}
            }
        },
        "/tasks/dates": {
            "get": {
                "tags": ["tasks"],
                "summary": "Days with tasks",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "month", "type": "string", "description": "Month as YYYY-MM"},
                    {"in": "query", "name": "from", "type": "string", "description": "First day as YYYY-MM-DD"},
                    {"in": "query", "name": "to", "type": "string", "description": "Last day as YYYY-MM-DD"}
                ],
                "responses": {
                    "200": {"description": "Marked days", "schema": {"$ref": "#/definitions/DatesResponse"}},
                    "400": {"description": "Invalid range", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/tasks/dates/stream": {
            "get": {
                "tags": ["tasks"],
                "summary": "Stream days with tasks",
                "security": [{"BearerAuth": []}],
                "produces": ["text/event-stream"],
                "parameters": [
                    {"in": "query", "name": "month", "type": "string", "description": "Month as YYYY-MM"}
                ],
                "responses": {"200": {"description": "Event stream of dates events"}}
            }
        },
        "/tasks/{id}": {
            "patch": {
                "tags": ["tasks"],
                "summary": "Update a task",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/UpdateTaskRequest"}}
                ],
                "responses": {
                    "200": {"description": "Updated", "schema": {"$ref": "#/definitions/Task"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            },
            "delete": {
                "tags": ["tasks"],
                "summary": "Delete a task",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/work-logs": {
            "get": {
                "tags": ["work-logs"],
                "summary": "List work logs",
                "description": "All of the user's work logs, newest day first, with the total worked hours",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Work logs", "schema": {"$ref": "#/definitions/WorkLogSummary"}}
                }
            },
            "post": {
                "tags": ["work-logs"],
                "summary": "Log worked hours",
                "description": "An end before the start is an overnight shift",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/CreateWorkLogRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/WorkLog"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/work-logs/stream": {
            "get": {
                "tags": ["work-logs"],
                "summary": "Stream work logs",
                "security": [{"BearerAuth": []}],
                "produces": ["text/event-stream"],
                "responses": {"200": {"description": "Event stream of work-logs events"}}
            }
        },
        "/work-logs/{id}": {
            "delete": {
                "tags": ["work-logs"],
                "summary": "Delete a work log",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "SignUpRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string", "example": "ada@example.com"},
                "password": {"type": "string", "example": "hunter22"},
                "displayName": {"type": "string", "example": "Ada"}
            }
        },
        "SignInRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "PasswordResetRequest": {
            "type": "object",
            "required": ["email"],
            "properties": {"email": {"type": "string"}}
        },
        "ConfirmPasswordResetRequest": {
            "type": "object",
            "required": ["code", "newPassword"],
            "properties": {
                "code": {"type": "string"},
                "newPassword": {"type": "string"}
            }
        },
        "User": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "email": {"type": "string"},
                "displayName": {"type": "string"},
                "provider": {"type": "string", "enum": ["password", "google.com"]}
            }
        },
        "Credentials": {
            "type": "object",
            "properties": {
                "user": {"$ref": "#/definitions/User"},
                "idToken": {"type": "string"},
                "expiresAt": {"type": "string", "format": "date-time"}
            }
        },
        "CreateTaskRequest": {
            "type": "object",
            "required": ["title", "date"],
            "properties": {
                "title": {"type": "string", "example": "Write report"},
                "date": {"type": "string", "example": "2024-03-15"},
                "dueDate": {"type": "string", "format": "date-time"}
            }
        },
        "UpdateTaskRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "completed": {"type": "boolean"},
                "dueDate": {"type": "string", "format": "date-time"},
                "clearDueDate": {"type": "boolean"}
            }
        },
        "Task": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "completed": {"type": "boolean"},
                "taskDate": {"type": "string", "format": "date-time"},
                "dueDate": {"type": "string", "format": "date-time"},
                "createdAt": {"type": "string", "format": "date-time"},
                "updatedAt": {"type": "string", "format": "date-time"},
                "ownerId": {"type": "string"}
            }
        },
        "DatesResponse": {
            "type": "object",
            "properties": {
                "dates": {"type": "array", "items": {"type": "string"}, "example": ["2024-03-15"]}
            }
        },
        "CreateWorkLogRequest": {
            "type": "object",
            "required": ["date", "startTime", "endTime", "description"],
            "properties": {
                "date": {"type": "string", "example": "2024-03-15"},
                "startTime": {"type": "string", "example": "09:00"},
                "endTime": {"type": "string", "example": "17:30"},
                "description": {"type": "string", "example": "Sprint planning"}
            }
        },
        "WorkLog": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "date": {"type": "string"},
                "startTime": {"type": "string"},
                "endTime": {"type": "string"},
                "description": {"type": "string"},
                "ownerId": {"type": "string"},
                "createdAt": {"type": "string", "format": "date-time"},
                "updatedAt": {"type": "string", "format": "date-time"}
            }
        },
        "WorkLogSummary": {
            "type": "object",
            "properties": {
                "logs": {"type": "array", "items": {"$ref": "#/definitions/WorkLog"}},
                "count": {"type": "integer"},
                "totalHours": {"type": "number"},
                "totalFormatted": {"type": "string", "example": "8h 30m"}
            }
        },
        "MessageResponse": {
            "type": "object",
            "properties": {"message": {"type": "string"}}
        },
        "ErrorResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "reason": {"type": "string"},
                "details": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header",
            "description": "Type 'Bearer' followed by a space and the ID token"
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http"},
	Title:            "Tracker API",
	Description:      "Personal task tracker and work-hours log with live updates",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
