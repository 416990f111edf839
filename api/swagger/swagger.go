package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Campus Schedule API",
        "description": "Role-based university course scheduling: users, subjects, group membership and conflict-free weekly slots.",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "in": "header", "name": "Authorization"}
    },
    "tags": [
        {"name": "Authentication", "description": "Sessions, registration and profile"},
        {"name": "Users", "description": "Admin user and group management"},
        {"name": "Subjects", "description": "Subject catalogue"},
        {"name": "Schedules", "description": "Weekly slots, grouped views and exports"},
        {"name": "Dashboard", "description": "Admin overview"},
        {"name": "Operations", "description": "Probes and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {"tags": ["Operations"], "summary": "Liveness probe", "responses": {"200": {"description": "OK"}}}
        },
        "/ready": {
            "get": {
                "tags": ["Operations"],
                "summary": "Readiness probe",
                "responses": {"200": {"description": "Ready"}, "503": {"description": "Database unreachable"}}
            }
        },
        "/metrics": {
            "get": {"tags": ["Operations"], "summary": "Prometheus metrics", "produces": ["text/plain"], "responses": {"200": {"description": "OK"}}}
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "description": "Sets the auth_token cookie and returns the token with the role home path",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already authenticated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/register": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Register student account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Username or email taken", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {"tags": ["Authentication"], "summary": "Clear session cookie", "responses": {"204": {"description": "No Content"}}}
        },
        "/auth/profile": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user profile",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/profile/password": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Change password",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChangePasswordRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Invalid payload or wrong current password", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/dashboard": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Entity totals and runtime metrics",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/admin/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List users",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "role", "in": "query", "type": "string", "enum": ["admin", "teacher", "student"]},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"},
                    {"name": "sort_by", "in": "query", "type": "string"},
                    {"name": "sort_order", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Users"],
                "summary": "Create user",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateUserRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/users/{id}": {
            "get": {
                "tags": ["Users"],
                "summary": "Get user",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            },
            "put": {
                "tags": ["Users"],
                "summary": "Update user",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateUserRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Duplicate or teacher still scheduled"}}
            },
            "delete": {
                "tags": ["Users"],
                "summary": "Delete user",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "No Content"},
                    "403": {"description": "Cannot delete own account"},
                    "409": {"description": "Teacher still has scheduled classes"}
                }
            }
        },
        "/admin/users/{id}/reset-password": {
            "post": {
                "tags": ["Users"],
                "summary": "Reset password",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ResetPasswordRequest"}}
                ],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/admin/users/{id}/groups": {
            "get": {
                "tags": ["Users"],
                "summary": "Student groups and all known groups",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Users"],
                "summary": "Assign student to group",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AssignGroupRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "User is not a student"}}
            }
        },
        "/admin/users/{id}/groups/{group}": {
            "delete": {
                "tags": ["Users"],
                "summary": "Remove student from group",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "group", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"204": {"description": "No Content"}, "404": {"description": "Not a member"}}
            }
        },
        "/admin/teachers/{id}": {
            "get": {
                "tags": ["Users"],
                "summary": "Get teacher",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not a teacher"}}
            }
        },
        "/admin/schedules": {
            "get": {
                "tags": ["Schedules"],
                "summary": "All slots grouped by day",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "teacher_id", "in": "query", "type": "string"},
                    {"name": "group", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/subjects": {
            "get": {"tags": ["Subjects"], "summary": "List subjects", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {
                "tags": ["Subjects"],
                "summary": "Create subject",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubjectRequest"}}
                ],
                "responses": {"201": {"description": "Created"}, "409": {"description": "Duplicate name"}}
            }
        },
        "/subjects/{id}": {
            "get": {
                "tags": ["Subjects"],
                "summary": "Get subject",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            },
            "put": {
                "tags": ["Subjects"],
                "summary": "Update subject",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubjectRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {
                "tags": ["Subjects"],
                "summary": "Delete subject",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "No Content"}, "409": {"description": "Subject is used by scheduled classes"}}
            }
        },
        "/student/schedule": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Student weekly schedule",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "student_id", "in": "query", "type": "string", "description": "Admin only"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/student/schedule/export": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Export student schedule",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "student_id", "in": "query", "type": "string", "description": "Admin only"}
                ],
                "responses": {"200": {"description": "File"}, "400": {"description": "Unsupported format"}}
            }
        },
        "/teacher/schedule": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Teacher weekly schedule",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "teacher_id", "in": "query", "type": "string", "description": "Admin only"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Schedules"],
                "summary": "Create schedule slot",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleSlotRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "403": {"description": "Teachers can only schedule their own classes"},
                    "409": {"description": "Overlaps another slot of the same teacher", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teacher/schedule/{id}": {
            "put": {
                "tags": ["Schedules"],
                "summary": "Update schedule slot",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleSlotRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Not the owner"}, "409": {"description": "Overlap"}}
            },
            "delete": {
                "tags": ["Schedules"],
                "summary": "Delete schedule slot",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "No Content"}, "403": {"description": "Not the owner"}}
            }
        },
        "/teacher/schedule/export": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Export teacher schedule",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "teacher_id", "in": "query", "type": "string", "description": "Admin only"}
                ],
                "responses": {"200": {"description": "File"}, "400": {"description": "Unsupported format"}}
            }
        },
        "/teacher/manage-schedule": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Schedule editor data",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "teacher_id", "in": "query", "type": "string", "description": "Admin only"}],
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {"username": {"type": "string"}, "password": {"type": "string"}},
            "required": ["username", "password"]
        },
        "RegisterRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string", "minLength": 3, "maxLength": 50},
                "password": {"type": "string", "minLength": 6, "maxLength": 72},
                "email": {"type": "string"},
                "firstname": {"type": "string"},
                "lastname": {"type": "string"}
            },
            "required": ["username", "password", "email", "firstname", "lastname"]
        },
        "ChangePasswordRequest": {
            "type": "object",
            "properties": {
                "current_password": {"type": "string"},
                "new_password": {"type": "string", "minLength": 6, "maxLength": 72},
                "confirm_password": {"type": "string"}
            },
            "required": ["current_password", "new_password", "confirm_password"]
        },
        "CreateUserRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string", "minLength": 6, "maxLength": 72},
                "email": {"type": "string"},
                "role": {"type": "string", "enum": ["admin", "teacher", "student"]},
                "firstname": {"type": "string"},
                "lastname": {"type": "string"}
            },
            "required": ["username", "password", "email", "role", "firstname", "lastname"]
        },
        "UpdateUserRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "email": {"type": "string"},
                "role": {"type": "string", "enum": ["admin", "teacher", "student"]},
                "firstname": {"type": "string"},
                "lastname": {"type": "string"}
            },
            "required": ["username", "email", "role", "firstname", "lastname"]
        },
        "ResetPasswordRequest": {
            "type": "object",
            "properties": {"new_password": {"type": "string", "minLength": 6, "maxLength": 72}},
            "required": ["new_password"]
        },
        "AssignGroupRequest": {
            "type": "object",
            "properties": {"group_name": {"type": "string"}},
            "required": ["group_name"]
        },
        "SubjectRequest": {
            "type": "object",
            "properties": {"name": {"type": "string"}, "description": {"type": "string"}},
            "required": ["name"]
        },
        "ScheduleSlotRequest": {
            "type": "object",
            "properties": {
                "subject_id": {"type": "string", "format": "uuid"},
                "teacher_id": {"type": "string", "format": "uuid", "description": "Admin only"},
                "day_of_week": {"type": "integer", "minimum": 1, "maximum": 7},
                "start_time": {"type": "string", "example": "09:00"},
                "end_time": {"type": "string", "example": "10:30"},
                "group_name": {"type": "string"},
                "location": {"type": "string"}
            },
            "required": ["subject_id", "day_of_week", "start_time", "end_time", "group_name"]
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
