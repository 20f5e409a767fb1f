package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "MentorConnect API",
        "description": "Mentorship matching platform: application wizard, payment gate, admin review and mentor availability",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Accounts, sessions and invitation redemption"},
        {"name": "Applications", "description": "Application wizard and admin review"},
        {"name": "Payments", "description": "Payment submission and finance verification"},
        {"name": "Availability", "description": "Mentor availability slots"},
        {"name": "Profiles", "description": "Student and mentor profiles, public directory"},
        {"name": "Matching", "description": "Mentor compatibility suggestions"},
        {"name": "Guests", "description": "No-account guest applications"},
        {"name": "Facilitators", "description": "Facilitator assignments and scoped reviews"},
        {"name": "Notifications", "description": "In-app notifications"}
    ],
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Register a student account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Email already registered"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/applications": {
            "post": {
                "tags": ["Applications"],
                "summary": "Start an application draft",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "get": {
                "tags": ["Applications"],
                "summary": "List applications for staff review",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "mentorId", "in": "query", "type": "string"},
                    {"name": "minor", "in": "query", "type": "boolean"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/applications/{id}/steps/personal": {
            "put": {
                "tags": ["Applications"],
                "summary": "Save the personal details step",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PersonalStepRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Previous steps incomplete or application locked"}
                }
            }
        },
        "/applications/{id}/submit": {
            "post": {
                "tags": ["Applications"],
                "summary": "Submit the completed wizard",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Mentor, slot or consent missing"}
                }
            }
        },
        "/applications/{id}/payments": {
            "post": {
                "tags": ["Payments"],
                "summary": "Record a payment for an application",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "transaction_code", "in": "formData", "required": true, "type": "string"},
                    {"name": "amount", "in": "formData", "required": true, "type": "number"},
                    {"name": "payer_phone", "in": "formData", "required": true, "type": "string"},
                    {"name": "receipt", "in": "formData", "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Duplicate transaction code"},
                    "412": {"description": "Application not submitted"}
                }
            }
        },
        "/track/{code}": {
            "get": {
                "tags": ["Applications"],
                "summary": "Track an application by its public code",
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/TrackingStatus"}},
                    "404": {"description": "Unknown tracking code"}
                }
            }
        },
        "/mentors": {
            "get": {
                "tags": ["Profiles"],
                "summary": "Browse the public mentor directory",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "expertise", "in": "query", "type": "string"},
                    {"name": "city", "in": "query", "type": "string"},
                    {"name": "available", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/mentors/{mentorId}/slots": {
            "get": {
                "tags": ["Availability"],
                "summary": "List open future slots for a mentor",
                "parameters": [
                    {"name": "mentorId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/matching/suggestions": {
            "get": {
                "tags": ["Matching"],
                "summary": "Suggest compatible mentors for the caller",
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Student profile incomplete"}
                }
            }
        },
        "/guest-applications": {
            "post": {
                "tags": ["Guests"],
                "summary": "Submit a guest application",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "full_name", "in": "formData", "required": true, "type": "string"},
                    {"name": "email", "in": "formData", "required": true, "type": "string"},
                    {"name": "message", "in": "formData", "required": true, "type": "string"},
                    {"name": "mentor_id", "in": "formData", "required": true, "type": "string"},
                    {"name": "cv", "in": "formData", "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "RegisterRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "full_name": {"type": "string"},
                "phone": {"type": "string"},
                "invitation_token": {"type": "string"}
            },
            "required": ["email", "password", "full_name"]
        },
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "PersonalStepRequest": {
            "type": "object",
            "properties": {
                "full_name": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "date_of_birth": {"type": "string"}
            },
            "required": ["full_name", "email", "phone", "date_of_birth"]
        },
        "TrackingStatus": {
            "type": "object",
            "properties": {
                "tracking_code": {"type": "string"},
                "status": {"type": "string"},
                "current_step": {"type": "integer"},
                "submitted_at": {"type": "string"},
                "updated_at": {"type": "string"}
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
