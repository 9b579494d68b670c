// Package docs registra el documento OpenAPI servido en /swagger/*.
// Mantener alineado con las anotaciones @Router de los handlers (swag init -g cmd/api/main.go).
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
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/match": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["matching"],
                "summary": "Ejecuta el pipeline de matching para un sighting o un reporte de pérdida",
                "parameters": [{
                    "in": "body", "name": "body", "required": true,
                    "schema": {"$ref": "#/definitions/matching.matchRequest"}
                }],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/matching.matchResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/ratelimit.exceeded"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/matches": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["matching"],
                "summary": "Lista los matches aceptados de un reporte de pérdida",
                "parameters": [{"type": "string", "name": "lostAnimalId", "in": "query", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/matching.matchResultResponse"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/analyze": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["analysis"],
                "summary": "Describe la foto de un animal",
                "parameters": [{
                    "in": "body", "name": "body", "required": true,
                    "schema": {"type": "object", "properties": {"image": {"type": "string"}}}
                }],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/ratelimit.exceeded"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/alerts/nearby": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["alerts"],
                "summary": "Sightings recientes cerca de una ubicación; notifica una vez por zona",
                "parameters": [{
                    "in": "body", "name": "body", "required": true,
                    "schema": {"type": "object", "properties": {
                        "latitude": {"type": "number"}, "longitude": {"type": "number"}, "radiusKm": {"type": "number"}
                    }}
                }],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "errorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "ratelimit.exceeded": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "message": {"type": "string"},
                "resetAt": {"type": "string"},
                "tier": {"type": "string"},
                "upgradeMessage": {"type": "string"}
            }
        },
        "matching.matchRequest": {
            "type": "object",
            "properties": {"sightingId": {"type": "string"}, "lostAnimalId": {"type": "string"}}
        },
        "matching.matchResponse": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}}
        },
        "matching.matchResultResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "lostAnimalId": {"type": "string"},
                "sightingId": {"type": "string"},
                "confidence": {"type": "integer"},
                "reason": {"type": "string"},
                "createdAt": {"type": "string"}
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
	Title:            "Stray Match API",
	Description:      "Matching de animales perdidos contra avistamientos y notificación a dueños.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
