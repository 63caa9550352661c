// Package docs registers the securevision OpenAPI document with swag so
// http-swagger can serve it under /swagger/.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "securevision"
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
        "/dashboard": {
            "get": {
                "description": "Current metrics, series, posture decision, poller status and staleness",
                "produces": ["application/json"],
                "tags": ["Dashboard"],
                "summary": "Get dashboard view",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dashboard.View"}},
                    "405": {"description": "Method not allowed", "schema": {"$ref": "#/definitions/api.Error"}}
                }
            }
        },
        "/metrics": {
            "get": {
                "description": "The most recently applied snapshot; all zero before the first successful poll",
                "produces": ["application/json"],
                "tags": ["Metrics"],
                "summary": "Get current security metrics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/metrics.SecurityMetrics"}},
                    "405": {"description": "Method not allowed", "schema": {"$ref": "#/definitions/api.Error"}}
                }
            }
        },
        "/metrics/history": {
            "get": {
                "description": "Recorded snapshots, newest first",
                "produces": ["application/json"],
                "tags": ["Metrics"],
                "summary": "List snapshot history",
                "parameters": [
                    {"type": "integer", "default": 100, "description": "Maximum number of results", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/statestore.Record"}}},
                    "400": {"description": "Invalid limit", "schema": {"$ref": "#/definitions/api.Error"}},
                    "404": {"description": "History disabled", "schema": {"$ref": "#/definitions/api.Error"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/api.Error"}}
                }
            }
        },
        "/timeline": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Series"],
                "summary": "Get threat timeline",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/metrics.ThreatSample"}}}
                }
            }
        },
        "/vulnerabilities": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Series"],
                "summary": "Get vulnerability distribution",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/metrics.VulnerabilityBucket"}}}
                }
            }
        },
        "/stream": {
            "get": {
                "description": "Websocket; each text frame is a StreamMessage",
                "tags": ["Dashboard"],
                "summary": "Stream dashboard view",
                "responses": {
                    "101": {"description": "Switching Protocols", "schema": {"$ref": "#/definitions/api.StreamMessage"}}
                }
            }
        }
    },
    "definitions": {
        "api.Error": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "api.StreamMessage": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "view": {"$ref": "#/definitions/dashboard.View"}
            }
        },
        "metrics.SecurityMetrics": {
            "type": "object",
            "properties": {
                "threats": {"type": "integer"},
                "vulnerabilities": {"type": "integer"},
                "incidents": {"type": "integer"},
                "compliance": {"type": "number"}
            }
        },
        "metrics.ThreatSample": {
            "type": "object",
            "properties": {
                "time": {"type": "string"},
                "threats": {"type": "integer"}
            }
        },
        "metrics.VulnerabilityBucket": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "value": {"type": "integer"}
            }
        },
        "posture.Decision": {
            "type": "object",
            "properties": {
                "passed": {"type": "boolean"},
                "reason": {"type": "string"},
                "expression": {"type": "string"}
            }
        },
        "poller.Status": {
            "type": "object",
            "properties": {
                "state": {"type": "string", "enum": ["idle", "polling", "stopped"]},
                "last_success": {"type": "string", "format": "date-time"},
                "last_failure": {"type": "string", "format": "date-time"},
                "last_error": {"type": "string"},
                "consecutive_failures": {"type": "integer"}
            }
        },
        "dashboard.View": {
            "type": "object",
            "properties": {
                "metrics": {"$ref": "#/definitions/metrics.SecurityMetrics"},
                "timeline": {"type": "array", "items": {"$ref": "#/definitions/metrics.ThreatSample"}},
                "vulnerabilities": {"type": "array", "items": {"$ref": "#/definitions/metrics.VulnerabilityBucket"}},
                "posture": {"$ref": "#/definitions/posture.Decision"},
                "poller": {"$ref": "#/definitions/poller.Status"},
                "updated_at": {"type": "string", "format": "date-time"},
                "stale": {"type": "boolean"}
            }
        },
        "statestore.Record": {
            "type": "object",
            "properties": {
                "recorded_at": {"type": "string", "format": "date-time"},
                "metrics": {"$ref": "#/definitions/metrics.SecurityMetrics"},
                "posture_passed": {"type": "boolean"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "securevision API",
	Description:      "Read-only REST API exposing the polled security posture snapshot, its history and a live websocket stream.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
