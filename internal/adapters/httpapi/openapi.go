package httpapi

import (
	"net/http"

	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/httpjson"
)

// handleOpenAPI renvoie la spec OpenAPI de l'API. Elle est maintenue à la
// main, au même rythme que les handlers.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	jsonOK := func(schemaRef string) map[string]any {
		return map[string]any{
			"description": "OK",
			"content": map[string]any{
				"application/json": map[string]any{
					"schema": map[string]any{"$ref": schemaRef},
				},
			},
		}
	}

	jsonErr := map[string]any{
		"description": "Error",
		"content": map[string]any{
			"application/json": map[string]any{
				"schema": map[string]any{"$ref": "#/components/schemas/Error"},
			},
		},
	}

	spec := map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "TBS API",
			"version": "v1",
		},
		"components": map[string]any{
			"schemas": map[string]any{
				"OpenAPIDocument": map[string]any{
					"type":                 "object",
					"additionalProperties": true,
				},
				"Error": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"error": map[string]any{"type": "string"},
					},
					"required": []any{"error"},
				},
				"Rule": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"minOffsetMinutes":    map[string]any{"type": "integer", "minimum": 15},
						"maxOffsetMonths":     map[string]any{"type": "integer", "minimum": 1},
						"minuteStep":          map[string]any{"type": "integer", "minimum": 1},
						"intervalMinutes":     map[string]any{"type": "integer", "minimum": 1},
						"dailyLimit":          map[string]any{"type": "integer", "minimum": 0},
						"randomizeWithinStep": map[string]any{"type": "boolean"},
					},
					"required":             []any{"minOffsetMinutes", "maxOffsetMonths", "minuteStep", "intervalMinutes"},
					"additionalProperties": false,
				},
				"Window": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"rangeStart": map[string]any{"type": "string", "format": "date-time"},
						"rangeEnd":   map[string]any{"type": "string", "format": "date-time"},
						"dayStart":   map[string]any{"type": "object", "description": "Heure locale de début de fenêtre quotidienne."},
						"dayEnd":     map[string]any{"type": "object", "description": "Heure locale de fin de fenêtre quotidienne."},
					},
					"additionalProperties": false,
				},
				"Slot": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"at":     map[string]any{"type": "string", "format": "date-time"},
						"status": map[string]any{"type": "string", "enum": []any{"planned", "consumed"}},
					},
					"required": []any{"at", "status"},
				},
				"Video": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"path":      map[string]any{"type": "string"},
						"caption":   map[string]any{"type": "string"},
						"sizeBytes": map[string]any{"type": "integer"},
						"status":    map[string]any{"type": "string", "enum": []any{"discovered", "slotted", "uploading", "scheduled", "published", "failed"}},
					},
				},
				"Batch": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":        map[string]any{"type": "string"},
						"account":   map[string]any{"type": "string"},
						"folder":    map[string]any{"type": "string"},
						"state":     map[string]any{"type": "string", "enum": []any{"queued", "running", "completed", "failed", "canceled"}},
						"createdAt": map[string]any{"type": "string", "format": "date-time"},
						"updatedAt": map[string]any{"type": "string", "format": "date-time"},
						"result": map[string]any{
							"type":                 "object",
							"description":          "Bilan du batch (présent une fois terminé).",
							"additionalProperties": true,
						},
						"errorCode": map[string]any{"type": "string"},
						"error":     map[string]any{"type": "string"},
					},
					"required":             []any{"id", "account", "folder", "state", "createdAt", "updatedAt"},
					"additionalProperties": false,
				},
				"BatchList": map[string]any{
					"type":  "array",
					"items": map[string]any{"$ref": "#/components/schemas/Batch"},
				},
				"StartBatchRequest": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"account": map[string]any{"type": "string", "description": "Handle du compte, sans le @."},
						"folder":  map[string]any{"type": "string", "description": "Dossier local contenant les .mp4."},
						"rule":    map[string]any{"$ref": "#/components/schemas/Rule"},
						"window":  map[string]any{"$ref": "#/components/schemas/Window"},
						"limit":   map[string]any{"type": "integer", "description": "Nombre max de vidéos (0 = toutes)."},
					},
					"required":             []any{"account", "folder", "rule", "window"},
					"additionalProperties": false,
				},
				"ScheduleRecord": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":         map[string]any{"type": "string"},
						"account":    map[string]any{"type": "string"},
						"videoId":    map[string]any{"type": "string"},
						"file":       map[string]any{"type": "string"},
						"caption":    map[string]any{"type": "string"},
						"scheduleAt": map[string]any{"type": "string", "format": "date-time"},
						"createdAt":  map[string]any{"type": "string", "format": "date-time"},
						"status":     map[string]any{"type": "string"},
					},
				},
				"PublishRecord": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"account":     map[string]any{"type": "string"},
						"videoId":     map[string]any{"type": "string"},
						"file":        map[string]any{"type": "string"},
						"caption":     map[string]any{"type": "string"},
						"publishedAt": map[string]any{"type": "string", "format": "date-time"},
						"scheduledAt": map[string]any{"type": "string", "format": "date-time"},
					},
				},
			},
		},
		"paths": map[string]any{
			"/api/v1/health": map[string]any{
				"get": map[string]any{"responses": map[string]any{"200": map[string]any{"description": "OK"}}},
			},
			"/api/v1/version": map[string]any{
				"get": map[string]any{"responses": map[string]any{"200": map[string]any{"description": "OK"}}},
			},
			"/api/v1/openapi.json": map[string]any{
				"get": map[string]any{"responses": map[string]any{"200": jsonOK("#/components/schemas/OpenAPIDocument")}},
			},
			"/api/v1/events": map[string]any{
				"get": map[string]any{
					"parameters": []any{map[string]any{
						"name": "topics", "in": "query", "required": false,
						"schema":      map[string]any{"type": "string"},
						"description": "comma-separated topic prefixes, e.g. batch.,upload.",
					}},
					"responses": map[string]any{"200": map[string]any{"description": "SSE"}},
				},
			},
			"/api/v1/accounts": map[string]any{
				"get": map[string]any{"responses": map[string]any{"200": map[string]any{"description": "OK"}, "500": jsonErr}},
			},
			"/api/v1/scan": map[string]any{
				"post": map[string]any{
					"responses": map[string]any{
						"200": map[string]any{"description": "OK"},
						"400": jsonErr,
						"404": jsonErr,
					},
				},
			},
			"/api/v1/schedule/preview": map[string]any{
				"post": map[string]any{
					"responses": map[string]any{
						"200": map[string]any{"description": "OK"},
						"400": jsonErr,
						"422": jsonErr,
					},
				},
			},
			"/api/v1/batches": map[string]any{
				"get": map[string]any{
					"responses": map[string]any{"200": jsonOK("#/components/schemas/BatchList")},
				},
				"post": map[string]any{
					"requestBody": map[string]any{
						"required": true,
						"content": map[string]any{
							"application/json": map[string]any{
								"schema": map[string]any{"$ref": "#/components/schemas/StartBatchRequest"},
							},
						},
					},
					"responses": map[string]any{
						"201": jsonOK("#/components/schemas/Batch"),
						"400": jsonErr,
						"404": jsonErr,
						"500": jsonErr,
					},
				},
			},
			"/api/v1/batches/{id}": map[string]any{
				"get": map[string]any{
					"responses": map[string]any{
						"200": jsonOK("#/components/schemas/Batch"),
						"404": jsonErr,
					},
				},
			},
			"/api/v1/batches/{id}/cancel": map[string]any{
				"post": map[string]any{
					"responses": map[string]any{
						"200": jsonOK("#/components/schemas/Batch"),
						"404": jsonErr,
					},
				},
			},
			"/api/v1/ledgers/{account}/schedules": map[string]any{
				"get": map[string]any{
					"responses": map[string]any{
						"200": map[string]any{"description": "OK"},
						"500": jsonErr,
					},
				},
			},
			"/api/v1/ledgers/{account}/publishes": map[string]any{
				"get": map[string]any{
					"responses": map[string]any{
						"200": map[string]any{"description": "OK"},
						"500": jsonErr,
					},
				},
			},
		},
	}

	httpjson.Write(w, http.StatusOK, spec)
}
