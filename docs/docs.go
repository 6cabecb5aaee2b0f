// Package docs registers the OpenAPI description of the ledger API with swag
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
        "/transactions": {
            "post": {
                "security": [{"ServiceToken": []}],
                "description": "Apply a balanced set of entries atomically; a repeated idempotency key returns the original result",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["transactions"],
                "summary": "Post a ledger transaction",
                "parameters": [
                    {
                        "description": "Transaction",
                        "name": "transaction",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/handlers.createTransactionRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "Idempotent replay", "schema": {"$ref": "#/definitions/handlers.transactionResponse"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.transactionResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/services.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/services.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/services.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/services.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        },
        "/accounts": {
            "post": {
                "security": [{"ServiceToken": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["accounts"],
                "summary": "Open a user account",
                "parameters": [
                    {
                        "description": "Account owner",
                        "name": "account",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "properties": {"userId": {"type": "integer"}}
                        }
                    }
                ],
                "responses": {
                    "200": {"description": "Account already existed", "schema": {"$ref": "#/definitions/models.Account"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Account"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/services.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        },
        "/accounts/user/{userId}": {
            "get": {
                "security": [{"ServiceToken": []}],
                "produces": ["application/json"],
                "tags": ["accounts"],
                "summary": "Get a user's account",
                "parameters": [
                    {"type": "integer", "description": "User ID", "name": "userId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Account"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        },
        "/accounts/system/{name}": {
            "get": {
                "security": [{"ServiceToken": []}],
                "produces": ["application/json"],
                "tags": ["accounts"],
                "summary": "Get a system account by name",
                "parameters": [
                    {"type": "string", "description": "System account name", "name": "name", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Account"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        },
        "/accounts/{accountId}": {
            "get": {
                "security": [{"ServiceToken": []}],
                "produces": ["application/json"],
                "tags": ["accounts"],
                "summary": "Get an account by ID",
                "parameters": [
                    {"type": "integer", "description": "Account ID", "name": "accountId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Account"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.createTransactionRequest": {
            "type": "object",
            "required": ["createdBy", "reason"],
            "properties": {
                "createdBy": {"type": "integer"},
                "reason": {"type": "string", "maxLength": 255},
                "idempotencyKey": {"type": "string", "maxLength": 255},
                "source": {"$ref": "#/definitions/models.TransactionSource"},
                "metadata": {"type": "object", "additionalProperties": true},
                "entries": {"type": "array", "items": {"$ref": "#/definitions/models.Entry"}},
                "participants": {"type": "array", "items": {"$ref": "#/definitions/models.Participant"}}
            }
        },
        "handlers.entryResponse": {
            "type": "object",
            "properties": {
                "accountId": {"type": "integer"},
                "amount": {"type": "integer"},
                "balanceAfter": {"type": "integer"}
            }
        },
        "handlers.transactionResponse": {
            "type": "object",
            "properties": {
                "transactionId": {"type": "integer"},
                "createdAt": {"type": "string"},
                "idempotent": {"type": "boolean"},
                "entries": {"type": "array", "items": {"$ref": "#/definitions/handlers.entryResponse"}},
                "participants": {"type": "array", "items": {"$ref": "#/definitions/models.ParticipantResult"}}
            }
        },
        "models.Account": {
            "type": "object",
            "properties": {
                "accountId": {"type": "integer"},
                "userId": {"type": "integer"},
                "kind": {"type": "string", "enum": ["user", "treasury", "sink", "liability", "escrow"]},
                "balance": {"type": "integer"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "models.Entry": {
            "type": "object",
            "properties": {
                "accountId": {"type": "integer"},
                "amount": {"type": "integer"}
            }
        },
        "models.Participant": {
            "type": "object",
            "properties": {
                "kind": {"type": "string", "enum": ["user", "system", "account"]},
                "userId": {"type": "integer"},
                "name": {"type": "string"},
                "accountId": {"type": "integer"},
                "amount": {"type": "integer"}
            }
        },
        "models.ParticipantResult": {
            "type": "object",
            "properties": {
                "kind": {"type": "string"},
                "userId": {"type": "integer"},
                "name": {"type": "string"},
                "accountId": {"type": "integer"},
                "amount": {"type": "integer"},
                "balanceAfter": {"type": "integer"}
            }
        },
        "models.TransactionSource": {
            "type": "object",
            "required": ["table", "id"],
            "properties": {
                "table": {"type": "string", "maxLength": 128},
                "id": {"type": "integer"}
            }
        },
        "services.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "message": {"type": "string"},
                "details": {"type": "object", "additionalProperties": {"type": "string"}},
                "timestamp": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "ServiceToken": {
            "type": "apiKey",
            "name": "X-Service-Token",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Ledger API",
	Description:      "Double-entry ledger for posting balanced transactions between accounts",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
