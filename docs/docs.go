package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "description": "TaskRelay API Documentation",
        "title": "TaskRelay API",
        "version": "1.0"
    },
    "host": "localhost:8080",
    "basePath": "/api/v1",
    "schemes": ["http"],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Health"],
                "summary": "Health Check",
                "description": "Check if server is running",
                "responses": {
                    "200": {
                        "description": "Server is healthy"
                    }
                }
            }
        },
        "/api/v1/tasks": {
            "get": {
                "tags": ["Tasks"],
                "summary": "List tasks",
                "description": "List tasks filtered by state and due window",
                "produces": ["application/json"],
                "parameters": [
                    {
                        "in": "query",
                        "name": "completed",
                        "type": "boolean",
                        "description": "Filter by completion state"
                    },
                    {
                        "in": "query",
                        "name": "deleted",
                        "type": "boolean",
                        "description": "Filter by deletion state (default false)"
                    },
                    {
                        "in": "query",
                        "name": "due_before",
                        "type": "string",
                        "description": "Due before (RFC 3339)"
                    },
                    {
                        "in": "query",
                        "name": "due_after",
                        "type": "string",
                        "description": "Due after (RFC 3339)"
                    },
                    {
                        "in": "query",
                        "name": "limit",
                        "type": "integer",
                        "description": "Page size (default 20)"
                    },
                    {
                        "in": "query",
                        "name": "offset",
                        "type": "integer",
                        "description": "Page offset"
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Page of tasks"
                    },
                    "401": {
                        "description": "Unauthorized"
                    }
                }
            },
            "post": {
                "tags": ["Tasks"],
                "summary": "Create a task",
                "description": "Create a new task and kick off its side effects",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {
                        "in": "body",
                        "name": "task",
                        "description": "Task data",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "properties": {
                                "title": {
                                    "type": "string",
                                    "example": "Water the plants"
                                },
                                "notes": {
                                    "type": "string"
                                },
                                "priority": {
                                    "type": "string",
                                    "example": "medium"
                                },
                                "due_date": {
                                    "type": "string",
                                    "example": "2024-03-15T09:00:00Z"
                                },
                                "snoozed_until": {
                                    "type": "string"
                                },
                                "recurrence": {
                                    "type": "string",
                                    "example": "FREQ=WEEKLY"
                                },
                                "calendar_uri": {
                                    "type": "string"
                                }
                            }
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Task created"
                    },
                    "400": {
                        "description": "Invalid task data"
                    },
                    "401": {
                        "description": "Unauthorized"
                    }
                }
            }
        },
        "/api/v1/tasks/{id}": {
            "get": {
                "tags": ["Tasks"],
                "summary": "Get a task",
                "produces": ["application/json"],
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "integer",
                        "required": true
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Task"
                    },
                    "404": {
                        "description": "Task not found"
                    }
                }
            },
            "put": {
                "tags": ["Tasks"],
                "summary": "Update a task",
                "description": "Replace the task's editable fields with the request body; omitted nullable fields are cleared",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "integer",
                        "required": true
                    },
                    {
                        "in": "body",
                        "name": "task",
                        "description": "Complete mutated task",
                        "required": true,
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Updated task"
                    },
                    "404": {
                        "description": "Task not found"
                    }
                }
            },
            "delete": {
                "tags": ["Tasks"],
                "summary": "Delete a task",
                "description": "Soft-delete a task; deleting an already deleted task succeeds",
                "produces": ["application/json"],
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "integer",
                        "required": true
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Task deleted"
                    },
                    "404": {
                        "description": "Task not found"
                    }
                }
            }
        },
        "/api/v1/tasks/{id}/complete": {
            "post": {
                "tags": ["Tasks"],
                "summary": "Complete a task",
                "description": "Mark a task completed; completing a completed task changes nothing",
                "produces": ["application/json"],
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "integer",
                        "required": true
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Completed task"
                    },
                    "404": {
                        "description": "Task not found"
                    }
                }
            }
        },
        "/api/v1/tasks/{id}/reopen": {
            "post": {
                "tags": ["Tasks"],
                "summary": "Reopen a task",
                "produces": ["application/json"],
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "integer",
                        "required": true
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Reopened task"
                    },
                    "404": {
                        "description": "Task not found"
                    }
                }
            }
        },
        "/api/v1/tasks/{id}/snooze": {
            "post": {
                "tags": ["Tasks"],
                "summary": "Snooze a task",
                "description": "Hide a task's reminders until the given instant",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "integer",
                        "required": true
                    },
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "properties": {
                                "until": {
                                    "type": "string",
                                    "example": "2024-03-15T09:00:00Z"
                                }
                            }
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Snoozed task"
                    },
                    "400": {
                        "description": "Wake time not in the future"
                    },
                    "404": {
                        "description": "Task not found"
                    }
                }
            }
        },
        "/api/v1/tasks/bulk-complete": {
            "post": {
                "tags": ["Tasks"],
                "summary": "Complete several tasks at once",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "type": "object",
                            "properties": {
                                "ids": {
                                    "type": "array",
                                    "items": {
                                        "type": "integer"
                                    }
                                }
                            }
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Number of tasks completed"
                    },
                    "400": {
                        "description": "Empty id list"
                    }
                }
            }
        },
        "/api/v1/tasks/confirm-saved": {
            "post": {
                "tags": ["Tasks"],
                "summary": "Replay side effects for an externally written task",
                "description": "Evaluate side effects for a row that was already written through another path",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "description": "Pre-write snapshot",
                        "required": true,
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Side effects replayed"
                    },
                    "404": {
                        "description": "Task not found"
                    }
                }
            }
        },
        "/api/v1/sync": {
            "post": {
                "tags": ["Sync"],
                "summary": "Trigger a remote sync",
                "description": "Wake the push loop; pending changes are sent in the background",
                "produces": ["application/json"],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "202": {
                        "description": "Sync scheduled"
                    },
                    "401": {
                        "description": "Unauthorized"
                    }
                }
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header",
            "description": "Type 'Bearer' followed by a space and JWT token"
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http"},
	Title:            "TaskRelay API",
	Description:      "TaskRelay API Documentation",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
