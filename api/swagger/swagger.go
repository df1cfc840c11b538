package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "NECTA Results API",
        "description": "Grades, divisions, rankings and result sheets for NECTA O-Level and A-Level examinations",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Results", "description": "Grading, class result sheets and exports"}
    ],
    "paths": {
        "/results/grade": {
            "post": {
                "tags": ["Results"],
                "summary": "Grade a single mark",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GradeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/results/preview": {
            "post": {
                "tags": ["Results"],
                "summary": "Compute a class report from posted marks",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PreviewRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/results/classes/{classId}/exams/{examId}": {
            "get": {
                "tags": ["Results"],
                "summary": "Class result sheet",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "examId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "headers": {"X-Cache": {"type": "string", "description": "HIT or MISS"}}, "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/results/classes/{classId}/exams/{examId}/students/{studentId}": {
            "get": {
                "tags": ["Results"],
                "summary": "Student result slip",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "examId", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/results/batch": {
            "post": {
                "tags": ["Results"],
                "summary": "Result sheets for several classes",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BatchReportRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/results/recompute": {
            "post": {
                "tags": ["Results"],
                "summary": "Schedule a class report rebuild",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecomputeRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/results/export": {
            "post": {
                "tags": ["Results"],
                "summary": "Export a class result sheet",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/results/export/{token}": {
            "get": {
                "tags": ["Results"],
                "summary": "Download an exported result sheet",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "410": {"description": "Link expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "GradeRequest": {
            "type": "object",
            "properties": {
                "subject_id": {"type": "string"},
                "marks": {"type": "number", "minimum": 0, "maximum": 100},
                "education_level": {"type": "string", "enum": ["O_LEVEL", "A_LEVEL"]},
                "is_principal": {"type": "boolean"}
            },
            "required": ["education_level"]
        },
        "ResultInput": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "student_name": {"type": "string"},
                "subject_id": {"type": "string"},
                "subject_code": {"type": "string"},
                "subject_name": {"type": "string"},
                "marks": {"type": "number", "minimum": 0, "maximum": 100},
                "is_principal": {"type": "boolean"}
            },
            "required": ["student_id", "subject_id"]
        },
        "PreviewRequest": {
            "type": "object",
            "properties": {
                "class_id": {"type": "string"},
                "exam_id": {"type": "string"},
                "education_level": {"type": "string", "enum": ["O_LEVEL", "A_LEVEL"]},
                "results": {"type": "array", "items": {"$ref": "#/definitions/ResultInput"}},
                "combinations": {"type": "object", "additionalProperties": {"type": "array", "items": {"type": "string"}}}
            },
            "required": ["education_level", "results"]
        },
        "BatchReportRequest": {
            "type": "object",
            "properties": {
                "exam_id": {"type": "string"},
                "class_ids": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["exam_id", "class_ids"]
        },
        "RecomputeRequest": {
            "type": "object",
            "properties": {
                "class_id": {"type": "string"},
                "exam_id": {"type": "string"}
            },
            "required": ["exam_id"]
        },
        "ExportRequest": {
            "type": "object",
            "properties": {
                "class_id": {"type": "string"},
                "exam_id": {"type": "string"},
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            },
            "required": ["class_id", "exam_id", "format"]
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
