package errors

import "net/http"

// Application error codes. The leading three digits match the HTTP status
// the boundary responds with; the trailing two distinguish kinds sharing a
// status.
const (
	CodeAuthRequired     = 40100
	CodePermissionDenied = 40300
	CodeNotFound         = 40400
	CodeConflict         = 40900
	CodeCycleDetected    = 40901
	CodeValidation       = 42200
	CodeTemplateRender   = 42201
	CodeLLMUnavailable   = 50200
)

// AuthRequired reports a missing or invalid bearer credential.
func AuthRequired(msg string) *Error {
	return &Error{Code: CodeAuthRequired, HTTPStatus: http.StatusUnauthorized, Message: msg}
}

// PermissionDenied reports cross-project access to a non-shared prompt.
func PermissionDenied(msg string) *Error {
	return &Error{Code: CodePermissionDenied, HTTPStatus: http.StatusForbidden, Message: msg}
}

// NotFound reports an entity lookup miss by id or slug.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, HTTPStatus: http.StatusNotFound, Message: msg}
}

// Conflict reports a uniqueness violation, typically on slugs.
func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, HTTPStatus: http.StatusConflict, Message: msg}
}

// CycleDetected reports a ref or pipeline mutation that would form a cycle.
func CycleDetected(msg string) *Error {
	return &Error{Code: CodeCycleDetected, HTTPStatus: http.StatusConflict, Message: msg}
}

// Validation reports a schema, shape or field-rule failure.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, HTTPStatus: http.StatusUnprocessableEntity, Message: msg}
}

// TemplateRender reports a template failure: syntax error, undefined
// variable, variable-contract violation or sandbox violation. The reason
// detail distinguishes them.
func TemplateRender(msg string) *Error {
	return &Error{Code: CodeTemplateRender, HTTPStatus: http.StatusUnprocessableEntity, Message: msg}
}

// LLMUnavailable reports a failed or timed-out outbound LLM call.
func LLMUnavailable(msg string) *Error {
	return &Error{Code: CodeLLMUnavailable, HTTPStatus: http.StatusBadGateway, Message: msg}
}

// Render failure reasons carried under the "reason" detail key of a
// TemplateRender error.
const (
	ReasonVariablesMissing  = "variables_missing"
	ReasonVariableInvalid   = "variable_invalid"
	ReasonTemplateUndefined = "template_undefined"
	ReasonTemplateSyntax    = "template_syntax"
	ReasonTemplateUnsafe    = "template_unsafe"
)
