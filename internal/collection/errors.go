package collection

import "fmt"

// SchemaError — ошибки схемной валидации: свойство -> причина.
// На проводе обе формы ошибок выглядят как {errors: {...}}, но происхождение
// различаем типами: SchemaError — от валидатора, DomainError — от скрипта.
type SchemaError struct {
	Fields map[string]string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("validation failed (%d fields)", len(e.Fields))
}

// DomainError — ошибки, собранные событийным скриптом через error()
type DomainError struct {
	Fields map[string]string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("script reported errors (%d fields)", len(e.Fields))
}

// StatusError — ошибка с HTTP-статусом: {message, statusCode}
type StatusError struct {
	Message    string
	StatusCode int
}

func (e *StatusError) Error() string {
	return e.Message
}

func notFound() *StatusError {
	return &StatusError{Message: "not found", StatusCode: 404}
}

func forbidden(msg string) *StatusError {
	return &StatusError{Message: msg, StatusCode: 403}
}

func badRequest(msg string) *StatusError {
	return &StatusError{Message: msg, StatusCode: 400}
}
