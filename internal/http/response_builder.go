// Package http serves the expenses REST API.
//
// This file implements a small builder for JSON responses so every handler
// answers with the same content type and error shape.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"gastos/internal/core"
	"gastos/internal/imports"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	if b.body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// ErrorBody is the error shape of every non-2xx response.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// ErrorResponse creates a standard {"detail": ...} error response.
func ErrorResponse(statusCode int, detail string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(ErrorBody{Detail: detail})
}

func BadRequestError(detail string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, detail)
}

func NotFoundError(detail string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, detail)
}

func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "Internal server error")
}

// statusFor maps domain errors to HTTP status codes. Anything unknown is a 500.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, imports.ErrUnsupportedFile),
		errors.Is(err, imports.ErrMissingColumns),
		errors.Is(err, imports.ErrEmptyFile),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrInvalidYear),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrEmptyUpdate),
		errors.Is(err, core.ErrInvalidPage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// FromError builds the error response for err. Server errors hide their cause.
func FromError(err error) *JSONResponseBuilder {
	status := statusFor(err)
	switch status {
	case http.StatusInternalServerError:
		return InternalServerError()
	case http.StatusRequestEntityTooLarge:
		return ErrorResponse(status, "File too large")
	default:
		return ErrorResponse(status, err.Error())
	}
}
