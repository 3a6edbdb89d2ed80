// Package http provides HTTP server and handler implementations.
//
// This file implements a fluent builder for JSON responses and the mapping
// from service errors to status codes and client-facing error codes.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"potshare/internal/core"
	applog "potshare/internal/log"
	"potshare/internal/storage"
)

// Error codes returned next to the message in error bodies. Validation
// failures use the core reason codes instead.
const (
	codeNotFound    = "not_found"
	codeInternal    = "internal"
	codeTimeout     = "timeout"
	codeRateLimited = "rate_limited"
	codeUnavailable = "unavailable"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse creates a builder with status 200.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header sets a custom header.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if b.body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(b.body)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ErrorResponse builds the standard error body.
func ErrorResponse(statusCode int, message, code string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message, Code: code})
}

// Created builds a 201 response wrapping v under key.
func Created(key string, v any) *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusCreated).Body(map[string]any{key: v})
}

// OK builds a 200 response wrapping v under key.
func OK(key string, v any) *JSONResponseBuilder {
	return NewJSONResponse().Body(map[string]any{key: v})
}

// classify maps an error returned by a service to a status and code.
func classify(err error) (int, string) {
	if reason := core.ReasonFor(err); reason != "" {
		return http.StatusBadRequest, reason
	}
	switch {
	case errors.Is(err, errInvalidBody), errors.Is(err, errInvalidDate):
		return http.StatusBadRequest, core.ReasonInvalidInput
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, codeTimeout
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

// fail logs and counts err according to its class, then writes the error body.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op, potID string, err error) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)
	status, code := classify(err)

	switch {
	case status == http.StatusBadRequest:
		s.metrics.Rejected(code)
		applog.NewStructuredLogger(logger).LogRejected(ctx, op, err, code, potID)
	case status == http.StatusNotFound:
		logger.DebugContext(ctx, "Resource not found",
			applog.FieldOperation, op,
			applog.FieldPotID, potID,
			applog.FieldError, err)
	default:
		applog.NewStructuredLogger(logger).LogError(ctx, "Request failed", err, op,
			applog.LogFields{applog.FieldPotID: potID})
	}

	ErrorResponse(status, err.Error(), code).Write(w)
}
