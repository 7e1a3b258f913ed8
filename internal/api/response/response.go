// Package response writes the JSON envelope shared by every API handler.
package response

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/followwatch/internal/logger"
)

// MaxBodyBytes caps request bodies decoded by Decode.
const MaxBodyBytes = 1 << 20

// Response is a standard API response wrapper.
type Response struct {
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(Response{Data: data}); err != nil {
		logger.Warn("encode response", zap.Error(err))
	}
}

// JSONError writes a JSON error response.
func JSONError(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status)

	if encErr := json.NewEncoder(w).Encode(Response{Error: err}); encErr != nil {
		logger.Warn("encode error response", zap.Error(encErr))
	}
}

// Fail writes the API error mapped from err. Server-side failures are logged
// with the request context.
func Fail(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	apiErr := FromError(err)
	if apiErr.Status >= http.StatusInternalServerError {
		logger.ErrorCtx(ctx, fmt.Errorf("%s: %w", msg, err))
	}
	JSONError(w, apiErr)
}

// Created writes a 201 Created response.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// OK writes a 200 OK response.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// NoContent writes a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Decode reads a JSON request body into v, rejecting unknown fields.
func Decode(w http.ResponseWriter, r *http.Request, v any) *Error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return NewBadRequest("request body is required")
		}
		return NewBadRequest("invalid request body")
	}
	return nil
}
