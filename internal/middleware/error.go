package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"furniture-catalog/internal/domain"

	"go.uber.org/zap"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Kind      string                 `json:"kind"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// Machine-readable error kinds
const (
	KindValidation         = "validation"
	KindUnauthorized       = "unauthorized"
	KindForbidden          = "forbidden"
	KindNotFound           = "not_found"
	KindConflict           = "conflict"
	KindRateLimited        = "rate_limited"
	KindInvalidCredentials = "invalid_credentials"
	KindUploadFailed       = "upload_failed"
	KindSendFailed         = "send_failed"
	KindInternal           = "internal"
)

var statusKinds = map[int]string{
	http.StatusBadRequest:            KindValidation,
	http.StatusRequestEntityTooLarge: KindValidation,
	http.StatusUnauthorized:          KindUnauthorized,
	http.StatusForbidden:             KindForbidden,
	http.StatusNotFound:              KindNotFound,
	http.StatusConflict:              KindConflict,
	http.StatusTooManyRequests:       KindRateLimited,
	http.StatusBadGateway:            KindSendFailed,
}

func kindForStatus(statusCode int) string {
	if kind, ok := statusKinds[statusCode]; ok {
		return kind
	}
	return KindInternal
}

// RespondWithError sends a structured error response
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	RespondWithErrorDetails(w, statusCode, message, nil)
}

// RespondWithErrorDetails sends a structured error response with additional details
func RespondWithErrorDetails(w http.ResponseWriter, statusCode int, message string, details map[string]interface{}) {
	writeError(w, statusCode, kindForStatus(statusCode), message, details)
}

func writeError(w http.ResponseWriter, statusCode int, kind, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: ErrorDetail{
			Code:      http.StatusText(statusCode),
			Kind:      kind,
			Message:   message,
			Details:   details,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	json.NewEncoder(w).Encode(response)
}

// RespondWithDomainError maps a service error onto the HTTP error envelope.
// Errors outside the domain taxonomy are logged and reported as 500.
func RespondWithDomainError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var (
		notFound *domain.NotFoundError
		conflict *domain.ConflictError
	)

	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, KindValidation, err.Error(), nil)
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, KindNotFound, err.Error(),
			map[string]interface{}{"resource": notFound.Kind})
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, string(conflict.Reason), err.Error(), nil)
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, KindInvalidCredentials, "invalid credentials", nil)
	case errors.Is(err, domain.ErrSend):
		logger.Error("Message delivery failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, KindSendFailed, "failed to send message", nil)
	case errors.Is(err, domain.ErrUpload):
		logger.Error("Upload failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, KindUploadFailed, "failed to store upload", nil)
	default:
		logger.Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, KindInternal, "internal server error", nil)
	}
}

// RespondWithValidationErrors sends validation error response
func RespondWithValidationErrors(w http.ResponseWriter, errors []ValidationError) {
	details := make(map[string]interface{})
	details["validation_errors"] = errors

	RespondWithErrorDetails(w, http.StatusBadRequest, "validation failed", details)
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					RespondWithError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
