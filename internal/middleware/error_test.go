package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"furniture-catalog/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	resourceGen = gen.OneConstOf(
		domain.KindProduct, domain.KindAttachment, domain.KindEntry, domain.KindBlob,
		domain.KindUser, domain.KindImageSet, "edge", "leg finish", "top material",
	)
	reasonGen = gen.OneConstOf(
		domain.ConflictDuplicateName, domain.ConflictDuplicateAttachment, domain.ConflictUserExists,
		domain.ConflictSingleUserOnly, domain.ConflictEntityInUse,
	)
)

func decodeEnvelope(w *httptest.ResponseRecorder) (ErrorDetail, bool) {
	var response ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		return ErrorDetail{}, false
	}
	if w.Header().Get("Content-Type") != "application/json" {
		return ErrorDetail{}, false
	}
	if _, err := time.Parse(time.RFC3339, response.Error.Timestamp); err != nil {
		return ErrorDetail{}, false
	}
	return response.Error, true
}

// A missing entity of any kind, however deeply wrapped, answers 404 and
// names the resource in details.
func TestProperty_NotFoundNamesResource(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("not found errors map to 404 with the resource", prop.ForAll(
		func(resource string, wraps int) bool {
			err := domain.NotFound(resource)
			for i := 0; i < wraps; i++ {
				err = fmt.Errorf("layer %d: %w", i, err)
			}

			w := httptest.NewRecorder()
			RespondWithDomainError(w, err, zap.NewNop())

			detail, ok := decodeEnvelope(w)
			if !ok || w.Code != http.StatusNotFound {
				return false
			}
			return detail.Kind == KindNotFound &&
				detail.Code == "Not Found" &&
				detail.Details["resource"] == resource &&
				strings.Contains(detail.Message, resource+" not found")
		},
		resourceGen,
		gen.IntRange(0, 3),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// The conflict reason becomes the machine-readable kind and the message
// reaches the client unchanged.
func TestProperty_ConflictReasonIsKind(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("conflicts map to 409 with the reason as kind", prop.ForAll(
		func(reason domain.ConflictReason, message string) bool {
			w := httptest.NewRecorder()
			RespondWithDomainError(w, domain.Conflict(reason, "%s", message), zap.NewNop())

			detail, ok := decodeEnvelope(w)
			if !ok || w.Code != http.StatusConflict {
				return false
			}
			return detail.Kind == string(reason) && detail.Message == message
		},
		reasonGen,
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Validation failures answer 400 with the same kind kindForStatus assigns.
func TestProperty_InvalidMapsToValidation(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("validation errors map to 400", prop.ForAll(
		func(field string) bool {
			err := domain.Invalid("%s is required", field)

			w := httptest.NewRecorder()
			RespondWithDomainError(w, err, zap.NewNop())

			detail, ok := decodeEnvelope(w)
			if !ok || w.Code != http.StatusBadRequest {
				return false
			}
			return detail.Kind == KindValidation &&
				detail.Kind == kindForStatus(http.StatusBadRequest) &&
				detail.Message == err.Error()
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Errors outside the taxonomy never leak their text to the client.
func TestProperty_UnknownErrorsStayInternal(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("opaque errors map to a generic 500", prop.ForAll(
		func(cause string) bool {
			err := fmt.Errorf("failed to update product: %s", cause)

			w := httptest.NewRecorder()
			RespondWithDomainError(w, err, zap.NewNop())

			detail, ok := decodeEnvelope(w)
			if !ok || w.Code != http.StatusInternalServerError {
				return false
			}
			return detail.Kind == KindInternal &&
				detail.Message == "internal server error" &&
				detail.Details == nil
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestKindForStatus(t *testing.T) {
	tests := []struct {
		status int
		kind   string
	}{
		{http.StatusBadRequest, KindValidation},
		{http.StatusRequestEntityTooLarge, KindValidation},
		{http.StatusUnauthorized, KindUnauthorized},
		{http.StatusForbidden, KindForbidden},
		{http.StatusNotFound, KindNotFound},
		{http.StatusConflict, KindConflict},
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusBadGateway, KindSendFailed},
		{http.StatusInternalServerError, KindInternal},
		{http.StatusServiceUnavailable, KindInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.kind, kindForStatus(tt.status), http.StatusText(tt.status))

		w := httptest.NewRecorder()
		RespondWithError(w, tt.status, "request rejected")
		detail, ok := decodeEnvelope(w)
		require.True(t, ok)
		assert.Equal(t, tt.kind, detail.Kind)
	}
}

func TestRespondWithDomainError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		kind     string
		resource string
	}{
		{"validation", domain.Invalid("name is required"), http.StatusBadRequest, KindValidation, ""},
		{"product not found", domain.NotFound(domain.KindProduct), http.StatusNotFound, KindNotFound, "product"},
		{"wrapped not found", fmt.Errorf("attach: %w", domain.NotFound("edge")), http.StatusNotFound, KindNotFound, "edge"},
		{"duplicate name", domain.Conflict(domain.ConflictDuplicateName, "exists"), http.StatusConflict, "duplicate_name", ""},
		{"single user", domain.Conflict(domain.ConflictSingleUserOnly, "exists"), http.StatusConflict, "single_user_only", ""},
		{"credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized, KindInvalidCredentials, ""},
		{"send", fmt.Errorf("%w: dial tcp", domain.ErrSend), http.StatusBadGateway, KindSendFailed, ""},
		{"upload", fmt.Errorf("%w: disk full", domain.ErrUpload), http.StatusInternalServerError, KindUploadFailed, ""},
		{"persistence", errors.New("failed to create product: connection reset"), http.StatusInternalServerError, KindInternal, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			RespondWithDomainError(w, tt.err, zap.NewNop())

			assert.Equal(t, tt.status, w.Code)

			var response ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.kind, response.Error.Kind)
			if tt.resource != "" {
				assert.Equal(t, tt.resource, response.Error.Details["resource"])
			}
			if tt.status == http.StatusInternalServerError {
				assert.NotContains(t, response.Error.Message, "connection reset")
			}
		})
	}
}

func TestRespondWithValidationErrors(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithValidationErrors(w, []ValidationError{
		{Field: "productId", Message: "productId is required"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	detail, ok := decodeEnvelope(w)
	require.True(t, ok)
	assert.Equal(t, KindValidation, detail.Kind)

	fields, ok := detail.Details["validation_errors"].([]interface{})
	require.True(t, ok)
	require.Len(t, fields, 1)
	assert.Equal(t, "productId", fields[0].(map[string]interface{})["field"])
}

func TestErrorHandlingMiddleware_RecoversPanics(t *testing.T) {
	handler := ErrorHandlingMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/products", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	detail, ok := decodeEnvelope(w)
	require.True(t, ok)
	assert.Equal(t, KindInternal, detail.Kind)
}
