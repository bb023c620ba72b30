package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/tierledger/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", domain.Invalid("amount", domain.ErrInvalidAmount), http.StatusBadRequest},
		{"unknown user inside validation", domain.Invalid("user_id", fmt.Errorf("%w: bob", domain.ErrUnknownUser)), http.StatusBadRequest},
		{"insufficient", fmt.Errorf("%w: requested 5", domain.ErrInsufficientBalance), http.StatusUnprocessableEntity},
		{"not found", fmt.Errorf("user x: %w", domain.ErrNotFound), http.StatusNotFound},
		{"transition", domain.ErrInvalidStatusTransition, http.StatusConflict},
		{"duplicate", domain.ErrDuplicateUser, http.StatusConflict},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestError_HidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, errors.New("sqlite: disk I/O error"), zerolog.Nop())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal error", body.Error)
}

func TestError_ReportsField(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, domain.Invalid("amount", domain.ErrNonPositiveAmount), zerolog.Nop())

	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "amount", body.Field)
}

func TestData_WrapsEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Data(rec, http.StatusCreated, map[string]int{"n": 1}, zerolog.Nop())

	assert.Equal(t, http.StatusCreated, rec.Code)
	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Contains(t, env, "data")
	assert.Contains(t, env["metadata"], "timestamp")
}
