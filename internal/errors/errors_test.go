package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"fairaudit/internal/fairness"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFairness(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType ErrorType
		wantCode string
		ctxKey   string
	}{
		{"insufficient", &fairness.InsufficientDataError{Count: 3, Minimum: 10}, ErrorTypeValidation, ErrCodeInsufficientData, "minimum_records"},
		{"single group", &fairness.SingleGroupError{Groups: []string{"A"}}, ErrorTypeValidation, ErrCodeSingleGroup, "groups"},
		{"invalid record", &fairness.InvalidRecordError{Index: 4, Field: "predicted_label", Reason: "is required"}, ErrorTypeValidation, ErrCodeInvalidRecord, "record_index"},
		{"unknown group", &fairness.UnknownGroupError{Group: "X"}, ErrorTypeValidation, ErrCodeUnknownGroup, "group"},
		{"wrapped", fmt.Errorf("evaluate: %w", &fairness.SingleGroupError{}), ErrorTypeValidation, ErrCodeSingleGroup, "groups"},
		{"other", fmt.Errorf("boom"), ErrorTypeInternal, ErrCodeEvaluationFailed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := FromFairness(tt.err)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.wantType, appErr.Type)
			assert.Equal(t, tt.wantCode, appErr.Code)
			if tt.ctxKey != "" {
				assert.Contains(t, appErr.Context, tt.ctxKey)
			}
			assert.ErrorIs(t, appErr, tt.err)
		})
	}

	assert.Nil(t, FromFairness(nil))

	existing := NewConfigError(ErrCodeInvalidConfig, "bad", nil)
	assert.Same(t, existing, FromFairness(fmt.Errorf("wrap: %w", existing)))
}

func TestLogErrorLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, slog.LevelDebug)

	logger.LogError(FromFairness(&fairness.UnknownGroupError{Group: "X"}), "rejected", "request_id", "r1")
	logger.LogError(fmt.Errorf("plain"), "failed")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))

	assert.Equal(t, "WARN", first["level"])
	assert.Equal(t, ErrCodeUnknownGroup, first["error_code"])
	assert.Equal(t, "X", first["group"])
	assert.Equal(t, "r1", first["request_id"])
	assert.Equal(t, "ERROR", second["level"])
	assert.Equal(t, "plain", second["error"])
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("verbose")
	assert.Error(t, err)
	logger, err := New("warn")
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
