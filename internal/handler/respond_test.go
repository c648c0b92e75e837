package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/rentnest/internal/domain"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
		wantBody   string
	}{
		{"not found", domain.NotFoundf("application x not found"), http.StatusNotFound, "not_found", "application x not found"},
		{"forbidden", domain.Forbiddenf("not yours"), http.StatusForbidden, "forbidden", "not yours"},
		{"invalid state", domain.InvalidStatef("cannot update application with status: rejected"), http.StatusConflict, "invalid_state", "cannot update application with status: rejected"},
		{"duplicate", domain.Duplicatef("already applied"), http.StatusConflict, "duplicate", "already applied"},
		{"conflict", domain.Conflictf("property is not available"), http.StatusConflict, "conflict", "property is not available"},
		{"transaction", domain.Transactionf("commit failed"), http.StatusInternalServerError, "transaction_failed", "operation could not be completed, please retry"},
		{"internal", errors.New("pq: connection refused"), http.StatusInternalServerError, "", "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, nil, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantKind, body.Kind)
			assert.Equal(t, tt.wantBody, body.Error)
		})
	}
}

// The three conflict-class kinds share a 409 status; the kind field is what
// lets clients tell a losing race from a double-apply or an unavailable
// property.
func TestWriteErrorConflictKindsDistinguishable(t *testing.T) {
	errs := map[string]error{
		"invalid_state": domain.InvalidStatef("cannot update application with status: approved"),
		"duplicate":     domain.Duplicatef("you already have an application for this property"),
		"conflict":      domain.Conflictf("property is not available"),
	}

	for wantKind, err := range errs {
		rec := httptest.NewRecorder()
		writeError(rec, nil, err)

		require.Equal(t, http.StatusConflict, rec.Code)
		var body errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, wantKind, body.Kind)
	}
}
