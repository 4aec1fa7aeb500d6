package common

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDataWrapsPayload(t *testing.T) {
	rr := httptest.NewRecorder()
	Data(rr, http.StatusCreated, map[string]int{"count": 2})

	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var body struct {
		Data map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, 2, body.Data["count"])
}

func TestJSONErrorShape(t *testing.T) {
	rr := httptest.NewRecorder()
	JSONError(rr, http.StatusNotFound, "NOT_FOUND", "no such row", nil)

	require.Equal(t, http.StatusNotFound, rr.Code)
	var body struct {
		Error ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "NOT_FOUND", body.Error.Code)
	require.Equal(t, "no such row", body.Error.Message)
	require.Nil(t, body.Error.Details)
}
