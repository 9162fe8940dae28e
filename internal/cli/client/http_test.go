package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPost_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/hackrx/run", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req AskRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://example.com/doc.pdf", req.Documents)

		json.NewEncoder(w).Encode(AskResponse{Answers: []string{"30 days."}})
	}))
	defer server.Close()

	api := NewAPIClientWithConfig("secret-token", server.URL)

	var resp AskResponse
	err := api.Post("/hackrx/run", AskRequest{
		Documents: "https://example.com/doc.pdf",
		Questions: []string{"What is the grace period?"},
	}, &resp)
	require.NoError(t, err)
	assert.Equal(t, []string{"30 days."}, resp.Answers)
}

func TestPost_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid bearer token"})
	}))
	defer server.Close()

	api := NewAPIClientWithConfig("wrong-token", server.URL)

	err := api.Post("/hackrx/run", AskRequest{}, nil)
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "invalid bearer token", apiErr.Message)
}

func TestPost_NonJSONErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer server.Close()

	api := NewAPIClientWithConfig("token", server.URL)

	err := api.Post("/hackrx/run", AskRequest{}, nil)
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "upstream unavailable")
}
