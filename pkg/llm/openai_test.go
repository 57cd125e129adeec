package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClient_GenerateSendsZeroTemperature(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"{\"same_entity\":true,\"confidence\":0.9,\"reasoning\":\"ok\"}"}}]}`)
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", "gpt-4o-mini", server.URL+"/v1")

	out, err := client.Generate(context.Background(), "compare these records")
	require.NoError(t, err)
	assert.Contains(t, out, "same_entity")

	// A literal 0 would be dropped by omitempty and the provider default
	// (1.0) would apply; the request must carry the near-zero sentinel.
	temp, ok := body["temperature"].(float64)
	require.True(t, ok, "temperature missing from request body")
	assert.Greater(t, temp, 0.0)
	assert.Less(t, temp, 1e-6)
}
