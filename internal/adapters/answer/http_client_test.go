package answer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAskReturnsResponseText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/query", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "who is the lich queen?", body["query"])

		json.NewEncoder(w).Encode(map[string]string{"response": "She was once the court archivist."})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	reply := c.Ask(context.Background(), "who is the lich queen?")

	assert.Equal(t, "She was once the court archivist.", reply)
}

func TestAskMapsErrorStatusToFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"message": "model overloaded"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	reply := c.Ask(context.Background(), "anything")

	assert.Contains(t, strings.ToLower(reply), "sorry, i encountered an error")
	assert.Contains(t, reply, "model overloaded")
}

func TestAskMapsErrorStatusWithoutBodyToFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	reply := c.Ask(context.Background(), "anything")

	assert.Contains(t, strings.ToLower(reply), "sorry, i encountered an error")
}

func TestAskMapsMalformedBodyToFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not json"))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	reply := c.Ask(context.Background(), "anything")

	assert.Contains(t, strings.ToLower(reply), "sorry, i encountered an error")
}

func TestAskMapsTransportFailureToFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	c := NewHTTPClient(srv.URL)
	reply := c.Ask(context.Background(), "anything")

	assert.Contains(t, strings.ToLower(reply), "sorry, i encountered an error")
}

func TestFailureReplyWithoutReasonIsGeneric(t *testing.T) {
	assert.Equal(t, genericFallback, failureReply("  "))
}
