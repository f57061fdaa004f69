package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/calicogames/lorechat/internal/observability"
)

// genericFallback is returned when a failure carries no usable reason.
const genericFallback = "Sorry, an unexpected error occurred. Please try again later."

// failureReply embeds the failure reason in the fixed fallback format.
// The resulting text contains the sentinel phrase the send flow filters on.
func failureReply(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return genericFallback
	}
	return fmt.Sprintf("Sorry, I encountered an error: %s. Please try again later.", reason)
}

type queryRequest struct {
	Query string `json:"query"`
}

type queryResponse struct {
	Response string `json:"response"`
	Message  string `json:"message"`
}

// HTTPClient wraps the external answering endpoint: POST {baseURL}/query
// with {"query": ...}, expecting {"response": ...}. Ask never returns an
// error; every failure becomes a fallback reply string.
type HTTPClient struct {
	baseURL string
	hc      *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      http.DefaultClient,
	}
}

func (c *HTTPClient) Ask(ctx context.Context, query string) string {
	log := observability.LoggerFromContext(ctx)

	body, err := json.Marshal(queryRequest{Query: query})
	if err != nil {
		return failureReply(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return failureReply(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		log.Error("answering endpoint unreachable", "error", err)
		return failureReply(err.Error())
	}
	defer res.Body.Close()

	var parsed queryResponse
	decodeErr := json.NewDecoder(res.Body).Decode(&parsed)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		// Non-2xx responses carry {"message": ...} with the reason.
		reason := parsed.Message
		if reason == "" {
			reason = fmt.Sprintf("An error occurred: %s", res.Status)
		}
		log.Error("answering endpoint returned error", "status", res.StatusCode, "reason", reason)
		return failureReply(reason)
	}

	if decodeErr != nil {
		log.Error("malformed answering response", "error", decodeErr)
		return failureReply(decodeErr.Error())
	}
	if parsed.Response == "" {
		return genericFallback
	}

	return parsed.Response
}
