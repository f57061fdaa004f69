package httpadapter_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/calicogames/lorechat/internal/adapters/answer"
	httpadapter "github.com/calicogames/lorechat/internal/adapters/http"
	memstore "github.com/calicogames/lorechat/internal/adapters/storage/memory"
	"github.com/calicogames/lorechat/internal/app/feedback"
	"github.com/calicogames/lorechat/internal/domain"
	"github.com/calicogames/lorechat/internal/quota"
	"github.com/calicogames/lorechat/internal/session"
)

func newTestServer(t *testing.T) *httpadapter.Server {
	t.Helper()

	resolver := session.NewResolver(session.NewNoProvider(), memstore.NewGuestVault(), "SHADOW")
	if err := resolver.Start(context.Background()); err != nil {
		t.Fatalf("starting resolver: %v", err)
	}
	t.Cleanup(resolver.Close)

	tracker := quota.NewTracker(memstore.NewQuotaStore(), 5)
	feedbackSvc := feedback.NewService(memstore.NewFeedbackStore())

	srv := httpadapter.NewServer(
		resolver,
		tracker,
		answer.NewMockClient(),
		memstore.NewMessageStore(),
		feedbackSvc,
		func() domain.MessageStore { return memstore.NewMessageStore() },
	)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestSendWithoutIdentityIsRejected(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/chat/messages", []byte(`{"text":"hello"}`))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d, body=%s", w.Code, w.Body.String())
	}
}

func TestGuestLoginRejectsWrongCode(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/auth/guest", []byte(`{"username":"wanderer","access_code":"wrong"}`))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d, body=%s", w.Code, w.Body.String())
	}
}

func TestGuestLoginRequiresUsername(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/auth/guest", []byte(`{"username":"  ","access_code":"shadow"}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGuestLoginAndChatFlow(t *testing.T) {
	srv := newTestServer(t)

	// Lowercase code against a configured "SHADOW".
	w := doJSON(t, srv, http.MethodPost, "/auth/guest", []byte(`{"username":"wanderer","access_code":"shadow"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", w.Code, w.Body.String())
	}

	var identity domain.Identity
	if err := json.Unmarshal(w.Body.Bytes(), &identity); err != nil {
		t.Fatalf("decoding identity: %v", err)
	}
	if !identity.IsGuest {
		t.Fatalf("expected a guest identity, got %+v", identity)
	}

	w = doJSON(t, srv, http.MethodPost, "/chat/messages", []byte(`{"text":"Who forged the first blade?"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", w.Code, w.Body.String())
	}

	var sent struct {
		UserMessage  map[string]any `json:"user_message"`
		AgentMessage map[string]any `json:"agent_message"`
		Reply        string         `json:"reply"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &sent); err != nil {
		t.Fatalf("decoding send response: %v", err)
	}
	if sent.AgentMessage == nil || sent.Reply == "" {
		t.Fatalf("expected an agent reply, got %s", w.Body.String())
	}

	w = doJSON(t, srv, http.MethodGet, "/chat/messages", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var transcript struct {
		Messages []map[string]any `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &transcript); err != nil {
		t.Fatalf("decoding transcript: %v", err)
	}
	if len(transcript.Messages) != 2 {
		t.Fatalf("expected 2 messages in transcript, got %d", len(transcript.Messages))
	}
}

func TestGuestQuotaIsUnlimited(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/auth/guest", []byte(`{"username":"wanderer","access_code":"SHADOW"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	for i := 0; i < 10; i++ {
		w = doJSON(t, srv, http.MethodPost, "/chat/messages", []byte(`{"text":"another question"}`))
		if w.Code != http.StatusOK {
			t.Fatalf("send %d: expected 200, got %d, body=%s", i, w.Code, w.Body.String())
		}
	}

	w = doJSON(t, srv, http.MethodGet, "/chat/quota", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var q struct {
		Remaining int  `json:"remaining"`
		Limited   bool `json:"limited"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &q); err != nil {
		t.Fatalf("decoding quota: %v", err)
	}
	if q.Limited {
		t.Fatalf("guest must never be limited: %+v", q)
	}
}

func TestLogoutDropsIdentity(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/auth/guest", []byte(`{"username":"wanderer","access_code":"SHADOW"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodPost, "/auth/logout", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodPost, "/chat/messages", []byte(`{"text":"hello?"}`))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", w.Code)
	}
}

func TestFeedbackRequiresIdentityAndText(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/feedback", []byte(`{"feedback":"love it"}`))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodPost, "/auth/guest", []byte(`{"username":"wanderer","access_code":"SHADOW"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodPost, "/feedback", []byte(`{"feedback":""}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodPost, "/feedback", []byte(`{"feedback":"love it"}`))
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
}
