package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/calicogames/lorechat/internal/app/chat"
	"github.com/calicogames/lorechat/internal/app/feedback"
	"github.com/calicogames/lorechat/internal/domain"
	"github.com/calicogames/lorechat/internal/quota"
	"github.com/calicogames/lorechat/internal/session"
)

// Server fronts a single resolved session, mirroring the client-side
// nature of the flow: one identity at a time, re-wired on every identity
// change. The message store behind the conversation service is selected
// by identity kind — ephemeral in-memory for guests, the persistent
// store for registered identities — so the service itself never branches
// on it.
type Server struct {
	resolver   *session.Resolver
	tracker    *quota.Tracker
	answerer   domain.AnsweringClient
	persistent domain.MessageStore
	feedback   *feedback.Service
	guestStore func() domain.MessageStore

	handler http.Handler

	mu          sync.Mutex
	identity    *domain.Identity
	svc         *chat.Service
	feedMsgs    []*domain.Message
	cancelFeed  func()
	unsubscribe func()
}

func NewServer(
	resolver *session.Resolver,
	tracker *quota.Tracker,
	answerer domain.AnsweringClient,
	persistent domain.MessageStore,
	feedbackSvc *feedback.Service,
	guestStore func() domain.MessageStore,
) *Server {
	s := &Server{
		resolver:   resolver,
		tracker:    tracker,
		answerer:   answerer,
		persistent: persistent,
		feedback:   feedbackSvc,
		guestStore: guestStore,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/auth/guest", s.handleGuestLogin)
	mux.HandleFunc("/auth/logout", s.handleLogout)
	mux.HandleFunc("/session", s.handleSession)
	mux.HandleFunc("/chat/messages", s.handleMessages)
	mux.HandleFunc("/chat/quota", s.handleQuota)
	mux.HandleFunc("/feedback", s.handleFeedback)

	s.handler = chainMiddlewares(mux, withCORS, withLogging, withRequestID)

	s.unsubscribe = resolver.Subscribe(s.onIdentity)
	s.applySnapshot(resolver.Snapshot())

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close detaches from the resolver and tears down any live feed.
func (s *Server) Close() {
	s.unsubscribe()

	s.mu.Lock()
	cancel := s.cancelFeed
	s.cancelFeed = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// ─────────────────────────────────────────────
// Identity wiring
// ─────────────────────────────────────────────

func (s *Server) onIdentity(snap session.Snapshot) {
	s.applySnapshot(snap)
}

func (s *Server) applySnapshot(snap session.Snapshot) {
	s.mu.Lock()
	old := s.identity
	cancel := s.cancelFeed
	s.cancelFeed = nil
	s.mu.Unlock()

	// Feed teardown happens before the new identity is installed, so no
	// stale delivery can land against it. The cancel blocks until the
	// feed goroutine has exited.
	if cancel != nil {
		cancel()
	}
	if old != nil {
		s.tracker.Forget(old.ID)
	}

	s.mu.Lock()
	s.identity = snap.Identity
	s.feedMsgs = nil

	switch {
	case snap.Identity == nil:
		s.svc = nil

	case snap.Identity.IsGuest:
		s.svc = chat.NewService(s.answerer, s.guestStore(), s.tracker)

	default:
		s.svc = chat.NewService(s.answerer, s.persistent, s.tracker)
	}
	s.mu.Unlock()

	// The first feed delivery may arrive synchronously, so the
	// subscription is established outside the lock.
	if snap.Identity.Registered() {
		cancelFeed, err := s.persistent.Subscribe(context.Background(), snap.Identity.ID, s.onFeed)
		if err != nil {
			return
		}

		s.mu.Lock()
		stale := s.identity == nil || s.identity.ID != snap.Identity.ID
		if !stale {
			s.cancelFeed = cancelFeed
		}
		s.mu.Unlock()
		if stale {
			cancelFeed()
		}
	}
}

func (s *Server) onFeed(msgs []*domain.Message) {
	s.mu.Lock()
	s.feedMsgs = msgs
	s.mu.Unlock()
}

func (s *Server) current() (*domain.Identity, *chat.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity, s.svc
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type guestLoginRequest struct {
	Username   string `json:"username"`
	AccessCode string `json:"access_code"`
}

type sessionResponse struct {
	Identity *domain.Identity `json:"identity"`
	Loading  bool             `json:"loading"`
}

type messageResponse struct {
	ID           string    `json:"id"`
	Sender       string    `json:"sender"`
	Text         string    `json:"text"`
	Timestamp    time.Time `json:"timestamp"`
	AuthorName   string    `json:"author_name,omitempty"`
	AuthorAvatar string    `json:"author_avatar,omitempty"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type sendMessageResponse struct {
	UserMessage  messageResponse  `json:"user_message"`
	AgentMessage *messageResponse `json:"agent_message,omitempty"`
	Reply        string           `json:"reply"`
	Filtered     bool             `json:"filtered"`
	Remaining    int              `json:"remaining"`
}

type quotaResponse struct {
	Remaining int  `json:"remaining"`
	Limited   bool `json:"limited"`
}

type feedbackRequest struct {
	Feedback string `json:"feedback"`
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGuestLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req guestLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	if strings.TrimSpace(req.Username) == "" {
		badRequest(w, "username is required")
		return
	}

	identity, err := s.resolver.LoginAsGuest(r.Context(), req.Username, req.AccessCode)
	if err != nil {
		if errors.Is(err, session.ErrBadAccessCode) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "invalid access code",
			})
			return
		}
		internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, identity)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	if err := s.resolver.Logout(r.Context()); err != nil {
		internalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	snap := s.resolver.Snapshot()
	writeJSON(w, http.StatusOK, sessionResponse{
		Identity: snap.Identity,
		Loading:  snap.Loading,
	})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGetMessages(w, r)
	case http.MethodPost:
		s.handleSendMessage(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	identity, svc := s.current()
	if identity == nil || svc == nil {
		unauthorized(w)
		return
	}

	// The live feed is the source of truth for registered identities;
	// guests read their local sequence directly.
	if identity.Registered() {
		s.mu.Lock()
		msgs := s.feedMsgs
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string][]messageResponse{
			"messages": toMessagesResponse(msgs),
		})
		return
	}

	msgs, err := svc.Transcript(r.Context(), identity)
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]messageResponse{
		"messages": toMessagesResponse(msgs),
	})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	identity, svc := s.current()
	if identity == nil || svc == nil {
		unauthorized(w)
		return
	}

	out, err := svc.Send(r.Context(), chat.SendInput{
		Identity: identity,
		Text:     req.Text,
	})
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			badRequest(w, "text is required")
		case errors.Is(err, chat.ErrNoIdentity):
			unauthorized(w)
		case errors.Is(err, chat.ErrRateLimited):
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "daily message limit reached, come back tomorrow",
			})
		case errors.Is(err, chat.ErrBusy):
			writeJSON(w, http.StatusConflict, map[string]string{
				"error": "a message is already in flight",
			})
		default:
			internalError(w, err)
		}
		return
	}

	resp := sendMessageResponse{
		UserMessage: toMessageResponse(out.UserMessage),
		Reply:       out.Reply,
		Filtered:    out.Filtered,
		Remaining:   out.Quota.Remaining,
	}
	if out.AgentMessage != nil {
		m := toMessageResponse(out.AgentMessage)
		resp.AgentMessage = &m
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	identity, _ := s.current()
	if identity == nil {
		unauthorized(w)
		return
	}

	st, err := s.tracker.Check(r.Context(), identity)
	if err != nil {
		internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, quotaResponse{
		Remaining: st.Remaining,
		Limited:   st.Limited,
	})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Feedback) == "" {
		badRequest(w, "feedback is required")
		return
	}

	identity, _ := s.current()
	if identity == nil {
		unauthorized(w)
		return
	}

	// Submission never fails from the caller's perspective.
	s.feedback.Submit(r.Context(), identity, req.Feedback, r.UserAgent())
	w.WriteHeader(http.StatusAccepted)
}

// ─────────────────────────────────────────────
// Response helpers
// ─────────────────────────────────────────────

func toMessageResponse(m *domain.Message) messageResponse {
	return messageResponse{
		ID:           string(m.ID),
		Sender:       string(m.Sender),
		Text:         m.Text,
		Timestamp:    m.CreatedAt,
		AuthorName:   m.AuthorName,
		AuthorAvatar: m.AuthorAvatar,
	}
}

func toMessagesResponse(msgs []*domain.Message) []messageResponse {
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func unauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"error": "no identity present",
	})
}

func internalError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}
