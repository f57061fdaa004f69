package main

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"github.com/calicogames/lorechat/internal/adapters/answer"
	httpadapter "github.com/calicogames/lorechat/internal/adapters/http"
	firestorestore "github.com/calicogames/lorechat/internal/adapters/storage/firestore"
	memstore "github.com/calicogames/lorechat/internal/adapters/storage/memory"
	"github.com/calicogames/lorechat/internal/app/feedback"
	"github.com/calicogames/lorechat/internal/config"
	"github.com/calicogames/lorechat/internal/domain"
	"github.com/calicogames/lorechat/internal/quota"
	"github.com/calicogames/lorechat/internal/session"
)

func main() {
	ctx := context.Background()

	// A local .env is optional; real deployments set the environment.
	_ = godotenv.Load()

	cfg := config.Load()

	// Answering backend: external HTTP endpoint, direct Vertex, or mock.
	var answerer domain.AnsweringClient
	switch cfg.AnswerBackend {
	case "mock":
		log.Println("[ANSWER] Using mock answering client")
		answerer = answer.NewMockClient()
	case "vertex":
		log.Printf("[ANSWER] Using Vertex answering client (model=%s)", cfg.ModelName)
		vc, err := answer.NewVertexClient(ctx, cfg.GCPProjectID, cfg.GCPLocation, cfg.ModelName)
		if err != nil {
			log.Fatalf("error initializing Vertex answering client: %v", err)
		}
		answerer = vc
	default:
		log.Printf("[ANSWER] Using HTTP answering client (url=%s)", cfg.AgentBaseURL)
		answerer = answer.NewHTTPClient(cfg.AgentBaseURL)
	}

	// Storage for registered identities: Firestore or Memory.
	var messageStore domain.MessageStore
	var quotaStore domain.QuotaStore
	var feedbackStore domain.FeedbackStore

	switch cfg.StorageBackend {
	case "firestore":
		log.Printf("[STORE] Using Firestore storage (project=%s)", cfg.GCPProjectID)
		fsStore, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			log.Fatalf("error initializing Firestore store: %v", err)
		}

		// 1 store, implements 3 interfaces
		messageStore = fsStore
		quotaStore = fsStore
		feedbackStore = fsStore

	default:
		log.Println("[STORE] Using in-memory storage")
		messageStore = memstore.NewMessageStore()
		quotaStore = memstore.NewQuotaStore()
		feedbackStore = memstore.NewFeedbackStore()
	}

	tracker := quota.NewTracker(quotaStore, cfg.MaxMessagesPerDay)
	feedbackSvc := feedback.NewService(feedbackStore)

	// Session: no external identity provider wired here, so sessions
	// resolve to the guest vault or to none until one is plugged in.
	resolver := session.NewResolver(session.NewNoProvider(), memstore.NewGuestVault(), cfg.GuestAccessCode)
	if err := resolver.Start(ctx); err != nil {
		log.Fatalf("error starting session resolver: %v", err)
	}
	defer resolver.Close()

	server := httpadapter.NewServer(
		resolver,
		tracker,
		answerer,
		messageStore,
		feedbackSvc,
		func() domain.MessageStore { return memstore.NewMessageStore() },
	)
	defer server.Close()

	port := ":" + cfg.Port
	log.Println("lorechat API listening on port:", port)
	if err := http.ListenAndServe(port, server); err != nil {
		log.Fatal(err)
	}
}
