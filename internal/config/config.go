package config

import (
	"log"
	"os"
	"strconv"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

type Config struct {
	Mode Mode

	Port string

	// Answering backend: "http" (external /query endpoint), "vertex"
	// (direct Gemini call) or "mock".
	AnswerBackend string
	AgentBaseURL  string

	GCPProjectID string
	GCPLocation  string
	ModelName    string

	StorageBackend string // "memory" or "firestore"

	GuestAccessCode   string
	MaxMessagesPerDay int
	AgentAvatarURL    string
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s=%q, using default %d", key, v, def)
		return def
	}
	return n
}

// Load reads all env vars and builds the config
func Load() *Config {
	modeStr := getEnv("LORECHAT_MODE", "local")
	var mode Mode
	switch modeStr {
	case "gcp":
		mode = ModeGCP
	default:
		mode = ModeLocal
	}

	cfg := &Config{
		Mode: mode,

		Port: getEnv("LORECHAT_PORT", "8080"),

		AnswerBackend: getEnv("LORECHAT_ANSWER_BACKEND", "http"),
		AgentBaseURL:  getEnv("LORECHAT_AGENT_URL", ""),

		GCPProjectID: getEnv("LORECHAT_GCP_PROJECT", ""),
		GCPLocation:  getEnv("LORECHAT_GCP_LOCATION", "us-central1"),
		ModelName:    getEnv("LORECHAT_MODEL_NAME", "gemini-2.5-flash-lite"),

		StorageBackend: getEnv("LORECHAT_STORAGE_BACKEND", "memory"),

		GuestAccessCode:   getEnv("LORECHAT_GUEST_ACCESS_CODE", "SHADOW"),
		MaxMessagesPerDay: getIntEnv("LORECHAT_MAX_MESSAGES_PER_DAY", 5),
		AgentAvatarURL:    getEnv("LORECHAT_AGENT_AVATAR_URL", ""),
	}

	if cfg.AnswerBackend == "http" && cfg.AgentBaseURL == "" {
		log.Fatal("LORECHAT_AGENT_URL must be set for the http answer backend")
	}
	if cfg.Mode == ModeGCP && cfg.GCPProjectID == "" {
		log.Fatal("LORECHAT_GCP_PROJECT must be set in gcp mode")
	}

	return cfg
}
