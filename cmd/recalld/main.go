// Command recalld runs the conversational memory engine: the chat
// HTTP/websocket API backed by a configured model provider, an
// embedder, and the conversation similarity index.
package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/parleylabs/recall-go/embed"
	embedmock "github.com/parleylabs/recall-go/embed/mock"
	"github.com/parleylabs/recall-go/index"
	indexchromem "github.com/parleylabs/recall-go/index/chromem"
	"github.com/parleylabs/recall-go/provider"
	"github.com/parleylabs/recall-go/provider/anthropic"
	"github.com/parleylabs/recall-go/provider/gemini"
	"github.com/parleylabs/recall-go/provider/openai"
	"github.com/parleylabs/recall-go/room"
	"github.com/parleylabs/recall-go/search"
	"github.com/parleylabs/recall-go/server"
	"github.com/parleylabs/recall-go/store"
	"github.com/parleylabs/recall-go/store/memstore"
	"github.com/parleylabs/recall-go/store/sqlite"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	prov, err := buildProvider()
	if err != nil {
		log.Fatalf("provider: %v", err)
	}

	st, err := buildStore()
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	dims := envInt("EMBEDDING_DIM", 384)
	embedder, err := buildEmbedder(dims)
	if err != nil {
		log.Fatalf("embedder: %v", err)
	}

	searcher, err := buildIndex(dims)
	if err != nil {
		log.Fatalf("index: %v", err)
	}

	hub := room.NewHub(room.Config{
		Provider:     prov,
		Store:        st,
		Embedder:     embedder,
		Index:        searcher,
		SystemPrompt: os.Getenv("SYSTEM_PROMPT"),
		TurnTimeout:  time.Duration(envInt("TURN_TIMEOUT_SECONDS", 120)) * time.Second,
	})

	srv := server.New(hub, st, search.New(embedder, searcher, st))

	r := gin.Default()
	srv.RegisterRoutes(r)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("[RECALLD] provider=%s listening on %s", prov.Name(), addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func buildProvider() (provider.Provider, error) {
	kindName := os.Getenv("PROVIDER")
	if kindName == "" {
		kindName = string(provider.KindOpenAI)
	}
	kind, err := provider.ParseKind(kindName)
	if err != nil {
		return nil, err
	}
	cfg := provider.Config{
		Kind:    kind,
		Model:   os.Getenv("MODEL"),
		BaseURL: os.Getenv("PROVIDER_BASE_URL"),
	}
	switch kind {
	case provider.KindAnthropic:
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		return anthropic.New(cfg), nil
	case provider.KindOpenAI:
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		return openai.New(cfg), nil
	case provider.KindGemini:
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
		return gemini.New(cfg), nil
	case provider.KindLocal:
		cfg.BaseURL = envDefault("LM_STUDIO_URL", cfg.BaseURL)
		return openai.NewLocal(cfg), nil
	}
	return nil, nil // Unreachable; ParseKind rejects unknown kinds.
}

func buildStore() (store.Store, error) {
	path := os.Getenv("DB_PATH")
	if path == "" {
		log.Printf("[RECALLD] DB_PATH not set, using in-memory store")
		return memstore.New(), nil
	}
	return sqlite.New(path)
}

// buildEmbedder wires the embedding gateway. The hash-based embedder
// is the default; a real local model plugs in through the onnx build
// tag and swapping this constructor. Either way the vectors go
// through the ristretto cache.
func buildEmbedder(dims int) (embed.Embedder, error) {
	return embed.NewCached(embedmock.New(dims), int64(envInt("EMBED_CACHE_ENTRIES", 4096)))
}

func buildIndex(dims int) (index.Searcher, error) {
	if os.Getenv("INDEX_BACKEND") == "chromem" {
		return indexchromem.New(dims)
	}
	return index.New(dims), nil
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
