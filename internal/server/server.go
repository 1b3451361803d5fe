package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/oauth2"

	"agentflow-backend/internal/chat"
	"agentflow-backend/internal/config"
	"agentflow-backend/internal/copilot"
	"agentflow-backend/internal/db"
	"agentflow-backend/internal/store"
	"agentflow-backend/internal/types"
)

// ContactStore is the contact persistence surface the handlers need;
// satisfied by both the Postgres and the in-memory store.
type ContactStore interface {
	Search(ctx context.Context, userID, name, propertyAddress string) ([]types.ContactData, error)
	List(ctx context.Context, userID string) ([]types.ContactData, error)
	Insert(ctx context.Context, userID string, c types.ContactData) (types.ContactData, error)
	BulkInsert(ctx context.Context, userID string, contacts []types.ContactData) (int, error)
}

type Server struct {
	router   *chi.Mux
	cfg      config.Config
	database *db.DB
	contacts ContactStore
	messages chat.MessageStore
	sessions *store.SessionStore
	commands copilot.CommandClient
	hub      *chat.Hub
	oauthCfg *oauth2.Config
}

func NewServer(cfg config.Config) (*Server, error) {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	var (
		database *db.DB
		contacts ContactStore
		messages chat.MessageStore
	)
	if cfg.DatabaseURL != "" {
		var err error
		database, err = db.New(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		log.Println("database connection established")
		if err := database.RunMigrations(cfg.MigrationsDir); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		contacts = store.NewContactStore(database)
		messages = store.NewMessageStore(database)
	} else {
		log.Println("warning: DB_URL not provided, contacts and chat history are kept in memory only")
		contacts = store.NewMemoryContactStore()
		messages = store.NewMemoryMessageStore()
	}

	var commands copilot.CommandClient
	if cfg.WorkflowWebhookURL != "" {
		log.Println("[copilot] delegating commands to workflow engine")
		commands = copilot.NewWorkflowClient(cfg.WorkflowWebhookURL, cfg.WorkflowAPIKey)
	} else {
		spec, err := copilot.LoadPromptSpec(cfg.PromptSpec)
		if err != nil {
			return nil, fmt.Errorf("failed to load prompt spec: %w", err)
		}
		client := openai.NewClient(cfg.OpenAIAPIKey)
		commands = copilot.NewInterpreter(spec, client, cfg.Model, contacts, cfg.GeneratorRetries)
	}

	var oCfg *oauth2.Config
	if cfg.OAuthClientID != "" {
		oCfg = &oauth2.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			RedirectURL:  cfg.OAuthRedirectURL,
			Scopes:       cfg.OAuthScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.OAuthAuthURL,
				TokenURL: cfg.OAuthTokenURL,
			},
		}
	}

	s := &Server{
		router:   r,
		cfg:      cfg,
		database: database,
		contacts: contacts,
		messages: messages,
		sessions: store.NewSessionStore(cfg.SessionFile),
		commands: commands,
		hub:      chat.NewHub(messages, commands),
		oauthCfg: oCfg,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	// Co-Pilot
	s.router.Post("/api/copilot-command", s.handleCopilotCommand)
	s.router.Post("/api/chat/send", s.handleChatSend)
	s.router.Get("/api/chat/history", s.handleChatHistory)
	s.router.Post("/api/chat/retry", s.handleChatRetry)
	s.router.Post("/api/chat/clear", s.handleChatClear)
	// CRM data
	s.router.Post("/api/import-csv", s.handleImportCSV)
	s.router.Get("/api/contacts", s.handleListContacts)
	s.router.Post("/api/contacts", s.handleAddContact)
	s.router.Get("/api/panels", s.handlePanels)
	// Auth
	s.router.Get("/api/auth/status", s.handleAuthStatus)
	s.router.Get("/api/auth/login", s.handleAuthLogin)
	s.router.Get("/api/auth/callback", s.handleAuthCallback)
	s.router.Post("/api/auth/signout", s.handleSignout)
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	status := map[string]string{"status": "ok"}
	if s.database != nil {
		if err := s.database.HealthCheck(); err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
		}
	}
	_ = json.NewEncoder(w).Encode(status)
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg})
}

// writeEnvelope sends a {response: {...}} body with the given status.
func (s *Server) writeEnvelope(w http.ResponseWriter, code int, env types.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(types.CommandResponse{Response: env})
}
