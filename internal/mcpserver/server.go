package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/apresai/podcaster-async/internal/artifacts"
	"github.com/apresai/podcaster-async/internal/cleanup"
	"github.com/apresai/podcaster-async/internal/config"
	"github.com/apresai/podcaster-async/internal/orchestrator"
	"github.com/apresai/podcaster-async/internal/store"
	"github.com/apresai/podcaster-async/internal/taskrunner"
	"github.com/apresai/podcaster-async/internal/tts"
	"github.com/apresai/podcaster-async/internal/webhook"
)

// Config holds server configuration.
type Config struct {
	Port          int
	TableName     string
	S3Bucket      string
	CDNBaseURL    string
	AWSRegion     string
	MaxTasks      int
	SecretPrefix  string // e.g. "/podcaster/mcp/"
	DatabaseURL   string // when set, tasks persist to Postgres instead of DynamoDB
	LocalArtifact string // when set (and S3Bucket is empty), artifacts persist to this local directory
	CleanupConfig string // path to the cleanup policy config file; "" disables persistence
}

// DefaultConfig returns a Config populated from environment variables, via
// the shared internal/config loader.
func DefaultConfig() Config {
	rc := config.Load()
	return Config{
		Port:          rc.Port,
		TableName:     rc.DynamoDBTable,
		S3Bucket:      rc.S3Bucket,
		CDNBaseURL:    rc.CDNBaseURL,
		AWSRegion:     rc.AWSRegion,
		MaxTasks:      rc.MaxConcurrentTasks,
		SecretPrefix:  rc.SecretPrefix,
		DatabaseURL:   rc.DatabaseURL,
		LocalArtifact: rc.LocalArtifactDir,
		CleanupConfig: rc.CleanupConfigPath,
	}
}

// Server is the MCP server for podcast generation.
type Server struct {
	cfg       Config
	mcp       *server.MCPServer
	handlers  *Handlers
	authStore *AuthStore
	log       *slog.Logger
}

// New creates and configures the MCP server.
// Secrets are loaded asynchronously to minimize cold-start latency on AgentCore,
// where the container must have port 8000 listening before AgentCore sends the
// first request. The HTTP listener starts immediately; secrets finish loading
// in the background (typically <1s).
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Server, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	// Auto-instrument AWS SDK calls (DynamoDB, S3, Secrets Manager)
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)

	// Fetch secrets asynchronously — don't block server startup.
	// AgentCore sends the first HTTP request immediately after the container
	// starts, so we must be listening ASAP. Secrets are only needed once
	// generate_podcast actually runs the pipeline.
	if cfg.SecretPrefix != "" {
		go func() {
			if err := loadSecrets(ctx, awsCfg, cfg.SecretPrefix, logger); err != nil {
				logger.Warn("Failed to load secrets from Secrets Manager, falling back to env vars",
					"error", err)
			}
		}()
	}

	var taskStore store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect task store: %w", err)
		}
		taskStore = store.NewCachedStore(pg)
	} else {
		ddbClient := dynamodb.NewFromConfig(awsCfg)
		taskStore = store.NewCachedStore(store.NewDynamoStore(ddbClient, cfg.TableName))
	}

	var artifactStore artifacts.Store
	if cfg.S3Bucket != "" {
		s3Client := s3.NewFromConfig(awsCfg)
		artifactStore = artifacts.NewS3Store(s3Client, cfg.S3Bucket, cfg.CDNBaseURL)
	} else {
		local, err := artifacts.NewLocalStore(cfg.LocalArtifact)
		if err != nil {
			return nil, fmt.Errorf("create local artifact store: %w", err)
		}
		artifactStore = local
		logger.Warn("S3_BUCKET not set, using local filesystem artifact storage", "dir", cfg.LocalArtifact)
	}

	ddbClient := dynamodb.NewFromConfig(awsCfg)
	authStore := NewAuthStore(ddbClient, cfg.TableName)

	cleanupMgr, err := cleanup.NewManager(cfg.CleanupConfig)
	if err != nil {
		return nil, fmt.Errorf("create cleanup manager: %w", err)
	}

	providers := tts.NewProviderSet()
	runner := taskrunner.New(context.Background(), cfg.MaxTasks)
	notifier := webhook.NewHTTPNotifier()

	orc := orchestrator.New(taskStore, artifactStore, runner, providers, notifier)
	orc.Cleanup = cleanupMgr
	handlers := NewHandlers(orc, taskStore, cleanupMgr, logger)

	mcpServer := server.NewMCPServer(
		"podcaster",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	tools := ToolDefs()
	toolHandlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"server_info":              handlers.HandleServerInfo,
		"generate_podcast":         handlers.HandleGeneratePodcast,
		"get_podcast":              handlers.HandleGetPodcast,
		"list_podcasts":            handlers.HandleListPodcasts,
		"cancel_task":              handlers.HandleCancelTask,
		"cleanup_task_files":       handlers.HandleCleanupTaskFiles,
		"configure_cleanup_policy": handlers.HandleConfigureCleanupPolicy,
		"get_service_health":       handlers.HandleGetServiceHealth,
		"list_voices":              handlers.HandleListVoices,
		"list_options":             handlers.HandleListOptions,
	}
	for _, t := range tools {
		h, ok := toolHandlers[t.Name]
		if !ok {
			logger.Warn("no handler registered for tool", "tool", t.Name)
			continue
		}
		mcpServer.AddTool(t, h)
	}

	registerResources(mcpServer, taskStore, artifactStore, cleanupMgr)

	return &Server{
		cfg:       cfg,
		mcp:       mcpServer,
		handlers:  handlers,
		authStore: authStore,
		log:       logger,
	}, nil
}

// Start runs the HTTP MCP server.
// Uses a custom mux with request logging so request routing stays
// debuggable. The StreamableHTTPServer is mounted at /mcp and used as a
// handler.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.log.Info("Starting MCP server", "addr", addr)

	authStore := s.authStore

	mcpHandler := server.NewStreamableHTTPServer(s.mcp,
		server.WithStateLess(true),
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				return WithAuthResult(ctx, AuthResult{Authenticated: false})
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == authHeader {
				return WithAuthResult(ctx, AuthResult{Authenticated: false, Error: fmt.Errorf("invalid authorization format, expected: Bearer <api-key>")})
			}

			info, err := authStore.ValidateAPIKey(ctx, authHeader)
			if err != nil {
				s.log.WarnContext(ctx, "API key validation failed", "error", err)
				return WithAuthResult(ctx, AuthResult{Authenticated: false, Error: err})
			}

			s.log.InfoContext(ctx, "Authenticated request", "user_id", info.UserID, "key_id", info.KeyID)
			return WithAuthResult(ctx, AuthResult{
				Authenticated: true,
				UserID:        info.UserID,
				Role:          info.Role,
				KeyID:         info.KeyID,
			})
		}),
	)

	mux := http.NewServeMux()
	// Register both /mcp and /mcp/ — some proxies send POST to /mcp/
	// (trailing slash) and Go's ServeMux won't match /mcp for that.
	mux.Handle("/mcp", mcpHandler)
	mux.Handle("/mcp/", mcpHandler)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"content_type", r.Header.Get("Content-Type"),
		)
		// Ensure Content-Type is set for POST requests — mcp-go requires
		// application/json and rejects requests without it.
		if r.Method == http.MethodPost && r.Header.Get("Content-Type") == "" {
			r.Header.Set("Content-Type", "application/json")
		}
		mux.ServeHTTP(w, r)
	})

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}
	return httpSrv.ListenAndServe()
}

// loadSecrets fetches API keys from Secrets Manager and sets them as env vars.
func loadSecrets(ctx context.Context, cfg aws.Config, prefix string, logger *slog.Logger) error {
	client := secretsmanager.NewFromConfig(cfg)

	secrets := map[string]string{
		"ANTHROPIC_API_KEY":  prefix + "ANTHROPIC_API_KEY",
		"GEMINI_API_KEY":     prefix + "GEMINI_API_KEY",
		"ELEVENLABS_API_KEY": prefix + "ELEVENLABS_API_KEY",
		"VERTEX_AI_API_KEY":  prefix + "VERTEX_AI_API_KEY",
	}

	for envVar, secretID := range secrets {
		if os.Getenv(envVar) != "" {
			continue
		}

		result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: &secretID,
		})
		if err != nil {
			logger.Info("Secret not found", "secret_id", secretID, "error", err)
			continue
		}
		if result.SecretString != nil {
			os.Setenv(envVar, *result.SecretString)
			logger.Info("Loaded secret", "secret_id", secretID)
		}
	}

	return nil
}
