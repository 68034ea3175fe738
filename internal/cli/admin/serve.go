package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/recallio/recallio/internal/api/handlers"
	"github.com/recallio/recallio/internal/config"
	"github.com/recallio/recallio/internal/database"
	"github.com/recallio/recallio/internal/domain"
	"github.com/recallio/recallio/internal/jobs"
	"github.com/recallio/recallio/internal/llm"
	"github.com/recallio/recallio/internal/repository"
	"github.com/recallio/recallio/internal/server"
	"github.com/recallio/recallio/internal/service"
	"github.com/recallio/recallio/internal/storage"
	"github.com/recallio/recallio/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the recallio API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Do not start the background ingest worker")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SentryDSN != "" {
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: cfg.SentrySampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	userRepo := repository.NewUserRepository(pool)
	creditRepo := repository.NewCreditRepository(pool)
	teamKeyRepo := repository.NewTeamKeyRepository(pool)
	documentRepo := repository.NewDocumentRepository(pool)
	vectorRepo := repository.NewVectorRepository(pool)
	ingestJobRepo := repository.NewIngestJobRepository(pool)

	authSvc := service.NewAuthService(userRepo)

	if cfg.InitUserEmail != "" {
		if err := bootstrapInitialUser(ctx, cfg, authSvc, userRepo); err != nil {
			return fmt.Errorf("failed to bootstrap initial user: %w", err)
		}
	}

	var store service.ObjectStorage
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		store = s3Client
	}

	var embedder *service.EmbeddingBatcher
	if cfg.HasOpenAI() {
		embeddingClient := llm.NewEmbeddingClient(llm.EmbeddingConfig{
			APIKey:     cfg.OpenAIAPIKey,
			Model:      cfg.EmbeddingModel,
			Dimensions: cfg.EmbeddingDimensions,
		})
		embedder = service.NewEmbeddingBatcher(embeddingClient)
	} else {
		embedder = service.NewEmbeddingBatcher(&noOpEmbeddingProvider{})
		log.Println("no OpenAI key configured: ingestion and retrieval are disabled")
	}

	orchestrator := llm.NewOrchestrator(llm.OrchestratorConfig{
		OpenAIKey:       cfg.OpenAIAPIKey,
		AnthropicKey:    cfg.AnthropicAPIKey,
		DefaultProvider: llm.ParseProvider(cfg.DefaultProvider),
		DefaultModel:    cfg.DefaultModel,
	})

	resolver := service.NewKeyResolver(creditRepo, teamKeyRepo, orchestrator.HasServerKey())

	ingestionSvc := service.NewIngestionService(embedder, vectorRepo, documentRepo, store, ingestJobRepo)
	askSvc := service.NewAskService(resolver, embedder, vectorRepo, orchestrator)

	// The /files routes only exist when object storage is configured.
	var uploadHandler *handlers.UploadHandler
	if store != nil {
		uploadHandler = handlers.NewUploadHandler(service.NewUploadService(store, documentRepo))
	}

	var ingestWorker *jobs.Worker
	noWorker, _ := cmd.Flags().GetBool("no-worker")
	if !noWorker {
		processor := jobs.NewIngestWorker(ingestJobRepo, ingestionSvc)
		ingestWorker = jobs.NewWorker(processor, time.Duration(cfg.JobPollSeconds)*time.Second)
		go ingestWorker.Start(ctx)
		log.Println("ingest worker started")
	}

	router := server.NewRouter(server.RouterConfig{
		TokenValidator:  authSvc,
		DocumentHandler: handlers.NewDocumentHandler(ingestionSvc),
		AskHandler:      handlers.NewAskHandler(askSvc),
		CreditHandler:   handlers.NewCreditHandler(creditRepo),
		UploadHandler:   uploadHandler,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if ingestWorker != nil {
		ingestWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// noOpEmbeddingProvider serves deployments without an embedding credential.
// Every call fails with a configuration error rather than a panic.
type noOpEmbeddingProvider struct{}

func (p *noOpEmbeddingProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, int, error) {
	return nil, 0, domain.ErrEmbeddingNotEnabled
}

func bootstrapInitialUser(ctx context.Context, cfg *config.Config, authSvc *service.AuthService, userRepo *repository.UserRepository) error {
	existing, err := userRepo.GetByEmail(ctx, cfg.InitUserEmail)
	if err != nil && err != domain.ErrUserNotFound {
		return fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		log.Printf("bootstrap: user '%s' already exists (id: %s)", existing.Email, existing.ID)
		return nil
	}

	if cfg.InitToken != "" {
		user, err := authSvc.CreateUserWithToken(ctx, cfg.InitUserEmail, "", cfg.InitToken)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		log.Printf("bootstrap: created user '%s' (id: %s)", user.Email, user.ID)
		return nil
	}

	user, token, err := authSvc.CreateUser(ctx, cfg.InitUserEmail, "")
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	log.Printf("bootstrap: created user '%s' (id: %s), token: %s", user.Email, user.ID, token)
	return nil
}

func runMigrations(databaseURL, migrationsPath string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://"+migrationsPath,
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
