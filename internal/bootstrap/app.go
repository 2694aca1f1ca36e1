package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cvbot-backend/internal/analyses"
	"cvbot-backend/internal/conversation"
	"cvbot-backend/internal/cvanalyzer"
	"cvbot-backend/internal/documents"
	"cvbot-backend/internal/interview"
	"cvbot-backend/internal/ledger"
	"cvbot-backend/internal/llm"
	openai "cvbot-backend/internal/llm/openai"
	"cvbot-backend/internal/payments"
	"cvbot-backend/internal/queue"
	"cvbot-backend/internal/services/health"
	"cvbot-backend/internal/session"
	"cvbot-backend/internal/shared/config"
	"cvbot-backend/internal/shared/server"
	"cvbot-backend/internal/shared/storage/db"
	"cvbot-backend/internal/shared/storage/object"
	localstore "cvbot-backend/internal/shared/storage/object/local"
	s3store "cvbot-backend/internal/shared/storage/object/s3"
	"cvbot-backend/internal/transport"
	"cvbot-backend/internal/transport/telegram"
	"cvbot-backend/internal/transport/whatsapp"
	"cvbot-backend/internal/users"
)

const downloadTimeout = 60 * time.Second

// App holds shared dependencies.
type App struct {
	Config     config.Config
	Router     *gin.Engine
	DB         *sql.DB
	Store      object.ObjectStore
	Queue      queue.Client
	Dispatcher queue.Dispatcher
	Catalog    payments.Catalog
	LLM        llm.Client
	Sessions   *session.Service
	Users      *users.Service
	Ledger     *ledger.Service
	Analyses   *analyses.Service
	Documents  documents.DocumentsRepo
	Pipeline   *documents.Pipeline
	Machine    *conversation.Machine
	Sender     transport.Sender
	WhatsApp   *whatsapp.Client
	Telegram   *telegram.Bot
}

// Build prepares every dependency and the HTTP router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	catalog, err := payments.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:  cfg,
		DB:      sqlDB,
		Store:   store,
		Queue:   queueClient,
		Catalog: catalog,
	}

	if err := buildTransport(ctx, app); err != nil {
		return nil, err
	}
	if err := buildServices(app); err != nil {
		return nil, err
	}

	if app.Queue != nil {
		app.Dispatcher = queue.QueueDispatcher{Client: app.Queue}
	} else {
		app.Dispatcher = queue.InlineDispatcher{Handler: app.Machine}
	}

	var pinger health.Pinger
	if app.DB != nil {
		pinger = app.DB
	}
	deps := server.RouterDeps{
		Config:     cfg,
		Dispatcher: app.Dispatcher,
		Ledger:     app.Ledger,
		Sessions:   app.Sessions,
		Documents:  app.Documents,
		Health:     health.NewService(pinger, cfg.Transport, app.Queue != nil),
	}
	if local, ok := store.(*localstore.Store); ok {
		deps.Files = local
	}
	if app.Telegram != nil {
		deps.Acker = app.Telegram
	}
	app.Router = server.NewRouter(deps)

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	profile := db.ProfileFor(cfg.Role)
	opts := db.OptionsFromEnv(db.OptionsFor(profile, cfg.WorkerConcurrency))
	var (
		sqlDB *sql.DB
		err   error
	)
	if profile == db.ProfileLambda {
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if cfg.IsDevLike() {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, s3store.Options{
			Region:        cfg.AWSRegion,
			Bucket:        cfg.S3Bucket,
			Prefix:        cfg.S3Prefix,
			KMSKeyID:      cfg.SSEKMSKeyID,
			PublicBaseURL: cfg.S3PublicBaseURL,
			PresignTTL:    cfg.S3PresignTTL,
		})
	default:
		return localstore.New(cfg.LocalStoreDir, cfg.PublicBaseURL+"/files"), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.EventsQueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.EventsQueueURL, cfg.AWSRegion)
}

// buildTransport picks the chat platform. Dev-like environments without
// credentials log outbound messages instead.
func buildTransport(ctx context.Context, app *App) error {
	cfg := app.Config
	switch cfg.Transport {
	case "telegram":
		if strings.TrimSpace(cfg.TelegramToken) != "" {
			bot, err := telegram.New(cfg.TelegramToken, "", nil)
			if err != nil {
				return err
			}
			app.Telegram = bot
			app.Sender = bot
			return nil
		}
	default:
		if strings.TrimSpace(cfg.WhatsAppToken) != "" {
			client, err := whatsapp.NewClient(ctx, cfg.WhatsAppToken, cfg.WhatsAppPhoneNumberID, cfg.WhatsAppAPIBase)
			if err != nil {
				return err
			}
			app.WhatsApp = client
			app.Sender = client
			return nil
		}
	}
	if !cfg.IsDevLike() {
		return fmt.Errorf("transport %s has no credentials", cfg.Transport)
	}
	log.Printf("bootstrap: no %s credentials; logging outbound messages", cfg.Transport)
	app.Sender = transport.LogSender{}
	return nil
}

func buildLLM(cfg config.Config) (llm.Client, error) {
	if cfg.LLMProvider != "openai" || strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		log.Printf("bootstrap: no inference provider; interview and payment checks use fallbacks")
		return llm.PlaceholderClient{}, nil
	}
	client, err := openai.NewClient(openai.Options{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.LLMModel,
		VisionModel: cfg.LLMVisionModel,
		Timeout:     cfg.LLMTimeout,
	})
	if err != nil {
		return nil, err
	}
	return llm.WithRetry(client), nil
}

func (app *App) mediaResolver() transport.MediaResolver {
	switch {
	case app.WhatsApp != nil:
		return app.WhatsApp
	case app.Telegram != nil:
		return app.Telegram
	default:
		return transport.LogSender{}
	}
}

func buildServices(app *App) error {
	cfg := app.Config

	var (
		sessionRepo  session.Repo
		userRepo     users.Repo
		analysisRepo analyses.Repo
		docRepo      documents.DocumentsRepo
	)
	if app.DB != nil {
		sessionRepo = &session.PGRepo{DB: app.DB}
		userRepo = &users.PGRepo{DB: app.DB}
		analysisRepo = &analyses.PGRepo{DB: app.DB}
		docRepo = &documents.PGRepo{DB: app.DB}
	} else {
		sessionRepo = session.NewMemoryRepo()
		userRepo = users.NewMemoryRepo()
		analysisRepo = analyses.NewMemoryRepo()
		docRepo = documents.NewMemoryRepo()
	}

	sessions := session.NewService(sessionRepo)
	userSvc := users.NewService(userRepo)
	analysisSvc := analyses.NewService(analysisRepo)
	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		mirror, err := analyses.NewSupabaseMirror(cfg.SupabaseURL, cfg.SupabaseKey)
		if err != nil {
			log.Printf("bootstrap: supabase mirror disabled: %v", err)
		} else {
			analysisSvc.Mirror = mirror
		}
	}

	var ledgerSvc *ledger.Service
	if app.DB != nil {
		ledgerSvc = ledger.NewPostgresService(ledger.NewPGStore(app.DB), analysisSvc, userSvc)
	} else {
		ledgerSvc = ledger.NewService(analysisSvc, userSvc)
	}

	llmClient, err := buildLLM(cfg)
	if err != nil {
		return err
	}

	resolver := app.mediaResolver()
	downloader := documents.HTTPDownloader{Client: &http.Client{Timeout: downloadTimeout}}
	pipeline := &documents.Pipeline{
		Resolver:   resolver,
		Downloader: downloader,
		Store:      app.Store,
		Analyses:   analysisSvc,
		Users:      userSvc,
		Documents:  docRepo,
		Provider:   cfg.ObjectStoreType,
		MaxBytes:   documents.MaxDocumentBytes,
	}
	// Leave the interface nil rather than holding a nil *Client.
	if cfg.CVAnalyzerURL != "" {
		analyzer, err := cvanalyzer.NewClient(cfg.CVAnalyzerURL, cfg.CVAnalyzerTimeout)
		if err != nil {
			return err
		}
		pipeline.Analyzer = analyzer
	} else {
		log.Printf("bootstrap: CV_ANALYZER_URL empty; documents are stored without analysis")
	}

	payee := cfg.PayeeName
	if payee == "" {
		payee = app.Catalog.PayeeName
	}
	machine := conversation.New(conversation.Deps{
		Sessions: sessions,
		Users:    userSvc,
		Ledger:   ledgerSvc,
		Pipeline: pipeline,
		Coach:    interview.NewCoach(llmClient, cfg.InterviewQuestions),
		Verifier: payments.NewVerifier(llmClient, payee),
		Promos:   &payments.Promos{Catalog: app.Catalog, Users: userSvc},
		Catalog:  app.Catalog,
		Media: conversation.MediaFetcher{
			Resolver:   resolver,
			Downloader: downloader,
			MaxBytes:   documents.MaxDocumentBytes,
		},
		Sender: app.Sender,
	}, conversation.Config{
		FreeAnalyses:        cfg.FreeCVAnalyses,
		PayeeName:           cfg.PayeeName,
		PaymentInstructions: cfg.PaymentInstructions,
		AdvisoryBookingURL:  cfg.AdvisoryBookingURL,
		MessageDelay:        cfg.MessageDelay,
	})
	if err := machine.Validate(); err != nil {
		return fmt.Errorf("conversation: %w", err)
	}

	app.LLM = llmClient
	app.Sessions = sessions
	app.Users = userSvc
	app.Ledger = ledgerSvc
	app.Analyses = analysisSvc
	app.Documents = docRepo
	app.Pipeline = pipeline
	app.Machine = machine
	return nil
}
