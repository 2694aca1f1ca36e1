package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port          string
	Env           string
	DatabaseURL   string
	PublicBaseURL string
	AdminToken    string

	// Role is set by the binary ("api", "worker", "cli") and sizes the DB pool.
	Role              string
	WorkerConcurrency int

	ObjectStoreType   string
	LocalStoreDir     string
	AWSRegion         string
	S3Bucket          string
	S3Prefix          string
	SSEKMSKeyID       string
	S3PublicBaseURL   string
	S3PresignTTL      time.Duration
	EventsQueueURL    string
	SupabaseURL       string
	SupabaseKey       string
	CatalogFile       string
	CVAnalyzerURL     string
	CVAnalyzerTimeout time.Duration

	LLMProvider    string
	LLMModel       string
	LLMVisionModel string
	OpenAIAPIKey   string
	LLMTimeout     time.Duration

	Transport             string
	WhatsAppToken         string
	WhatsAppPhoneNumberID string
	WhatsAppVerifyToken   string
	WhatsAppAppSecret     string
	WhatsAppAPIBase       string
	TelegramToken         string

	InterviewQuestions  int
	FreeCVAnalyses      int
	MessageDelay        time.Duration
	PayeeName           string
	PaymentInstructions string
	AdvisoryBookingURL  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience. Values already
	// present in the environment win.
	for _, path := range []string{".env", "cmd/.env"} {
		_ = godotenv.Load(path)
	}

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	port := getEnv("PORT", "8080")
	return Config{
		Port:          port,
		Env:           env,
		DatabaseURL:   dbURL,
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),
		AdminToken:    getEnv("ADMIN_TOKEN", ""),

		Role:              "api",
		WorkerConcurrency: getInt("WORKER_CONCURRENCY", 8),

		ObjectStoreType:   normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:     getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:         getEnv("AWS_REGION", ""),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Prefix:          getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:       getEnv("SSE_KMS_KEY_ID", ""),
		S3PublicBaseURL:   strings.TrimRight(getEnv("S3_PUBLIC_BASE_URL", ""), "/"),
		S3PresignTTL:      getDuration("S3_PRESIGN_TTL", 7*24*time.Hour),
		EventsQueueURL:    getEnv("EVENTS_SQS_QUEUE_URL", ""),
		SupabaseURL:       getEnv("SUPABASE_URL", ""),
		SupabaseKey:       getEnv("SUPABASE_KEY", ""),
		CatalogFile:       getEnv("CATALOG_FILE", ""),
		CVAnalyzerURL:     strings.TrimRight(getEnv("CV_ANALYZER_URL", ""), "/"),
		CVAnalyzerTimeout: getDuration("CV_ANALYZER_TIMEOUT", 180*time.Second),

		LLMProvider:    strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMVisionModel: getEnv("LLM_VISION_MODEL", "gpt-4o"),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMTimeout:     time.Duration(getInt("OPENAI_TIMEOUT_SECONDS", 60)) * time.Second,

		Transport:             normalizeTransport(getEnv("TRANSPORT", "whatsapp")),
		WhatsAppToken:         getEnv("WHATSAPP_TOKEN", ""),
		WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppVerifyToken:   getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppAppSecret:     getEnv("WHATSAPP_APP_SECRET", ""),
		WhatsAppAPIBase:       strings.TrimRight(getEnv("WHATSAPP_API_BASE", "https://graph.facebook.com/v19.0"), "/"),
		TelegramToken:         getEnv("TELEGRAM_TOKEN", ""),

		InterviewQuestions:  getInt("INTERVIEW_QUESTIONS", 4),
		FreeCVAnalyses:      getInt("FREE_CV_ANALYSES", 1),
		MessageDelay:        getDuration("MESSAGE_DELAY", 1500*time.Millisecond),
		PayeeName:           getEnv("PAYEE_NAME", ""),
		PaymentInstructions: getEnv("PAYMENT_INSTRUCTIONS", ""),
		AdvisoryBookingURL:  getEnv("ADVISORY_BOOKING_URL", ""),
	}
}

// IsDevLike reports whether the environment tolerates in-memory fallbacks.
func (c Config) IsDevLike() bool {
	return c.Env == "dev" || c.Env == "local"
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("invalid %s=%q, using %d", key, raw, def)
		return def
	}
	return n
}

// getDuration accepts Go duration strings ("90s") or bare seconds ("90").
func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d >= 0 {
		return d
	}
	if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
		return time.Duration(n) * time.Second
	}
	log.Printf("invalid %s=%q, using %s", key, raw, def)
	return def
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeTransport(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "telegram", "tg":
		return "telegram"
	default:
		return "whatsapp"
	}
}
