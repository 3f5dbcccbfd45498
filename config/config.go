package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment       string
	Domains           []string
	CertCacheDir      string
	HTTPPort          string
	HTTPSPort         string
	LLMService        string
	GeminiAPIKey      string
	GeminiAPIURL      string
	OpenAIAPIKey      string
	OpenAIAPIURL      string
	ModelName         string
	SystemInstruction string
	VisionMode        string
	PDFMode           string
	RasterDPI         int
	NotesTimeout      time.Duration
	MaxUploadMB       int64
	SessionTTL        time.Duration
	CleanupInterval   time.Duration
}

// Default persona used when the caller does not override the system instruction.
const DefaultSystemInstruction = "You are an expert academic assistant. Your goal is to transform notes into a comprehensive, well-structured educational document. Elaborate on topics, add examples, and clarify complex concepts in Markdown format."

var isTest bool

func init() {
	isTest = os.Getenv("GO_ENVIRONMENT") == "test"
	if !isTest {
		err := godotenv.Load()
		if err != nil {
			log.Println("Warning: Error loading .env file:", err)
		}
	}
}

func Load() Config {
	return Config{
		Environment:       getEnv("ENVIRONMENT", "development"),
		Domains:           []string{getEnv("DOMAIN", "example.com")},
		CertCacheDir:      getEnv("CERT_CACHE_DIR", "/etc/letsencrypt/live/example.com"),
		HTTPPort:          getEnv("HTTP_PORT", "8086"),
		HTTPSPort:         getEnv("HTTPS_PORT", "443"),
		LLMService:        getEnv("LLM_SERVICE", "gemini"),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiAPIURL:      getEnv("GEMINI_API_URL", "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-pro:generateContent"),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIAPIURL:      getEnv("OPENAI_API_URL", "https://api.openai.com/v1/chat/completions"),
		ModelName:         getEnv("MODEL_NAME", "gemini-2.5-pro"),
		SystemInstruction: getEnv("SYSTEM_INSTRUCTION", DefaultSystemInstruction),
		VisionMode:        getEnv("VISION_MODE", "append"),
		PDFMode:           getEnv("PDF_MODE", "raster"),
		RasterDPI:         getEnvAsInt("RASTER_DPI", 150),
		NotesTimeout:      time.Duration(getEnvAsInt("NOTES_TIMEOUT", 600)) * time.Second,
		MaxUploadMB:       int64(getEnvAsInt("MAX_UPLOAD_MB", 32)),
		SessionTTL:        time.Duration(getEnvAsInt("SESSION_TTL", 86400)) * time.Second,
		CleanupInterval:   time.Duration(getEnvAsInt("CLEANUP_INTERVAL", 3600)) * time.Second,
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
