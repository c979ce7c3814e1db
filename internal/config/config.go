package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	DB struct {
		DSN string
	}
	API struct {
		Port     string
		BasePath string
	}
	Firebase struct {
		ServiceAccountJSON string
		ProjectID          string
		Transport          string // "v1" or "legacy"
		LegacyServerKey    string
	}
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	Telegram struct {
		BotToken  string
		OpsChatID int64
	}
	Dispatch struct {
		RadiusKm      float64
		MaxConcurrent int
		RatePerSecond int
		SendTimeout   time.Duration
	}
	Logging struct {
		Dir   string
		Level string
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	cfg.DB.DSN = os.Getenv("DB_DSN")

	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	cfg.Firebase.ServiceAccountJSON = os.Getenv("FIREBASE_SERVICE_ACCOUNT")
	cfg.Firebase.ProjectID = os.Getenv("FIREBASE_PROJECT_ID")
	cfg.Firebase.Transport = os.Getenv("FCM_TRANSPORT")
	cfg.Firebase.LegacyServerKey = os.Getenv("FCM_SERVER_KEY")

	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if id, err := strconv.ParseInt(os.Getenv("TELEGRAM_OPS_CHAT_ID"), 10, 64); err == nil {
		cfg.Telegram.OpsChatID = id
	}

	if r, err := strconv.ParseFloat(os.Getenv("ALERT_RADIUS_KM"), 64); err == nil {
		cfg.Dispatch.RadiusKm = r
	}
	if n, err := strconv.Atoi(os.Getenv("MAX_CONCURRENT_SENDS")); err == nil {
		cfg.Dispatch.MaxConcurrent = n
	}
	if n, err := strconv.Atoi(os.Getenv("SEND_RATE_PER_SECOND")); err == nil {
		cfg.Dispatch.RatePerSecond = n
	}
	if n, err := strconv.Atoi(os.Getenv("SEND_TIMEOUT_SECONDS")); err == nil {
		cfg.Dispatch.SendTimeout = time.Duration(n) * time.Second
	}

	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Validate required settings
	missing := []string{}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if cfg.Firebase.ProjectID == "" {
		missing = append(missing, "FIREBASE_PROJECT_ID")
	}
	switch cfg.Firebase.Transport {
	case "", "v1":
		if cfg.Firebase.ServiceAccountJSON == "" {
			missing = append(missing, "FIREBASE_SERVICE_ACCOUNT")
		}
	case "legacy":
		if cfg.Firebase.LegacyServerKey == "" {
			missing = append(missing, "FCM_SERVER_KEY")
		}
	default:
		return Config{}, fmt.Errorf("unknown FCM_TRANSPORT %q (want v1 or legacy)", cfg.Firebase.Transport)
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.Firebase.Transport == "" {
		cfg.Firebase.Transport = "v1"
	}
	if cfg.Dispatch.RadiusKm == 0 {
		cfg.Dispatch.RadiusKm = 5.0
	}
	if cfg.Dispatch.MaxConcurrent == 0 {
		cfg.Dispatch.MaxConcurrent = 20
	}
	if cfg.Dispatch.RatePerSecond == 0 {
		cfg.Dispatch.RatePerSecond = 50
	}
	if cfg.Dispatch.SendTimeout == 0 {
		cfg.Dispatch.SendTimeout = 10 * time.Second
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}
