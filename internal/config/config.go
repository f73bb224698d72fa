package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         int
	DatabasePath string
	LogDirectory string
	ModelName    string // reported in the websocket handshake
	MaxSessions  int    // websocket connection ceiling

	// Detection ingestion
	ConfidenceThreshold float64 // detections below this never become hazards
	SpatialTolerance    float64 // meters; dedup radius for nearby hazards
	FeedbackRadius      float64 // meters; located feedback beyond this is rejected

	// Crowd verification policy
	VerificationThreshold int
	DenialThreshold       int
	BaselineWeight        float64
	MinVerifyScore        float64
	ExpiryWindowHours     int
	SweepIntervalMinutes  int

	// Streaming channel defaults (used by the edge probe)
	MaxFrameRate      float64 // frames per second ceiling
	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration
	ConnectTimeout    time.Duration

	// Kafka export (empty brokers disables publishing)
	KafkaBrokers string
	KafkaTopic   string
}

func Load() *Config {
	// Optional .env for local development; real deployments set env vars.
	_ = godotenv.Load()

	return &Config{
		Port:         getEnvAsInt("PORT", 8080),
		DatabasePath: getEnv("DATABASE_PATH", filepath.Join(".", "data", "hazards.db")),
		LogDirectory: getEnv("LOG_DIR", filepath.Join(".", "logs")),
		ModelName:    getEnv("MODEL_NAME", "yolov8-road-hazards"),
		MaxSessions:  getEnvAsInt("MAX_SESSIONS", 10),

		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.25),
		SpatialTolerance:    getEnvAsFloat("SPATIAL_TOLERANCE_M", 15.0),
		FeedbackRadius:      getEnvAsFloat("FEEDBACK_RADIUS_M", 50.0),

		VerificationThreshold: getEnvAsInt("VERIFICATION_THRESHOLD", 3),
		DenialThreshold:       getEnvAsInt("DENIAL_THRESHOLD", 5),
		BaselineWeight:        getEnvAsFloat("BASELINE_WEIGHT", 1.0),
		MinVerifyScore:        getEnvAsFloat("MIN_VERIFY_SCORE", 0.6),
		ExpiryWindowHours:     getEnvAsInt("EXPIRY_WINDOW_HOURS", 24),
		SweepIntervalMinutes:  getEnvAsInt("SWEEP_INTERVAL_MINUTES", 10),

		MaxFrameRate:      getEnvAsFloat("MAX_FRAME_RATE", 5.0),
		HeartbeatInterval: getEnvAsDuration("HEARTBEAT_INTERVAL", 30*time.Second),
		ReconnectDelay:    getEnvAsDuration("RECONNECT_DELAY", 5*time.Second),
		ConnectTimeout:    getEnvAsDuration("CONNECT_TIMEOUT", 10*time.Second),

		KafkaBrokers: getEnv("KAFKA_BROKERS", ""),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "hazard-events"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
