package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	PostgresURL   string
	KafkaBrokers  []string
	OTLPEndpoint  string
	POSServiceURL string
	AlertsURL     string
	AlertTo       string
}

// Load reads configuration from the environment, after loading a local .env
// file when one exists. Required values (notably PostgresURL) are left empty
// here; each entrypoint fails fast on the ones it needs.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:          os.Getenv("PORT"),
		PostgresURL:   os.Getenv("POSTGRES_URL"),
		KafkaBrokers:  splitCSV(os.Getenv("KAFKA_BROKERS")),
		OTLPEndpoint:  getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		POSServiceURL: os.Getenv("POS_SERVICE_URL"),
		AlertsURL:     os.Getenv("ALERTS_SERVICE_URL"),
		AlertTo:       getenv("ALERT_RECIPIENT", "inventory@store.local"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
