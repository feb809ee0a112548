package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/planhaus/planhaus-backend/internal/platform/envutil"
	"github.com/planhaus/planhaus-backend/internal/platform/logger"
)

type Config struct {
	Port           string
	AllowedOrigins []string
}

// LoadConfig reads process configuration. The hard requirements
// (DATABASE_URL, REDIS_URL, OPENAI_API_KEY) are checked where their
// clients are constructed; this covers the rest.
func LoadConfig(log *logger.Logger) (Config, error) {
	for _, key := range []string{"DATABASE_URL", "REDIS_URL", "OPENAI_API_KEY"} {
		if strings.TrimSpace(os.Getenv(key)) == "" {
			return Config{}, fmt.Errorf("missing required env var %s", key)
		}
	}

	origins := strings.Split(envutil.Str("ALLOWED_ORIGINS", "http://localhost:3000"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	cfg := Config{
		Port:           envutil.Str("PORT", "8080"),
		AllowedOrigins: origins,
	}
	log.Info("Configuration loaded", "port", cfg.Port)
	return cfg, nil
}
