package logger

import (
	"io"
	"os"

	"github.com/spf13/cast"
)

// EnvConfig holds logger configuration read from the environment.
type EnvConfig struct {
	Level       string    // LOG_LEVEL
	Format      string    // LOG_FORMAT
	Output      io.Writer // overrides the stdout/file selection
	ServiceName string    // SERVICE_NAME
	Environment string    // APP_ENV: local, dev, prod

	LogFile     string // LOG_FILE, used outside local
	LogFileOnly bool   // LOG_FILE_ONLY

	MaxSize    int  // LOG_MAX_SIZE, MB
	MaxBackups int  // LOG_MAX_BACKUPS
	MaxAge     int  // LOG_MAX_AGE, days
	Compress   bool // LOG_COMPRESS
}

// LoadFromEnv reads EnvConfig, falling back to defaults for unset or
// unparsable values.
func LoadFromEnv() *EnvConfig {
	return &EnvConfig{
		Level:       envOr("LOG_LEVEL", "info"),
		Format:      envOr("LOG_FORMAT", "json"),
		ServiceName: envOr("SERVICE_NAME", "adnreport"),
		Environment: envOr("APP_ENV", "local"),

		LogFile:     envOr("LOG_FILE", "/var/log/adnreport/app.log"),
		LogFileOnly: envBool("LOG_FILE_ONLY", false),

		MaxSize:    envInt("LOG_MAX_SIZE", 100),
		MaxBackups: envInt("LOG_MAX_BACKUPS", 7),
		MaxAge:     envInt("LOG_MAX_AGE", 30),
		Compress:   envBool("LOG_COMPRESS", true),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return i
}
