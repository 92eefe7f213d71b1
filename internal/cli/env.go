package cli

import (
	"errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables providing flag defaults.
const (
	EnvLogLevel    = "PHASERUN_LOG_LEVEL"
	EnvLogFormat   = "PHASERUN_LOG_FORMAT"
	EnvParallelism = "PHASERUN_PARALLELISM"
	EnvStatusPort  = "PHASERUN_STATUS_PORT"
	EnvNotifyURL   = "PHASERUN_NOTIFY_URL"
)

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
