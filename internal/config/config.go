// Package config assembles the application configuration from an .env file and the OS environment
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/UnendingLoop/CrystalUpscaler/internal/model"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	wbfconfig "github.com/wb-go/wbf/config"
)

const (
	DefaultFalApp       = "clarityai/crystal-upscaler"
	DefaultQueueURL     = "https://queue.fal.run"
	DefaultRestURL      = "https://rest.alpha.fal.ai"
	DefaultPollInterval = time.Second
	DefaultJobTimeout   = 15 * time.Minute
	DefaultHTTPTimeout  = 2 * time.Minute
	DefaultBucket       = "upscaled"
)

// Config is the resolved configuration of one run.
type Config struct {
	FalKey       string
	FalApp       string
	QueueURL     string
	RestURL      string
	PollInterval time.Duration
	JobTimeout   time.Duration
	HTTPTimeout  time.Duration
	LogLevel     string
	AppEnv       string
	Mirror       MirrorConfig

	// EnvFile is the .env file that was read, empty when none existed.
	EnvFile string
}

// MirrorConfig describes the optional S3-compatible copy of each result.
type MirrorConfig struct {
	Endpoint  string
	User      string
	Pass      string
	Bucket    string
	ResultKey string
	Secure    bool
}

// Enabled reports whether results should be mirrored at all.
func (m MirrorConfig) Enabled() bool {
	return m.Endpoint != ""
}

// Options controls where values come from and which source wins.
type Options struct {
	// EnvFiles are tried in order; only the first existing one is read.
	EnvFiles []string
	// FileOverridesEnv makes .env values win over OS variables of the same name.
	FileOverridesEnv bool
}

// DefaultOptions looks for .env next to the executable, then in the working directory.
func DefaultOptions() Options {
	files := make([]string, 0, 2)
	if exe, err := os.Executable(); err == nil {
		files = append(files, filepath.Join(filepath.Dir(exe), ".env"))
	}
	files = append(files, ".env")

	return Options{EnvFiles: files, FileOverridesEnv: true}
}

type source struct {
	file      map[string]string
	env       *wbfconfig.Config
	fileFirst bool
}

func (s source) get(key, fallback string) string {
	fileVal, inFile := s.file[key]
	envVal := strings.TrimSpace(s.env.GetString(key))

	switch {
	case inFile && s.fileFirst:
		return fileVal
	case envVal != "":
		return envVal
	case inFile:
		return fileVal
	default:
		return fallback
	}
}

func (s source) duration(key string, fallback time.Duration) (time.Duration, error) {
	raw := s.get(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := cast.ToDurationE(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: expected a positive duration like 30s", key, raw)
	}
	return d, nil
}

func (s source) boolean(key string, fallback bool) (bool, error) {
	raw := s.get(key, "")
	if raw == "" {
		return fallback, nil
	}
	b, err := cast.ToBoolE(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return b, nil
}

// Load resolves the configuration. The process environment is only read, never written.
// A missing FAL_KEY yields model.ErrMissingFalKey.
func Load(opts Options) (*Config, error) {
	fileVals, usedFile, err := readEnvFile(opts.EnvFiles)
	if err != nil {
		return nil, err
	}

	osEnv := wbfconfig.New()
	osEnv.EnableEnv("")

	src := source{file: fileVals, env: osEnv, fileFirst: opts.FileOverridesEnv}

	cfg := &Config{
		FalKey:   strings.TrimSpace(src.get("FAL_KEY", "")),
		FalApp:   strings.Trim(src.get("FAL_APP", DefaultFalApp), "/"),
		QueueURL: strings.TrimRight(src.get("FAL_QUEUE_URL", DefaultQueueURL), "/"),
		RestURL:  strings.TrimRight(src.get("FAL_REST_URL", DefaultRestURL), "/"),
		LogLevel: src.get("LOG_LEVEL", "warn"),
		AppEnv:   src.get("APP_ENV", "production"),
		Mirror: MirrorConfig{
			Endpoint:  src.get("MINIO_ENDPOINT", ""),
			User:      src.get("MINIO_USER", ""),
			Pass:      src.get("MINIO_PASS", ""),
			Bucket:    src.get("BUCKET_NAME", DefaultBucket),
			ResultKey: src.get("RESULT_KEY", ""),
		},
		EnvFile: usedFile,
	}

	if cfg.PollInterval, err = src.duration("FAL_POLL_INTERVAL", DefaultPollInterval); err != nil {
		return nil, err
	}
	if cfg.JobTimeout, err = src.duration("FAL_JOB_TIMEOUT", DefaultJobTimeout); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = src.duration("HTTP_TIMEOUT", DefaultHTTPTimeout); err != nil {
		return nil, err
	}
	if cfg.Mirror.Secure, err = src.boolean("MINIO_SECURE", false); err != nil {
		return nil, err
	}

	if cfg.FalKey == "" {
		return cfg, model.ErrMissingFalKey
	}

	return cfg, nil
}

func readEnvFile(paths []string) (map[string]string, string, error) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		raw, err := os.ReadFile(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, "", fmt.Errorf("failed to read env file %q: %w", p, err)
		}
		return parseEnvLines(string(raw)), p, nil
	}
	return map[string]string{}, "", nil
}

// parseEnvLines keeps only non-blank, non-comment lines that contain "=".
// Each line is parsed on its own, so one odd line never spoils the rest.
func parseEnvLines(content string) map[string]string {
	vals := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || !strings.Contains(line, "=") {
			continue
		}
		parsed, err := godotenv.Unmarshal(line)
		if err != nil {
			// keys godotenv rejects (e.g. MY-KEY) are split verbatim at the first "="
			key, value, _ := strings.Cut(line, "=")
			vals[key] = value
			continue
		}
		for k, v := range parsed {
			vals[k] = v
		}
	}
	return vals
}
