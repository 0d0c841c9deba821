// Package config resolves tracelens settings from flags, environment, .env
// files and the TOML config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/agenticgokit/tracelens/internal/langfuse"
	"github.com/agenticgokit/tracelens/internal/model"
	"github.com/agenticgokit/tracelens/internal/utils"
)

// Setting keys, shared by flags, the config file and viper
const (
	KeyHost      = "host"
	KeyPublicKey = "public_key"
	KeySecretKey = "secret_key"
	KeyProjectID = "project_id"
	KeyTimeout   = "timeout"
	KeyPageSize  = "page_size"
	KeyRateLimit = "rate_limit"
)

// DotEnvFile is looked up in the working directory, then its parent
const DotEnvFile = ".env"

// envNames lists the environment variables of each key, first match wins
var envNames = map[string][]string{
	KeyHost:      {"LANGFUSE_HOST", "LANGFUSE_BASE_URL", "LANGFUSE_BASEURL"},
	KeyPublicKey: {"LANGFUSE_PUBLIC_KEY"},
	KeySecretKey: {"LANGFUSE_SECRET_KEY"},
	KeyProjectID: {"LANGFUSE_PROJECT_ID"},
	KeyTimeout:   {"TRACELENS_TIMEOUT"},
	KeyPageSize:  {"TRACELENS_PAGE_SIZE"},
	KeyRateLimit: {"TRACELENS_RATE_LIMIT"},
}

// Settings is the resolved configuration of one invocation
type Settings struct {
	Host        string
	ProjectID   string
	Credentials model.Credentials
	Timeout     time.Duration
	PageSize    int
	RateLimit   float64
}

// LoadDotEnv loads the .env file of dir or its parent into the process
// environment. Variables already set are kept. It returns the loaded path,
// or "" when there is no .env file.
func LoadDotEnv(dir string) (string, error) {
	path, ok := utils.FindInDirOrParent(dir, DotEnvFile)
	if !ok {
		return "", nil
	}
	if err := godotenv.Load(path); err != nil {
		return "", fmt.Errorf("failed to load %s: %w", path, err)
	}
	return path, nil
}

// Bind registers environment names and defaults on v
func Bind(v *viper.Viper) error {
	for _, key := range []string{KeyHost, KeyPublicKey, KeySecretKey, KeyProjectID, KeyTimeout, KeyPageSize, KeyRateLimit} {
		args := append([]string{key}, envNames[key]...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	v.SetDefault(KeyHost, langfuse.DefaultHost)
	v.SetDefault(KeyTimeout, langfuse.DefaultTimeout)
	v.SetDefault(KeyPageSize, langfuse.DefaultPageSize)
	v.SetDefault(KeyRateLimit, float64(langfuse.DefaultRateLimit))
	return nil
}

// Load reads the settings from v
func Load(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		Host:      strings.TrimRight(strings.TrimSpace(v.GetString(KeyHost)), "/"),
		ProjectID: strings.TrimSpace(v.GetString(KeyProjectID)),
		Credentials: model.Credentials{
			PublicKey: strings.TrimSpace(v.GetString(KeyPublicKey)),
			SecretKey: strings.TrimSpace(v.GetString(KeySecretKey)),
		},
		Timeout:   v.GetDuration(KeyTimeout),
		PageSize:  v.GetInt(KeyPageSize),
		RateLimit: v.GetFloat64(KeyRateLimit),
	}
	if s.Host == "" {
		s.Host = langfuse.DefaultHost
	}

	if s.Timeout <= 0 {
		return nil, utils.NewValidationError(KeyTimeout, fmt.Sprintf("must be a positive duration, got %q", v.GetString(KeyTimeout)))
	}
	if s.PageSize < 1 || s.PageSize > 100 {
		return nil, utils.NewValidationError(KeyPageSize, fmt.Sprintf("must be between 1 and 100, got %d", s.PageSize))
	}
	if s.RateLimit < 0 {
		return nil, utils.NewValidationError(KeyRateLimit, fmt.Sprintf("must not be negative, got %v", s.RateLimit))
	}
	return s, nil
}

// ClientConfig returns the fetch client configuration for these settings
func (s *Settings) ClientConfig(logger *zerolog.Logger) langfuse.Config {
	rateLimit := s.RateLimit
	if rateLimit == 0 {
		// zero in the config file means unlimited
		rateLimit = -1
	}
	return langfuse.Config{
		Host:      s.Host,
		ProjectID: s.ProjectID,
		Timeout:   s.Timeout,
		PageSize:  s.PageSize,
		RateLimit: rateLimit,
		Logger:    logger,
	}
}
