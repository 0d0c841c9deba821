package config

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/agenticgokit/tracelens/internal/langfuse"
	"github.com/agenticgokit/tracelens/internal/utils"
)

// FileConfig is the layout of the tracelens TOML config file
type FileConfig struct {
	Host      string  `toml:"host"`
	ProjectID string  `toml:"project_id,omitempty"`
	PublicKey string  `toml:"public_key,omitempty"`
	SecretKey string  `toml:"secret_key,omitempty"`
	Timeout   string  `toml:"timeout"`
	PageSize  int     `toml:"page_size"`
	RateLimit float64 `toml:"rate_limit"`
}

// DefaultFileConfig returns a config file with the built-in defaults
func DefaultFileConfig() *FileConfig {
	return &FileConfig{
		Host:      langfuse.DefaultHost,
		Timeout:   langfuse.DefaultTimeout.String(),
		PageSize:  langfuse.DefaultPageSize,
		RateLimit: langfuse.DefaultRateLimit,
	}
}

const fileHeader = `# tracelens configuration
#
# Values here are overridden by LANGFUSE_* environment variables, a .env file
# in the working directory (or its parent) and command line flags.
# Keep public_key/secret_key in the environment unless this file is private.

`

// Generator generates configuration files
type Generator struct{}

// NewGenerator creates a new config generator
func NewGenerator() *Generator {
	return &Generator{}
}

// Render encodes cfg as commented TOML
func (g *Generator) Render(cfg *FileConfig) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(fileHeader)
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// GenerateConfig writes cfg to outputPath. An existing file is only replaced when force is set.
func (g *Generator) GenerateConfig(cfg *FileConfig, outputPath string, force bool) error {
	if utils.FileExists(outputPath) && !force {
		return utils.NewUserError(
			fmt.Sprintf("Config file %s already exists", outputPath),
			"Use --force to overwrite it",
			nil,
		)
	}

	content, err := g.Render(cfg)
	if err != nil {
		return err
	}

	// the file may carry keys
	if err := utils.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
