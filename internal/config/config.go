package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	appName        = "reqflow"
	configFileName = "config.yaml"
	envPrefix      = "REQFLOW"
)

// envBindings maps config keys to the environment variables that override
// them. Earlier names win when several are set.
var envBindings = map[string][]string{
	"backend.provider":   {"REQFLOW_BACKEND"},
	"claude.binary_path": {"REQFLOW_CLAUDE_PATH"},
	"claude.model":       {"REQFLOW_CLAUDE_MODEL"},
	"state.dir":          {"REQFLOW_STATE_DIR"},
	"logging.level":      {"REQFLOW_LOG_LEVEL"},
	"logging.format":     {"REQFLOW_LOG_FORMAT"},
	"gemini.api_key":     {"REQFLOW_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// Loader handles configuration loading using Viper.
type Loader struct {
	v       *viper.Viper
	envFile string
}

// NewLoader creates a new [Loader] with a fresh Viper instance.
func NewLoader() *Loader {
	return &Loader{v: viper.New(), envFile: ".env"}
}

// WithEnvFile sets the dotenv file read before the environment is consulted.
// An empty path disables dotenv loading.
func (l *Loader) WithEnvFile(path string) *Loader {
	l.envFile = path
	return l
}

// Load reads configuration from the standard locations.
//
// A missing config file is not an error; the defaults are returned with any
// environment overrides applied.
func (l *Loader) Load() (*Config, error) {
	if err := l.loadEnvFile(); err != nil {
		return nil, err
	}
	l.bindEnv()

	path, err := l.resolveConfigPath()
	if err != nil {
		return nil, err
	}
	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	return l.unmarshal()
}

// LoadFromFile reads configuration from a specific file. The format is
// inferred from the extension (yaml, json, toml).
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	if err := l.loadEnvFile(); err != nil {
		return nil, err
	}
	l.bindEnv()

	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return l.unmarshal()
}

func (l *Loader) loadEnvFile() error {
	if l.envFile == "" {
		return nil
	}
	if err := godotenv.Load(l.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error reading env file %s: %w", l.envFile, err)
	}
	return nil
}

func (l *Loader) bindEnv() {
	l.v.SetEnvPrefix(envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, names := range envBindings {
		args := append([]string{key}, names...)
		_ = l.v.BindEnv(args...)
	}
}

// resolveConfigPath returns the first config file that exists, or "".
func (l *Loader) resolveConfigPath() (string, error) {
	if path := os.Getenv("REQFLOW_CONFIG_PATH"); path != "" {
		return path, nil
	}

	candidates := []string{}
	if userPath, err := DefaultConfigPath(); err == nil {
		candidates = append(candidates, userPath)
	}
	candidates = append(candidates, appName+".yaml")

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", nil
}

func (l *Loader) unmarshal() (*Config, error) {
	cfg := DefaultConfig()
	defaults := DefaultConfig().Agents

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	// A partial agent entry in a config file replaces the whole map value,
	// so fields it leaves out are restored from the stock agent.
	for name, ac := range cfg.Agents {
		if ac.Name == "" {
			ac.Name = name
		}
		if def, ok := defaults[name]; ok {
			if ac.Model == "" {
				ac.Model = def.Model
			}
			if ac.Description == "" {
				ac.Description = def.Description
			}
			if ac.Instruction == "" {
				ac.Instruction = def.Instruction
			}
			if ac.SubAgents == nil {
				ac.SubAgents = def.SubAgents
			}
		}
		cfg.Agents[name] = ac
	}

	return cfg, nil
}

// Load is a convenience wrapper that loads configuration with a new [Loader].
func Load() (*Config, error) {
	return NewLoader().Load()
}

// MustLoad loads configuration and panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// ConfigDir returns the platform-standard reqflow configuration directory.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine user config dir: %w", err)
	}
	return filepath.Join(base, appName), nil
}

// DefaultConfigPath returns the path of the user-level config file.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// EnsureConfigDir creates the user configuration directory if needed.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// Instruction returns the expanded instruction for the named agent.
func (c *Config) Instruction(agentName string, data PromptData) (string, error) {
	ac, ok := c.Agents[agentName]
	if !ok {
		return "", fmt.Errorf("unknown agent: %s", agentName)
	}
	if strings.TrimSpace(ac.Instruction) == "" {
		return "", fmt.Errorf("agent %s has no instruction configured", agentName)
	}
	return ExpandInstruction(ac.Instruction, data)
}

// ExpandInstruction expands an instruction template with data. An empty
// PersonaLabel is replaced by [DefaultPersonaLabel].
func ExpandInstruction(tmpl string, data PromptData) (string, error) {
	if data.PersonaLabel == "" {
		data.PersonaLabel = DefaultPersonaLabel
	}
	return expandTemplate(tmpl, data)
}

func expandTemplate(tmpl string, data PromptData) (string, error) {
	t, err := template.New("instruction").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
