// Package config provides configuration loading and management for reqflow.
//
// Configuration is loaded using Viper, supporting YAML config files, a .env file
// and environment variable overrides. The defaults describe the four stock agents
// (three stage agents and the root orchestrator) and work without any
// configuration file.
//
// Key types:
//   - [Config] is the root configuration container with all settings
//   - [Loader] handles Viper-based configuration loading
//   - [AgentConfig] is one named agent: model, description and instruction
//   - [BackendConfig] selects the inference backend
//
// Configuration priority (highest to lowest):
//  1. Environment variables (REQFLOW_ prefix)
//  2. Config file specified by REQFLOW_CONFIG_PATH
//  3. User config directory (platform-standard):
//     - Linux: ~/.config/reqflow/config.yaml
//     - macOS: ~/Library/Application Support/reqflow/config.yaml
//     - Windows: %APPDATA%\reqflow\config.yaml
//  4. ./reqflow.yaml
//  5. [DefaultConfig] defaults
package config

import "reqflow/internal/stage"

// Config represents the root configuration structure.
type Config struct {
	// Agents maps agent names to their configurations.
	// Keys are agent names (e.g., "requirements_agent", "root_agent").
	Agents map[string]AgentConfig `mapstructure:"agents"`

	// RootAgent names the orchestrator agent whose SubAgents define the
	// stage order. Default: "root_agent".
	RootAgent string `mapstructure:"root_agent"`

	// AgentsDir holds optional on-disk agent overrides laid out as
	// <agents_dir>/<name>/config.toml and <agents_dir>/<name>/agent.md.
	AgentsDir string `mapstructure:"agents_dir"`

	// StagesManifest optionally points at a CSV binding stages to agents
	// (columns: stage, agent, trigger_status, next_status). When empty the
	// root agent's sub_agents define the binding.
	StagesManifest string `mapstructure:"stages_manifest"`

	// PersonaLabel names the human reviewer in agent instructions.
	// Default: "Product Manager".
	PersonaLabel string `mapstructure:"persona_label"`

	// Backend selects the inference backend.
	Backend BackendConfig `mapstructure:"backend"`

	// Gemini contains Gemini API settings.
	Gemini GeminiConfig `mapstructure:"gemini"`

	// Claude contains Claude CLI binary configuration.
	Claude ClaudeConfig `mapstructure:"claude"`

	// Gates controls approval gate behavior.
	Gates GateConfig `mapstructure:"gates"`

	// State controls where sessions are persisted.
	State StateConfig `mapstructure:"state"`

	// Output contains terminal output formatting configuration.
	Output OutputConfig `mapstructure:"output"`

	// Logging configures the structured logger.
	Logging LoggingConfig `mapstructure:"logging"`
}

// AgentConfig is a named bundle of model identifier, description and
// instruction text. Only the root agent declares SubAgents.
type AgentConfig struct {
	// Name is the agent identifier. When empty it is filled from the map key.
	Name string `mapstructure:"name"`

	// Model is the model identifier passed to the backend.
	// Examples: "gemini-2.5-flash-lite", "gemini-2.5-flash", "sonnet"
	Model string `mapstructure:"model"`

	// Description is a one-line summary shown by the agents command.
	Description string `mapstructure:"description"`

	// Instruction is the system instruction, expanded as a Go template with
	// [PromptData] before use.
	Instruction string `mapstructure:"instruction"`

	// SubAgents is the ordered list of agents the root delegates to.
	SubAgents []string `mapstructure:"sub_agents"`
}

// BackendConfig selects the inference backend.
type BackendConfig struct {
	// Provider is "gemini" (default) or "claude".
	// Can be overridden with REQFLOW_BACKEND environment variable.
	Provider string `mapstructure:"provider"`

	// Temperature is passed to the model when non-zero.
	Temperature float64 `mapstructure:"temperature"`

	// MaxOutputTokens caps the response length when non-zero.
	MaxOutputTokens int `mapstructure:"max_output_tokens"`
}

// GeminiConfig contains Gemini API settings.
type GeminiConfig struct {
	// APIKey authenticates against the Gemini API.
	// Read from GEMINI_API_KEY or GOOGLE_API_KEY when unset.
	APIKey string `mapstructure:"api_key"`
}

// ClaudeConfig contains Claude CLI configuration.
type ClaudeConfig struct {
	// OutputFormat is the output format passed to Claude CLI.
	// Should be "stream-json" for structured event parsing.
	OutputFormat string `mapstructure:"output_format"`

	// BinaryPath is the path to the Claude CLI binary.
	// Default: "claude" (assumes Claude is in PATH).
	// Can be overridden with REQFLOW_CLAUDE_PATH environment variable.
	BinaryPath string `mapstructure:"binary_path"`

	// Model overrides the agent model when the claude backend is used,
	// since Gemini model names mean nothing to the Claude CLI.
	Model string `mapstructure:"model"`
}

// GateConfig controls approval gates.
type GateConfig struct {
	// BlockOnOpenIssues refuses approval of a stage whose output still
	// carries unresolved issues. Default: false (approval is recorded as
	// approved with open issues).
	BlockOnOpenIssues bool `mapstructure:"block_on_open_issues"`
}

// StateConfig controls session persistence.
type StateConfig struct {
	// Dir is the directory holding sessions/ and the active_session pointer.
	// Default: ".reqflow". Can be overridden with REQFLOW_STATE_DIR.
	Dir string `mapstructure:"dir"`
}

// OutputConfig contains terminal output formatting configuration.
type OutputConfig struct {
	// TruncateLines is the maximum number of lines shown per artifact in
	// summaries. Default: 20
	TruncateLines int `mapstructure:"truncate_lines"`

	// Markdown contains markdown rendering configuration.
	Markdown MarkdownConfig `mapstructure:"markdown"`
}

// MarkdownConfig contains configuration for markdown rendering in terminal output.
//
// When enabled, agent output is rendered with proper formatting:
// bold, italic, headers, lists, tables, etc.
type MarkdownConfig struct {
	// Enabled controls whether markdown rendering is active.
	// Default: true
	Enabled bool `mapstructure:"enabled"`

	// Style is the glamour theme to use: "dark", "light", "dracula", "tokyo-night".
	// Avoid "auto" as it can cause detection delays on some terminals.
	// Default: "dark"
	Style string `mapstructure:"style"`

	// WordWrap is the column width for text wrapping.
	// Default: 100
	WordWrap int `mapstructure:"word_wrap"`

	// Emoji enables emoji shortcode rendering (e.g., :smile: -> 😄).
	// Default: true
	Emoji bool `mapstructure:"emoji"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Default: "warn".
	Level string `mapstructure:"level"`

	// Format is "text" (default) or "json".
	Format string `mapstructure:"format"`

	// File, when set, receives log output instead of stderr.
	File string `mapstructure:"file"`
}

// DefaultConfig returns a new [Config] with sensible defaults.
//
// The defaults include the three stage agents and the root orchestrator with
// their embedded instructions, the Gemini backend and markdown output.
func DefaultConfig() *Config {
	return &Config{
		Agents: map[string]AgentConfig{
			stage.RequirementsAgent: {
				Name:        stage.RequirementsAgent,
				Model:       "gemini-2.5-flash-lite",
				Description: "Analyzes business documents and clarifies requirements before user stories are written.",
				Instruction: requirementsPrompt,
			},
			stage.UserStoryAgent: {
				Name:        stage.UserStoryAgent,
				Model:       "gemini-2.5-flash-lite",
				Description: "Turns approved requirements into persona-scoped user stories with acceptance criteria.",
				Instruction: userStoryPrompt,
			},
			stage.TestCaseAgent: {
				Name:        stage.TestCaseAgent,
				Model:       "gemini-2.5-flash-lite",
				Description: "Generates happy and negative path functional test cases from approved user stories.",
				Instruction: testCasePrompt,
			},
			stage.RootAgent: {
				Name:        stage.RootAgent,
				Model:       "gemini-2.5-flash",
				Description: "Coordinates the stage agents with explicit approval between every stage.",
				Instruction: rootPrompt,
				SubAgents:   []string{stage.RequirementsAgent, stage.UserStoryAgent, stage.TestCaseAgent},
			},
		},
		RootAgent:    stage.RootAgent,
		AgentsDir:    ".reqflow/agents",
		PersonaLabel: DefaultPersonaLabel,
		Backend: BackendConfig{
			Provider: "gemini",
		},
		Claude: ClaudeConfig{
			OutputFormat: "stream-json",
			BinaryPath:   "claude",
		},
		State: StateConfig{
			Dir: ".reqflow",
		},
		Output: OutputConfig{
			TruncateLines: 20,
			Markdown: MarkdownConfig{
				Enabled:  true,
				Style:    "dark",
				WordWrap: 100,
				Emoji:    true,
			},
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// PromptData contains data for instruction template expansion.
//
// Fields are accessible in templates using {{.FieldName}} syntax.
type PromptData struct {
	// StagesManifest optionally points at a CSV binding stages to agents
	// (columns: stage, agent, trigger_status, next_status). When empty the
	// root agent's sub_agents define the binding.
	StagesManifest string `mapstructure:"stages_manifest"`

	// PersonaLabel names the human reviewer the agents address.
	// Default: "Product Manager".
	PersonaLabel string
}

// DefaultPersonaLabel is used when [PromptData.PersonaLabel] is empty.
const DefaultPersonaLabel = "Product Manager"
