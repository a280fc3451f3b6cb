// Package agent holds the registry of named agents the orchestrator
// delegates to.
//
// Agents start from the configuration ([config.Config.Agents]) and can be
// overridden on disk, one directory per agent:
//
//	<agents_dir>/<name>/config.toml   model, description, sub_agents
//	<agents_dir>/<name>/agent.md      replaces the instruction text
//
// Directories naming an agent the configuration does not know add a new
// agent. Values handed out by the registry are copies.
package agent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"reqflow/internal/config"
	"reqflow/internal/stage"
)

const (
	configFileName = "config.toml"
	promptFileName = "agent.md"
)

// Source records where an agent definition came from.
type Source string

const (
	SourceConfig   Source = "config"
	SourceOverride Source = "override"
)

// Definition is one agent: model identifier, description, instruction and,
// for the root, its ordered sub-agents.
type Definition struct {
	Name        string
	Model       string
	Description string
	Instruction string
	SubAgents   []string
	Source      Source
}

func (d Definition) clone() Definition {
	d.SubAgents = slices.Clone(d.SubAgents)
	return d
}

// AgentTOML is the on-disk override format.
type AgentTOML struct {
	Model       string   `toml:"model"`
	Description string   `toml:"description"`
	SubAgents   []string `toml:"sub_agents"`
}

// Registry resolves agents by name.
type Registry struct {
	agents    map[string]Definition
	root      string
	agentsDir string
}

// NewRegistry builds a registry from cfg and applies on-disk overrides from
// cfg.AgentsDir. A missing agents directory is not an error.
func NewRegistry(cfg *config.Config) (*Registry, error) {
	r := &Registry{
		agents:    make(map[string]Definition, len(cfg.Agents)),
		root:      cfg.RootAgent,
		agentsDir: cfg.AgentsDir,
	}
	if r.root == "" {
		r.root = stage.RootAgent
	}

	for key, ac := range cfg.Agents {
		name := ac.Name
		if name == "" {
			name = key
		}
		r.agents[name] = Definition{
			Name:        name,
			Model:       ac.Model,
			Description: ac.Description,
			Instruction: ac.Instruction,
			SubAgents:   slices.Clone(ac.SubAgents),
			Source:      SourceConfig,
		}
	}

	if err := r.loadOverrides(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) loadOverrides() error {
	if r.agentsDir == "" {
		return nil
	}
	entries, err := os.ReadDir(r.agentsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read agents dir: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		dir := filepath.Join(r.agentsDir, name)

		tomlCfg, err := loadTOML(filepath.Join(dir, configFileName))
		if err != nil {
			return &AgentConfigError{Name: name, Err: err}
		}
		prompt, err := loadPrompt(filepath.Join(dir, promptFileName))
		if err != nil {
			return &AgentConfigError{Name: name, Err: err}
		}
		if tomlCfg == nil && prompt == "" {
			continue
		}

		def, ok := r.agents[name]
		if !ok {
			def = Definition{Name: name}
		}
		def.Source = SourceOverride
		if tomlCfg != nil {
			if tomlCfg.Model != "" {
				def.Model = tomlCfg.Model
			}
			if tomlCfg.Description != "" {
				def.Description = tomlCfg.Description
			}
			if tomlCfg.SubAgents != nil {
				def.SubAgents = tomlCfg.SubAgents
			}
		}
		if prompt != "" {
			def.Instruction = prompt
		}
		r.agents[name] = def
	}
	return nil
}

func loadTOML(path string) (*AgentTOML, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var cfg AgentTOML
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadPrompt(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Get returns a copy of the named agent.
func (r *Registry) Get(name string) (Definition, error) {
	def, ok := r.agents[name]
	if !ok {
		return Definition{}, &AgentNotFoundError{Name: name, Available: r.names()}
	}
	return def.clone(), nil
}

// List returns copies of all agents sorted by name.
func (r *Registry) List() []Definition {
	out := make([]Definition, 0, len(r.agents))
	for _, name := range r.names() {
		out = append(out, r.agents[name].clone())
	}
	return out
}

// Root returns the orchestrator agent.
func (r *Registry) Root() (Definition, error) {
	return r.Get(r.root)
}

// Children returns the root's sub-agents in delegation order.
func (r *Registry) Children() ([]Definition, error) {
	root, err := r.Root()
	if err != nil {
		return nil, err
	}
	out := make([]Definition, 0, len(root.SubAgents))
	for _, name := range root.SubAgents {
		def, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}

// Instruction returns the named agent's instruction expanded with data.
func (r *Registry) Instruction(name string, data config.PromptData) (string, error) {
	def, err := r.Get(name)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(def.Instruction) == "" {
		return "", &AgentConfigError{Name: name, Err: errors.New("no instruction configured")}
	}
	out, err := config.ExpandInstruction(def.Instruction, data)
	if err != nil {
		return "", &AgentConfigError{Name: name, Err: err}
	}
	return out, nil
}

// Validate checks that every agent is complete and that the root delegates
// to exactly one agent per stage, in stage order, with no repeats.
func (r *Registry) Validate() error {
	for _, name := range r.names() {
		def := r.agents[name]
		switch {
		case strings.TrimSpace(def.Model) == "":
			return &AgentConfigError{Name: name, Err: errors.New("model is required")}
		case strings.TrimSpace(def.Instruction) == "":
			return &AgentConfigError{Name: name, Err: errors.New("instruction is required")}
		}
	}

	root, err := r.Root()
	if err != nil {
		return err
	}

	seq := stage.Sequence()
	if len(root.SubAgents) != len(seq) {
		return &AgentConfigError{
			Name: root.Name,
			Err:  fmt.Errorf("expected %d sub-agents, got %d", len(seq), len(root.SubAgents)),
		}
	}
	seen := make(map[string]bool, len(root.SubAgents))
	for i, name := range root.SubAgents {
		if seen[name] {
			return &AgentConfigError{Name: root.Name, Err: fmt.Errorf("sub-agent %s listed twice", name)}
		}
		seen[name] = true
		if name == root.Name {
			return &AgentConfigError{Name: root.Name, Err: errors.New("root cannot delegate to itself")}
		}
		if _, ok := r.agents[name]; !ok {
			return &AgentNotFoundError{Name: name, Available: r.names()}
		}
		if want := seq[i].DefaultAgent(); name != want && r.isStageAgent(name) {
			return &AgentConfigError{
				Name: root.Name,
				Err:  fmt.Errorf("sub-agent %d must serve %s, got %s", i+1, seq[i], name),
			}
		}
	}
	return nil
}

// isStageAgent reports whether name is one of the stock stage agents.
func (r *Registry) isStageAgent(name string) bool {
	for _, st := range stage.Sequence() {
		if st.DefaultAgent() == name {
			return true
		}
	}
	return false
}

// StageAgents maps each stage to the root's sub-agent at the same position.
func (r *Registry) StageAgents() (map[stage.Stage]string, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	root, _ := r.Root()
	out := make(map[stage.Stage]string, len(root.SubAgents))
	for i, st := range stage.Sequence() {
		out[st] = root.SubAgents[i]
	}
	return out, nil
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AgentNotFoundError is returned for names the registry does not know.
type AgentNotFoundError struct {
	Name      string
	Available []string
}

func (e *AgentNotFoundError) Error() string {
	msg := "agent not found: " + e.Name
	if len(e.Available) > 0 {
		msg += "; available: " + strings.Join(e.Available, ", ")
	}
	return msg
}

// AgentConfigError reports an invalid agent definition.
type AgentConfigError struct {
	Name string
	Err  error
}

func (e *AgentConfigError) Error() string {
	return "invalid config for agent " + e.Name + ": " + e.Err.Error()
}

func (e *AgentConfigError) Unwrap() error {
	return e.Err
}
