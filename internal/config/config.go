// Package config loads pipeline configuration from .autonomy/config.json
// plus environment-variable overrides. The polytopic dimensional profiles
// in phases.yaml are loaded by the phase package, not here.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"autonomy/internal/modelclient"
)

// HostEntry is the on-disk shape of one fallback-chain host.
type HostEntry struct {
	Host  string `json:"host"`
	Model string `json:"model"`
}

// Config is the full on-disk + environment-resolved pipeline
// configuration.
type Config struct {
	// CLI surface mirrors: flags may override these at invocation.
	DebugQA           bool   `json:"debug_qa,omitempty"`
	Command           string `json:"command,omitempty"`
	TestDurationSec   int    `json:"test_duration_seconds,omitempty"`
	SuccessTimeoutSec int    `json:"success_timeout_seconds,omitempty"`
	Detach            bool   `json:"detach,omitempty"`
	FollowPath        string `json:"follow_path,omitempty"`
	Verbose           bool   `json:"verbose,omitempty"`

	// EnableMetaPhases gates tool/prompt/role design phases, disabled by
	// default.
	EnableMetaPhases bool `json:"enable_meta_phases,omitempty"`

	LoopThreshold     int           `json:"loop_threshold,omitempty"`
	LoopHistoryWindow int           `json:"loop_history_window,omitempty"`
	ResolverCooldown  time.Duration `json:"resolver_cooldown,omitempty"`

	// ModelRoles maps specialist roles to their ordered fallback chains.
	ModelRoles map[string][]HostEntry `json:"model_roles,omitempty"`

	// CredentialsToken optionally authenticates pushing patches to an
	// external repository.
	CredentialsToken string `json:"-"`
	// ModelServerBaseURLs lists candidate LLM server hosts.
	ModelServerBaseURLs []string `json:"model_server_base_urls,omitempty"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		TestDurationSec:   30,
		SuccessTimeoutSec: 60,
		LoopThreshold:     3,
		LoopHistoryWindow: 5,
		ResolverCooldown:  10 * time.Minute,
		ModelRoles: map[string][]HostEntry{
			string(modelclient.RoleArbiter):             {{Host: "http://localhost:8080/v1/chat", Model: "arbiter-default"}},
			string(modelclient.RoleSpecialistCoding):    {{Host: "http://localhost:8080/v1/chat", Model: "coding-default"}},
			string(modelclient.RoleSpecialistReasoning): {{Host: "http://localhost:8080/v1/chat", Model: "reasoning-default"}},
			string(modelclient.RoleSpecialistAnalysis):  {{Host: "http://localhost:8080/v1/chat", Model: "analysis-default"}},
			string(modelclient.RoleToolCallRepair):      {{Host: "http://localhost:8080/v1/chat", Model: "repair-default"}},
		},
	}
}

// Load reads path (typically <workspace>/.autonomy/config.json); a
// missing file returns defaults rather than an error, mirroring the
// state store's load-on-startup posture.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg.applyEnvOverrides()
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes cfg back to path as indented JSON, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// applyEnvOverrides resolves the environment-variable surface: a
// credentials token for pushing patches (optional), and a list of
// model-server base URLs.
func (c *Config) applyEnvOverrides() {
	if tok := os.Getenv("AUTONOMY_REPO_TOKEN"); tok != "" {
		c.CredentialsToken = tok
	}
	if urls := os.Getenv("AUTONOMY_MODEL_SERVERS"); urls != "" {
		c.ModelServerBaseURLs = strings.Split(urls, ",")
	}
}

// ModelClientConfig converts the on-disk role map into the shape
// modelclient.Client expects.
func (c *Config) ModelClientConfig() modelclient.Config {
	roles := map[modelclient.SpecialistRole][]modelclient.HostConfig{}
	for role, entries := range c.ModelRoles {
		chain := make([]modelclient.HostConfig, 0, len(entries))
		for _, e := range entries {
			chain = append(chain, modelclient.HostConfig{Host: e.Host, Model: e.Model})
		}
		roles[modelclient.SpecialistRole(role)] = chain
	}
	return modelclient.Config{Roles: roles}
}
