// Package config provides orchestrator configuration loading and the fixed
// package/pin table for the release chain. Config is read from
// releasechain.yaml in the root directory. A missing file returns sane
// defaults without error. CLI flags (bound via cobra) override config file
// values at the highest precedence by mutating the returned struct after
// loading.
package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for OrchestratorConfig fields.
const (
	DefaultDevBranch       = "dev"
	DefaultMainBranch      = "main"
	DefaultRemote          = "origin"
	DefaultWorkflowFile    = "publish.yml"
	DefaultBuildCommand    = "python -m build --wheel"
	DefaultCheckCommand    = "twine check dist/*"
	DefaultBuildTimeoutSec = 60
	DefaultCheckTimeoutSec = 30

	DefaultWorkflowTimeoutSec = 15 * 60
	DefaultPRTimeoutSec       = 30 * 60
	DefaultPollIntervalSec    = 15

	DefaultRegistryBaseURL = "https://pypi.org/pypi"
)

// OrchestratorConfig holds all tunable settings for a release run. It is
// read from releasechain.yaml in the root directory; timeouts are expressed
// in whole seconds in the YAML for readability.
type OrchestratorConfig struct {
	DevBranch    string `yaml:"dev_branch"`
	MainBranch   string `yaml:"main_branch"`
	Remote       string `yaml:"remote"`
	WorkflowFile string `yaml:"workflow_file"`

	BuildCommand    string `yaml:"build_command"`
	CheckCommand    string `yaml:"check_command"`
	BuildTimeoutSec int    `yaml:"build_timeout_sec"`
	CheckTimeoutSec int    `yaml:"check_timeout_sec"`

	WorkflowTimeoutSec int `yaml:"workflow_timeout_sec"`
	PRTimeoutSec       int `yaml:"pr_timeout_sec"`
	PollIntervalSec    int `yaml:"poll_interval_sec"`

	RegistryBaseURL string `yaml:"registry_base_url"`
}

// BuildTimeout returns the build command deadline as a duration.
func (c *OrchestratorConfig) BuildTimeout() time.Duration {
	return time.Duration(c.BuildTimeoutSec) * time.Second
}

// CheckTimeout returns the artifact-check command deadline as a duration.
func (c *OrchestratorConfig) CheckTimeout() time.Duration {
	return time.Duration(c.CheckTimeoutSec) * time.Second
}

// WorkflowTimeout returns the CI-run wait deadline as a duration.
func (c *OrchestratorConfig) WorkflowTimeout() time.Duration {
	return time.Duration(c.WorkflowTimeoutSec) * time.Second
}

// PRTimeout returns the PR-merge wait deadline as a duration.
func (c *OrchestratorConfig) PRTimeout() time.Duration {
	return time.Duration(c.PRTimeoutSec) * time.Second
}

// PollInterval returns the fixed sleep between polls of remote services.
func (c *OrchestratorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// defaults returns an OrchestratorConfig populated with sane defaults.
func defaults() OrchestratorConfig {
	return OrchestratorConfig{
		DevBranch:          DefaultDevBranch,
		MainBranch:         DefaultMainBranch,
		Remote:             DefaultRemote,
		WorkflowFile:       DefaultWorkflowFile,
		BuildCommand:       DefaultBuildCommand,
		CheckCommand:       DefaultCheckCommand,
		BuildTimeoutSec:    DefaultBuildTimeoutSec,
		CheckTimeoutSec:    DefaultCheckTimeoutSec,
		WorkflowTimeoutSec: DefaultWorkflowTimeoutSec,
		PRTimeoutSec:       DefaultPRTimeoutSec,
		PollIntervalSec:    DefaultPollIntervalSec,
		RegistryBaseURL:    DefaultRegistryBaseURL,
	}
}

// partialConfig is used during YAML parsing to distinguish between a field
// being absent (nil pointer) and a field being explicitly set to its zero
// value.
type partialConfig struct {
	DevBranch    *string `yaml:"dev_branch"`
	MainBranch   *string `yaml:"main_branch"`
	Remote       *string `yaml:"remote"`
	WorkflowFile *string `yaml:"workflow_file"`

	BuildCommand    *string `yaml:"build_command"`
	CheckCommand    *string `yaml:"check_command"`
	BuildTimeoutSec *int    `yaml:"build_timeout_sec"`
	CheckTimeoutSec *int    `yaml:"check_timeout_sec"`

	WorkflowTimeoutSec *int `yaml:"workflow_timeout_sec"`
	PRTimeoutSec       *int `yaml:"pr_timeout_sec"`
	PollIntervalSec    *int `yaml:"poll_interval_sec"`

	RegistryBaseURL *string `yaml:"registry_base_url"`
}

// LoadConfig reads releasechain.yaml at path and returns an
// OrchestratorConfig. If the file does not exist, defaults are returned
// without error. Fields absent from the file are filled with their default
// values; fields present override the corresponding default.
//
// CLI flag override pattern: cobra applies changed flags to the returned
// struct after this call, giving flags the highest precedence.
func LoadConfig(path string) (*OrchestratorConfig, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, err
	}

	var partial partialConfig
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return nil, err
	}

	if partial.DevBranch != nil {
		cfg.DevBranch = *partial.DevBranch
	}
	if partial.MainBranch != nil {
		cfg.MainBranch = *partial.MainBranch
	}
	if partial.Remote != nil {
		cfg.Remote = *partial.Remote
	}
	if partial.WorkflowFile != nil {
		cfg.WorkflowFile = *partial.WorkflowFile
	}
	if partial.BuildCommand != nil {
		cfg.BuildCommand = *partial.BuildCommand
	}
	if partial.CheckCommand != nil {
		cfg.CheckCommand = *partial.CheckCommand
	}
	if partial.BuildTimeoutSec != nil {
		cfg.BuildTimeoutSec = *partial.BuildTimeoutSec
	}
	if partial.CheckTimeoutSec != nil {
		cfg.CheckTimeoutSec = *partial.CheckTimeoutSec
	}
	if partial.WorkflowTimeoutSec != nil {
		cfg.WorkflowTimeoutSec = *partial.WorkflowTimeoutSec
	}
	if partial.PRTimeoutSec != nil {
		cfg.PRTimeoutSec = *partial.PRTimeoutSec
	}
	if partial.PollIntervalSec != nil {
		cfg.PollIntervalSec = *partial.PollIntervalSec
	}
	if partial.RegistryBaseURL != nil {
		cfg.RegistryBaseURL = *partial.RegistryBaseURL
	}

	return &cfg, nil
}
