package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m3trik/releasechain/internal/config"
)

// ---------------------------------------------------------------------------
// LoadConfig tests
// ---------------------------------------------------------------------------

func TestLoadConfig_MissingFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.LoadConfig(filepath.Join(dir, "releasechain.yaml"))
	if err != nil {
		t.Fatalf("expected no error for missing config file, got %v", err)
	}
	if cfg.DevBranch != config.DefaultDevBranch {
		t.Errorf("DevBranch = %q, want %q", cfg.DevBranch, config.DefaultDevBranch)
	}
	if cfg.MainBranch != config.DefaultMainBranch {
		t.Errorf("MainBranch = %q, want %q", cfg.MainBranch, config.DefaultMainBranch)
	}
	if cfg.WorkflowFile != config.DefaultWorkflowFile {
		t.Errorf("WorkflowFile = %q, want %q", cfg.WorkflowFile, config.DefaultWorkflowFile)
	}
	if cfg.WorkflowTimeoutSec != config.DefaultWorkflowTimeoutSec {
		t.Errorf("WorkflowTimeoutSec = %d, want %d", cfg.WorkflowTimeoutSec, config.DefaultWorkflowTimeoutSec)
	}
	if cfg.RegistryBaseURL != config.DefaultRegistryBaseURL {
		t.Errorf("RegistryBaseURL = %q, want %q", cfg.RegistryBaseURL, config.DefaultRegistryBaseURL)
	}
}

func TestLoadConfig_PartialFile(t *testing.T) {
	tests := []struct {
		name       string
		yaml       string
		wantDev    string
		wantRemote string
		wantPRSec  int
	}{
		{
			name:       "only dev_branch set",
			yaml:       "dev_branch: develop\n",
			wantDev:    "develop",
			wantRemote: config.DefaultRemote,
			wantPRSec:  config.DefaultPRTimeoutSec,
		},
		{
			name:       "timeouts overridden",
			yaml:       "pr_timeout_sec: 600\n",
			wantDev:    config.DefaultDevBranch,
			wantRemote: config.DefaultRemote,
			wantPRSec:  600,
		},
		{
			name:       "remote overridden",
			yaml:       "remote: upstream\n",
			wantDev:    config.DefaultDevBranch,
			wantRemote: "upstream",
			wantPRSec:  config.DefaultPRTimeoutSec,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "releasechain.yaml")
			if err := os.WriteFile(path, []byte(tc.yaml), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}

			cfg, err := config.LoadConfig(path)
			if err != nil {
				t.Fatalf("LoadConfig: %v", err)
			}
			if cfg.DevBranch != tc.wantDev {
				t.Errorf("DevBranch = %q, want %q", cfg.DevBranch, tc.wantDev)
			}
			if cfg.Remote != tc.wantRemote {
				t.Errorf("Remote = %q, want %q", cfg.Remote, tc.wantRemote)
			}
			if cfg.PRTimeoutSec != tc.wantPRSec {
				t.Errorf("PRTimeoutSec = %d, want %d", cfg.PRTimeoutSec, tc.wantPRSec)
			}
		})
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "releasechain.yaml")
	if err := os.WriteFile(path, []byte("dev_branch: [unclosed"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := config.LoadConfig(path); err == nil {
		t.Error("expected error for malformed YAML, got nil")
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got := cfg.WorkflowTimeout(); got != 15*time.Minute {
		t.Errorf("WorkflowTimeout = %s, want 15m", got)
	}
	if got := cfg.PRTimeout(); got != 30*time.Minute {
		t.Errorf("PRTimeout = %s, want 30m", got)
	}
	if got := cfg.PollInterval(); got != 15*time.Second {
		t.Errorf("PollInterval = %s, want 15s", got)
	}
}
