package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
run:
  mode: users
  concurrent: 8
  delay: 1000
  retry: 4
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := rootCmd.ParseFlags([]string{"--config", path, "--mode", "clients", "--retry", "0", "--prompt=false"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	cfg, err := loadConfig(rootCmd)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if cfg.Run.Mode != "clients" {
		t.Errorf("mode = %q, want flag value clients", cfg.Run.Mode)
	}
	if cfg.Run.MaxRetries != 0 {
		t.Errorf("retry = %d, want flag value 0", cfg.Run.MaxRetries)
	}
	if cfg.Run.Prompt {
		t.Error("prompt = true, want flag value false")
	}
	// not set on the command line, so the file wins over flag defaults
	if cfg.Run.MaxConcurrent != 8 || cfg.Run.MinDelayMs != 1000 {
		t.Errorf("run = %+v, want file values for concurrent and delay", cfg.Run)
	}
}
