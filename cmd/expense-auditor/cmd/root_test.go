package cmd

import (
	"testing"

	"expense-reconciliation-service/pkg/logger"

	"github.com/spf13/viper"
)

func TestInitConfigSetsGlobalLogger(t *testing.T) {
	original := logger.GetGlobalLogger()
	defer logger.SetGlobalLogger(original)

	tests := []struct {
		name    string
		verbose bool
	}{
		{"default level", false},
		{"verbose level", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Set("verbose", tt.verbose)
			defer viper.Set("verbose", false)

			initConfig()

			if logger.GetGlobalLogger() == nil {
				t.Fatal("expected a global logger after initialization")
			}
		})
	}
}

func TestGetVersionString(t *testing.T) {
	defer SetVersionInfo(version, commit, date)

	SetVersionInfo("dev", "abc123", "2026-08-30")
	if got := getVersionString(); got != "dev (commit abc123, built 2026-08-30)" {
		t.Errorf("unexpected dev version string: %q", got)
	}

	SetVersionInfo("1.2.0", "abc123", "2026-08-30")
	if got := getVersionString(); got != "1.2.0" {
		t.Errorf("unexpected release version string: %q", got)
	}
}
