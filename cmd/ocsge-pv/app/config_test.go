package app

import (
	"testing"
)

// TestLoadConfig verifies the defaults when nothing is set.
func TestLoadConfig(t *testing.T) {
	t.Setenv("OCSGE_PV_CONFIG", "")
	t.Setenv("OCSGE_PV_VERBOSE", "")
	t.Setenv("OCSGE_PV_QUIET", "")
	t.Setenv("NO_COLOR", "")
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("LOG_OUTPUT", "")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.ConfigFile != "" {
		t.Errorf("ConfigFile = %q, want empty", config.ConfigFile)
	}
	if config.Verbose || config.Quiet || config.NoColor {
		t.Error("boolean flags should default to false")
	}
	if config.LogFormat != "auto" {
		t.Errorf("LogFormat = %q, want auto", config.LogFormat)
	}
	if config.LogOutput != "stderr" {
		t.Errorf("LogOutput = %q, want stderr", config.LogOutput)
	}
}

// TestLoadConfig_Environment verifies the OCSGE_PV_* variables are picked
// up.
func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("OCSGE_PV_CONFIG", "/etc/ocsge-pv/settings.yaml")
	t.Setenv("OCSGE_PV_VERBOSE", "true")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.ConfigFile != "/etc/ocsge-pv/settings.yaml" {
		t.Errorf("ConfigFile = %q, want the env value", config.ConfigFile)
	}
	if !config.Verbose {
		t.Error("OCSGE_PV_VERBOSE was not loaded")
	}
}

// TestLoadConfig_NoColor verifies both spellings of the no-color toggle.
func TestLoadConfig_NoColor(t *testing.T) {
	tests := []struct {
		name   string
		envVar string
	}{
		{name: "prefixed variable", envVar: "OCSGE_PV_NO_COLOR"},
		{name: "conventional NO_COLOR", envVar: "NO_COLOR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OCSGE_PV_NO_COLOR", "")
			t.Setenv("NO_COLOR", "")
			t.Setenv(tt.envVar, "1")

			config, err := LoadConfig()
			if err != nil {
				t.Fatalf("LoadConfig() failed: %v", err)
			}

			if !config.NoColor {
				t.Errorf("%s did not disable color", tt.envVar)
			}
		})
	}
}

// TestLoadConfig_LoggingOptions verifies the logging variables.
func TestLoadConfig_LoggingOptions(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_OUTPUT", "stdout")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", config.LogLevel)
	}
	if config.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", config.LogFormat)
	}
	if config.LogOutput != "stdout" {
		t.Errorf("LogOutput = %q, want stdout", config.LogOutput)
	}
}
