package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".ferroclaw"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file. FERROCLAW_CONFIG
// overrides it, FERROCLAW_HOME relocates the default directory.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("FERROCLAW_CONFIG")); explicit != "" {
		return expandHome(explicit)
	}
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

func resolveHomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("FERROCLAW_HOME")); h != "" {
		return expandHome(h)
	}
	return os.UserHomeDir()
}

func expandHome(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		base, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(base, path[1:]), nil
	}
	return path, nil
}

// Load reads the config file and applies environment overrides. A
// missing file yields the defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err == nil {
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		substituteEnvValues(raw)
		resolved, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("encode config %s: %w", path, err)
		}
		if err := json.Unmarshal(resolved, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	envconfig.Process("FERROCLAW_PATHS", &cfg.Paths)
	envconfig.Process("FERROCLAW_MODEL", &cfg.Model)
	envconfig.Process("FERROCLAW_OPENAI", &cfg.Providers.OpenAI)
	envconfig.Process("FERROCLAW_CHANNELS_TELEGRAM", &cfg.Channels.Telegram)
	envconfig.Process("FERROCLAW_CHANNELS_SLACK", &cfg.Channels.Slack)
	envconfig.Process("FERROCLAW_CHANNELS_DISCORD", &cfg.Channels.Discord)
	envconfig.Process("FERROCLAW_HEARTBEAT", &cfg.Heartbeat)
	envconfig.Process("FERROCLAW_TRACE", &cfg.Trace)

	return cfg, nil
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteEnvValues expands ${VAR} references in string values of the
// raw config tree. Unset variables are left verbatim.
func substituteEnvValues(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = substituteEnvValues(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = substituteEnvValues(item)
		}
		return t
	case string:
		return envPattern.ReplaceAllStringFunc(t, func(match string) string {
			parts := envPattern.FindStringSubmatch(match)
			if len(parts) != 2 {
				return match
			}
			if value, ok := os.LookupEnv(parts[1]); ok {
				return value
			}
			return match
		})
	default:
		return v
	}
}

// Save writes the config as indented JSON at the default path.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// WorkspacePath returns the absolute workspace directory, creating it
// when missing.
func (c *Config) WorkspacePath() string {
	ws := c.Paths.Workspace
	if strings.HasPrefix(ws, "~") {
		home, _ := os.UserHomeDir()
		ws = filepath.Join(home, ws[1:])
	}
	if abs, err := filepath.Abs(ws); err == nil {
		ws = abs
	}
	os.MkdirAll(ws, 0755)
	return ws
}

// SessionsDir returns the session store directory.
func SessionsDir() string {
	home, err := resolveHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ConfigDir, "sessions")
}

// CronStorePath returns the cron job store file.
func CronStorePath() string {
	home, err := resolveHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ConfigDir, "cron.json")
}

// TaskLogPath returns the sqlite task database file.
func TaskLogPath() string {
	home, err := resolveHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ConfigDir, "tasks.db")
}
