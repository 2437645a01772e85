package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"

	"github.com/daniacca/rxdyn/internal/achem"
)

// ServerConfig holds the server configuration
type ServerConfig struct {
	Addr               string
	DefaultEnvID       string
	ScenarioFile       string
	SnapshotDir        string
	SnapshotEveryTicks int64
	RunInterval        time.Duration
	NotifierWorkers    int
	RuntimeMetrics     bool
	LogLevel           string
	LogFormat          string
}

// configResolver defines how to resolve a single configuration value
type configResolver struct {
	name        string
	envVarName  string
	defaultVal  string
	description string
	setter      func(*ServerConfig, string) error
}

func intSetter(set func(*ServerConfig, int64)) func(*ServerConfig, string) error {
	return func(c *ServerConfig, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		set(c, n)
		return nil
	}
}

// resolvers lists every option. The flag, the RXDYN_* variable and the
// config file key share the name.
var resolvers = []configResolver{
	{
		name:        "addr",
		envVarName:  "RXDYN_ADDR",
		defaultVal:  ":8080",
		description: "HTTP listen address (e.g. :8080, 0.0.0.0:8080)",
		setter:      func(c *ServerConfig, v string) error { c.Addr = v; return nil },
	},
	{
		name:        "env-id",
		envVarName:  "RXDYN_ENV_ID",
		defaultVal:  "default",
		description: "environment ID for the startup scenario",
		setter:      func(c *ServerConfig, v string) error { c.DefaultEnvID = v; return nil },
	},
	{
		name:        "scenario-file",
		envVarName:  "RXDYN_SCENARIO_FILE",
		defaultVal:  "",
		description: "optional scenario file (.yaml, .toml or .json) to load at startup",
		setter:      func(c *ServerConfig, v string) error { c.ScenarioFile = v; return nil },
	},
	{
		name:        "snapshot-dir",
		envVarName:  "RXDYN_SNAPSHOT_DIR",
		defaultVal:  "./data",
		description: "directory where environment snapshots are stored",
		setter:      func(c *ServerConfig, v string) error { c.SnapshotDir = v; return nil },
	},
	{
		name:        "snapshot-every-ticks",
		envVarName:  "RXDYN_SNAPSHOT_EVERY_TICKS",
		defaultVal:  "1000",
		description: "how often to write snapshots (in number of ticks); 0 disables periodic snapshots",
		setter:      intSetter(func(c *ServerConfig, n int64) { c.SnapshotEveryTicks = n }),
	},
	{
		name:        "run-interval",
		envVarName:  "RXDYN_RUN_INTERVAL",
		defaultVal:  "0",
		description: "start the startup environment with this step interval (e.g. 100ms); 0 leaves it stopped",
		setter: func(c *ServerConfig, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return err
			}
			c.RunInterval = d
			return nil
		},
	},
	{
		name:        "notifier-workers",
		envVarName:  "RXDYN_NOTIFIER_WORKERS",
		defaultVal:  "4",
		description: "number of goroutines delivering notifications",
		setter:      intSetter(func(c *ServerConfig, n int64) { c.NotifierWorkers = int(n) }),
	},
	{
		name:        "runtime-metrics",
		envVarName:  "RXDYN_RUNTIME_METRICS",
		defaultVal:  "true",
		description: "export Go runtime and process metrics",
		setter: func(c *ServerConfig, v string) error {
			b, err := strconv.ParseBool(v)
			c.RuntimeMetrics = b
			return err
		},
	},
	{
		name:        "log-level",
		envVarName:  "RXDYN_LOG_LEVEL",
		defaultVal:  "info",
		description: "log level: debug, info, warn, error",
		setter:      func(c *ServerConfig, v string) error { c.LogLevel = v; return nil },
	},
	{
		name:        "log-format",
		envVarName:  "RXDYN_LOG_FORMAT",
		defaultVal:  "console",
		description: "log encoding: console or json",
		setter:      func(c *ServerConfig, v string) error { c.LogFormat = v; return nil },
	},
}

// registerFlags adds one string flag per resolver.
func registerFlags(fs *pflag.FlagSet) {
	for _, r := range resolvers {
		fs.String(r.name, "", r.description)
	}
	fs.String("config", "", "optional TOML file with defaults for the options above")
}

// loadFileDefaults reads a flat TOML table keyed by option name.
func loadFileDefaults(path string) (map[string]string, error) {
	out := make(map[string]string)
	if path == "" {
		return out, nil
	}
	var raw map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	known := make(map[string]bool, len(resolvers))
	for _, r := range resolvers {
		known[r.name] = true
	}
	for k, v := range raw {
		if !known[k] {
			return nil, fmt.Errorf("config file: unknown option %q", k)
		}
		out[k] = fmt.Sprint(v)
	}
	return out, nil
}

// loadServerConfig resolves each option from its flag, then its environment
// variable, then the config file, then the default.
func loadServerConfig(fs *pflag.FlagSet) (ServerConfig, error) {
	cfg := ServerConfig{}
	configPath, _ := fs.GetString("config")
	if configPath == "" {
		configPath = os.Getenv("RXDYN_CONFIG")
	}
	fileValues, err := loadFileDefaults(configPath)
	if err != nil {
		return cfg, err
	}

	for _, r := range resolvers {
		var value string
		flagValue, _ := fs.GetString(r.name)
		if flagValue != "" {
			value = flagValue
		} else if envValue := os.Getenv(r.envVarName); envValue != "" {
			value = envValue
		} else if fileValue, ok := fileValues[r.name]; ok {
			value = fileValue
		} else {
			value = r.defaultVal
		}
		if err := r.setter(&cfg, value); err != nil {
			return cfg, fmt.Errorf("invalid value for %s: %q: %w", r.name, value, err)
		}
	}
	return cfg, nil
}

// applyInitialScenario loads a scenario file into the environment envID,
// creating it or replacing its scenario.
func applyInitialScenario(s *Server, path string, envID achem.EnvironmentID) (*achem.Environment, error) {
	cfg, err := achem.LoadScenarioFile(path)
	if err != nil {
		return nil, err
	}
	if _, exists := s.manager.GetEnvironment(envID); exists {
		if _, err := s.manager.ReplaceScenario(envID, cfg); err != nil {
			return nil, err
		}
		env, _ := s.manager.GetEnvironment(envID)
		return env, nil
	}
	return s.manager.CreateEnvironment(envID, cfg)
}
