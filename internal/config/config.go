// Package config loads and validates the initd TOML configuration. It is
// the collaborator that turns files into validated service descriptors;
// the supervisor core performs no parsing of its own.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/initd/internal/env"
	"github.com/loykin/initd/internal/logger"
	"github.com/loykin/initd/internal/service"
)

// ServiceConfig is one [[services]] table.
type ServiceConfig struct {
	Name             string        `toml:"name" mapstructure:"name"`
	Exec             string        `toml:"exec" mapstructure:"exec"`
	Args             []string      `toml:"args" mapstructure:"args"`
	WorkDir          string        `toml:"workdir" mapstructure:"workdir"`
	Env              []string      `toml:"env" mapstructure:"env"`
	DependsOn        []string      `toml:"depends_on" mapstructure:"depends_on"`
	Restart          string        `toml:"restart" mapstructure:"restart"`
	WatchdogInterval time.Duration `toml:"watchdog_interval" mapstructure:"watchdog_interval"`
}

// SupervisorConfig is the [supervisor] table.
type SupervisorConfig struct {
	GracePeriod   time.Duration `toml:"grace_period" mapstructure:"grace_period"`
	WatchdogTick  time.Duration `toml:"watchdog_tick" mapstructure:"watchdog_tick"`
	RestartMax    int           `toml:"restart_max" mapstructure:"restart_max"`
	RestartWindow time.Duration `toml:"restart_window" mapstructure:"restart_window"`
}

// Config is the top-level TOML structure.
type Config struct {
	Env             []string             `toml:"env" mapstructure:"env"`
	EnvFiles        []string             `toml:"env_files" mapstructure:"env_files"`
	UseOSEnv        bool                 `toml:"use_os_env" mapstructure:"use_os_env"`
	HistoryDSN      string               `toml:"history_dsn" mapstructure:"history_dsn"`
	MetricsListen   string               `toml:"metrics_listen" mapstructure:"metrics_listen"`
	HeartbeatSocket string               `toml:"heartbeat_socket" mapstructure:"heartbeat_socket"`
	Supervisor      SupervisorConfig     `toml:"supervisor" mapstructure:"supervisor"`
	Log             logger.Config        `toml:"log" mapstructure:"log"`
	Capture         logger.CaptureConfig `toml:"capture" mapstructure:"capture"`
	Services        []ServiceConfig      `toml:"services" mapstructure:"services"`
}

// Load reads and validates the TOML file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.Services))
	for i := range c.Services {
		sc := &c.Services[i]
		if sc.Name == "" {
			return fmt.Errorf("services[%d]: missing name", i)
		}
		if seen[sc.Name] {
			return fmt.Errorf("service %s: duplicate name", sc.Name)
		}
		seen[sc.Name] = true
		if sc.Exec == "" {
			return fmt.Errorf("service %s: missing exec", sc.Name)
		}
		if sc.Restart == "" {
			sc.Restart = string(service.RestartNever)
		}
		if !service.RestartPolicy(sc.Restart).Valid() {
			return fmt.Errorf("service %s: invalid restart policy %q", sc.Name, sc.Restart)
		}
		if sc.WatchdogInterval < 0 {
			return fmt.Errorf("service %s: negative watchdog_interval", sc.Name)
		}
		for _, dep := range sc.DependsOn {
			if dep == sc.Name {
				return fmt.Errorf("service %s: depends on itself", sc.Name)
			}
		}
	}
	// Dependency names must refer to configured services even though
	// launch ordering does not act on them yet.
	for _, sc := range c.Services {
		for _, dep := range sc.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("service %s: unknown dependency %q", sc.Name, dep)
			}
		}
	}
	return nil
}

// Specs converts the configured services into validated descriptors,
// applying the merged global environment to each.
func (c *Config) Specs() ([]service.Spec, error) {
	e, err := c.globalEnv()
	if err != nil {
		return nil, err
	}
	specs := make([]service.Spec, 0, len(c.Services))
	for _, sc := range c.Services {
		specs = append(specs, service.Spec{
			Name:             sc.Name,
			ExecPath:         sc.Exec,
			Args:             sc.Args,
			Env:              e.Merge(sc.Env),
			WorkDir:          sc.WorkDir,
			Dependencies:     sc.DependsOn,
			Restart:          service.RestartPolicy(sc.Restart),
			WatchdogInterval: sc.WatchdogInterval,
		})
	}
	return specs, nil
}

// globalEnv composes the base environment. Precedence: OS env (when
// enabled), then env_files in order, then the top-level env list.
func (c *Config) globalEnv() (*env.Env, error) {
	e := env.New()
	if c.UseOSEnv {
		e.FromOS()
	}
	for _, p := range c.EnvFiles {
		vars, err := env.LoadFile(p)
		if err != nil {
			return nil, fmt.Errorf("env file %s: %w", p, err)
		}
		for k, v := range vars {
			e.Set(k, v)
		}
	}
	e.SetAll(c.Env)
	return e, nil
}
