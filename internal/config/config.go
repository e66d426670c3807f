// internal/config/config.go
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	BaseURL  string `mapstructure:"base_url"`
	Listen   string `mapstructure:"listen"`
	LogLevel string `mapstructure:"log_level"`

	// MultiTenant switches the deployment into multi-site mode: tenants are
	// resolved per request host and membership checks apply.
	MultiTenant bool `mapstructure:"multi_tenant"`

	Database struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"database"`

	Paths struct {
		// Login is the authentication entry point unauthenticated visitors
		// are redirected to.
		Login string `mapstructure:"login"`
		// AdminLanding is the generic post-login landing page; the
		// configured login redirect override only replaces this target.
		AdminLanding string `mapstructure:"admin_landing"`
	} `mapstructure:"paths"`

	Pings struct {
		Targets  []string      `mapstructure:"targets"`
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"pings"`
}

func Load() Config {
	viper.SetDefault("listen", "127.0.0.1:8080")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("multi_tenant", false)
	viper.SetDefault("paths.login", "/login")
	viper.SetDefault("paths.admin_landing", "/admin")
	viper.SetDefault("pings.interval", time.Hour)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	_ = viper.ReadInConfig()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// explicit bindings
	_ = viper.BindEnv("base_url", "BASE_URL")
	_ = viper.BindEnv("listen", "LISTEN")
	_ = viper.BindEnv("log_level", "LOG_LEVEL")
	_ = viper.BindEnv("multi_tenant", "MULTI_TENANT")
	_ = viper.BindEnv("database.url", "DATABASE_URL")

	var c Config
	if err := viper.Unmarshal(&c); err != nil {
		panic("config error: " + err.Error())
	}
	if c.BaseURL == "" {
		panic("config error: base_url/BASE_URL required")
	}
	return c
}
