// Package config loads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Transport names.
const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
)

// Config is the process-wide configuration.
type Config struct {
	Server           string `validate:"required,url"`
	Token            string `validate:"required"`
	ProjectID        string
	Insecure         bool
	CABundle         string `validate:"omitempty,file"`
	Debug            bool
	MainPath         string        `validate:"omitempty,dir"`
	ReptorBin        string        `validate:"required"`
	Python           string        `validate:"required"`
	Transport        string        `validate:"oneof=http stdio"`
	Bind             string        `validate:"required,hostname_port"`
	DiscoveryTimeout time.Duration `validate:"gt=0"`
	// HistoryDB is the sqlite file of the execution log. Empty keeps the log in memory.
	HistoryDB        string
	History          bool
}

type binding struct {
	key   string
	env   string
	field string
}

var bindings = []binding{
	{"server", "REPTOR_SERVER", "Server"},
	{"token", "REPTOR_TOKEN", "Token"},
	{"project_id", "REPTOR_PROJECT_ID", "ProjectID"},
	{"insecure", "REPTOR_MCP_INSECURE", "Insecure"},
	{"ca_bundle", "REQUESTS_CA_BUNDLE", "CABundle"},
	{"debug", "REPTOR_MCP_DEBUG", "Debug"},
	{"main_path", "REPTOR_MAIN_PATH", "MainPath"},
	{"reptor_bin", "REPTOR_MCP_REPTOR_BIN", "ReptorBin"},
	{"python", "REPTOR_MCP_PYTHON", "Python"},
	{"transport", "REPTOR_MCP_TRANSPORT", "Transport"},
	{"bind", "REPTOR_MCP_BIND", "Bind"},
	{"discovery_timeout", "REPTOR_MCP_DISCOVERY_TIMEOUT", "DiscoveryTimeout"},
	{"history_db", "REPTOR_MCP_HISTORY_DB", "HistoryDB"},
	{"history", "REPTOR_MCP_HISTORY", "History"},
}

// EnvName returns the environment variable backing a Config field.
func EnvName(field string) string {
	for _, b := range bindings {
		if b.field == field {
			return b.env
		}
	}
	return field
}

// Load reads and validates the configuration from the environment.
func Load() (*Config, error) {
	v := viper.New()
	for _, b := range bindings {
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", b.env, err)
		}
	}

	v.SetDefault("reptor_bin", "reptor")
	v.SetDefault("python", "python3")
	v.SetDefault("transport", TransportHTTP)
	v.SetDefault("bind", "localhost:8989")
	v.SetDefault("discovery_timeout", 60*time.Second)

	cfg := &Config{
		Server:           strings.TrimSpace(v.GetString("server")),
		Token:            strings.TrimSpace(v.GetString("token")),
		ProjectID:        strings.TrimSpace(v.GetString("project_id")),
		Insecure:         v.GetBool("insecure"),
		CABundle:         v.GetString("ca_bundle"),
		Debug:            v.GetBool("debug"),
		MainPath:         v.GetString("main_path"),
		ReptorBin:        v.GetString("reptor_bin"),
		Python:           v.GetString("python"),
		Transport:        strings.ToLower(v.GetString("transport")),
		Bind:             v.GetString("bind"),
		DiscoveryTimeout: v.GetDuration("discovery_timeout"),
		HistoryDB:        v.GetString("history_db"),
		History:          v.GetBool("history"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg and names the offending environment variable on failure.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("validation error: %w", err)
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		env := EnvName(fe.StructField())
		switch fe.Tag() {
		case "required":
			messages = append(messages, "missing required environment variable "+env)
		default:
			messages = append(messages, fmt.Sprintf("invalid value for environment variable %s (%s)", env, fe.Tag()))
		}
	}
	return errors.New(strings.Join(messages, "; "))
}
