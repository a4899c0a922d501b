package invoke

import "strings"

// Environment variables understood by reptor.
const (
	EnvServer    = "REPTOR_SERVER"
	EnvToken     = "REPTOR_TOKEN"
	EnvProjectID = "REPTOR_PROJECT_ID"
	EnvCABundle  = "REQUESTS_CA_BUNDLE"
)

// Config is the SysReptor connection a plugin runs against.
type Config struct {
	Server    string
	Token     string
	ProjectID string
	Insecure  bool
	CABundle  string
}

// Overrides are per-call replacements for Config fields. Nil fields keep the base value.
type Overrides struct {
	Server    *string
	Token     *string
	ProjectID *string
	Insecure  *bool
}

// WithOverrides returns a copy of c with the non-nil overrides applied.
func (c Config) WithOverrides(o Overrides) Config {
	if o.Server != nil {
		c.Server = *o.Server
	}
	if o.Token != nil {
		c.Token = *o.Token
	}
	if o.ProjectID != nil {
		c.ProjectID = *o.ProjectID
	}
	if o.Insecure != nil {
		c.Insecure = *o.Insecure
	}
	return c
}

// Env builds the child environment from base. Inherited reptor variables are dropped
// and replaced by the values of c.
func (c Config) Env(base []string) []string {
	env := make([]string, 0, len(base)+4)
	for _, kv := range base {
		switch envName(kv) {
		case EnvServer, EnvToken, EnvProjectID, EnvCABundle:
			continue
		}
		env = append(env, kv)
	}

	if c.Server != "" {
		env = append(env, EnvServer+"="+c.Server)
	}
	if c.Token != "" {
		env = append(env, EnvToken+"="+c.Token)
	}
	if c.ProjectID != "" {
		env = append(env, EnvProjectID+"="+c.ProjectID)
	}
	if c.CABundle != "" && !c.Insecure {
		env = append(env, EnvCABundle+"="+c.CABundle)
	}
	return env
}

func envName(kv string) string {
	name, _, _ := strings.Cut(kv, "=")
	return name
}
