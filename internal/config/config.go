// Package config loads client settings from defaults, an optional YAML file and MANUALS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/and161185/troubleshooter/internal/sessionstore"
)

// EnvPrefix prefixes environment overrides, e.g. MANUALS_BACKEND_URL -> backend.url.
const EnvPrefix = "MANUALS_"

// Config is the full client configuration.
type Config struct {
	Backend struct {
		URL     string `koanf:"url"`
		AnonKey string `koanf:"anon_key"`
	} `koanf:"backend"`

	Auth struct {
		EmailDomain string `koanf:"email_domain"`
		RedirectURL string `koanf:"redirect_url"`
	} `koanf:"auth"`

	Session struct {
		Path            string        `koanf:"path"`
		Passphrase      string        `koanf:"passphrase"`
		RefreshMargin   time.Duration `koanf:"refresh_margin"`
		RefreshInterval time.Duration `koanf:"refresh_interval"`
	} `koanf:"session"`

	Data struct {
		Driver string `koanf:"driver"` // rest | postgres
		DSN    string `koanf:"dsn"`
	} `koanf:"data"`

	Storage struct {
		Bucket string `koanf:"bucket"`
	} `koanf:"storage"`

	List struct {
		FallbackLimit int `koanf:"fallback_limit"`
	} `koanf:"list"`

	Timeouts Timeouts `koanf:"timeouts"`

	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
}

// Timeouts bounds how long callers wait on each backend operation.
type Timeouts struct {
	Bootstrap time.Duration `koanf:"bootstrap"`
	SignIn    time.Duration `koanf:"sign_in"`
	SignUp    time.Duration `koanf:"sign_up"`
	SignOut   time.Duration `koanf:"sign_out"`
	Profile   time.Duration `koanf:"profile"`
	List      time.Duration `koanf:"list"`
	AdminList time.Duration `koanf:"admin_list"`
	Save      time.Duration `koanf:"save"`
	Delete    time.Duration `koanf:"delete"`
	Role      time.Duration `koanf:"role"`
	Upload    time.Duration `koanf:"upload"`

	ResetPassword time.Duration `koanf:"reset_password"`
}

// DefaultTimeouts returns the stock per-operation deadlines.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Bootstrap: 25 * time.Second,
		SignIn:    25 * time.Second,
		SignUp:    25 * time.Second,
		SignOut:   3 * time.Second,
		Profile:   10 * time.Second,
		List:      7 * time.Second,
		AdminList: 5 * time.Second,
		Save:      8 * time.Second,
		Delete:    5 * time.Second,
		Role:      5 * time.Second,
		Upload:    30 * time.Second,

		ResetPassword: 25 * time.Second,
	}
}

// Default returns a Config with every optional field populated.
func Default() *Config {
	c := &Config{}
	c.Auth.EmailDomain = "internal.com"
	c.Session.Path = sessionstore.DefaultPath()
	c.Session.RefreshMargin = 60 * time.Second
	c.Session.RefreshInterval = 30 * time.Second
	c.Data.Driver = "rest"
	c.Storage.Bucket = "manual-images"
	c.List.FallbackLimit = 5
	c.Timeouts = DefaultTimeouts()
	c.Log.Level = "warn"
	return c
}

// DefaultPath returns <config dir>/config.yaml.
func DefaultPath() string { return filepath.Join(sessionstore.ConfigDir(), "config.yaml") }

// Load layers defaults, the YAML file at path (skipped when it does not exist) and the environment.
// An explicitly named file that is missing is an error; pass "" to use DefaultPath.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvPrefix + "CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultPath()
	}

	k := koanf.New(".")
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
	}), nil); err != nil {
		return nil, fmt.Errorf("load env variables: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// envSections are the top-level keys; the first underscore after one of them becomes a dot.
var envSections = []string{"backend", "auth", "session", "data", "storage", "list", "timeouts", "log"}

// envKey maps MANUALS_SESSION_REFRESH_MARGIN to session.refresh_margin.
func envKey(k, v string) (string, any) {
	key := strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
	for _, s := range envSections {
		if strings.HasPrefix(key, s+"_") {
			return s + "." + strings.TrimPrefix(key, s+"_"), v
		}
	}
	return "", nil
}

// Validate checks the fields every command needs.
func (c *Config) Validate() error {
	var problems []string
	// auth and storage always go through the backend, even with the postgres driver
	if u, err := url.Parse(c.Backend.URL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, "backend.url must be an absolute URL")
	}
	if c.Backend.AnonKey == "" {
		problems = append(problems, "backend.anon_key is required")
	}
	switch c.Data.Driver {
	case "rest":
	case "postgres":
		if c.Data.DSN == "" {
			problems = append(problems, "data.dsn is required for the postgres driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("data.driver %q is not rest or postgres", c.Data.Driver))
	}
	if c.Auth.EmailDomain == "" {
		problems = append(problems, "auth.email_domain is required")
	}
	if c.List.FallbackLimit <= 0 {
		problems = append(problems, "list.fallback_limit must be positive")
	}
	if c.Timeouts.Bootstrap <= 0 || c.Timeouts.List <= 0 || c.Timeouts.Save <= 0 {
		problems = append(problems, "timeouts must be positive")
	}
	if len(problems) > 0 {
		return errors.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}
