// Package config loads the relay configuration from a TOML (or YAML) file
// with environment variable overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	// EnvConfigFile names the environment variable overriding DefaultPath.
	EnvConfigFile = "FORWARD_AS_ATTACHMENT_MTA_CONFIG_FILE"

	// EnvLogLevel names the environment variable overriding log_level.
	EnvLogLevel = "FORWARD_AS_ATTACHMENT_MTA_LOG_LEVEL"

	DefaultPath = "/etc/forward-as-attachment-mta.config.toml"

	defaultProvider = "smtp"
	defaultLogLevel = "warn"
)

// Config holds the complete application configuration.
type Config struct {
	SenderEmail    string `toml:"sender_email" yaml:"sender_email" validate:"required,email"`
	RecipientEmail string `toml:"recipient_email" yaml:"recipient_email" validate:"required,email"`
	SMTPHost       string `toml:"smtp_host" yaml:"smtp_host" validate:"required"`
	SMTPUsername   string `toml:"smtp_username" yaml:"smtp_username" validate:"required"`
	SMTPPassword   string `toml:"smtp_password" yaml:"smtp_password" validate:"required"`
	SMTPCAFile     string `toml:"smtp_ca_file" yaml:"smtp_ca_file"`

	Provider string `toml:"provider" yaml:"provider" validate:"oneof=smtp ses graph stdout"`
	LogLevel string `toml:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`

	SES   SESConfig   `toml:"ses" yaml:"ses"`
	Graph GraphConfig `toml:"graph" yaml:"graph"`
}

// SESConfig holds AWS SES configuration. Empty keys select the default AWS
// credential chain.
type SESConfig struct {
	Region          string `toml:"region" yaml:"region"`
	AccessKeyID     string `toml:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key" yaml:"secret_access_key"`
}

// GraphConfig holds Microsoft Graph API configuration.
type GraphConfig struct {
	TenantID     string `toml:"tenant_id" yaml:"tenant_id"`
	ClientID     string `toml:"client_id" yaml:"client_id"`
	ClientSecret string `toml:"client_secret" yaml:"client_secret"`
}

// Path returns the configuration file path: the value of EnvConfigFile when
// set and non-empty, DefaultPath otherwise.
func Path() (string, error) {
	v, ok := os.LookupEnv(EnvConfigFile)
	if !ok || v == "" {
		return DefaultPath, nil
	}
	if !utf8.ValidString(v) {
		return "", fmt.Errorf("%s is not valid UTF-8", EnvConfigFile)
	}
	return v, nil
}

// LevelFromEnv returns the log level set in EnvLogLevel, or the default.
// It is used before the configuration file has been read.
func LevelFromEnv() string {
	if v := os.Getenv(EnvLogLevel); v != "" {
		return strings.ToLower(v)
	}
	return defaultLogLevel
}

// Load reads, decodes and validates the configuration file at path.
// Environment variables override file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return cfg, nil
}

// Mode returns the file mode of the configuration file at path.
func Mode(path string) (fs.FileMode, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Mode(), nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	default:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(cfg)
	}
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = defaultProvider
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
}

func (c *Config) applyEnvVars() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
}

// Validate reports every problem with the configuration in one error.
func (c *Config) Validate() error {
	var errs *multierror.Error

	v, trans, err := newValidator()
	if err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			errs = multierror.Append(errs, errors.New(fe.Translate(trans)))
		}
	}

	switch c.Provider {
	case "ses":
		if c.SES.Region == "" {
			errs = multierror.Append(errs, errors.New("ses.region is required when provider is ses"))
		}
		if (c.SES.AccessKeyID == "") != (c.SES.SecretAccessKey == "") {
			errs = multierror.Append(errs, errors.New("ses.access_key_id and ses.secret_access_key must be set together"))
		}
	case "graph":
		if c.Graph.TenantID == "" || c.Graph.ClientID == "" || c.Graph.ClientSecret == "" {
			errs = multierror.Append(errs, errors.New("graph.tenant_id, graph.client_id and graph.client_secret are required when provider is graph"))
		}
	}

	return errs.ErrorOrNil()
}

// newValidator returns a validator reporting fields by their file key.
func newValidator() (*validator.Validate, ut.Translator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	enLang := en.New()
	uni := ut.New(enLang, enLang)
	trans, ok := uni.GetTranslator("en")
	if !ok {
		return nil, nil, errors.New("translator not found")
	}
	if err := enTranslations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, nil, err
	}

	return v, trans, nil
}
