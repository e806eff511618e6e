package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ligustah/tlcfetch/internal/tripdata"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "TLCFETCH_"

// Keys accepted by Set. They double as flag names; the environment variable
// for a key is EnvPrefix + the key upper-cased with dashes turned into
// underscores, e.g. TLCFETCH_GCS_BUCKET.
var Keys = []string{
	"types",
	"years",
	"months",
	"dest",
	"workers",
	"base-url",
	"gcs-bucket",
	"scheme",
	"gcs-creds",
	"upload",
	"retries",
	"backoff",
	"upload-retries",
	"upload-backoff",
	"log-level",
	"metrics-addr",
}

// Config defines configuration for the tlcfetch CLI.
type Config struct {
	Types  []string `name:"types" validate:"min=1,dive,required,excludesall=/\\"`
	Years  []int    `name:"years" validate:"min=1,dive,min=1,max=9999"`
	Months []int    `name:"months" validate:"min=1,dive,min=1,max=12"`

	Dest    string `name:"dest" validate:"required"`
	Workers int    `name:"workers" validate:"min=1"`
	BaseURL string `name:"base-url" validate:"required,url"`

	Upload      bool   `name:"upload"`
	Bucket      string `name:"gcs-bucket" validate:"required_if=Upload true"`
	Scheme      string `name:"scheme" validate:"oneof=gs s3 file mem"`
	Credentials string `name:"gcs-creds"`

	Retry       RetryConfig `name:"retry"`
	UploadRetry RetryConfig `name:"upload-retry"`

	LogLevel    string `name:"log-level" validate:"oneof=debug info warn error"`
	MetricsAddr string `name:"metrics-addr"`
}

// RetryConfig defines retry behavior. Attempts counts the first try.
type RetryConfig struct {
	Attempts int           `name:"attempts" validate:"min=1"`
	Backoff  time.Duration `name:"backoff" validate:"min=0"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Types:   []string{"yellow", "green"},
		Years:   []int{2019, 2020},
		Months:  []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		Dest:    "data",
		Workers: 6,
		BaseURL: tripdata.DefaultBaseURL,
		Bucket:  "datazoomcamp-hw3-bucket",
		Scheme:  "gs",
		Retry: RetryConfig{
			Attempts: 3,
			Backoff:  5 * time.Second,
		},
		UploadRetry: RetryConfig{
			Attempts: 3,
			Backoff:  5 * time.Second,
		},
		LogLevel: "info",
	}
}

// yamlConfig is used for YAML unmarshaling with string lists and durations.
type yamlConfig struct {
	Types       string          `yaml:"types"`
	Years       string          `yaml:"years"`
	Months      string          `yaml:"months"`
	Dest        string          `yaml:"dest"`
	Workers     int             `yaml:"workers"`
	BaseURL     string          `yaml:"base_url"`
	Upload      bool            `yaml:"upload"`
	Storage     yamlStorage     `yaml:"storage"`
	Retry       yamlRetryConfig `yaml:"retry"`
	UploadRetry yamlRetryConfig `yaml:"upload_retry"`
	LogLevel    string          `yaml:"log_level"`
	MetricsAddr string          `yaml:"metrics_addr"`
}

type yamlStorage struct {
	Scheme      string `yaml:"scheme"`
	Bucket      string `yaml:"bucket"`
	Credentials string `yaml:"credentials"`
}

type yamlRetryConfig struct {
	Attempts int    `yaml:"attempts"`
	Backoff  string `yaml:"backoff"`
}

// LoadFromFile loads configuration from a YAML file. Keys missing from the
// file keep their defaults.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	var fc Config
	for key, v := range map[string]string{
		"types":  yc.Types,
		"years":  yc.Years,
		"months": yc.Months,
	} {
		if v == "" {
			continue
		}
		if err := fc.Set(key, v); err != nil {
			return Config{}, err
		}
	}
	if yc.Retry.Backoff != "" {
		if err := setDuration(&fc.Retry.Backoff, "retry.backoff", yc.Retry.Backoff); err != nil {
			return Config{}, err
		}
	}
	if yc.UploadRetry.Backoff != "" {
		if err := setDuration(&fc.UploadRetry.Backoff, "upload_retry.backoff", yc.UploadRetry.Backoff); err != nil {
			return Config{}, err
		}
	}

	fc.Dest = yc.Dest
	fc.Workers = yc.Workers
	fc.BaseURL = yc.BaseURL
	fc.Upload = yc.Upload
	fc.Scheme = yc.Storage.Scheme
	fc.Bucket = yc.Storage.Bucket
	fc.Credentials = yc.Storage.Credentials
	fc.Retry.Attempts = yc.Retry.Attempts
	fc.UploadRetry.Attempts = yc.UploadRetry.Attempts
	fc.LogLevel = yc.LogLevel
	fc.MetricsAddr = yc.MetricsAddr

	return Default().Merge(fc), nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the TLCFETCH_ prefix.
func (c *Config) LoadFromEnv() error {
	for _, key := range Keys {
		name := EnvName(key)
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			continue
		}
		if err := c.Set(key, v); err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
	}
	return nil
}

// EnvName returns the environment variable read for key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// Set assigns the textual value v to the field named by key. Malformed
// values yield a *tripdata.ConfigurationError.
func (c *Config) Set(key, v string) error {
	var err error
	switch key {
	case "types":
		c.Types, err = tripdata.ParseTypes(v)
	case "years":
		c.Years, err = tripdata.ParseYears(v)
	case "months":
		c.Months, err = tripdata.ParseMonths(v)
	case "dest":
		c.Dest = v
	case "workers":
		err = setInt(&c.Workers, key, v)
	case "base-url":
		c.BaseURL = v
	case "gcs-bucket":
		c.Bucket = v
	case "scheme":
		c.Scheme = v
	case "gcs-creds":
		c.Credentials = v
	case "upload":
		b, perr := strconv.ParseBool(v)
		if perr != nil {
			return &tripdata.ConfigurationError{Field: key, Value: v, Err: perr}
		}
		c.Upload = b
	case "retries":
		err = setInt(&c.Retry.Attempts, key, v)
	case "backoff":
		err = setDuration(&c.Retry.Backoff, key, v)
	case "upload-retries":
		err = setInt(&c.UploadRetry.Attempts, key, v)
	case "upload-backoff":
		err = setDuration(&c.UploadRetry.Backoff, key, v)
	case "log-level":
		c.LogLevel = strings.ToLower(v)
	case "metrics-addr":
		c.MetricsAddr = v
	default:
		return fmt.Errorf("config: unknown key %q", key)
	}
	return err
}

func setInt(dst *int, key, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return &tripdata.ConfigurationError{Field: key, Value: v, Err: err}
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return &tripdata.ConfigurationError{Field: key, Value: v, Err: err}
	}
	*dst = d
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("name")
	})
	return v
}

// Validate validates the configuration. The first violation is returned as
// a *tripdata.ConfigurationError naming the offending key.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("config: %w", err)
	}

	fe := verrs[0]
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	return &tripdata.ConfigurationError{
		Field: field,
		Value: fmt.Sprint(fe.Value()),
		Err:   fmt.Errorf("failed %q check", tagDescription(fe)),
	}
}

func tagDescription(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if len(override.Types) > 0 {
		c.Types = override.Types
	}
	if len(override.Years) > 0 {
		c.Years = override.Years
	}
	if len(override.Months) > 0 {
		c.Months = override.Months
	}
	if override.Dest != "" {
		c.Dest = override.Dest
	}
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.BaseURL != "" {
		c.BaseURL = override.BaseURL
	}
	if override.Upload {
		c.Upload = override.Upload
	}
	if override.Bucket != "" {
		c.Bucket = override.Bucket
	}
	if override.Scheme != "" {
		c.Scheme = override.Scheme
	}
	if override.Credentials != "" {
		c.Credentials = override.Credentials
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	if override.UploadRetry.Attempts != 0 {
		c.UploadRetry.Attempts = override.UploadRetry.Attempts
	}
	if override.UploadRetry.Backoff != 0 {
		c.UploadRetry.Backoff = override.UploadRetry.Backoff
	}
	if override.LogLevel != "" {
		c.LogLevel = override.LogLevel
	}
	if override.MetricsAddr != "" {
		c.MetricsAddr = override.MetricsAddr
	}
	return c
}
