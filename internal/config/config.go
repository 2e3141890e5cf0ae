// Package config loads the two configuration sources every sample reads:
// the shared account settings and the per-sample run settings.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Default file names, resolved against the working directory.
const (
	DefaultGlobalFile = "configuration.yaml"
)

// Environment variables that override file values.
const (
	EnvBatchAccount   = "AZURE_BATCH_ACCOUNT"
	EnvBatchKey       = "AZURE_BATCH_ACCESS_KEY"
	EnvBatchEndpoint  = "AZURE_BATCH_ENDPOINT"
	EnvStorageAccount = "AZURE_STORAGE_ACCOUNT"
	EnvStorageKey     = "AZURE_STORAGE_KEY"
	EnvStorageURL     = "AZURE_STORAGE_URL"
)

// Duration is a time.Duration written as "4s" or "10m" in config files.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Batch holds the Batch account settings.
type Batch struct {
	AccountName   string   `yaml:"account_name" toml:"account_name"`
	AccountKey    string   `yaml:"account_key" toml:"account_key"`
	ServiceURL    string   `yaml:"service_url" toml:"service_url"`
	MaxRetries    int32    `yaml:"max_retries" toml:"max_retries"`
	RetryDelay    Duration `yaml:"retry_delay" toml:"retry_delay"`
	MaxRetryDelay Duration `yaml:"max_retry_delay" toml:"max_retry_delay"`
}

// Storage holds the blob storage account settings.
type Storage struct {
	AccountName string `yaml:"account_name" toml:"account_name"`
	AccountKey  string `yaml:"account_key" toml:"account_key"`
	AccountURL  string `yaml:"account_url" toml:"account_url"`
}

// Global is the configuration shared by all samples.
type Global struct {
	Batch   Batch   `yaml:"batch" toml:"batch"`
	Storage Storage `yaml:"storage" toml:"storage"`
}

// DefaultGlobal returns the retry defaults; account settings have no default.
func DefaultGlobal() Global {
	return Global{
		Batch: Batch{
			MaxRetries:    5,
			RetryDelay:    Duration(4 * time.Second),
			MaxRetryDelay: Duration(time.Minute),
		},
	}
}

// Sample holds the per-sample run settings.
type Sample struct {
	ShouldDeleteContainer   bool     `yaml:"should_delete_container" toml:"should_delete_container"`
	ShouldDeleteJob         bool     `yaml:"should_delete_job" toml:"should_delete_job"`
	ShouldDeletePool        bool     `yaml:"should_delete_pool" toml:"should_delete_pool"`
	ShouldDeleteJobSchedule bool     `yaml:"should_delete_job_schedule" toml:"should_delete_job_schedule"`
	PoolVMSize              string   `yaml:"pool_vm_size" toml:"pool_vm_size"`
	PoolVMCount             int32    `yaml:"pool_vm_count" toml:"pool_vm_count"`
	PollInterval            Duration `yaml:"poll_interval" toml:"poll_interval"`
}

// DefaultSample deletes everything the sample creates and polls every second.
func DefaultSample() Sample {
	return Sample{
		ShouldDeleteContainer:   true,
		ShouldDeleteJob:         true,
		ShouldDeletePool:        true,
		ShouldDeleteJobSchedule: true,
		PoolVMSize:              "STANDARD_D2_V3",
		PoolVMCount:             1,
		PollInterval:            Duration(time.Second),
	}
}

// LoadGlobal reads the global file, then applies environment overrides.
func LoadGlobal(path string) (Global, error) {
	g := DefaultGlobal()
	if err := decodeFile(path, &g); err != nil {
		return Global{}, err
	}
	g.applyEnv(os.LookupEnv)
	return g, nil
}

// LoadSample reads a per-sample file on top of defaults.
func LoadSample(path string, defaults Sample) (Sample, error) {
	s := defaults
	if err := decodeFile(path, &s); err != nil {
		return Sample{}, err
	}
	return s, nil
}

// decodeFile picks the decoder from the file extension: .toml or YAML.
func decodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), out); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	return nil
}

func (g *Global) applyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&g.Batch.AccountName, EnvBatchAccount)
	set(&g.Batch.AccountKey, EnvBatchKey)
	set(&g.Batch.ServiceURL, EnvBatchEndpoint)
	set(&g.Storage.AccountName, EnvStorageAccount)
	set(&g.Storage.AccountKey, EnvStorageKey)
	set(&g.Storage.AccountURL, EnvStorageURL)
}

// Validate reports every missing or malformed required setting.
// The Batch key may be empty: token authentication is used instead.
func (g Global) Validate() error {
	var errs []error
	if g.Batch.ServiceURL == "" {
		errs = append(errs, errors.New("batch.service_url is required"))
	} else if err := checkURL(g.Batch.ServiceURL); err != nil {
		errs = append(errs, fmt.Errorf("batch.service_url: %w", err))
	}
	if g.Batch.AccountKey != "" && g.Batch.AccountName == "" {
		errs = append(errs, errors.New("batch.account_name is required with batch.account_key"))
	}
	if g.Batch.MaxRetries < 0 {
		errs = append(errs, errors.New("batch.max_retries must not be negative"))
	}
	if g.Storage.AccountURL == "" {
		errs = append(errs, errors.New("storage.account_url is required"))
	} else if err := checkURL(g.Storage.AccountURL); err != nil {
		errs = append(errs, fmt.Errorf("storage.account_url: %w", err))
	}
	if g.Storage.AccountKey == "" {
		errs = append(errs, errors.New("storage.account_key is required"))
	}
	if g.Storage.AccountName == "" && g.StorageAccountName() == "" {
		errs = append(errs, errors.New("storage.account_name is required when it cannot be derived from account_url"))
	}
	return errors.Join(errs...)
}

// Validate checks the pool sizing settings.
func (s Sample) Validate() error {
	var errs []error
	if s.PoolVMSize == "" {
		errs = append(errs, errors.New("pool_vm_size is required"))
	}
	if s.PoolVMCount < 1 {
		errs = append(errs, fmt.Errorf("pool_vm_count must be at least 1, got %d", s.PoolVMCount))
	}
	if s.PollInterval <= 0 {
		errs = append(errs, errors.New("poll_interval must be positive"))
	}
	return errors.Join(errs...)
}

// StorageAccountName returns the configured account name, or the first
// host label of the account URL ("acct" for https://acct.blob.core.windows.net).
// Path-style URLs used by emulators (http://127.0.0.1:10000/acct) yield the first path segment.
func (g Global) StorageAccountName() string {
	if g.Storage.AccountName != "" {
		return g.Storage.AccountName
	}
	u, err := url.Parse(g.Storage.AccountURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := u.Hostname()
	if isIPOrLocal(host) {
		seg := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)[0]
		return seg
	}
	return strings.SplitN(host, ".", 2)[0]
}

func isIPOrLocal(host string) bool {
	if host == "localhost" {
		return true
	}
	for _, part := range strings.Split(host, ".") {
		if _, err := strconv.Atoi(part); err != nil {
			return false
		}
	}
	return true
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// redact keeps a short prefix of a secret so operators can tell keys apart.
func redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:4] + "****"
}

// LogValue implements slog.LogValuer so keys never reach the log.
func (g Global) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Group("batch",
			"account_name", g.Batch.AccountName,
			"account_key", redact(g.Batch.AccountKey),
			"service_url", g.Batch.ServiceURL,
			"max_retries", g.Batch.MaxRetries,
			"retry_delay", time.Duration(g.Batch.RetryDelay),
			"max_retry_delay", time.Duration(g.Batch.MaxRetryDelay),
		),
		slog.Group("storage",
			"account_name", g.StorageAccountName(),
			"account_key", redact(g.Storage.AccountKey),
			"account_url", g.Storage.AccountURL,
		),
	)
}

// LogValue implements slog.LogValuer.
func (s Sample) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("should_delete_container", s.ShouldDeleteContainer),
		slog.Bool("should_delete_job", s.ShouldDeleteJob),
		slog.Bool("should_delete_pool", s.ShouldDeletePool),
		slog.Bool("should_delete_job_schedule", s.ShouldDeleteJobSchedule),
		slog.String("pool_vm_size", s.PoolVMSize),
		slog.Int("pool_vm_count", int(s.PoolVMCount)),
		slog.Duration("poll_interval", time.Duration(s.PollInterval)),
	)
}
