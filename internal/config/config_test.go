package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvBatchAccount, EnvBatchKey, EnvBatchEndpoint, EnvStorageAccount, EnvStorageKey, EnvStorageURL} {
		t.Setenv(k, "")
	}
}

const globalYAML = `
batch:
  account_name: mybatch
  account_key: YmF0Y2hrZXk=
  service_url: https://mybatch.westus.batch.azure.com
  max_retries: 3
  retry_delay: 2s
storage:
  account_key: c3RvcmFnZWtleQ==
  account_url: https://mystorage.blob.core.windows.net
`

func TestLoadGlobal_YAML(t *testing.T) {
	clearEnv(t)
	g, err := LoadGlobal(writeFile(t, "configuration.yaml", globalYAML))
	if err != nil {
		t.Fatalf("LoadGlobal: %v", err)
	}
	if g.Batch.AccountName != "mybatch" || g.Batch.ServiceURL != "https://mybatch.westus.batch.azure.com" {
		t.Errorf("batch = %+v", g.Batch)
	}
	if g.Batch.MaxRetries != 3 || time.Duration(g.Batch.RetryDelay) != 2*time.Second {
		t.Errorf("retry = %d/%v", g.Batch.MaxRetries, time.Duration(g.Batch.RetryDelay))
	}
	// Unset keys keep their defaults.
	if time.Duration(g.Batch.MaxRetryDelay) != time.Minute {
		t.Errorf("max_retry_delay = %v, want default 1m", time.Duration(g.Batch.MaxRetryDelay))
	}
	if got := g.StorageAccountName(); got != "mystorage" {
		t.Errorf("StorageAccountName = %q, want mystorage", got)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadGlobal_TOML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "configuration.toml", `
[batch]
account_name = "tb"
service_url = "https://tb.eastus.batch.azure.com"
max_retry_delay = "30s"

[storage]
account_name = "explicit"
account_key = "a2V5"
account_url = "https://other.blob.core.windows.net"
`)
	g, err := LoadGlobal(path)
	if err != nil {
		t.Fatalf("LoadGlobal: %v", err)
	}
	if g.Batch.AccountName != "tb" || time.Duration(g.Batch.MaxRetryDelay) != 30*time.Second {
		t.Errorf("batch = %+v", g.Batch)
	}
	if got := g.StorageAccountName(); got != "explicit" {
		t.Errorf("StorageAccountName = %q, want explicit", got)
	}
}

func TestLoadGlobal_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBatchEndpoint, "https://override.batch.azure.com")
	t.Setenv(EnvStorageURL, "https://envstore.blob.core.windows.net")
	t.Setenv(EnvStorageKey, "ZW52")

	g, err := LoadGlobal(writeFile(t, "configuration.yaml", globalYAML))
	if err != nil {
		t.Fatalf("LoadGlobal: %v", err)
	}
	if g.Batch.ServiceURL != "https://override.batch.azure.com" {
		t.Errorf("service_url = %q", g.Batch.ServiceURL)
	}
	if g.Storage.AccountKey != "ZW52" {
		t.Errorf("storage key = %q", g.Storage.AccountKey)
	}
	if g.StorageAccountName() != "envstore" {
		t.Errorf("StorageAccountName = %q", g.StorageAccountName())
	}
	if g.Batch.AccountName != "mybatch" {
		t.Errorf("unset env var changed account_name to %q", g.Batch.AccountName)
	}
}

func TestLoadGlobal_Errors(t *testing.T) {
	clearEnv(t)
	if _, err := LoadGlobal(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadGlobal(writeFile(t, "bad.yaml", "batch: [unclosed")); err == nil {
		t.Error("expected error for malformed YAML")
	}
	if _, err := LoadGlobal(writeFile(t, "bad.yaml", "batch:\n  retry_delay: soon\n")); err == nil {
		t.Error("expected error for malformed duration")
	}
}

func TestGlobal_Validate(t *testing.T) {
	err := Global{}.Validate()
	if err == nil {
		t.Fatal("expected error for empty config")
	}
	for _, want := range []string{"batch.service_url", "storage.account_url", "storage.account_key"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}

	g := DefaultGlobal()
	g.Batch.ServiceURL = "ftp://nope"
	g.Storage.AccountURL = "https://s.blob.core.windows.net"
	g.Storage.AccountKey = "k"
	if err := g.Validate(); err == nil || !strings.Contains(err.Error(), "unsupported scheme") {
		t.Errorf("Validate = %v, want unsupported scheme", err)
	}
}

func TestStorageAccountName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://acct.blob.core.windows.net", "acct"},
		{"https://acct.blob.core.windows.net/", "acct"},
		{"http://127.0.0.1:10000/devstoreaccount1", "devstoreaccount1"},
		{"http://localhost:8080/sim/", "sim"},
		{"not a url", ""},
	}
	for _, tt := range tests {
		g := Global{Storage: Storage{AccountURL: tt.url}}
		if got := g.StorageAccountName(); got != tt.want {
			t.Errorf("StorageAccountName(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestLoadSample(t *testing.T) {
	path := writeFile(t, "pools_and_resourcefiles.yaml", `
should_delete_pool: false
pool_vm_size: STANDARD_A1_V2
pool_vm_count: 2
poll_interval: 250ms
`)
	s, err := LoadSample(path, DefaultSample())
	if err != nil {
		t.Fatalf("LoadSample: %v", err)
	}
	if s.ShouldDeletePool {
		t.Error("should_delete_pool = true, want false")
	}
	if !s.ShouldDeleteJob || !s.ShouldDeleteContainer {
		t.Error("unset flags lost their defaults")
	}
	if s.PoolVMSize != "STANDARD_A1_V2" || s.PoolVMCount != 2 {
		t.Errorf("pool = %s x%d", s.PoolVMSize, s.PoolVMCount)
	}
	if time.Duration(s.PollInterval) != 250*time.Millisecond {
		t.Errorf("poll_interval = %v", time.Duration(s.PollInterval))
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	s.PoolVMCount = 0
	if err := s.Validate(); err == nil {
		t.Error("expected error for zero pool_vm_count")
	}
}

func TestGlobal_LogValueRedactsKeys(t *testing.T) {
	clearEnv(t)
	g, err := LoadGlobal(writeFile(t, "configuration.yaml", globalYAML))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("config", "global", g)
	out := buf.String()
	if strings.Contains(out, "YmF0Y2hrZXk=") || strings.Contains(out, "c3RvcmFnZWtleQ==") {
		t.Errorf("log output leaks a key: %s", out)
	}
	if !strings.Contains(out, "global.batch.account_key=YmF0****") {
		t.Errorf("log output missing redacted key: %s", out)
	}
	if !strings.Contains(out, "global.storage.account_name=mystorage") {
		t.Errorf("log output missing derived account name: %s", out)
	}
}

func TestShippedConfigs(t *testing.T) {
	clearEnv(t)
	dir := filepath.Join("..", "..", "configs")

	for _, name := range []string{"configuration.yaml", "simulator.toml"} {
		g, err := LoadGlobal(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("LoadGlobal(%s): %v", name, err)
			continue
		}
		if g.Batch.ServiceURL == "" || g.Storage.AccountURL == "" {
			t.Errorf("%s: endpoints missing: %+v", name, g)
		}
	}

	for _, name := range []string{"pools_and_resourcefiles.yaml", "job_scheduler.yaml"} {
		s, err := LoadSample(filepath.Join(dir, name), DefaultSample())
		if err != nil {
			t.Errorf("LoadSample(%s): %v", name, err)
			continue
		}
		if err := s.Validate(); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}
