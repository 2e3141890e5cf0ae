package cli

import (
	"bytes"
	"encoding/base64"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fogcitymarathoner/azure-batch-samples/internal/batchsim"
	"github.com/fogcitymarathoner/azure-batch-samples/internal/samples"
)

var testKey = base64.StdEncoding.EncodeToString([]byte("cli-test-key"))

// startSimulator runs the Batch and Blob fakes on the system clock with
// tasks that finish almost immediately.
func startSimulator(t *testing.T) (*batchsim.Simulator, string, string) {
	t.Helper()
	sim := batchsim.New(batchsim.Options{TaskRunTime: time.Millisecond})
	batchSrv := httptest.NewServer(sim.BatchHandler())
	t.Cleanup(batchSrv.Close)
	blobSrv := httptest.NewServer(sim.BlobHandler())
	t.Cleanup(blobSrv.Close)
	return sim, batchSrv.URL, blobSrv.URL + "/simstore"
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(args ...string) (stdout, stderr string, err error) {
	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCmd_ListsSamples(t *testing.T) {
	root := NewRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	got := strings.Join(names, ",")
	if !strings.Contains(got, "job-scheduler") || !strings.Contains(got, "pools-and-resourcefiles") {
		t.Errorf("subcommands = %s", got)
	}
}

func TestPoolsAndResourceFiles_EndToEnd(t *testing.T) {
	sim, batchURL, blobURL := startSimulator(t)
	dir := t.TempDir()
	global := writeFile(t, dir, "configuration.yaml", `
batch:
  account_name: simbatch
  account_key: `+testKey+`
  service_url: `+batchURL+`
  max_retries: 0
storage:
  account_key: `+testKey+`
  account_url: `+blobURL+`
`)
	sample := writeFile(t, dir, "pools.toml", `
should_delete_pool = false
pool_vm_size = "STANDARD_D2_V3"
pool_vm_count = 1
poll_interval = "10ms"
`)
	writeFile(t, dir, samples.SimpleTaskFile, "print('hi')\n")

	stdout, stderr, err := execute("pools-and-resourcefiles",
		"--config", global, "--sample-config", sample, "--resources", dir, "--log-format", "json")
	if err != nil {
		t.Fatalf("execute: %v\nstderr:\n%s", err, stderr)
	}
	if !strings.Contains(stdout, "Task: MyPythonTask") || !strings.Contains(stdout, "Downloaded simple_task.py (12 bytes)") {
		t.Errorf("stdout =\n%s", stdout)
	}
	if strings.Contains(stderr, testKey) {
		t.Error("account key leaked into the log")
	}
	if !strings.Contains(stderr, `"msg":"sample finished"`) {
		t.Errorf("stderr =\n%s", stderr)
	}
	if _, ok := sim.Pool("PoolsAndResourceFilesPool"); !ok {
		t.Error("pool deleted despite should_delete_pool = false")
	}
}

func TestSampleCmd_ConfigErrors(t *testing.T) {
	dir := t.TempDir()
	incomplete := writeFile(t, dir, "configuration.yaml", "batch:\n  account_name: a\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing global", []string{"job-scheduler", "--config", filepath.Join(dir, "nope.yaml")}, "read config"},
		{"invalid global", []string{"job-scheduler", "--config", incomplete}, "batch.service_url is required"},
		{"bad log level", []string{"job-scheduler", "--log-level", "loud"}, "unknown log level"},
		{"extra args", []string{"job-scheduler", "now"}, "unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestSampleCmd_InvalidSampleConfig(t *testing.T) {
	_, batchURL, blobURL := startSimulator(t)
	dir := t.TempDir()
	global := writeFile(t, dir, "configuration.yaml", "batch:\n  account_name: simbatch\n  account_key: "+testKey+
		"\n  service_url: "+batchURL+"\nstorage:\n  account_key: "+testKey+"\n  account_url: "+blobURL+"\n")
	sample := writeFile(t, dir, "sample.yaml", "pool_vm_count: 0\n")

	_, _, err := execute("pools-and-resourcefiles", "--config", global, "--sample-config", sample)
	if err == nil || !strings.Contains(err.Error(), "pool_vm_count must be at least 1") {
		t.Errorf("err = %v", err)
	}
}
