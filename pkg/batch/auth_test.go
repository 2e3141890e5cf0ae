package batch

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
)

type captureTransport struct {
	req *http.Request
}

func (c *captureTransport) Do(r *http.Request) (*http.Response, error) {
	c.req = r
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Header: http.Header{}, Request: r}, nil
}

func fixedNow() time.Time {
	return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
}

func expectedSignature(t *testing.T, toSign string) string {
	t.Helper()
	key, err := base64.StdEncoding.DecodeString(testKey)
	if err != nil {
		t.Fatal(err)
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(toSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestStringToSign_Get(t *testing.T) {
	r, err := http.NewRequest(http.MethodGet, "https://acct.westus.batch.azure.com/jobs/job-1/tasks?api-version=2024-07-01.20.0&$filter=x", nil)
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("ocp-date", fixedNow().Format(http.TimeFormat))

	want := "GET" + strings.Repeat("\n", 12) +
		"ocp-date:Mon, 19 Oct 2026 12:00:00 GMT\n" +
		"/acct/jobs/job-1/tasks\n$filter:x\napi-version:2024-07-01.20.0"
	if got := stringToSign("acct", r); got != want {
		t.Errorf("stringToSign =\n%q\nwant\n%q", got, want)
	}
}

func TestStringToSign_PostWithBody(t *testing.T) {
	body := []byte(`{"id":"p1"}`)
	r, err := http.NewRequest(http.MethodPost, "https://acct.westus.batch.azure.com/pools?api-version=2024-07-01.20.0", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Content-Type", contentTypeJSON)
	r.Header.Set("ocp-date", fixedNow().Format(http.TimeFormat))

	want := "POST\n\n\n11\n\n" + contentTypeJSON + strings.Repeat("\n", 7) +
		"ocp-date:Mon, 19 Oct 2026 12:00:00 GMT\n" +
		"/acct/pools\napi-version:2024-07-01.20.0"
	if got := stringToSign("acct", r); got != want {
		t.Errorf("stringToSign =\n%q\nwant\n%q", got, want)
	}
}

func TestSharedKeyPolicy_SignsThroughPipeline(t *testing.T) {
	p, err := newSharedKeyPolicy("acct", testKey)
	if err != nil {
		t.Fatalf("newSharedKeyPolicy: %v", err)
	}
	p.now = fixedNow

	tr := &captureTransport{}
	pl := runtime.NewPipeline("test", "v0.0.0", runtime.PipelineOptions{
		PerRetry: []policy.Policy{p},
	}, &policy.ClientOptions{Transport: tr, Retry: policy.RetryOptions{MaxRetries: -1}})

	req, err := runtime.NewRequest(context.Background(), http.MethodDelete, "https://acct.westus.batch.azure.com/pools/p1?api-version=2024-07-01.20.0")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pl.Do(req); err != nil {
		t.Fatalf("pipeline: %v", err)
	}

	if tr.req == nil {
		t.Fatal("transport saw no request")
	}
	if got := tr.req.Header.Get("ocp-date"); got != "Mon, 19 Oct 2026 12:00:00 GMT" {
		t.Errorf("ocp-date = %q", got)
	}

	toSign := "DELETE" + strings.Repeat("\n", 12) +
		"ocp-date:Mon, 19 Oct 2026 12:00:00 GMT\n" +
		"/acct/pools/p1\napi-version:2024-07-01.20.0"
	want := "SharedKey acct:" + expectedSignature(t, toSign)
	if got := tr.req.Header.Get("Authorization"); got != want {
		t.Errorf("Authorization = %q, want %q", got, want)
	}
}

func TestNewSharedKeyPolicy_RequiresAccount(t *testing.T) {
	if _, err := newSharedKeyPolicy("", testKey); err == nil {
		t.Error("expected error for empty account name")
	}
}
