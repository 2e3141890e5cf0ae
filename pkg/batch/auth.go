package batch

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// ErrNoCredential indicates neither an account key nor a token credential was configured.
var ErrNoCredential = errors.New("batch: no account key or token credential configured")

// NewDefaultCredential returns the azidentity default credential chain
// (environment, workload identity, managed identity, Azure CLI).
func NewDefaultCredential() (azcore.TokenCredential, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("batch: default credential: %w", err)
	}
	return cred, nil
}

// authPolicy selects Shared Key when a key is configured, bearer tokens otherwise.
func authPolicy(cfg Config) (policy.Policy, error) {
	if cfg.AccountKey != "" {
		return newSharedKeyPolicy(cfg.AccountName, cfg.AccountKey)
	}
	if cfg.Credential != nil {
		return runtime.NewBearerTokenPolicy(cfg.Credential, []string{Scope}, nil), nil
	}
	return nil, ErrNoCredential
}

// sharedKeyPolicy signs each attempt with the Batch Shared Key scheme.
// It runs per retry so ocp-date is fresh on every attempt.
type sharedKeyPolicy struct {
	account string
	key     []byte
	now     func() time.Time
}

func newSharedKeyPolicy(account, key string) (*sharedKeyPolicy, error) {
	if account == "" {
		return nil, errors.New("batch: account name is required for shared key auth")
	}
	decoded, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("batch: decode account key: %w", err)
	}
	return &sharedKeyPolicy{account: account, key: decoded, now: time.Now}, nil
}

// Do implements policy.Policy.
func (p *sharedKeyPolicy) Do(req *policy.Request) (*http.Response, error) {
	raw := req.Raw()
	raw.Header.Set("ocp-date", p.now().UTC().Format(http.TimeFormat))
	raw.Header.Set("Authorization", "SharedKey "+p.account+":"+p.sign(raw))
	return req.Next()
}

func (p *sharedKeyPolicy) sign(r *http.Request) string {
	mac := hmac.New(sha256.New, p.key)
	mac.Write([]byte(stringToSign(p.account, r)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// stringToSign builds the canonical request string. Content-Length is
// empty for bodiless requests; Date stays empty because ocp-date is sent.
func stringToSign(account string, r *http.Request) string {
	length := r.Header.Get("Content-Length")
	if length == "" && r.ContentLength > 0 {
		length = strconv.FormatInt(r.ContentLength, 10)
	}
	if length == "0" {
		length = ""
	}

	parts := []string{
		r.Method,
		r.Header.Get("Content-Encoding"),
		r.Header.Get("Content-Language"),
		length,
		r.Header.Get("Content-MD5"),
		r.Header.Get("Content-Type"),
		r.Header.Get("Date"),
		r.Header.Get("If-Modified-Since"),
		r.Header.Get("If-Match"),
		r.Header.Get("If-None-Match"),
		r.Header.Get("If-Unmodified-Since"),
		r.Header.Get("Range"),
	}
	return strings.Join(parts, "\n") + "\n" +
		canonicalHeaders(r.Header) +
		canonicalResource(account, r.URL)
}

func canonicalHeaders(h http.Header) string {
	var names []string
	for name := range h {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, "ocp-") {
			names = append(names, lower)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(strings.TrimSpace(h.Get(name)))
		b.WriteByte('\n')
	}
	return b.String()
}

func canonicalResource(account string, u *url.URL) string {
	var b strings.Builder
	b.WriteString("/")
	b.WriteString(account)
	b.WriteString(u.EscapedPath())

	query := u.Query()
	names := make([]string, 0, len(query))
	byLower := make(map[string][]string, len(query))
	for name, values := range query {
		lower := strings.ToLower(name)
		if _, seen := byLower[lower]; !seen {
			names = append(names, lower)
		}
		byLower[lower] = append(byLower[lower], values...)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString("\n")
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(strings.Join(byLower[name], ","))
	}
	return b.String()
}
