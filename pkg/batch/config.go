// Package batch provides a Go client for the Azure Batch data-plane REST API.
//
// Only the operations the samples need are covered: pools, jobs, job
// schedules, tasks, task files and the supported image catalog.
package batch

import (
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

// APIVersion is the Batch REST API version sent with every request.
const APIVersion = "2024-07-01.20.0"

// Scope is the Microsoft Entra scope for Batch bearer tokens.
const Scope = "https://batch.core.windows.net//.default"

// Default client settings.
const (
	DefaultMaxRetries    = 5
	DefaultRetryDelay    = 4 * time.Second
	DefaultMaxRetryDelay = 60 * time.Second
	DefaultTryTimeout    = 60 * time.Second
)

// Config holds all configuration for the Batch client.
type Config struct {
	// ServiceURL is the account endpoint, e.g. https://acct.westus2.batch.azure.com.
	ServiceURL string

	// AccountName and AccountKey enable Shared Key authentication.
	AccountName string
	AccountKey  string

	// Credential is used for Microsoft Entra authentication when AccountKey is empty.
	Credential azcore.TokenCredential

	// MaxRetries is the number of retries after the first attempt.
	// Delays grow exponentially from RetryDelay up to MaxRetryDelay.
	MaxRetries    int32
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration

	// TryTimeout bounds a single HTTP attempt.
	TryTimeout time.Duration

	// Transport overrides the HTTP transport (tests, proxies).
	Transport policy.Transporter
}

// DefaultConfig returns a Config with the default retry settings.
func DefaultConfig() Config {
	return Config{
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
		TryTimeout:    DefaultTryTimeout,
	}
}

// WithSharedKey returns a copy of the config using Shared Key authentication.
func (c Config) WithSharedKey(account, key string) Config {
	c.AccountName = account
	c.AccountKey = key
	return c
}

// WithCredential returns a copy of the config using token authentication.
func (c Config) WithCredential(cred azcore.TokenCredential) Config {
	c.Credential = cred
	return c
}

// WithRetries returns a copy of the config with the specified retry settings.
func (c Config) WithRetries(maxRetries int32, retryDelay, maxRetryDelay time.Duration) Config {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
	c.MaxRetryDelay = maxRetryDelay
	return c
}

// retryOptions maps the config onto azcore's exponential retry policy.
// A zero MaxRetries disables retries rather than selecting azcore's default.
func (c Config) retryOptions() policy.RetryOptions {
	opts := policy.RetryOptions{
		MaxRetries:    c.MaxRetries,
		RetryDelay:    c.RetryDelay,
		MaxRetryDelay: c.MaxRetryDelay,
		TryTimeout:    c.TryTimeout,
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = -1
	}
	return opts
}
