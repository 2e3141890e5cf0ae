package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
)

// Batch service error codes the samples react to.
const (
	CodePoolExists          = "PoolExists"
	CodePoolNotFound        = "PoolNotFound"
	CodeJobExists           = "JobExists"
	CodeJobNotFound         = "JobNotFound"
	CodeJobScheduleExists   = "JobScheduleExists"
	CodeJobScheduleNotFound = "JobScheduleNotFound"
	CodeTaskExists          = "TaskExists"
	CodeTaskNotFound        = "TaskNotFound"
	CodeFileNotFound        = "FileNotFound"
	CodeInvalidRequestBody  = "InvalidRequestBody"
	CodeTaskNotYetStarted   = "TaskNotYetStarted"
)

// ErrorDetail is one key/value entry of a Batch error's detail list.
type ErrorDetail struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// String formats the detail as key=value.
func (d ErrorDetail) String() string {
	return d.Key + "=" + d.Value
}

// Error is a non-success response from the Batch service.
type Error struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int

	// Code is the Batch error code, e.g. "PoolExists".
	Code string

	// Message is the human-readable message.
	Message string

	// Values holds the additional details reported by the service.
	Values []ErrorDetail

	// RequestID is the service request id, useful in support tickets.
	RequestID string
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := strings.TrimSpace(e.Message)
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	if e.Code == "" {
		return fmt.Sprintf("batch: HTTP %d: %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("batch: %s (HTTP %d): %s", e.Code, e.StatusCode, msg)
}

type wireError struct {
	Code    string `json:"code"`
	Message struct {
		Lang  string `json:"lang"`
		Value string `json:"value"`
	} `json:"message"`
	Values []ErrorDetail `json:"values"`
}

// newError builds an *Error from a failed response.
func newError(resp *http.Response) error {
	e := &Error{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("request-id"),
	}

	body, err := runtime.Payload(resp)
	if err != nil {
		e.Message = fmt.Sprintf("reading error body: %v", err)
		return e
	}

	var wire wireError
	if len(body) > 0 && json.Unmarshal(body, &wire) == nil {
		e.Code = wire.Code
		e.Message = wire.Message.Value
		e.Values = wire.Values
	} else if len(body) > 0 {
		e.Message = string(body)
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}

// IsCode returns true if err is a Batch error with one of the given codes.
func IsCode(err error, codes ...string) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	for _, c := range codes {
		if e.Code == c {
			return true
		}
	}
	return false
}

// IsNotFound returns true if err reports a missing resource.
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// IsExists returns true if err reports that a resource already exists.
func IsExists(err error) bool {
	return IsCode(err, CodePoolExists, CodeJobExists, CodeJobScheduleExists, CodeTaskExists)
}
