// Package xerrors defines the error taxonomy shared by every component of
// the monitoring engine, matching the categories the upstream contracts are
// allowed to fail with.
package xerrors

import "errors"

// Sentinel categories. Call sites branch on these with errors.Is/errors.As,
// never by matching error strings.
var (
	// TransientUpstream covers network errors, HTTP 429/5xx, and timeouts.
	// The fetcher retries these internally; if retries are exhausted the
	// caller sees this error and skips the affected unit of work.
	TransientUpstream = errors.New("transient upstream error")

	// MalformedResponse covers JSON parse failures and schema mismatches.
	// Never retried; the affected position or wallet is skipped this cycle.
	MalformedResponse = errors.New("malformed upstream response")

	// PersistenceFailure covers a failed durable-store write. In-memory
	// state still advances; repeated failures escalate to a fatal exit.
	PersistenceFailure = errors.New("persistence failure")

	// ConfigError is unresolvable at startup and exits the process with
	// status 2.
	ConfigError = errors.New("configuration error")
)

// Transient wraps err as a TransientUpstream error.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &wrapped{cat: TransientUpstream, err: err}
}

// Malformed wraps err as a MalformedResponse error.
func Malformed(err error) error {
	if err == nil {
		return nil
	}
	return &wrapped{cat: MalformedResponse, err: err}
}

// Persistence wraps err as a PersistenceFailure error.
func Persistence(err error) error {
	if err == nil {
		return nil
	}
	return &wrapped{cat: PersistenceFailure, err: err}
}

// Config wraps err as a ConfigError.
func Config(err error) error {
	if err == nil {
		return nil
	}
	return &wrapped{cat: ConfigError, err: err}
}

type wrapped struct {
	cat error
	err error
}

func (w *wrapped) Error() string { return w.cat.Error() + ": " + w.err.Error() }
func (w *wrapped) Unwrap() []error {
	return []error{w.cat, w.err}
}
