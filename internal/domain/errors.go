package domain

import "errors"

// Error taxonomy shared across the service. Callers branch with errors.Is;
// everything else wraps one of these or is a plain backend error.
var (
	// ErrBorrowerNotFound: no borrower row for the phone. Expected outcome,
	// handled by returning a placeholder, never a crash.
	ErrBorrowerNotFound = errors.New("borrower not found")

	// ErrRecordNotFound: a conversation record vanished between ensure and
	// append. Surfaced, not swallowed, because it risks silent data loss.
	ErrRecordNotFound = errors.New("conversation record not found")

	// ErrMalformedPhone: the phone is not a valid 10-digit identifier.
	ErrMalformedPhone = errors.New("malformed phone number")

	// ErrBackendUnavailable: a speech/LLM/telephony call failed. Fatal to the
	// current session; logged and followed by teardown.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrUploadFailed: the metrics upload exhausted its retries. Logged; the
	// call is still considered complete.
	ErrUploadFailed = errors.New("metrics upload failed")

	// ErrDispatchFailed: the outbound dispatch could not be created.
	ErrDispatchFailed = errors.New("dispatch failed")

	// ErrCallInProgress: the dispatch guard found an active call for the
	// same borrower.
	ErrCallInProgress = errors.New("call already in progress for this borrower")
)
