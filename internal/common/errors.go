// Package common: errors.go defines the error values shared by every module.
// Handlers match them with errors.Is and map them to HTTP statuses,
// so a caller can tell "retry later" apart from "fix your request".
package common

import "errors"

// Store errors
var (
	// ErrStoreUnavailable: the database cannot be reached (dial, timeout, closed pool).
	// Callers may retry or fall back to a cached snapshot.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrRecordNotFound: no ledger record / account for the given id
	ErrRecordNotFound = errors.New("record not found")
	// ErrAlreadyExists: a record with the same key is already stored
	ErrAlreadyExists = errors.New("record already exists")
)

// Ledger errors
var (
	// ErrInvalidInput: negative minutes, malformed date, bad settings
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyRunning: StartTimer while a timer is already running
	ErrAlreadyRunning = errors.New("timer already running")
)

// Account errors
var (
	// ErrNotParent: the account is not a parent account
	ErrNotParent = errors.New("account is not a parent")
	// ErrNotYourChild: the child belongs to a different parent
	ErrNotYourChild = errors.New("child does not belong to this parent")
)

// Challenge errors
var (
	// ErrChallengeLocked: the child has no approved unlock for the challenge
	ErrChallengeLocked = errors.New("challenge locked")
)
