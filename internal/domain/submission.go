package domain

import "time"

type BackendKind string

const (
	BackendNative      BackendKind = "native"
	BackendInterledger BackendKind = "interledger"
	BackendMemory      BackendKind = "memory"
)

type SubmissionResult struct {
	ID            string
	EnvelopeID    string
	AttestationID string
	Accepted      bool
	Backend       BackendKind
	BackendTxID   string
	SubmittedAt   time.Time
}
