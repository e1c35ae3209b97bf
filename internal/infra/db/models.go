package db

import "time"

type AttestationRecordModel struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	AttestationID string `gorm:"uniqueIndex;not null"`
	EnvelopeID    string `gorm:"index;not null"`
	EnvelopeHash  []byte `gorm:"type:bytea;not null"`
	HashAlg       string `gorm:"not null"`
	SuiteID       string `gorm:"index;not null"`
	PolicyID      string `gorm:"not null"`
	KeyEpoch      int64  `gorm:"not null"`
	ClassicalAlg  *string
	ClassicalKID  *string
	ClassicalSig  []byte `gorm:"type:bytea"`
	PQAlg         *string
	PQKID         *string
	PQSig         []byte    `gorm:"type:bytea"`
	CreatedAt     time.Time `gorm:"not null"`
}

type SubmissionRecordModel struct {
	ID            string    `gorm:"type:uuid;primaryKey"`
	SubmissionID  string    `gorm:"uniqueIndex;not null"`
	EnvelopeID    string    `gorm:"index;not null"`
	AttestationID string    `gorm:"index;not null"`
	Accepted      bool      `gorm:"not null"`
	Backend       string    `gorm:"not null"`
	BackendTxID   string    `gorm:"index;not null"`
	SubmittedAt   time.Time `gorm:"not null"`
}

type RotationPlanModel struct {
	ID          string    `gorm:"type:uuid;primaryKey"`
	EntriesJSON []byte    `gorm:"type:jsonb;not null"`
	Objective   float64   `gorm:"not null"`
	BuiltAt     time.Time `gorm:"not null"`
}

type AuditEventModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	EventType   string `gorm:"index;not null"`
	SubjectID   string `gorm:"index;not null"`
	Result      string `gorm:"not null"`
	ErrorCode   string
	PayloadJSON []byte    `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time `gorm:"index;not null"`
}
