package db

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var errDBUnavailable = errors.New("db unavailable")

type Store struct {
	DB *gorm.DB
}

func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		log.Printf("POSTGRES_DSN not set; starting in no-db mode.")
		return &Store{DB: nil}, nil
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &Store{DB: gdb}, nil
}

// Migrate creates the append-only record tables. Records are never updated
// or deleted after insert; schema changes are additive only.
func (s *Store) Migrate() error {
	if s.DB == nil {
		return errDBUnavailable
	}
	return s.DB.AutoMigrate(
		&AttestationRecordModel{},
		&SubmissionRecordModel{},
		&RotationPlanModel{},
		&AuditEventModel{},
	)
}
