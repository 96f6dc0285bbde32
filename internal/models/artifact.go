package models

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ArtifactStatus is the lifecycle state of an upload recorded in the ledger.
type ArtifactStatus string

const (
	ArtifactPending  ArtifactStatus = "pending"
	ArtifactUploaded ArtifactStatus = "uploaded"
	ArtifactVerified ArtifactStatus = "verified"
	ArtifactFailed   ArtifactStatus = "failed"
)

func ParseArtifactStatus(s string) (ArtifactStatus, error) {
	switch status := ArtifactStatus(s); status {
	case ArtifactPending, ArtifactUploaded, ArtifactVerified, ArtifactFailed:
		return status, nil
	default:
		return "", fmt.Errorf("unknown artifact status %q", s)
	}
}

func (s ArtifactStatus) String() string {
	return string(s)
}

func (s ArtifactStatus) IsTerminal() bool {
	switch s {
	case ArtifactVerified, ArtifactFailed:
		return true
	case ArtifactPending, ArtifactUploaded:
		return false
	default:
		panic(fmt.Sprintf("unhandled artifact status %q", string(s)))
	}
}

// CanTransitionTo reports whether moving from s to next is a forward step.
// Status never moves backwards and terminal states accept nothing.
func (s ArtifactStatus) CanTransitionTo(next ArtifactStatus) bool {
	switch s {
	case ArtifactPending:
		return next == ArtifactUploaded || next == ArtifactFailed
	case ArtifactUploaded:
		return next == ArtifactVerified || next == ArtifactFailed
	case ArtifactVerified, ArtifactFailed:
		return false
	default:
		return false
	}
}

// Artifact is keyed by its storage key; there is no surrogate id.
type Artifact struct {
	StorageKey       string
	ProjectID        uuid.NullUUID
	UserID           uuid.NullUUID
	OriginalFilename string
	ContentType      string
	Bucket           string
	PublicURL        string
	Status           ArtifactStatus
	SizeBytes        sql.NullInt64
	ETag             sql.NullString
	CreatedAt        time.Time
	UploadedAt       sql.NullTime
	VerifiedAt       sql.NullTime
}
