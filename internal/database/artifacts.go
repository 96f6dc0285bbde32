package database

import (
	"context"
	"errors"
	"fmt"

	"logima-backend/internal/models"
)

// ErrInvalidTransition is returned when a ledger write would move an artifact backwards
// or out of a terminal state.
var ErrInvalidTransition = errors.New("invalid artifact status transition")

const artifactColumns = `storage_key, project_id, user_id, original_filename, content_type, bucket,
	public_url, status, size_bytes, etag, created_at, uploaded_at, verified_at`

func scanArtifact(row interface{ Scan(...any) error }) (*models.Artifact, error) {
	var (
		a      models.Artifact
		status string
	)
	err := row.Scan(
		&a.StorageKey, &a.ProjectID, &a.UserID, &a.OriginalFilename, &a.ContentType, &a.Bucket,
		&a.PublicURL, &status, &a.SizeBytes, &a.ETag, &a.CreatedAt, &a.UploadedAt, &a.VerifiedAt,
	)
	if err != nil {
		return nil, err
	}
	if a.Status, err = models.ParseArtifactStatus(status); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateArtifact records a pending upload. created_at comes from the database clock.
func (d *DatabaseClient) CreateArtifact(ctx context.Context, a *models.Artifact) (*models.Artifact, error) {
	row := d.db.QueryRowContext(ctx, `
		INSERT INTO artifacts (storage_key, project_id, user_id, original_filename, content_type, bucket, public_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+artifactColumns,
		a.StorageKey, a.ProjectID, a.UserID, a.OriginalFilename, a.ContentType, a.Bucket, a.PublicURL,
		models.ArtifactPending.String(),
	)
	created, err := scanArtifact(row)
	if err != nil {
		return nil, wrapError("create artifact", err)
	}
	return created, nil
}

func (d *DatabaseClient) GetArtifact(ctx context.Context, storageKey string) (*models.Artifact, error) {
	a, err := getArtifact(ctx, d.db, storageKey, false)
	if err != nil {
		return nil, wrapError("get artifact", err)
	}
	return a, nil
}

// MarkArtifactUploaded reconciles object store metadata into the ledger in a single
// transaction. uploaded_at is only set the first time; a verified row is returned as is.
func (d *DatabaseClient) MarkArtifactUploaded(ctx context.Context, storageKey string, sizeBytes int64, etag string) (*models.Artifact, error) {
	var out *models.Artifact
	err := WithTx(ctx, d.db, nil, func(ctx context.Context, tx DBTX) error {
		current, err := getArtifact(ctx, tx, storageKey, true)
		if err != nil {
			return wrapError("lock artifact", err)
		}

		switch {
		case current.Status == models.ArtifactVerified:
			out = current
			return nil
		case current.Status == models.ArtifactUploaded, current.Status.CanTransitionTo(models.ArtifactUploaded):
		default:
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, models.ArtifactUploaded)
		}

		row := tx.QueryRowContext(ctx, `
			UPDATE artifacts
			SET status = $2, size_bytes = $3, etag = $4, uploaded_at = COALESCE(uploaded_at, now())
			WHERE storage_key = $1
			RETURNING `+artifactColumns,
			storageKey, models.ArtifactUploaded.String(), sizeBytes, etag,
		)
		out, err = scanArtifact(row)
		if err != nil {
			return wrapError("mark artifact uploaded", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkArtifactFailed moves a non-terminal artifact to failed.
func (d *DatabaseClient) MarkArtifactFailed(ctx context.Context, storageKey string) (*models.Artifact, error) {
	var out *models.Artifact
	err := WithTx(ctx, d.db, nil, func(ctx context.Context, tx DBTX) error {
		current, err := getArtifact(ctx, tx, storageKey, true)
		if err != nil {
			return wrapError("lock artifact", err)
		}
		if !current.Status.CanTransitionTo(models.ArtifactFailed) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, models.ArtifactFailed)
		}

		row := tx.QueryRowContext(ctx, `
			UPDATE artifacts
			SET status = $2
			WHERE storage_key = $1
			RETURNING `+artifactColumns,
			storageKey, models.ArtifactFailed.String(),
		)
		out, err = scanArtifact(row)
		if err != nil {
			return wrapError("mark artifact failed", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func getArtifact(ctx context.Context, q DBTX, storageKey string, forUpdate bool) (*models.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts WHERE storage_key = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return scanArtifact(q.QueryRowContext(ctx, query, storageKey))
}
