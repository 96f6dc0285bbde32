package services

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"logima-backend/internal/database"
	"logima-backend/internal/events"
	"logima-backend/internal/metrics"
	"logima-backend/internal/models"
	"logima-backend/internal/storage"
	"logima-backend/internal/workpool"
)

const (
	confirmTimeout = 30 * time.Second
	notifyTimeout  = 10 * time.Second
)

// ObjectStore is implemented by *storage.S3Client.
type ObjectStore interface {
	Bucket() string
	PublicURL(key string) string
	PresignPost(ctx context.Context, in storage.PresignPostInput) (*storage.PresignedPost, error)
	HeadObject(ctx context.Context, key string) (*storage.ObjectMetadata, error)
}

// ArtifactLedger is implemented by *database.DatabaseClient.
type ArtifactLedger interface {
	CreateArtifact(ctx context.Context, a *models.Artifact) (*models.Artifact, error)
	GetArtifact(ctx context.Context, storageKey string) (*models.Artifact, error)
	MarkArtifactUploaded(ctx context.Context, storageKey string, sizeBytes int64, etag string) (*models.Artifact, error)
	MarkArtifactFailed(ctx context.Context, storageKey string) (*models.Artifact, error)
}

type EventPublisher interface {
	PublishArtifactUploaded(ctx context.Context, evt events.ArtifactUploaded) error
}

type UploadPolicy struct {
	KeyPrefix           string
	MaxBytes            int64
	AllowedContentTypes []string
	PresignExpires      time.Duration
}

type IssueRequest struct {
	// Key is built from Filename and the scoping ids when empty.
	Key         string
	Filename    string
	ContentType string
	ProjectID   uuid.NullUUID
	UserID      uuid.NullUUID
	// MaxBytes of zero means the configured ceiling.
	MaxBytes int64
}

type UploadService struct {
	store     ObjectStore
	ledger    ArtifactLedger
	publisher EventPublisher
	pool      *workpool.Pool
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	policy    UploadPolicy
	allowed   map[string]struct{}

	confirms singleflight.Group
	notifies sync.WaitGroup
}

func NewUploadService(
	store ObjectStore,
	ledger ArtifactLedger,
	publisher EventPublisher,
	pool *workpool.Pool,
	m *metrics.Metrics,
	policy UploadPolicy,
	logger zerolog.Logger,
) *UploadService {
	allowed := make(map[string]struct{}, len(policy.AllowedContentTypes))
	for _, ct := range policy.AllowedContentTypes {
		allowed[normalizeContentType(ct)] = struct{}{}
	}
	return &UploadService{
		store:     store,
		ledger:    ledger,
		publisher: publisher,
		pool:      pool,
		metrics:   m,
		logger:    logger.With().Str("component", "uploads").Logger(),
		policy:    policy,
		allowed:   allowed,
	}
}

// IssueUpload validates the request against the upload policy, signs a POST policy for
// the key and records a pending artifact. No row is written when signing fails.
func (s *UploadService) IssueUpload(ctx context.Context, req IssueRequest) (*models.PresignedUpload, error) {
	upload, err := s.issue(ctx, req)
	s.metrics.ObservePresign(resultLabel(err))
	return upload, err
}

func (s *UploadService) issue(ctx context.Context, req IssueRequest) (*models.PresignedUpload, error) {
	contentType := normalizeContentType(req.ContentType)
	if _, ok := s.allowed[contentType]; !ok {
		return nil, fmt.Errorf("%w: content type %q is not allowed", ErrPolicyViolation, req.ContentType)
	}

	maxBytes := req.MaxBytes
	switch {
	case maxBytes == 0:
		maxBytes = s.policy.MaxBytes
	case maxBytes < 1 || maxBytes > s.policy.MaxBytes:
		return nil, fmt.Errorf("%w: max_bytes must be between 1 and %d", ErrPolicyViolation, s.policy.MaxBytes)
	}

	key := req.Key
	if key == "" {
		key = storage.BuildObjectKey(s.policy.KeyPrefix, storage.KeyInput{
			Filename:  req.Filename,
			ProjectID: nullUUIDString(req.ProjectID),
			UserID:    nullUUIDString(req.UserID),
		})
	}
	if !storage.HasPrefix(key, s.policy.KeyPrefix) || strings.Contains(key, "..") {
		return nil, fmt.Errorf("%w: key must start with %q", ErrPolicyViolation, s.policy.KeyPrefix+"/")
	}

	post, err := s.store.PresignPost(ctx, storage.PresignPostInput{
		Key:         key,
		ContentType: contentType,
		MaxBytes:    maxBytes,
		Expires:     s.policy.PresignExpires,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("presign failed")
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	publicURL := s.store.PublicURL(key)
	_, err = s.ledger.CreateArtifact(ctx, &models.Artifact{
		StorageKey:       key,
		ProjectID:        req.ProjectID,
		UserID:           req.UserID,
		OriginalFilename: req.Filename,
		ContentType:      contentType,
		Bucket:           s.store.Bucket(),
		PublicURL:        publicURL,
		Status:           models.ArtifactPending,
	})
	if err != nil {
		if errors.Is(err, database.ErrConstraintViolation) {
			return nil, fmt.Errorf("%w: %v", ErrConstraintViolation, err)
		}
		return nil, fmt.Errorf("failed to record artifact: %w", err)
	}

	s.logger.Info().Str("key", key).Str("content_type", contentType).Int64("max_bytes", maxBytes).Msg("upload authorized")
	return &models.PresignedUpload{
		URL:       post.URL,
		Fields:    post.Fields,
		Key:       key,
		PublicURL: publicURL,
	}, nil
}

// ConfirmUpload reconciles the object store's metadata for key into the ledger.
// Concurrent confirmations of the same key share one execution. The shared work
// runs detached from any single caller, and each caller only observes its own
// cancellation.
func (s *UploadService) ConfirmUpload(ctx context.Context, key string) (*models.Artifact, error) {
	detached := context.WithoutCancel(ctx)
	ch := s.confirms.DoChan(key, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(detached, confirmTimeout)
		defer cancel()
		return s.confirm(ctx, key)
	})

	select {
	case <-ctx.Done():
		s.metrics.ObserveConfirmation(resultLabel(ctx.Err()))
		return nil, ctx.Err()
	case res := <-ch:
		s.metrics.ObserveConfirmation(resultLabel(res.Err))
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Artifact), nil
	}
}

func (s *UploadService) confirm(ctx context.Context, key string) (*models.Artifact, error) {
	current, err := s.ledger.GetArtifact(ctx, key)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: artifact %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to load artifact: %w", err)
	}
	switch current.Status {
	case models.ArtifactFailed:
		return nil, fmt.Errorf("%w: artifact %s is %s", ErrInvalidTransition, key, current.Status)
	case models.ArtifactVerified:
		return current, nil
	}

	meta, err := workpool.Do(ctx, s.pool, func(ctx context.Context) (*storage.ObjectMetadata, error) {
		return s.store.HeadObject(ctx, key)
	})
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotYetVisible, key)
		}
		if isContextErr(err) {
			s.logger.Warn().Err(err).Str("key", key).Msg("head object abandoned")
			return nil, fmt.Errorf("failed to check object: %w", err)
		}
		s.logger.Error().Err(err).Str("key", key).Msg("head object failed")
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if !sameMediaType(meta.ContentType, current.ContentType) {
		s.logger.Warn().
			Str("key", key).
			Str("declared", current.ContentType).
			Str("stored", meta.ContentType).
			Msg("content type mismatch")
		if _, ferr := s.ledger.MarkArtifactFailed(ctx, key); ferr != nil && !errors.Is(ferr, database.ErrInvalidTransition) {
			return nil, fmt.Errorf("failed to mark artifact failed: %w", ferr)
		}
		return nil, fmt.Errorf("%w: stored content type %q, declared %q", ErrIntegrity, meta.ContentType, current.ContentType)
	}

	updated, err := s.ledger.MarkArtifactUploaded(ctx, key, meta.SizeBytes, meta.ETag)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrInvalidTransition):
			return nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		case errors.Is(err, database.ErrNotFound):
			return nil, fmt.Errorf("%w: artifact %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to mark artifact uploaded: %w", err)
	}

	if current.Status == models.ArtifactPending && updated.Status == models.ArtifactUploaded {
		s.notify(ctx, updated)
	}
	return updated, nil
}

// notify publishes in the background; a failure is logged and never reaches the caller.
func (s *UploadService) notify(ctx context.Context, a *models.Artifact) {
	if s.publisher == nil {
		return
	}
	evt := events.ArtifactUploaded{
		StorageKey:       a.StorageKey,
		Bucket:           a.Bucket,
		ProjectID:        nullUUIDString(a.ProjectID),
		UserID:           nullUUIDString(a.UserID),
		OriginalFilename: a.OriginalFilename,
		ContentType:      a.ContentType,
		PublicURL:        a.PublicURL,
	}

	s.notifies.Add(1)
	go func() {
		defer s.notifies.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()

		if err := s.publisher.PublishArtifactUploaded(ctx, evt); err != nil {
			s.metrics.ObserveEvent("error")
			s.logger.Warn().Err(err).Str("key", evt.StorageKey).Msg("artifact event not published")
			return
		}
		s.metrics.ObserveEvent("ok")
	}()
}

// Wait blocks until in-flight notifications finish.
func (s *UploadService) Wait() {
	s.notifies.Wait()
}

func normalizeContentType(ct string) string {
	return strings.ToLower(strings.TrimSpace(ct))
}

// sameMediaType compares media types ignoring parameters. A store that reports no
// content type is not treated as a mismatch.
func sameMediaType(stored, declared string) bool {
	if strings.TrimSpace(stored) == "" {
		return true
	}
	return mediaType(stored) == mediaType(declared)
}

func mediaType(ct string) string {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return normalizeContentType(ct)
	}
	return mt
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func nullUUIDString(id uuid.NullUUID) string {
	if !id.Valid {
		return ""
	}
	return id.UUID.String()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrPolicyViolation):
		return "policy_violation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotYetVisible):
		return "not_yet_visible"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrIntegrity):
		return "integrity"
	case errors.Is(err, ErrConstraintViolation):
		return "constraint_violation"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	default:
		return "error"
	}
}
