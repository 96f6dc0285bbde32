package services_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"logima-backend/internal/database"
	"logima-backend/internal/events"
	"logima-backend/internal/models"
	"logima-backend/internal/storage"
)

type fakeStore struct {
	mu         sync.Mutex
	presignErr error
	headErr    error
	objects    map[string]storage.ObjectMetadata
	presigned  []storage.PresignPostInput
	heads      int

	// headGate, when set, holds HeadObject until closed or ctx ends.
	headGate    chan struct{}
	headStarted chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string]storage.ObjectMetadata{}}
}

func (f *fakeStore) Bucket() string { return "logima-uploads" }

func (f *fakeStore) PublicURL(key string) string { return "https://cdn.example.com/" + key }

func (f *fakeStore) PresignPost(ctx context.Context, in storage.PresignPostInput) (*storage.PresignedPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.presignErr != nil {
		return nil, f.presignErr
	}
	f.presigned = append(f.presigned, in)
	return &storage.PresignedPost{
		URL:    "https://logima-uploads.s3.us-east-2.amazonaws.com",
		Fields: map[string]string{"key": in.Key, "Content-Type": in.ContentType, "policy": "p"},
	}, nil
}

func (f *fakeStore) HeadObject(ctx context.Context, key string) (*storage.ObjectMetadata, error) {
	if f.headGate != nil {
		select {
		case f.headStarted <- struct{}{}:
		default:
		}
		select {
		case <-f.headGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heads++
	if f.headErr != nil {
		return nil, f.headErr
	}
	meta, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
	}
	return &meta, nil
}

// block makes HeadObject wait until release is called.
func (f *fakeStore) block() (started <-chan struct{}, release func()) {
	f.headGate = make(chan struct{})
	f.headStarted = make(chan struct{}, 1)
	var once sync.Once
	return f.headStarted, func() { once.Do(func() { close(f.headGate) }) }
}

// put simulates the browser upload landing in the bucket.
func (f *fakeStore) put(key string, meta storage.ObjectMetadata) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = meta
}

// fakeLedger mirrors the transition rules enforced by the database layer.
type fakeLedger struct {
	mu        sync.Mutex
	rows      map[string]*models.Artifact
	createErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: map[string]*models.Artifact{}}
}

func (f *fakeLedger) CreateArtifact(ctx context.Context, a *models.Artifact) (*models.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.rows[a.StorageKey]; ok {
		return nil, fmt.Errorf("create artifact: %w", database.ErrConstraintViolation)
	}
	row := *a
	row.CreatedAt = time.Now()
	f.rows[a.StorageKey] = &row
	out := row
	return &out, nil
}

func (f *fakeLedger) GetArtifact(ctx context.Context, key string) (*models.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[key]
	if !ok {
		return nil, fmt.Errorf("get artifact: %w", database.ErrNotFound)
	}
	out := *row
	return &out, nil
}

func (f *fakeLedger) MarkArtifactUploaded(ctx context.Context, key string, size int64, etag string) (*models.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[key]
	if !ok {
		return nil, fmt.Errorf("lock artifact: %w", database.ErrNotFound)
	}
	switch {
	case row.Status == models.ArtifactVerified:
	case row.Status == models.ArtifactUploaded, row.Status.CanTransitionTo(models.ArtifactUploaded):
		row.Status = models.ArtifactUploaded
		row.SizeBytes = sql.NullInt64{Int64: size, Valid: true}
		row.ETag = sql.NullString{String: etag, Valid: true}
		if !row.UploadedAt.Valid {
			row.UploadedAt = sql.NullTime{Time: time.Now(), Valid: true}
		}
	default:
		return nil, fmt.Errorf("%w: %s -> uploaded", database.ErrInvalidTransition, row.Status)
	}
	out := *row
	return &out, nil
}

func (f *fakeLedger) setStatus(key string, status models.ArtifactStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[key].Status = status
}

func (f *fakeLedger) MarkArtifactFailed(ctx context.Context, key string) (*models.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[key]
	if !ok {
		return nil, fmt.Errorf("lock artifact: %w", database.ErrNotFound)
	}
	if !row.Status.CanTransitionTo(models.ArtifactFailed) {
		return nil, fmt.Errorf("%w: %s -> failed", database.ErrInvalidTransition, row.Status)
	}
	row.Status = models.ArtifactFailed
	out := *row
	return &out, nil
}

func (f *fakeLedger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.ArtifactUploaded
	err    error
}

func (f *fakePublisher) PublishArtifactUploaded(ctx context.Context, evt events.ArtifactUploaded) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
	return f.err
}

func (f *fakePublisher) published() []events.ArtifactUploaded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.ArtifactUploaded(nil), f.events...)
}

// fakeCompleter returns queued results in order; a nil entry blocks until ctx ends.
type fakeCompleter struct {
	mu      sync.Mutex
	results []completion
	calls   int
	prompts []string
}

type completion struct {
	text  string
	err   error
	block bool
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, userPrompt)
	var next completion
	if len(f.results) > 0 {
		next = f.results[0]
		f.results = f.results[1:]
	} else {
		next = completion{block: true}
	}
	f.mu.Unlock()

	if next.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return next.text, next.err
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeProjectStore struct {
	projects map[uuid.UUID]*models.Project
	err      error
}

func newFakeProjectStore() *fakeProjectStore {
	return &fakeProjectStore{projects: map[uuid.UUID]*models.Project{}}
}

func (f *fakeProjectStore) CreateProject(ctx context.Context, p *models.Project) (*models.Project, error) {
	if f.err != nil {
		return nil, f.err
	}
	row := *p
	row.ID = uuid.New()
	row.Created = time.Now()
	f.projects[row.ID] = &row
	out := row
	return &out, nil
}

func (f *fakeProjectStore) find(projectID, ownerID uuid.UUID) (*models.Project, error) {
	p, ok := f.projects[projectID]
	if !ok || p.OwnerID != ownerID {
		return nil, fmt.Errorf("get project: %w", database.ErrNotFound)
	}
	return p, nil
}

func (f *fakeProjectStore) GetProject(ctx context.Context, projectID, ownerID uuid.UUID) (*models.Project, error) {
	p, err := f.find(projectID, ownerID)
	if err != nil {
		return nil, err
	}
	out := *p
	return &out, nil
}

func (f *fakeProjectStore) ListProjects(ctx context.Context, ownerID uuid.UUID, status string) ([]models.Project, error) {
	out := []models.Project{}
	for _, p := range f.projects {
		if p.OwnerID == ownerID && p.Status == status {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProjectStore) UpdateProject(ctx context.Context, projectID, ownerID uuid.UUID, name, status *string) (*models.Project, error) {
	p, err := f.find(projectID, ownerID)
	if err != nil {
		return nil, err
	}
	if name != nil {
		p.Name = *name
	}
	if status != nil {
		p.Status = *status
	}
	out := *p
	return &out, nil
}

func (f *fakeProjectStore) UpdateProjectOutcome(ctx context.Context, projectID, ownerID uuid.UUID, description *string, outcome string) (*models.Project, error) {
	p, err := f.find(projectID, ownerID)
	if err != nil {
		return nil, err
	}
	if description != nil {
		p.Description = sql.NullString{String: *description, Valid: true}
	}
	p.ProjectOutcome = sql.NullString{String: outcome, Valid: true}
	out := *p
	return &out, nil
}

func (f *fakeProjectStore) DeleteProject(ctx context.Context, projectID, ownerID uuid.UUID) error {
	if _, err := f.find(projectID, ownerID); err != nil {
		return err
	}
	delete(f.projects, projectID)
	return nil
}

type fakeUserStore struct {
	byEmail   map[string]*models.User
	createErr error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byEmail: map[string]*models.User{}}
}

func (f *fakeUserStore) CreateUser(ctx context.Context, email string, hash sql.NullString) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.byEmail[email]; ok {
		return nil, fmt.Errorf("create user: %w", database.ErrConstraintViolation)
	}
	u := &models.User{ID: uuid.New(), Email: email, PasswordHash: hash, Created: time.Now()}
	f.byEmail[email] = u
	return u, nil
}

func (f *fakeUserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("get user by email: %w", database.ErrNotFound)
	}
	return u, nil
}

func (f *fakeUserStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, fmt.Errorf("get user: %w", database.ErrNotFound)
}
