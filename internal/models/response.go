package models

import "time"

type UserResponse struct {
	ID      string    `json:"id"`
	Email   string    `json:"email"`
	Created time.Time `json:"created"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

type ProjectResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    *string   `json:"description"`
	Status         string    `json:"status"`
	OwnerID        string    `json:"owner_id"`
	ProjectOutcome *string   `json:"project_outcome"`
	Created        time.Time `json:"created"`
}

type ProjectListResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

type PresignedPostResponse struct {
	Upload PresignedUpload `json:"upload"`
}

type PresignedUpload struct {
	URL       string            `json:"url"`
	Fields    map[string]string `json:"fields"`
	Key       string            `json:"key"`
	PublicURL string            `json:"public_url"`
}

type ConfirmUploadResponse struct {
	OK        bool    `json:"ok"`
	Key       string  `json:"key"`
	SizeBytes *int64  `json:"size_bytes"`
	ETag      *string `json:"etag"`
	Status    string  `json:"status"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

func NewUserResponse(u *User) UserResponse {
	return UserResponse{ID: u.ID.String(), Email: u.Email, Created: u.Created}
}

func NewProjectResponse(p *Project) ProjectResponse {
	resp := ProjectResponse{
		ID:      p.ID.String(),
		Name:    p.Name,
		Status:  p.Status,
		OwnerID: p.OwnerID.String(),
		Created: p.Created,
	}
	if p.Description.Valid {
		resp.Description = &p.Description.String
	}
	if p.ProjectOutcome.Valid {
		resp.ProjectOutcome = &p.ProjectOutcome.String
	}
	return resp
}

func NewConfirmUploadResponse(a *Artifact) ConfirmUploadResponse {
	resp := ConfirmUploadResponse{
		OK:     true,
		Key:    a.StorageKey,
		Status: a.Status.String(),
	}
	if a.SizeBytes.Valid {
		resp.SizeBytes = &a.SizeBytes.Int64
	}
	if a.ETag.Valid {
		resp.ETag = &a.ETag.String
	}
	return resp
}
