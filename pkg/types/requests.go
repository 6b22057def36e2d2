package types

import "github.com/google/uuid"

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=15"`
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// UpdateUserRequest represents an admin or self-service user update
type UpdateUserRequest struct {
	Username string `json:"username" binding:"omitempty,min=3,max=15"`
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password" binding:"omitempty,min=8"`
	Role     Role   `json:"role" binding:"omitempty,oneof=admin uploader user"`
}

// MangaDraft carries the client-supplied manga fields for create/update
type MangaDraft struct {
	Title       string      `json:"title" binding:"required"`
	Description string      `json:"description" binding:"required"`
	Author      string      `json:"author" binding:"required"`
	Artist      string      `json:"artist" binding:"required"`
	Year        *int        `json:"year"`
	Status      MangaStatus `json:"status" binding:"required,oneof=ongoing completed hiatus cancelled"`
}

// ChapterDraft carries the client-supplied descriptive chapter fields
// accompanying a commit or chapter update
type ChapterDraft struct {
	Name      string  `json:"name" binding:"required"`
	ScanGroup string  `json:"scan_group" binding:"required"`
	Volume    *int    `json:"volume"`
	Number    float64 `json:"number" binding:"required"`
	Webtoon   bool    `json:"webtoon"`
}

// BeginUploadSessionRequest starts an upload session against a manga,
// optionally seeded from an existing chapter's pages
type BeginUploadSessionRequest struct {
	MangaID   uuid.UUID  `json:"manga_id" binding:"required"`
	ChapterID *uuid.UUID `json:"chapter_id"`
}

// CommitUploadSessionRequest finalizes a session into a chapter
type CommitUploadSessionRequest struct {
	PageOrder    []uuid.UUID  `json:"page_order"`
	ChapterDraft ChapterDraft `json:"chapter_draft" binding:"required"`
}
