package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkdex/inkdex/pkg/acl"
)

// Role represents a user's role in the system
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleUploader Role = "uploader"
	RoleUser     Role = "user"
)

// MangaStatus represents the publication status of a manga
type MangaStatus string

const (
	StatusOngoing   MangaStatus = "ongoing"
	StatusCompleted MangaStatus = "completed"
	StatusHiatus    MangaStatus = "hiatus"
	StatusCancelled MangaStatus = "cancelled"
)

// User represents a user in the system
type User struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey"`
	Username  string    `json:"username" gorm:"uniqueIndex;not null"`
	Email     string    `json:"email" gorm:"index"`
	Password  string    `json:"-" gorm:"not null"`
	Role      Role      `json:"role" gorm:"not null;default:user"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate generates a UUID for the user ID
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Principals returns the ACL principals this user acts as
func (u *User) Principals() []acl.Principal {
	return []acl.Principal{
		acl.Everyone,
		acl.Authenticated,
		acl.UserPrincipal(u.ID),
		acl.RolePrincipal(string(u.Role)),
	}
}

// UserACL returns the class-level rules for user management
func UserACL() []acl.Rule {
	return []acl.Rule{
		{Principals: []acl.Principal{acl.RolePrincipal("admin")}, Action: acl.ActionCreate},
		{Principals: []acl.Principal{acl.RolePrincipal("admin")}, Action: acl.ActionView},
		{Principals: []acl.Principal{acl.RolePrincipal("admin")}, Action: acl.ActionEdit},
	}
}

// ACL returns the instance-level rules for this user
func (u *User) ACL() []acl.Rule {
	return append(UserACL(),
		acl.Rule{Principals: []acl.Principal{acl.UserPrincipal(u.ID)}, Action: acl.ActionView},
		acl.Rule{Principals: []acl.Principal{acl.UserPrincipal(u.ID)}, Action: acl.ActionEdit},
	)
}

// Manga represents a manga series
type Manga struct {
	ID          uuid.UUID   `json:"id" gorm:"primaryKey"`
	OwnerID     *uuid.UUID  `json:"owner_id" gorm:"constraint:OnDelete:SET NULL"`
	Title       string      `json:"title" gorm:"not null;index"`
	Description string      `json:"description" gorm:"not null"`
	Author      string      `json:"author" gorm:"not null"`
	Artist      string      `json:"artist" gorm:"not null"`
	Year        *int        `json:"year"`
	Status      MangaStatus `json:"status" gorm:"not null"`
	CreateTime  time.Time   `json:"create_time" gorm:"autoCreateTime"`

	Chapters []Chapter       `json:"-" gorm:"foreignKey:MangaID;constraint:OnDelete:CASCADE"`
	Sessions []UploadSession `json:"-" gorm:"foreignKey:MangaID;constraint:OnDelete:CASCADE"`
}

// BeforeCreate generates a UUID for the manga ID
func (m *Manga) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// MangaACL returns the class-level rules for manga
func MangaACL() []acl.Rule {
	return []acl.Rule{
		{Principals: []acl.Principal{acl.Everyone}, Action: acl.ActionView},
		{Principals: []acl.Principal{acl.RolePrincipal("admin")}, Action: acl.ActionEdit},
		{Principals: []acl.Principal{acl.RolePrincipal("admin")}, Action: acl.ActionCreate},
		{Principals: []acl.Principal{acl.RolePrincipal("uploader")}, Action: acl.ActionCreate},
	}
}

// ACL returns the instance-level rules for this manga
func (m *Manga) ACL() []acl.Rule {
	rules := MangaACL()
	if m.OwnerID != nil {
		rules = append(rules, acl.Rule{
			Principals: []acl.Principal{acl.RolePrincipal("uploader"), acl.UserPrincipal(*m.OwnerID)},
			Action:     acl.ActionEdit,
		})
	}
	return rules
}

// Chapter represents a committed chapter of a manga. Length always equals
// the number of page files on disk, named 1.jpg through length.jpg.
type Chapter struct {
	ID         uuid.UUID  `json:"id" gorm:"primaryKey"`
	OwnerID    *uuid.UUID `json:"owner_id" gorm:"constraint:OnDelete:SET NULL"`
	MangaID    uuid.UUID  `json:"manga_id" gorm:"not null;index"`
	Name       string     `json:"name" gorm:"not null"`
	ScanGroup  string     `json:"scan_group" gorm:"not null"`
	Volume     *int       `json:"volume"`
	Number     float64    `json:"number" gorm:"not null"`
	Length     int        `json:"length" gorm:"not null"`
	Webtoon    bool       `json:"webtoon" gorm:"not null;default:false"`
	UploadTime time.Time  `json:"upload_time" gorm:"autoCreateTime"`

	Manga    *Manga          `json:"manga,omitempty" gorm:"foreignKey:MangaID"`
	Sessions []UploadSession `json:"-" gorm:"foreignKey:ChapterID;constraint:OnDelete:CASCADE"`
}

// BeforeCreate generates a UUID for the chapter ID
func (c *Chapter) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ChapterACL returns the class-level rules for chapters
func ChapterACL() []acl.Rule {
	return []acl.Rule{
		{Principals: []acl.Principal{acl.Everyone}, Action: acl.ActionView},
		{Principals: []acl.Principal{acl.RolePrincipal("admin")}, Action: acl.ActionEdit},
	}
}

// ACL returns the instance-level rules for this chapter
func (c *Chapter) ACL() []acl.Rule {
	rules := ChapterACL()
	if c.OwnerID != nil {
		rules = append(rules, acl.Rule{
			Principals: []acl.Principal{acl.RolePrincipal("uploader"), acl.UserPrincipal(*c.OwnerID)},
			Action:     acl.ActionEdit,
		})
	}
	return rules
}

// UploadSession is an in-progress staging area for the pages of one
// chapter. A non-nil ChapterID marks the session as an edit of an
// existing chapter; otherwise commit creates a new chapter.
type UploadSession struct {
	ID        uuid.UUID  `json:"id" gorm:"primaryKey"`
	OwnerID   uuid.UUID  `json:"owner_id" gorm:"not null"`
	MangaID   uuid.UUID  `json:"manga_id" gorm:"not null;index"`
	ChapterID *uuid.UUID `json:"chapter_id"`
	CreatedAt time.Time  `json:"created_at"`

	Blobs []UploadedBlob `json:"blobs" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

// BeforeCreate generates a UUID for the session ID
func (s *UploadSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// UploadSessionACL returns the class-level rules for upload sessions
func UploadSessionACL() []acl.Rule {
	return []acl.Rule{
		{Principals: []acl.Principal{acl.RolePrincipal("admin")}, Action: acl.ActionCreate},
		{Principals: []acl.Principal{acl.RolePrincipal("uploader")}, Action: acl.ActionCreate},
		{Principals: []acl.Principal{acl.RolePrincipal("admin")}, Action: acl.ActionView},
		{Principals: []acl.Principal{acl.RolePrincipal("admin")}, Action: acl.ActionEdit},
	}
}

// ACL returns the instance-level rules for this session
func (s *UploadSession) ACL() []acl.Rule {
	return append(UploadSessionACL(),
		acl.Rule{
			Principals: []acl.Principal{acl.RolePrincipal("uploader"), acl.UserPrincipal(s.OwnerID)},
			Action:     acl.ActionView,
		},
		acl.Rule{
			Principals: []acl.Principal{acl.RolePrincipal("uploader"), acl.UserPrincipal(s.OwnerID)},
			Action:     acl.ActionEdit,
		},
	)
}

// BlobIDs returns the ids of the session's loaded blobs
func (s *UploadSession) BlobIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(s.Blobs))
	for i, b := range s.Blobs {
		ids[i] = b.ID
	}
	return ids
}

// UploadedBlob is a single staged page image awaiting commit. The pixel
// payload lives in blob storage under the blob ID; this row is metadata
// only. Name keeps the original filename for extraction filtering.
type UploadedBlob struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey"`
	SessionID uuid.UUID `json:"session_id" gorm:"not null;index"`
	Name      string    `json:"name" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate generates a UUID for the blob ID
func (b *UploadedBlob) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// AuthToken represents a JWT token
type AuthToken struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    uuid.UUID `json:"user_id"`
}

// SiteSettings is the admin-editable site configuration document stored
// alongside the media files
type SiteSettings struct {
	Title1  string `json:"title1"`
	Title2  string `json:"title2"`
	About   string `json:"about"`
	Discord string `json:"discord"`
}

// SiteSettingsACL returns the rules for reading and editing site settings
func SiteSettingsACL() []acl.Rule {
	return []acl.Rule{
		{Principals: []acl.Principal{acl.Everyone}, Action: acl.ActionView},
		{Principals: []acl.Principal{acl.RolePrincipal("admin")}, Action: acl.ActionEdit},
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	APIResponse
	Pagination *PaginationInfo `json:"pagination,omitempty"`
}

// PaginationInfo contains pagination metadata
type PaginationInfo struct {
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Total  int64 `json:"total"`
}
