package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MediaStore layers the manga on-disk layout over a BlobStorage. Staged
// blobs live in a flat blobs/ directory keyed by blob id; committed pages
// live under {manga_id}/{chapter_id}/{n}.jpg; per-session scratch
// directories live under the temp path.
type MediaStore struct {
	blobs    BlobStorage
	tempPath string
}

// NewMediaStore creates a media store over the given blob storage
func NewMediaStore(blobs BlobStorage, tempPath string) *MediaStore {
	return &MediaStore{blobs: blobs, tempPath: tempPath}
}

// Storage exposes the underlying blob storage
func (m *MediaStore) Storage() BlobStorage {
	return m.blobs
}

// BlobKey returns the storage path of a staged blob's pixel file
func (m *MediaStore) BlobKey(blobID uuid.UUID) string {
	return filepath.Join("blobs", fmt.Sprintf("%s.jpg", blobID))
}

// ChapterKey returns the storage directory of a committed chapter
func (m *MediaStore) ChapterKey(mangaID, chapterID uuid.UUID) string {
	return filepath.Join(mangaID.String(), chapterID.String())
}

// PageKey returns the storage path of a committed page. Pages are
// numbered from 1.
func (m *MediaStore) PageKey(mangaID, chapterID uuid.UUID, page int) string {
	return filepath.Join(mangaID.String(), chapterID.String(), fmt.Sprintf("%d.jpg", page))
}

// CoverKey returns the storage path of a manga's cover image
func (m *MediaStore) CoverKey(mangaID uuid.UUID) string {
	return filepath.Join(mangaID.String(), "cover.jpg")
}

// AvatarKey returns the storage path of a user's avatar image
func (m *MediaStore) AvatarKey(userID uuid.UUID) string {
	return filepath.Join("avatars", fmt.Sprintf("%s.jpg", userID))
}

// SessionFilesDir returns the scratch directory holding raw uploads for
// a session
func (m *MediaStore) SessionFilesDir(sessionID uuid.UUID) string {
	return filepath.Join(m.tempPath, sessionID.String(), "files")
}

// SessionArchiveDir returns the scratch directory holding uploaded
// archives for a session
func (m *MediaStore) SessionArchiveDir(sessionID uuid.UUID) string {
	return filepath.Join(m.tempPath, sessionID.String(), "zip")
}

// CreateSessionScratch creates the session's scratch directories
func (m *MediaStore) CreateSessionScratch(sessionID uuid.UUID) error {
	for _, dir := range []string{m.SessionArchiveDir(sessionID), m.SessionFilesDir(sessionID)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create scratch directory: %w", err)
		}
	}
	return nil
}

// RemoveSessionScratch tears down the session's scratch directories.
// Removing an already-missing tree is a no-op.
func (m *MediaStore) RemoveSessionScratch(sessionID uuid.UUID) error {
	if err := os.RemoveAll(filepath.Join(m.tempPath, sessionID.String())); err != nil {
		return fmt.Errorf("failed to remove scratch directory: %w", err)
	}
	return nil
}

// CopyChapterToBlobs copies the pages of a committed chapter into fresh
// session blobs, page i going to blobIDs[i-1]. The chapter files are
// copied, not moved.
func (m *MediaStore) CopyChapterToBlobs(ctx context.Context, mangaID, chapterID uuid.UUID, blobIDs []uuid.UUID) error {
	for i, blobID := range blobIDs {
		page, err := m.blobs.Retrieve(ctx, m.PageKey(mangaID, chapterID, i+1))
		if err != nil {
			return fmt.Errorf("failed to read page %d: %w", i+1, err)
		}
		err = m.blobs.Store(ctx, m.BlobKey(blobID), page, "image/jpeg")
		page.Close()
		if err != nil {
			return fmt.Errorf("failed to copy page %d into blob: %w", i+1, err)
		}
	}
	return nil
}

// CommitBlobs moves staged blobs into a chapter's permanent directory in
// the given order, renaming them to their 1-based page position. When
// replace is set, the chapter's prior page directory is wiped first.
func (m *MediaStore) CommitBlobs(ctx context.Context, mangaID, chapterID uuid.UUID, pageOrder []uuid.UUID, replace bool) error {
	if replace {
		if err := m.blobs.RemoveDir(ctx, m.ChapterKey(mangaID, chapterID)); err != nil {
			return err
		}
	}

	for i, blobID := range pageOrder {
		src := m.BlobKey(blobID)
		dst := m.PageKey(mangaID, chapterID, i+1)
		if err := m.blobs.Move(ctx, src, dst); err != nil {
			return fmt.Errorf("failed to place page %d: %w", i+1, err)
		}
	}
	return nil
}

// DeleteBlobs removes staged blob pixel files. Missing files are not an
// error; this is the cleanup path for dropped and aborted pages.
func (m *MediaStore) DeleteBlobs(ctx context.Context, blobIDs []uuid.UUID) {
	for _, blobID := range blobIDs {
		if err := m.blobs.Delete(ctx, m.BlobKey(blobID)); err != nil {
			log.Error().Err(err).Str("blob_id", blobID.String()).Msg("failed to delete blob file")
		}
	}
}

// RemoveChapterDir removes a chapter's permanent page directory
func (m *MediaStore) RemoveChapterDir(ctx context.Context, mangaID, chapterID uuid.UUID) error {
	return m.blobs.RemoveDir(ctx, m.ChapterKey(mangaID, chapterID))
}

// RemoveMangaDir removes every chapter directory of a manga
func (m *MediaStore) RemoveMangaDir(ctx context.Context, mangaID uuid.UUID) error {
	return m.blobs.RemoveDir(ctx, mangaID.String())
}
