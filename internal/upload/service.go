// Package upload implements the upload-session lifecycle: a client
// begins a session against a manga, stages page images into blobs,
// optionally reorders, slices or deletes them, and finally commits the
// ordered set into a chapter's permanent page files.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/inkdex/inkdex/internal/archive"
	"github.com/inkdex/inkdex/internal/common"
	"github.com/inkdex/inkdex/internal/images"
	"github.com/inkdex/inkdex/internal/storage"
	"github.com/inkdex/inkdex/internal/tasks"
	"github.com/inkdex/inkdex/pkg/acl"
	"github.com/inkdex/inkdex/pkg/types"
)

// CommitOutcome distinguishes a commit that created a chapter from one
// that replaced an existing chapter's pages
type CommitOutcome int

const (
	OutcomeCreated CommitOutcome = iota
	OutcomeReplaced
)

// File is one uploaded file in an AddPages batch, decoupled from the
// HTTP multipart machinery
type File struct {
	Name        string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// Service owns upload sessions and their staged blobs
type Service struct {
	db         *common.Database
	media      *storage.MediaStore
	normalizer *images.Normalizer
	extractor  *archive.Extractor
	tasks      *tasks.Runner
}

// NewService creates an upload service
func NewService(db *common.Database, media *storage.MediaStore, normalizer *images.Normalizer, extractor *archive.Extractor, runner *tasks.Runner) *Service {
	return &Service{
		db:         db,
		media:      media,
		normalizer: normalizer,
		extractor:  extractor,
		tasks:      runner,
	}
}

// Begin starts an upload session against a manga. When chapterID is set
// the session becomes an edit of that chapter and its current pages are
// copied into fresh session blobs, so edits start from the committed
// page set.
func (s *Service) Begin(ctx context.Context, actor *types.User, mangaID uuid.UUID, chapterID *uuid.UUID) (*types.UploadSession, error) {
	if !acl.Allows(actor.Principals(), acl.ActionCreate, types.UploadSessionACL()) {
		return nil, types.Forbidden("you are not allowed to upload")
	}

	var manga types.Manga
	if err := s.db.WithContext(ctx).First(&manga, "id = ?", mangaID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("Manga not found")
		}
		return nil, fmt.Errorf("failed to find manga: %w", err)
	}

	var chapter *types.Chapter
	if chapterID != nil {
		chapter = &types.Chapter{}
		if err := s.db.WithContext(ctx).First(chapter, "id = ?", *chapterID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, types.NotFound("Chapter not found")
			}
			return nil, fmt.Errorf("failed to find chapter: %w", err)
		}
		if chapter.MangaID != mangaID {
			return nil, types.BadInput("The provided chapter doesn't belong to this manga")
		}
		if !acl.HasPermission(actor.Principals(), acl.ActionEdit, chapter) {
			return nil, types.Forbidden("you are not allowed to edit this chapter")
		}
	}

	session := &types.UploadSession{
		OwnerID:   actor.ID,
		MangaID:   mangaID,
		ChapterID: chapterID,
	}
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := s.media.CreateSessionScratch(session.ID); err != nil {
		return nil, err
	}

	if chapter != nil {
		blobIDs := make([]uuid.UUID, 0, chapter.Length)
		for i := 1; i <= chapter.Length; i++ {
			blob := &types.UploadedBlob{SessionID: session.ID, Name: fmt.Sprintf("%d.jpg", i)}
			if err := s.db.WithContext(ctx).Create(blob).Error; err != nil {
				return nil, fmt.Errorf("failed to create seed blob: %w", err)
			}
			blobIDs = append(blobIDs, blob.ID)
		}
		if err := s.media.CopyChapterToBlobs(ctx, chapter.MangaID, chapter.ID, blobIDs); err != nil {
			return nil, err
		}
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Str("manga_id", mangaID.String()).
		Bool("edit", chapterID != nil).
		Msg("upload session started")
	return s.loadSession(ctx, session.ID)
}

// Get returns a session with its blobs
func (s *Service) Get(ctx context.Context, actor *types.User, sessionID uuid.UUID) (*types.UploadSession, error) {
	return s.authorizedSession(ctx, actor, sessionID, acl.ActionView)
}

// AddPages stages a batch of uploaded files into session blobs. Plain
// images are normalized directly; archives are extracted and every
// qualifying image inside is normalized. A failure partway through the
// batch does not roll back blobs created earlier in the same call: a
// follow-up Get is the authoritative blob list.
func (s *Service) AddPages(ctx context.Context, actor *types.User, sessionID uuid.UUID, files []File) ([]types.UploadedBlob, error) {
	session, err := s.authorizedSession(ctx, actor, sessionID, acl.ActionEdit)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		if !archive.IsArchiveContentType(file.ContentType) && !strings.HasPrefix(file.ContentType, "image/") {
			return nil, types.BadInput("'%s's format is not supported", file.Name)
		}
	}

	filesDir := s.media.SessionFilesDir(session.ID)

	var created []types.UploadedBlob
	for _, file := range files {
		var names []string

		if archive.IsArchiveContentType(file.ContentType) {
			archivePath := filepath.Join(s.media.SessionArchiveDir(session.ID), filepath.Base(file.Name))
			if err := saveUpload(file, archivePath); err != nil {
				return created, err
			}

			_, err := s.extractor.Extract(ctx, archivePath, filesDir, file.ContentType)
			os.Remove(archivePath)
			if err != nil {
				return created, err
			}

			names, err = archive.ImageFiles(filesDir)
			if err != nil {
				return created, err
			}
		} else {
			name := filepath.Base(file.Name)
			if err := saveUpload(file, filepath.Join(filesDir, name)); err != nil {
				return created, err
			}
			names = []string{name}
		}

		for _, name := range names {
			if err := ctx.Err(); err != nil {
				return created, err
			}

			blob := &types.UploadedBlob{SessionID: session.ID, Name: name}
			if err := s.db.WithContext(ctx).Create(blob).Error; err != nil {
				return created, fmt.Errorf("failed to create blob: %w", err)
			}
			if err := s.normalizer.Normalize(ctx, filepath.Join(filesDir, name), blob.ID); err != nil {
				// Keep the authoritative list consistent with disk
				s.db.WithContext(ctx).Delete(blob)
				return created, err
			}
			created = append(created, *blob)
		}
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Int("blobs", len(created)).
		Msg("pages added to upload session")
	return created, nil
}

// Slice concatenates the referenced blobs vertically in the given order
// and re-cuts the composite into webtoon-style strips, replacing the
// inputs with one new blob per strip. Returns the session's full blob
// list afterwards.
func (s *Service) Slice(ctx context.Context, actor *types.User, sessionID uuid.UUID, blobIDs []uuid.UUID) ([]types.UploadedBlob, error) {
	session, err := s.authorizedSession(ctx, actor, sessionID, acl.ActionEdit)
	if err != nil {
		return nil, err
	}

	if len(blobIDs) == 0 {
		return nil, types.BadInput("At least one page needs to be provided")
	}
	if !containsAll(session.BlobIDs(), blobIDs) {
		return nil, types.BadInput("Some pages don't belong to this session")
	}

	parts, err := s.normalizer.Slice(ctx, blobIDs)
	if err != nil {
		return nil, err
	}

	for i, part := range parts {
		blob := &types.UploadedBlob{SessionID: session.ID, Name: fmt.Sprintf("slice_%d.jpg", i+1)}
		if err := s.db.WithContext(ctx).Create(blob).Error; err != nil {
			return nil, fmt.Errorf("failed to create sliced blob: %w", err)
		}
		if err := s.normalizer.Store(ctx, part, blob.ID); err != nil {
			return nil, err
		}
	}

	if err := s.db.WithContext(ctx).Where("id IN ?", blobIDs).Delete(&types.UploadedBlob{}).Error; err != nil {
		return nil, fmt.Errorf("failed to delete sliced blobs: %w", err)
	}
	s.scheduleBlobDeletion(session.ID, blobIDs)

	var blobs []types.UploadedBlob
	if err := s.db.WithContext(ctx).Where("session_id = ?", session.ID).Order("created_at").Find(&blobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Int("inputs", len(blobIDs)).
		Int("parts", len(parts)).
		Msg("session blobs sliced")
	return blobs, nil
}

// RemoveBlob deletes a single staged blob from the session
func (s *Service) RemoveBlob(ctx context.Context, actor *types.User, sessionID, blobID uuid.UUID) error {
	session, err := s.authorizedSession(ctx, actor, sessionID, acl.ActionEdit)
	if err != nil {
		return err
	}

	if !containsAll(session.BlobIDs(), []uuid.UUID{blobID}) {
		return types.BadInput("The blob doesn't exist in the session")
	}

	if err := s.db.WithContext(ctx).Delete(&types.UploadedBlob{}, "id = ?", blobID).Error; err != nil {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	s.scheduleBlobDeletion(session.ID, []uuid.UUID{blobID})
	return nil
}

// RemoveAllBlobs drops every staged blob but keeps the session
func (s *Service) RemoveAllBlobs(ctx context.Context, actor *types.User, sessionID uuid.UUID) error {
	session, err := s.authorizedSession(ctx, actor, sessionID, acl.ActionEdit)
	if err != nil {
		return err
	}

	blobIDs := session.BlobIDs()
	if err := s.db.WithContext(ctx).Where("session_id = ?", session.ID).Delete(&types.UploadedBlob{}).Error; err != nil {
		return fmt.Errorf("failed to delete blobs: %w", err)
	}
	s.scheduleBlobDeletion(session.ID, blobIDs)
	return nil
}

// Commit validates the client-supplied page order, creates or replaces
// the chapter row, tears down the session and schedules the physical
// file moves. The chapter mutation is durable before any file work
// happens; file placement is fire-and-forget.
func (s *Service) Commit(ctx context.Context, actor *types.User, sessionID uuid.UUID, req *types.CommitUploadSessionRequest) (*types.Chapter, CommitOutcome, error) {
	session, err := s.authorizedSession(ctx, actor, sessionID, acl.ActionEdit)
	if err != nil {
		return nil, 0, err
	}

	if len(req.PageOrder) == 0 {
		return nil, 0, types.BadInput("At least one page needs to be provided")
	}
	if !containsAll(session.BlobIDs(), req.PageOrder) {
		return nil, 0, types.BadInput("Some pages don't belong to this session")
	}

	edit := session.ChapterID != nil
	draft := req.ChapterDraft

	var chapter *types.Chapter
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if edit {
			chapter = &types.Chapter{}
			if err := tx.First(chapter, "id = ?", *session.ChapterID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return types.NotFound("Chapter not found")
				}
				return fmt.Errorf("failed to find chapter: %w", err)
			}
			updates := map[string]interface{}{
				"name":       draft.Name,
				"scan_group": draft.ScanGroup,
				"volume":     draft.Volume,
				"number":     draft.Number,
				"webtoon":    draft.Webtoon,
				"length":     len(req.PageOrder),
			}
			if err := tx.Model(chapter).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update chapter: %w", err)
			}
		} else {
			owner := session.OwnerID
			chapter = &types.Chapter{
				OwnerID:   &owner,
				MangaID:   session.MangaID,
				Name:      draft.Name,
				ScanGroup: draft.ScanGroup,
				Volume:    draft.Volume,
				Number:    draft.Number,
				Webtoon:   draft.Webtoon,
				Length:    len(req.PageOrder),
			}
			if err := tx.Create(chapter).Error; err != nil {
				return fmt.Errorf("failed to create chapter: %w", err)
			}
		}

		if err := tx.Where("session_id = ?", session.ID).Delete(&types.UploadedBlob{}).Error; err != nil {
			return fmt.Errorf("failed to delete session blobs: %w", err)
		}
		if err := tx.Delete(&types.UploadSession{}, "id = ?", session.ID).Error; err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	dropped := difference(session.BlobIDs(), req.PageOrder)
	s.scheduleCommit(session.ID, chapter.MangaID, chapter.ID, req.PageOrder, dropped, edit)

	outcome := OutcomeCreated
	if edit {
		outcome = OutcomeReplaced
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Str("chapter_id", chapter.ID.String()).
		Int("pages", len(req.PageOrder)).
		Int("dropped", len(dropped)).
		Bool("edit", edit).
		Msg("upload session committed")
	return chapter, outcome, nil
}

// Delete aborts the session: all blob metadata is removed and pixel plus
// scratch cleanup is scheduled. Deleting an already-deleted session
// reports not found; the file cleanup itself is idempotent.
func (s *Service) Delete(ctx context.Context, actor *types.User, sessionID uuid.UUID) error {
	session, err := s.authorizedSession(ctx, actor, sessionID, acl.ActionEdit)
	if err != nil {
		return err
	}

	blobIDs := session.BlobIDs()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", session.ID).Delete(&types.UploadedBlob{}).Error; err != nil {
			return fmt.Errorf("failed to delete session blobs: %w", err)
		}
		if err := tx.Delete(&types.UploadSession{}, "id = ?", session.ID).Error; err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.scheduleTeardown(session.ID, blobIDs)

	log.Info().Str("session_id", session.ID.String()).Msg("upload session aborted")
	return nil
}

func (s *Service) loadSession(ctx context.Context, sessionID uuid.UUID) (*types.UploadSession, error) {
	var session types.UploadSession
	err := s.db.WithContext(ctx).
		Preload("Blobs", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		First(&session, "id = ?", sessionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("Session not found")
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return &session, nil
}

func (s *Service) authorizedSession(ctx context.Context, actor *types.User, sessionID uuid.UUID, action acl.Action) (*types.UploadSession, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !acl.HasPermission(actor.Principals(), action, session) {
		return nil, types.Forbidden("you are not allowed to access this session")
	}
	return session, nil
}

func saveUpload(file File, destPath string) error {
	reader, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload: %w", err)
	}
	defer reader.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create upload file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, reader); err != nil {
		return fmt.Errorf("failed to save upload: %w", err)
	}
	return nil
}

// containsAll reports whether every wanted id is present in have
func containsAll(have, wanted []uuid.UUID) bool {
	set := make(map[uuid.UUID]struct{}, len(have))
	for _, id := range have {
		set[id] = struct{}{}
	}
	for _, id := range wanted {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

// difference returns the ids in have that do not appear in used
func difference(have, used []uuid.UUID) []uuid.UUID {
	set := make(map[uuid.UUID]struct{}, len(used))
	for _, id := range used {
		set[id] = struct{}{}
	}
	var out []uuid.UUID
	for _, id := range have {
		if _, ok := set[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
