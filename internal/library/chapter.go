package library

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/inkdex/inkdex/pkg/acl"
	"github.com/inkdex/inkdex/pkg/types"
)

// GetChapter returns a chapter with its manga loaded. Viewing is public.
func (s *Service) GetChapter(ctx context.Context, chapterID uuid.UUID) (*types.Chapter, error) {
	var chapter types.Chapter
	if err := s.db.WithContext(ctx).Preload("Manga").First(&chapter, "id = ?", chapterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("Chapter not found")
		}
		return nil, fmt.Errorf("failed to get chapter: %w", err)
	}
	return &chapter, nil
}

// LatestChapters returns the most recently uploaded chapters across the
// whole catalogue, newest first, with their manga loaded
func (s *Service) LatestChapters(ctx context.Context, limit, offset int) ([]types.Chapter, int64, error) {
	limit, offset = s.clampPage(limit, offset)

	var total int64
	if err := s.db.WithContext(ctx).Model(&types.Chapter{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count chapters: %w", err)
	}

	var chapters []types.Chapter
	err := s.db.WithContext(ctx).
		Preload("Manga").
		Order("upload_time DESC").
		Limit(limit).Offset(offset).
		Find(&chapters).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list chapters: %w", err)
	}
	return chapters, total, nil
}

// MangaChapters lists a manga's chapters ordered by chapter number
// descending
func (s *Service) MangaChapters(ctx context.Context, mangaID uuid.UUID) ([]types.Chapter, error) {
	if _, err := s.GetManga(ctx, mangaID); err != nil {
		return nil, err
	}

	var chapters []types.Chapter
	err := s.db.WithContext(ctx).
		Where("manga_id = ?", mangaID).
		Order("number DESC").
		Find(&chapters).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	return chapters, nil
}

// UpdateChapter applies the descriptive draft fields to a chapter. Page
// content and length only change through the upload pipeline.
func (s *Service) UpdateChapter(ctx context.Context, actor *types.User, chapterID uuid.UUID, draft *types.ChapterDraft) (*types.Chapter, error) {
	chapter, err := s.GetChapter(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if !acl.HasPermission(actor.Principals(), acl.ActionEdit, chapter) {
		return nil, types.Forbidden("you are not allowed to edit this chapter")
	}

	updates := map[string]interface{}{
		"name":       draft.Name,
		"scan_group": draft.ScanGroup,
		"volume":     draft.Volume,
		"number":     draft.Number,
		"webtoon":    draft.Webtoon,
	}
	if err := s.db.WithContext(ctx).Model(chapter).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update chapter: %w", err)
	}
	return chapter, nil
}

// DeleteChapter removes a chapter and any edit sessions against it, then
// schedules removal of its page directory
func (s *Service) DeleteChapter(ctx context.Context, actor *types.User, chapterID uuid.UUID) error {
	chapter, err := s.GetChapter(ctx, chapterID)
	if err != nil {
		return err
	}
	if !acl.HasPermission(actor.Principals(), acl.ActionEdit, chapter) {
		return types.Forbidden("you are not allowed to delete this chapter")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sessionIDs []uuid.UUID
		if err := tx.Model(&types.UploadSession{}).Where("chapter_id = ?", chapterID).Pluck("id", &sessionIDs).Error; err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		if len(sessionIDs) > 0 {
			if err := tx.Where("session_id IN ?", sessionIDs).Delete(&types.UploadedBlob{}).Error; err != nil {
				return fmt.Errorf("failed to delete session blobs: %w", err)
			}
			if err := tx.Where("chapter_id = ?", chapterID).Delete(&types.UploadSession{}).Error; err != nil {
				return fmt.Errorf("failed to delete sessions: %w", err)
			}
		}
		if err := tx.Delete(&types.Chapter{}, "id = ?", chapterID).Error; err != nil {
			return fmt.Errorf("failed to delete chapter: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	mangaID := chapter.MangaID
	s.tasks.Enqueue("remove-chapter-media", func(ctx context.Context) error {
		return s.media.RemoveChapterDir(ctx, mangaID, chapterID)
	})

	log.Info().Str("chapter_id", chapterID.String()).Msg("chapter deleted")
	return nil
}

// ScanGroups lists the distinct scan groups appearing in the catalogue
func (s *Service) ScanGroups(ctx context.Context) ([]string, error) {
	var groups []string
	err := s.db.WithContext(ctx).
		Model(&types.Chapter{}).
		Distinct("scan_group").
		Order("scan_group").
		Pluck("scan_group", &groups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list scan groups: %w", err)
	}
	return groups, nil
}
