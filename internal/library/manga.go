package library

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/inkdex/inkdex/pkg/acl"
	"github.com/inkdex/inkdex/pkg/types"
	"github.com/inkdex/inkdex/pkg/utils"
)

// CreateManga adds a manga to the catalogue. Uploaders and admins only;
// the creator becomes the owner.
func (s *Service) CreateManga(ctx context.Context, actor *types.User, draft *types.MangaDraft) (*types.Manga, error) {
	if !acl.Allows(actor.Principals(), acl.ActionCreate, types.MangaACL()) {
		return nil, types.Forbidden("you are not allowed to create manga")
	}

	manga := &types.Manga{
		OwnerID:     &actor.ID,
		Title:       draft.Title,
		Description: draft.Description,
		Author:      draft.Author,
		Artist:      draft.Artist,
		Year:        draft.Year,
		Status:      draft.Status,
	}
	if err := s.db.WithContext(ctx).Create(manga).Error; err != nil {
		return nil, fmt.Errorf("failed to create manga: %w", err)
	}

	log.Info().Str("manga_id", manga.ID.String()).Str("title", manga.Title).Msg("manga created")
	return manga, nil
}

// GetManga returns a manga by id. Viewing is public.
func (s *Service) GetManga(ctx context.Context, mangaID uuid.UUID) (*types.Manga, error) {
	var manga types.Manga
	if err := s.db.WithContext(ctx).First(&manga, "id = ?", mangaID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("Manga not found")
		}
		return nil, fmt.Errorf("failed to get manga: %w", err)
	}
	return &manga, nil
}

// SearchManga lists manga matching an optional title term, newest first.
// LIKE wildcards in the term are escaped so they match literally.
func (s *Service) SearchManga(ctx context.Context, term string, limit, offset int) ([]types.Manga, int64, error) {
	limit, offset = s.clampPage(limit, offset)

	query := s.db.WithContext(ctx).Model(&types.Manga{})
	if term != "" {
		pattern := "%" + utils.EscapeLike(term) + "%"
		query = query.Where("LOWER(title) LIKE LOWER(?) ESCAPE '\\'", pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count manga: %w", err)
	}

	var manga []types.Manga
	if err := query.Order("create_time DESC").Limit(limit).Offset(offset).Find(&manga).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to search manga: %w", err)
	}
	return manga, total, nil
}

// UpdateManga applies a draft to an existing manga
func (s *Service) UpdateManga(ctx context.Context, actor *types.User, mangaID uuid.UUID, draft *types.MangaDraft) (*types.Manga, error) {
	manga, err := s.GetManga(ctx, mangaID)
	if err != nil {
		return nil, err
	}
	if !acl.HasPermission(actor.Principals(), acl.ActionEdit, manga) {
		return nil, types.Forbidden("you are not allowed to edit this manga")
	}

	updates := map[string]interface{}{
		"title":       draft.Title,
		"description": draft.Description,
		"author":      draft.Author,
		"artist":      draft.Artist,
		"year":        draft.Year,
		"status":      draft.Status,
	}
	if err := s.db.WithContext(ctx).Model(manga).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update manga: %w", err)
	}
	return manga, nil
}

// DeleteManga removes a manga, its chapters and any in-flight upload
// sessions, then schedules removal of its media directory
func (s *Service) DeleteManga(ctx context.Context, actor *types.User, mangaID uuid.UUID) error {
	manga, err := s.GetManga(ctx, mangaID)
	if err != nil {
		return err
	}
	if !acl.HasPermission(actor.Principals(), acl.ActionEdit, manga) {
		return types.Forbidden("you are not allowed to delete this manga")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sessionIDs []uuid.UUID
		if err := tx.Model(&types.UploadSession{}).Where("manga_id = ?", mangaID).Pluck("id", &sessionIDs).Error; err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		if len(sessionIDs) > 0 {
			if err := tx.Where("session_id IN ?", sessionIDs).Delete(&types.UploadedBlob{}).Error; err != nil {
				return fmt.Errorf("failed to delete session blobs: %w", err)
			}
			if err := tx.Where("manga_id = ?", mangaID).Delete(&types.UploadSession{}).Error; err != nil {
				return fmt.Errorf("failed to delete sessions: %w", err)
			}
		}
		if err := tx.Where("manga_id = ?", mangaID).Delete(&types.Chapter{}).Error; err != nil {
			return fmt.Errorf("failed to delete chapters: %w", err)
		}
		if err := tx.Delete(&types.Manga{}, "id = ?", mangaID).Error; err != nil {
			return fmt.Errorf("failed to delete manga: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.tasks.Enqueue("remove-manga-media", func(ctx context.Context) error {
		return s.media.RemoveMangaDir(ctx, mangaID)
	})

	log.Info().Str("manga_id", mangaID.String()).Msg("manga deleted")
	return nil
}

// SetCover normalizes an uploaded cover image and stores it as the
// manga's cover
func (s *Service) SetCover(ctx context.Context, actor *types.User, mangaID uuid.UUID, r io.Reader, name string) error {
	manga, err := s.GetManga(ctx, mangaID)
	if err != nil {
		return err
	}
	if !acl.HasPermission(actor.Principals(), acl.ActionEdit, manga) {
		return types.Forbidden("you are not allowed to edit this manga")
	}

	return s.normalizer.NormalizeTo(ctx, r, s.media.CoverKey(mangaID), name)
}
