// Package library implements the catalogue: manga and chapter queries
// and mutations, and the site settings document.
package library

import (
	"github.com/inkdex/inkdex/internal/common"
	"github.com/inkdex/inkdex/internal/images"
	"github.com/inkdex/inkdex/internal/storage"
	"github.com/inkdex/inkdex/internal/tasks"
)

const defaultPageLimit = 20

// Service owns catalogue reads and writes
type Service struct {
	db           *common.Database
	media        *storage.MediaStore
	normalizer   *images.Normalizer
	tasks        *tasks.Runner
	maxPageLimit int
}

// NewService creates a library service
func NewService(db *common.Database, media *storage.MediaStore, normalizer *images.Normalizer, runner *tasks.Runner, maxPageLimit int) *Service {
	return &Service{
		db:           db,
		media:        media,
		normalizer:   normalizer,
		tasks:        runner,
		maxPageLimit: maxPageLimit,
	}
}

// clampPage normalizes client-supplied pagination. Limit falls back to
// the default and is capped by the configured maximum.
func (s *Service) clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > s.maxPageLimit {
		limit = s.maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
