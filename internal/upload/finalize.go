package upload

import (
	"context"

	"github.com/google/uuid"
)

// The finalizer side of the service: physical file work scheduled after
// the database mutation has been acknowledged. Tasks run on the shared
// background runner, are never retried, and may not have completed by
// the time the HTTP response is sent.

// scheduleCommit queues the post-commit file shuffle: tear down the
// session scratch space, move the ordered blobs into the chapter's
// permanent directory (wiping it first when replacing), and delete the
// pixel files of pages the client dropped from the order.
func (s *Service) scheduleCommit(sessionID, mangaID, chapterID uuid.UUID, pageOrder, dropped []uuid.UUID, replace bool) {
	s.tasks.Enqueue("commit-session-files", func(ctx context.Context) error {
		if err := s.media.RemoveSessionScratch(sessionID); err != nil {
			return err
		}
		if err := s.media.CommitBlobs(ctx, mangaID, chapterID, pageOrder, replace); err != nil {
			return err
		}
		s.media.DeleteBlobs(ctx, dropped)
		return nil
	})
}

// scheduleTeardown queues full cleanup of an aborted session
func (s *Service) scheduleTeardown(sessionID uuid.UUID, blobIDs []uuid.UUID) {
	s.tasks.Enqueue("teardown-session", func(ctx context.Context) error {
		s.media.DeleteBlobs(ctx, blobIDs)
		return s.media.RemoveSessionScratch(sessionID)
	})
}

// scheduleBlobDeletion queues pixel-file deletion for blobs whose
// metadata rows are already gone
func (s *Service) scheduleBlobDeletion(sessionID uuid.UUID, blobIDs []uuid.UUID) {
	if len(blobIDs) == 0 {
		return
	}
	s.tasks.Enqueue("delete-session-blobs", func(ctx context.Context) error {
		s.media.DeleteBlobs(ctx, blobIDs)
		return nil
	})
}
