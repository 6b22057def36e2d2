// Package images decodes uploaded page images into the canonical stored
// form and implements the vertical slice transform. Every stored page is
// an RGB JPEG, so the commit step can move files without re-encoding.
package images

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	// Page scans arrive in formats the stdlib does not decode
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/inkdex/inkdex/internal/storage"
	"github.com/inkdex/inkdex/pkg/types"
)

// Normalizer converts uploads into canonical blob pixel files
type Normalizer struct {
	media *storage.MediaStore
}

// NewNormalizer creates a normalizer writing through the given media store
func NewNormalizer(media *storage.MediaStore) *Normalizer {
	return &Normalizer{media: media}
}

// Normalize decodes the image at sourcePath, converts it to RGB and
// stores it as the blob's pixel file. Sources that cannot be decoded as
// an image fail with a bad-request class error.
func (n *Normalizer) Normalize(ctx context.Context, sourcePath string, blobID uuid.UUID) error {
	img, err := imaging.Open(sourcePath)
	if err != nil {
		return types.BadInput("'%s' is not an image", filepath.Base(sourcePath))
	}

	if err := n.Store(ctx, img, blobID); err != nil {
		return err
	}

	// The raw upload is scratch data once normalized
	if err := os.Remove(sourcePath); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", sourcePath).Msg("failed to remove source file after normalization")
	}

	bounds := img.Bounds()
	log.Debug().
		Str("blob_id", blobID.String()).
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Msg("image normalized")
	return nil
}

// NormalizeTo decodes an uploaded image stream and stores it as a JPEG
// under an arbitrary storage key. name is the client filename, used in
// the rejection message. Covers and avatars go through this path.
func (n *Normalizer) NormalizeTo(ctx context.Context, r io.Reader, key, name string) error {
	img, err := imaging.Decode(r)
	if err != nil {
		return types.BadInput("'%s' is not an image", name)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	if err := n.media.Storage().Store(ctx, key, &buf, "image/jpeg"); err != nil {
		return fmt.Errorf("failed to store image: %w", err)
	}
	return nil
}

// Store encodes an image as the blob's canonical JPEG pixel file
func (n *Normalizer) Store(ctx context.Context, img image.Image, blobID uuid.UUID) error {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}

	if err := n.media.Storage().Store(ctx, n.media.BlobKey(blobID), &buf, "image/jpeg"); err != nil {
		return fmt.Errorf("failed to store blob pixels: %w", err)
	}
	return nil
}

// Slice vertically concatenates the referenced blobs in order and re-cuts
// the composite into parts of height 2×width, the last part possibly
// shorter. All inputs must share the same width. The returned parts
// preserve top-to-bottom order; deleting the input blobs is the caller's
// responsibility.
func (n *Normalizer) Slice(ctx context.Context, blobIDs []uuid.UUID) ([]*image.NRGBA, error) {
	decoded := make([]image.Image, 0, len(blobIDs))
	totalHeight := 0

	for _, blobID := range blobIDs {
		reader, err := n.media.Storage().Retrieve(ctx, n.media.BlobKey(blobID))
		if err != nil {
			return nil, fmt.Errorf("failed to read blob %s: %w", blobID, err)
		}
		img, err := imaging.Decode(reader)
		reader.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode blob %s: %w", blobID, err)
		}
		decoded = append(decoded, img)
		totalHeight += img.Bounds().Dy()
	}

	width := decoded[0].Bounds().Dx()
	for _, img := range decoded {
		if img.Bounds().Dx() != width {
			return nil, types.BadInput("All the images should have the same width")
		}
	}

	joined := imaging.New(width, totalHeight, image.Black.C)
	runningHeight := 0
	for _, img := range decoded {
		joined = imaging.Paste(joined, img, image.Pt(0, runningHeight))
		runningHeight += img.Bounds().Dy()
	}

	partHeight := 2 * width
	var parts []*image.NRGBA
	for startY := 0; startY < totalHeight; startY += partHeight {
		endY := startY + partHeight
		if endY > totalHeight {
			endY = totalHeight
		}
		parts = append(parts, imaging.Crop(joined, image.Rect(0, startY, width, endY)))
	}

	log.Debug().
		Int("inputs", len(blobIDs)).
		Int("parts", len(parts)).
		Int("width", width).
		Int("height", totalHeight).
		Msg("blobs sliced")
	return parts, nil
}
