// Package archive unpacks uploaded compressed archives into loose files
// for the upload pipeline. Formats are identified by the declared content
// type of the upload, not by sniffing.
package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/klauspost/compress/zip"
	"github.com/nwaples/rardecode"
	"github.com/rs/zerolog/log"
	"github.com/ulikunitz/xz"

	"github.com/inkdex/inkdex/pkg/types"
	"github.com/inkdex/inkdex/pkg/utils"
)

// Archive content types accepted by the upload endpoint
const (
	TypeZip       = "application/zip"
	TypeZipLegacy = "application/x-zip-compressed"
	TypeSevenZip  = "application/x-7z-compressed"
	TypeXZ        = "application/x-xz"
	TypeRar       = "application/x-rar-compressed"
	TypeRarVnd    = "application/vnd.rar"
)

// IsArchiveContentType reports whether the declared content type is a
// recognized compressed format
func IsArchiveContentType(contentType string) bool {
	switch contentType {
	case TypeZip, TypeZipLegacy, TypeSevenZip, TypeXZ, TypeRar, TypeRarVnd:
		return true
	}
	return false
}

// Extractor unpacks archives into a destination directory
type Extractor struct{}

// NewExtractor creates an archive extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract unpacks the archive at archivePath into destDir, preserving the
// archive's internal directory structure, and returns the extracted file
// paths. A malformed archive fails with a bad-request class error; the
// caller owns cleanup of destDir on both success and failure.
func (e *Extractor) Extract(ctx context.Context, archivePath, destDir, contentType string) ([]string, error) {
	var (
		paths []string
		err   error
	)

	switch contentType {
	case TypeZip, TypeZipLegacy:
		paths, err = e.extractZip(ctx, archivePath, destDir)
	case TypeSevenZip:
		paths, err = e.extractSevenZip(ctx, archivePath, destDir)
	case TypeRar, TypeRarVnd:
		paths, err = e.extractRar(ctx, archivePath, destDir)
	case TypeXZ:
		paths, err = e.extractXZ(ctx, archivePath, destDir)
	default:
		return nil, types.BadInput("'%s's format is not supported", filepath.Base(archivePath))
	}

	if err != nil {
		log.Warn().Err(err).Str("archive", filepath.Base(archivePath)).Msg("archive extraction failed")
		return nil, err
	}

	log.Debug().Str("archive", filepath.Base(archivePath)).Int("files", len(paths)).Msg("archive extracted")
	return paths, nil
}

// ImageFiles lists the names of recognized image files in the extraction
// root. The listing is non-recursive: images nested in archive
// subdirectories are not picked up.
func ImageFiles(destDir string) ([]string, error) {
	entries, err := os.ReadDir(destDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list extracted files: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !utils.HasImageExtension(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

func (e *Extractor) extractZip(ctx context.Context, archivePath, destDir string) ([]string, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, types.BadInput("'%s's format is not supported", filepath.Base(archivePath))
	}
	defer reader.Close()

	var paths []string
	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if file.FileInfo().IsDir() {
			continue
		}

		entry, err := file.Open()
		if err != nil {
			return nil, types.BadInput("'%s's format is not supported", filepath.Base(archivePath))
		}
		path, err := writeEntry(destDir, file.Name, entry)
		entry.Close()
		if err != nil {
			return nil, err
		}
		if path != "" {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

func (e *Extractor) extractSevenZip(ctx context.Context, archivePath, destDir string) ([]string, error) {
	reader, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return nil, types.BadInput("'%s's format is not supported", filepath.Base(archivePath))
	}
	defer reader.Close()

	var paths []string
	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if file.FileInfo().IsDir() {
			continue
		}

		entry, err := file.Open()
		if err != nil {
			return nil, types.BadInput("'%s's format is not supported", filepath.Base(archivePath))
		}
		path, err := writeEntry(destDir, file.Name, entry)
		entry.Close()
		if err != nil {
			return nil, err
		}
		if path != "" {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

func (e *Extractor) extractRar(ctx context.Context, archivePath, destDir string) ([]string, error) {
	reader, err := rardecode.OpenReader(archivePath, "")
	if err != nil {
		return nil, types.BadInput("'%s's format is not supported", filepath.Base(archivePath))
	}
	defer reader.Close()

	var paths []string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		header, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, types.BadInput("'%s's format is not supported", filepath.Base(archivePath))
		}
		if header.IsDir {
			continue
		}

		path, err := writeEntry(destDir, header.Name, reader)
		if err != nil {
			return nil, err
		}
		if path != "" {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

// extractXZ handles both .tar.xz bundles and single-file .xz streams
func (e *Extractor) extractXZ(ctx context.Context, archivePath, destDir string) ([]string, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	decompressed, err := xz.NewReader(file)
	if err != nil {
		return nil, types.BadInput("'%s's format is not supported", filepath.Base(archivePath))
	}

	tarReader := tar.NewReader(decompressed)
	header, err := tarReader.Next()
	if err != nil {
		// Not a tarball; treat the stream as a single compressed file
		if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil {
			return nil, fmt.Errorf("failed to rewind archive: %w", seekErr)
		}
		decompressed, err = xz.NewReader(file)
		if err != nil {
			return nil, types.BadInput("'%s's format is not supported", filepath.Base(archivePath))
		}

		name := strings.TrimSuffix(filepath.Base(archivePath), ".xz")
		path, err := writeEntry(destDir, name, decompressed)
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	}

	var paths []string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if header.Typeflag == tar.TypeReg {
			path, err := writeEntry(destDir, header.Name, tarReader)
			if err != nil {
				return nil, err
			}
			if path != "" {
				paths = append(paths, path)
			}
		}

		header, err = tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, types.BadInput("'%s's format is not supported", filepath.Base(archivePath))
		}
	}
	return paths, nil
}

// writeEntry writes one archive entry under destDir, preserving its
// relative path. Entries that would escape destDir are skipped.
func writeEntry(destDir, name string, content io.Reader) (string, error) {
	cleaned := filepath.Clean(name)
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		log.Warn().Str("entry", name).Msg("skipping unsafe archive entry")
		return "", nil
	}

	outputPath := filepath.Join(destDir, cleaned)
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create entry directory: %w", err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create extracted file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, content); err != nil {
		return "", fmt.Errorf("failed to write extracted file: %w", err)
	}
	return outputPath, nil
}
