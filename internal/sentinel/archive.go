package sentinel

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/zip"
)

// ArchiveExt is the extension of downloaded product archives.
const ArchiveExt = ".zip"

// IsArchive reports whether name carries the archive extension.
func IsArchive(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ArchiveExt)
}

// ArchiveDir is the extraction subdirectory used for an archive: one per
// archive, so concurrent scenes never expand into the same place.
func ArchiveDir(extractRoot, archiveName string) string {
	base := filepath.Base(archiveName)
	return filepath.Join(extractRoot, base[:len(base)-len(filepath.Ext(base))])
}

// ArchiveScene is the scene name an archive is expected to hold, e.g.
// "S2A_MSIL2A_x" for "S2A_MSIL2A_x.SAFE.zip".
func ArchiveScene(archivePath string) string {
	return strings.TrimSuffix(filepath.Base(ArchiveDir("", archivePath)), SceneSuffix)
}

// Unpacker expands product archives.
//
// Expanding the same archive twice overwrites the previously extracted files;
// callers wanting to skip finished work must check for it themselves.
type Unpacker struct {
	logger *slog.Logger
}

func NewUnpacker(logger *slog.Logger) *Unpacker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Unpacker{logger: logger}
}

// UnpackAll expands every archive found directly in folder into its own
// subdirectory of extractRoot and returns the directories it filled.
// A failing archive does not stop the others; all failures are joined into
// the returned error. Partially expanded archives are not rolled back.
func (u *Unpacker) UnpackAll(folder, extractRoot string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive folder %s: %w", folder, err)
	}

	var expanded []string
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !IsArchive(entry.Name()) {
			continue
		}
		dest := ArchiveDir(extractRoot, entry.Name())
		if err := u.Expand(filepath.Join(folder, entry.Name()), dest); err != nil {
			u.logger.Error("archive expansion failed", "archive", entry.Name(), "error", err)
			errs = append(errs, err)
			continue
		}
		expanded = append(expanded, dest)
	}
	return expanded, errors.Join(errs...)
}

// Expand writes every entry of the archive at archivePath below destDir,
// creating destDir and any intermediate directories.
func (u *Unpacker) Expand(archivePath, destDir string) error {
	if err := checkZip(archivePath); err != nil {
		return &ArchiveError{Archive: archivePath, Err: err}
	}

	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return &ArchiveError{Archive: archivePath, Err: err}
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return &ArchiveError{Archive: archivePath, Err: fmt.Errorf("create %s: %w", destDir, err)}
	}

	for _, file := range reader.File {
		if err := extractFile(file, destDir); err != nil {
			return &ArchiveError{Archive: archivePath, Entry: file.Name, Err: err}
		}
	}

	u.logger.Info("archive expanded", "archive", archivePath, "dest", destDir, "entries", len(reader.File))
	return nil
}

func checkZip(path string) error {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return err
	}
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return nil
		}
	}
	return fmt.Errorf("%w: detected %s", ErrNotZip, mtype.String())
}

func extractFile(file *zip.File, destDir string) error {
	target, err := safeJoin(destDir, file.Name)
	if err != nil {
		return err
	}

	if file.FileInfo().IsDir() {
		return os.MkdirAll(target, 0755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func safeJoin(dir, name string) (string, error) {
	target := filepath.Join(dir, name)
	rel, err := filepath.Rel(dir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafeEntry, name)
	}
	return target, nil
}
