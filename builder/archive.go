package builder

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// Archive bundles the built artifact and the installer executable into a
// tar.gz in the dist directory, flat layout, and returns the archive path.
// The artifact's existence was verified by Build; a missing file at this
// point fails the archive write itself.
func (b *Builder) Archive(installerPath string) (string, error) {
	if err := os.MkdirAll(b.DistDir, 0755); err != nil {
		return "", fmt.Errorf("create dist dir: %w", err)
	}
	archivePath := filepath.Join(b.DistDir, "activity_agent.tar.gz")
	out, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)
	for _, file := range []string{b.Descriptor.Output, installerPath} {
		if err := addFile(tw, file); err != nil {
			tw.Close()
			gz.Close()
			return "", err
		}
	}
	if err := tw.Close(); err != nil {
		return "", fmt.Errorf("finish tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("finish gzip: %w", err)
	}
	return archivePath, nil
}

// addFile writes one file into the tar stream under its base name.
func addFile(tw *tar.Writer, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("archive input %s: %w", path, err)
	}
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("tar header for %s: %w", path, err)
	}
	header.Name = filepath.Base(path)
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("write tar header for %s: %w", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("archive %s: %w", path, err)
	}
	return nil
}
