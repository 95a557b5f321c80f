package musicxml

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const containerPath = "META-INF/container.xml"

// ErrNoRootFile is returned when a compressed score holds no MusicXML document
var ErrNoRootFile = errors.New("no MusicXML root file in container")

type containerDoc struct {
	RootFiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

// IsCompressed reports whether path names a compressed .mxl score
func IsCompressed(p string) bool {
	return strings.EqualFold(filepath.Ext(p), ".mxl")
}

// Open opens a MusicXML score for reading. Compressed .mxl files are
// resolved through their META-INF/container.xml.
func Open(p string) (io.ReadCloser, error) {
	if !IsCompressed(p) {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("failed to open score: %w", err)
		}
		return f, nil
	}

	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open compressed score: %w", err)
	}

	rc, err := openRootFile(&zr.Reader)
	if err != nil {
		zr.Close()
		return nil, err
	}

	return &containerReadCloser{ReadCloser: rc, archive: zr}, nil
}

type containerReadCloser struct {
	io.ReadCloser
	archive *zip.ReadCloser
}

func (c *containerReadCloser) Close() error {
	return errors.Join(c.ReadCloser.Close(), c.archive.Close())
}

func openRootFile(zr *zip.Reader) (io.ReadCloser, error) {
	name, err := rootFileName(zr)
	if err != nil {
		return nil, err
	}

	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open %s in container: %w", name, err)
			}
			return rc, nil
		}
	}
	return nil, fmt.Errorf("%w: %s listed but missing", ErrNoRootFile, name)
}

func rootFileName(zr *zip.Reader) (string, error) {
	for _, f := range zr.File {
		if f.Name != containerPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open container manifest: %w", err)
		}
		defer rc.Close()

		var doc containerDoc
		if err := xml.NewDecoder(rc).Decode(&doc); err != nil {
			return "", fmt.Errorf("failed to decode container manifest: %w", err)
		}
		for _, rf := range doc.RootFiles {
			if rf.FullPath != "" {
				return path.Clean(rf.FullPath), nil
			}
		}
		break
	}

	// No usable manifest: fall back to the first score-looking entry
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "META-INF/") {
			continue
		}
		ext := strings.ToLower(path.Ext(f.Name))
		if ext == ".xml" || ext == ".musicxml" {
			return f.Name, nil
		}
	}
	return "", ErrNoRootFile
}
