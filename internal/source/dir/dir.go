// Package dir implements the local-filesystem source: the input folder is
// listed with an extension filter, and processed files are moved into the
// imported/broken sibling folders.
package dir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"importer/internal/source"
)

// Source lists and moves files under a local input folder.
type Source struct {
	input      string
	imported   string
	broken     string
	extensions map[string]struct{}
}

var (
	_ source.Lister = (*Source)(nil)
	_ source.Mover  = (*Source)(nil)
)

// New returns a Source reading input and moving processed files to imported
// or broken. extensions filters the listing (e.g. ".xlsx", ".csv"); matching
// is case-insensitive and an empty list accepts nothing.
func New(input, imported, broken string, extensions []string) *Source {
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[strings.ToLower(e)] = struct{}{}
	}
	return &Source{input: input, imported: imported, broken: broken, extensions: exts}
}

// List reads every matching file in the input folder, in name order. A file
// that cannot be read is returned with Err set; the listing itself only
// fails when the folder cannot be read at all.
func (s *Source) List(ctx context.Context) ([]source.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.input)
	if err != nil {
		return nil, fmt.Errorf("dir: list %s: %w", s.input, err)
	}

	var out []source.File
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := s.extensions[strings.ToLower(filepath.Ext(e.Name()))]; !ok {
			continue
		}
		content, err := os.ReadFile(filepath.Join(s.input, e.Name()))
		if err != nil {
			out = append(out, source.File{Name: e.Name(), Err: fmt.Errorf("dir: read %s: %w", e.Name(), err)})
			continue
		}
		out = append(out, source.File{Name: e.Name(), Content: content})
	}
	return out, nil
}

// Move relocates name from the input folder to dest, creating the
// destination folder when absent.
func (s *Source) Move(ctx context.Context, name string, dest source.Destination) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := s.imported
	if dest == source.DestBroken {
		target = s.broken
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("dir: create %s: %w", target, err)
	}
	from := filepath.Join(s.input, name)
	to := filepath.Join(target, name)
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("dir: move %s to %s: %w", name, dest, err)
	}
	return nil
}
