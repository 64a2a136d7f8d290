package fileutil

import (
	"encoding/json"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/xerrors"
)

// Walk calls walkFn for every non-empty regular file under root, in lexical order.
func Walk(root string, walkFn func(path string) error) error {
	if err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		} else if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return xerrors.Errorf("file info error: %w", err)
		}

		if info.Size() == 0 {
			slog.Warn("Skipping empty file", slog.String("path", path))
			return nil
		}
		return walkFn(path)
	}); err != nil {
		return xerrors.Errorf("file walk error: %w", err)
	}
	return nil
}

// Expand turns files and directories into a list of files.
// Files are kept in the given order, directories expand in place.
func Expand(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, xerrors.Errorf("failed to access %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		if err = Walk(p, func(path string) error {
			files = append(files, path)
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return files, nil
}

// Create creates the file at filePath along with its parent directories.
func Create(filePath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), os.ModePerm); err != nil {
		return nil, xerrors.Errorf("unable to create a directory: %w", err)
	}

	f, err := os.Create(filePath)
	if err != nil {
		return nil, xerrors.Errorf("unable to open %s: %w", filePath, err)
	}
	return f, nil
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return xerrors.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err = w.Write(append(b, '\n')); err != nil {
		return xerrors.Errorf("failed to write JSON: %w", err)
	}
	return nil
}
