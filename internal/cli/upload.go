package cli

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
)

// readUpload reads path, or stdin for "-", refusing anything over limit bytes.
func readUpload(path string, stdin io.Reader, limit int64) ([]byte, error) {
	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.Size() > limit {
			return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, path, info.Size(), limit)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close() // nolint:errcheck // read-only
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}

// mimeFromPath guesses a media type from the file extension.
func mimeFromPath(path string) string {
	return mime.TypeByExtension(filepath.Ext(path))
}
