// Package files stores binary artifacts (synthesized audio) on local disk
// under random names.
package files

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Storage writes artifacts into a single flat directory. Names are random
// uuids, so callers must keep their own reference (the file_paths table).
type Storage struct {
	dir string
}

// NewStorage creates the storage directory if needed.
func NewStorage(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create file storage dir %s: %w", dir, err)
	}
	return &Storage{dir: dir}, nil
}

// Dir returns the storage directory, for serving the files statically.
func (s *Storage) Dir() string {
	return s.dir
}

// Save writes the artifact and returns its generated file name.
func (s *Storage) Save(data []byte, contentType string) (string, error) {
	name := uuid.NewString() + extensionFor(contentType)
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write file %s: %w", path, err)
	}

	log.Debug().Str("name", name).Int("size", len(data)).Msg("Stored file")
	return name, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "audio/aac":
		return ".aac"
	default:
		return ".bin"
	}
}
