package storage

import (
	"context"
	"fmt"
	"os"

	"nimble.viom.tech/site/internal/logger"
)

// FileStorage appends one email per line to a text file. The file is
// opened per call and written with a single write.
type FileStorage struct {
	filepath string
}

func NewFileStorage(filepath string) *FileStorage {
	return &FileStorage{filepath: filepath}
}

func (f *FileStorage) Append(ctx context.Context, email string) error {
	file, err := os.OpenFile(f.filepath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open subscriber file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Warn("Failed to close subscriber file", map[string]interface{}{
				"path":  f.filepath,
				"error": err.Error(),
			})
		}
	}()

	if _, err := file.Write([]byte(email + "\n")); err != nil {
		return fmt.Errorf("failed to append subscriber: %w", err)
	}

	return nil
}

func (f *FileStorage) Close() error {
	return nil
}
