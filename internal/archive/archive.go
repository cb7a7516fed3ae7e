package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/inboxd/inboxd/internal/domain"
)

// Archiver persists a copy of a conversation log before it is reaped.
type Archiver interface {
	ArchiveLog(ctx context.Context, ownerID, counterpartID string, msgs []*domain.Message) error
}

// FileArchiver writes reaped logs as JSON lines under baseDir/<owner>/.
// It takes an afero.Fs so tests can use an in-memory filesystem.
type FileArchiver struct {
	fs      afero.Fs
	baseDir string
}

// NewFileArchiver creates a FileArchiver rooted at baseDir.
func NewFileArchiver(fs afero.Fs, baseDir string) *FileArchiver {
	return &FileArchiver{fs: fs, baseDir: baseDir}
}

// ArchiveLog implements Archiver. An empty log is a no-op.
func (a *FileArchiver) ArchiveLog(ctx context.Context, ownerID, counterpartID string, msgs []*domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	dir := filepath.Join(a.baseDir, ownerID)
	if err := a.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}

	name := fmt.Sprintf("%s-%s.jsonl", counterpartID, time.Now().UTC().Format("20060102T150405"))
	f, err := a.fs.Create(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, m := range msgs {
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("write archive entry %s: %w", m.ID, err)
		}
	}
	return nil
}

var _ Archiver = (*FileArchiver)(nil)
