package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/inboxd/inboxd/internal/domain"
)

// FileDirectory is a Directory backed by a JSON file of users. The file is
// watched with fsnotify and reloaded in place on change, so user edits take
// effect without a restart.
type FileDirectory struct {
	path    string
	static  *StaticDirectory
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileDirectory loads the user file and starts watching it for changes.
func NewFileDirectory(path string) (*FileDirectory, error) {
	d := &FileDirectory{
		path:   path,
		static: NewStaticDirectory(),
		done:   make(chan struct{}),
	}

	if err := d.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create identity watcher: %w", err)
	}
	// Watch the directory, not the file: editors replace files on save and
	// the watch on the old inode would go stale.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch identity dir: %w", err)
	}
	d.watcher = watcher

	go d.watch()
	return d, nil
}

func (d *FileDirectory) reload() error {
	raw, err := os.ReadFile(d.path)
	if err != nil {
		return fmt.Errorf("read identity file: %w", err)
	}

	var users []User
	if err := json.Unmarshal(raw, &users); err != nil {
		return fmt.Errorf("parse identity file: %w", err)
	}

	d.static.replace(users)
	slog.Info("Identity directory loaded", "path", d.path, "users", len(users))
	return nil
}

func (d *FileDirectory) watch() {
	for {
		select {
		case <-d.done:
			return
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Name != d.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := d.reload(); err != nil {
				// Keep serving the last good directory.
				slog.Error("Identity reload failed", "path", d.path, "error", err)
			}
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Identity watcher error", "path", d.path, "error", err)
		}
	}
}

// Resolve implements Directory.
func (d *FileDirectory) Resolve(ctx context.Context, token string) (*domain.Profile, error) {
	return d.static.Resolve(ctx, token)
}

// Lookup implements Directory.
func (d *FileDirectory) Lookup(ctx context.Context, userID string) (*domain.Profile, error) {
	return d.static.Lookup(ctx, userID)
}

// Close stops the file watcher.
func (d *FileDirectory) Close() error {
	close(d.done)
	return d.watcher.Close()
}

var _ Directory = (*FileDirectory)(nil)
