package out

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"geoattend/internal/modules/office/domain"
	officeout "geoattend/internal/modules/office/port/out"

	"github.com/fsnotify/fsnotify"
	hclog "github.com/hashicorp/go-hclog"
	"gopkg.in/yaml.v3"
)

// Editors save in bursts (truncate, write, rename); one signal per burst.
const watchDebounce = 200 * time.Millisecond

// YAMLDirectoryStore reads the office directory from one YAML file. A missing
// file is an empty directory.
type YAMLDirectoryStore struct {
	path   string
	logger hclog.Logger
}

func NewYAMLDirectoryStore(path string, logger hclog.Logger) officeout.DirectoryStore {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &YAMLDirectoryStore{path: filepath.Clean(path), logger: logger.Named("office-file")}
}

func (s *YAMLDirectoryStore) Load(_ context.Context) (domain.Directory, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Directory{}, nil
		}
		return domain.Directory{}, fmt.Errorf("read office directory: %w", err)
	}
	dir := domain.Directory{}
	dec := yaml.NewDecoder(bytes.NewReader(payload))
	dec.KnownFields(true)
	if err := dec.Decode(&dir); err != nil && !errors.Is(err, io.EOF) {
		return domain.Directory{}, fmt.Errorf("decode office directory %s: %w", s.path, err)
	}
	return dir, nil
}

// Watch observes the parent directory so replace-by-rename saves are seen.
func (s *YAMLDirectoryStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	parent := filepath.Dir(s.path)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("create office directory dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("office watcher: %w", err)
	}
	if err := watcher.Add(parent); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", parent, err)
	}
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer watcher.Close()
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != s.path {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
					continue
				}
				fire = time.After(watchDebounce)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("office directory watch error", "path", s.path, "error", err)
			case <-fire:
				fire = nil
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}
