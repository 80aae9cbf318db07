package story

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/matheus3301/bossmsg/internal/types"
)

var mediaKinds = map[string]types.MediaKind{
	".jpg":  types.MediaImage,
	".jpeg": types.MediaImage,
	".png":  types.MediaImage,
	".gif":  types.MediaImage,
	".webp": types.MediaImage,
	".mp4":  types.MediaVideo,
	".webm": types.MediaVideo,
	".mov":  types.MediaVideo,
}

// MediaKindOf reports the story kind for a file name by extension.
func MediaKindOf(name string) (types.MediaKind, bool) {
	k, ok := mediaKinds[strings.ToLower(filepath.Ext(name))]
	return k, ok
}

// Poster publishes a story. Catalogue implements it.
type Poster interface {
	Post(mediaURL string, kind types.MediaKind, caption string, duration time.Duration) (types.Story, error)
}

// Inbox watches a directory and posts every media file dropped into it as
// one of my stories. A sibling "<name>.txt" file supplies the caption.
type Inbox struct {
	dir      string
	poster   Poster
	debounce time.Duration
	logger   *zap.Logger

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]struct{}
	posted  map[string]struct{}

	done chan struct{}
}

// NewInbox creates an inbox over dir. Files already present are not
// posted.
func NewInbox(dir string, poster Poster, debounce time.Duration, logger *zap.Logger) *Inbox {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inbox{
		dir:      dir,
		poster:   poster,
		debounce: debounce,
		logger:   logger.Named("inbox"),
		pending:  make(map[string]struct{}),
		posted:   make(map[string]struct{}),
	}
}

// Start begins watching. Events are collected and flushed once per
// debounce period so a file still being written is read once complete.
func (in *Inbox) Start(ctx context.Context) error {
	if err := os.MkdirAll(in.dir, 0o700); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(in.dir); err != nil {
		_ = w.Close()
		return err
	}
	entries, _ := os.ReadDir(in.dir)
	for _, e := range entries {
		in.posted[filepath.Join(in.dir, e.Name())] = struct{}{}
	}
	in.watcher = w
	in.done = make(chan struct{})
	go in.loop(ctx)
	in.logger.Info("watching stories inbox", zap.String("dir", in.dir))
	return nil
}

// Stop closes the watcher and waits for the loop to exit.
func (in *Inbox) Stop() error {
	if in.watcher == nil {
		return nil
	}
	err := in.watcher.Close()
	<-in.done
	return err
}

func (in *Inbox) loop(ctx context.Context) {
	defer close(in.done)
	ticker := time.NewTicker(in.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if _, ok := MediaKindOf(ev.Name); !ok {
				continue
			}
			in.mu.Lock()
			in.pending[ev.Name] = struct{}{}
			in.mu.Unlock()
		case err, ok := <-in.watcher.Errors:
			if !ok {
				return
			}
			in.logger.Warn("inbox watcher error", zap.Error(err))
		case <-ticker.C:
			in.flush()
		}
	}
}

func (in *Inbox) flush() {
	in.mu.Lock()
	var paths []string
	for p := range in.pending {
		if _, done := in.posted[p]; !done {
			paths = append(paths, p)
		}
	}
	clear(in.pending)
	in.mu.Unlock()

	for _, p := range paths {
		in.post(p)
	}
}

func (in *Inbox) post(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return
	}
	kind, _ := MediaKindOf(path)
	caption := ""
	if b, err := os.ReadFile(strings.TrimSuffix(path, filepath.Ext(path)) + ".txt"); err == nil {
		caption = strings.TrimSpace(string(b))
	}
	s, err := in.poster.Post("file://"+path, kind, caption, 0)
	if err != nil {
		in.logger.Warn("post story from inbox", zap.String("path", path), zap.Error(err))
		return
	}
	in.mu.Lock()
	in.posted[path] = struct{}{}
	in.mu.Unlock()
	in.logger.Info("posted story from inbox", zap.String("path", path), zap.String("story_id", s.ID))
}
