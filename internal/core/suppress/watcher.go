package suppress

import (
	"context"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/colonyops/pmicmon/internal/core/power"
)

// Watcher reports marker files created while the process runs, e.g. by
// another pmicmon process or by the user.
type Watcher struct {
	watcher *fsnotify.Watcher
	log     zerolog.Logger
}

// NewWatcher watches the existing directories in dirs. Returns nil if none
// of them exist or fsnotify cannot be initialized.
func NewWatcher(dirs []string, log zerolog.Logger) *Watcher {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn().Err(err).Msg("suppress: failed to create fsnotify watcher")
		return nil
	}

	w := &Watcher{
		watcher: watcher,
		log:     log,
	}

	added := 0
	for _, dir := range dirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			w.log.Debug().Err(err).Str("dir", dir).Msg("skipping marker directory")
			continue
		}
		added++
	}

	if added == 0 {
		_ = watcher.Close()
		return nil
	}

	return w
}

// Run calls fn for every marker file created until ctx is cancelled or the
// watcher is closed.
func (w *Watcher) Run(ctx context.Context, fn func(power.Condition)) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			cond, ok := ConditionForMarker(event.Name)
			if !ok {
				continue
			}
			w.log.Debug().Str("path", event.Name).Str("condition", cond.String()).Msg("marker created")
			fn(cond)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("watcher error")
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
