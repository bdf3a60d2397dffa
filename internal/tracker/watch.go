package tracker

import (
	"io"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher dumps a live snapshot report whenever a control file is written.
// Touching the control file from a shell is enough to trigger a dump, which
// makes it usable against a long-running instrumented process.
//
// The dump runs on the watcher's goroutine while the tracked call stream is
// single-threaded; trigger dumps only while the instrumented workload is
// quiescent.
type Watcher struct {
	tracker *Tracker
	w       *fsnotify.Watcher
	out     io.Writer
	path    string
}

// Watch starts watching ctrlPath for writes. The parent directory is watched
// rather than the file itself, so the control file does not need to exist
// yet and editors that replace-on-save still trigger.
func (t *Tracker) Watch(ctrlPath string, out io.Writer) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := w.Add(filepath.Dir(ctrlPath)); err != nil {
		w.Close()
		return nil, err
	}

	wt := &Watcher{
		tracker: t,
		w:       w,
		out:     out,
		path:    filepath.Clean(ctrlPath),
	}
	go wt.loop()

	return wt, nil
}

func (wt *Watcher) loop() {
	for {
		select {
		case ev, ok := <-wt.w.Events:
			if !ok {
				return
			}

			if filepath.Clean(ev.Name) != wt.path {
				continue
			}

			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			wt.tracker.DumpLive(wt.out)
		case _, ok := <-wt.w.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the watcher.
func (wt *Watcher) Close() error {
	return wt.w.Close()
}
