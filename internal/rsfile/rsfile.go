// Package rsfile loads a directory of RiveScript source files into a Bot
// and, optionally, watches that directory for changes and reloads it live.
// The directory-of-files-plus-manifest-free recursive walk is grounded on
// the teacher engine's internal/tqw package (tqw.go's LoadResourceBundle),
// adapted from TQW's single-manifest-file model to a flat directory walk,
// since RiveScript source has no manifest format of its own: any file
// under the root with a recognized extension is loaded.
package rsfile

import (
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"sort"
	"strings"

	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/rivebot/rivescript"
)

// Extensions lists the file suffixes treated as RiveScript source.
var Extensions = []string{".rive", ".rs"}

// hasExtension reports whether path ends in one of Extensions.
func hasExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// LoadDirectory walks root recursively, loading every RiveScript source
// file it finds into bot in a deterministic (lexical) order, then sorts the
// brain once at the end. Files are loaded in sorted path order so that a
// reload of an unchanged directory produces an identical brain.
func LoadDirectory(bot *rivescript.Bot, root string) error {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if hasExtension(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("rsfile: walk %s: %w", root, err)
	}
	sort.Strings(files)

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("rsfile: read %s: %w", path, err)
		}
		if err := bot.LoadString(path, string(data)); err != nil {
			return fmt.Errorf("rsfile: load %s: %w", path, err)
		}
	}

	bot.SortReplies()
	return nil
}

// Watcher reloads a directory into its Bot every time a file under it
// changes, using fsnotify the same way the teacher engine watches
// configuration files for the hot-reload path. Reload errors are logged
// and otherwise ignored: a bad edit to one file should not bring down an
// already-running bot serving other users.
type Watcher struct {
	bot    *rivescript.Bot
	root   string
	logger *log.Logger
	fsw    *fsnotify.Watcher
	done   chan struct{}
}

// Watch performs an initial LoadDirectory and then starts watching root (and
// every subdirectory under it at the time of the call) for filesystem
// events, reloading the whole directory whenever a source file changes. A
// nil logger defaults to log.Default(). Callers must call Close when done.
func Watch(bot *rivescript.Bot, root string, logger *log.Logger) (*Watcher, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := LoadDirectory(bot, root); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("rsfile: create watcher: %w", err)
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("rsfile: watch %s: %w", root, err)
	}

	w := &Watcher{bot: bot, root: root, logger: logger, fsw: fsw, done: make(chan struct{})}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !hasExtension(event.Name) {
				continue
			}
			w.bot.Reset()
			if err := LoadDirectory(w.bot, w.root); err != nil {
				w.logger.Printf("rsfile: reload %s after %s: %v", w.root, event, err)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Printf("rsfile: watch error: %v", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watch goroutine and releases the underlying fsnotify
// watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
