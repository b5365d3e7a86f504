// SPDX-License-Identifier: MIT

// Package ioext is a new seam, not present in the original core,
// demonstrating how an out-of-scope external provider would sit on
// top of the public Base contract: it watches a directory tree and
// inserts file contents into a target Base as they appear or change.
//
// Grounded on opal-lang-opal's use of fsnotify for config/file
// watching, and on YaoApp-yao's global/watch.go for the
// recursive-subdirectory-watch pattern (watching a newly created
// directory on a Create event instead of requiring it upfront).
package ioext

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/gaissmai/pathspace"
	"github.com/gaissmai/pathspace/internal/path"
)

// Watcher inserts the contents of files under root into target,
// mounted at mountPath, whenever fsnotify reports a create or write.
type Watcher struct {
	watcher   *fsnotify.Watcher
	target    pathspace.Base
	root      string
	mountPath string

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	watched map[string]struct{}
}

// New constructs a Watcher rooted at root, inserting into target under
// mountPath. It does not start watching until Start is called.
func New(target pathspace.Base, root, mountPath string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, pathspace.NewError(pathspace.MemoryAllocationFailed, root, err.Error())
	}
	return &Watcher{
		watcher:   fw,
		target:    target,
		root:      root,
		mountPath: strings.TrimSuffix(mountPath, "/"),
		stopCh:    make(chan struct{}),
		watched:   make(map[string]struct{}),
	}, nil
}

// Start begins watching root (and every subdirectory discovered under
// it, recursively) and spawns the event-dispatch goroutine.
func (w *Watcher) Start() error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop closes the underlying fsnotify watcher and joins the
// dispatch goroutine.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
	w.wg.Wait()
}

func (w *Watcher) addRecursive(dir string) error {
	w.mu.Lock()
	if _, ok := w.watched[dir]; ok {
		w.mu.Unlock()
		return nil
	}
	w.watched[dir] = struct{}{}
	w.mu.Unlock()

	if err := w.watcher.Add(dir); err != nil {
		return pathspace.NewError(pathspace.MemoryAllocationFailed, dir, err.Error())
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return pathspace.NewError(pathspace.NoSuchPath, dir, err.Error())
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := w.addRecursive(filepath.Join(dir, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("ioext: watcher error")
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	switch {
	case ev.Op&fsnotify.Create != 0:
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(ev.Name); err != nil {
				log.Warn().Err(err).Str("dir", ev.Name).Msg("ioext: failed to watch new directory")
			}
			return
		}
		w.insertFile(ev.Name)
	case ev.Op&fsnotify.Write != 0:
		w.insertFile(ev.Name)
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		log.Debug().Str("path", ev.Name).Msg("ioext: source file removed, stale snapshot left in place")
	}
}

// mountIterator maps an absolute filesystem path under root onto a
// path.Iterator rooted at mountPath, e.g. root=/data, mountPath=/files,
// name=/data/a/b.txt -> "/files/a/b.txt".
func (w *Watcher) mountIterator(name string) path.Iterator {
	rel, err := filepath.Rel(w.root, name)
	if err != nil || rel == "." {
		return path.NewIterator(w.mountPath)
	}
	rel = filepath.ToSlash(rel)
	if w.mountPath == "" {
		return path.NewIterator("/" + rel)
	}
	return path.NewIterator(w.mountPath + "/" + rel)
}

func (w *Watcher) insertFile(name string) {
	contents, err := os.ReadFile(name)
	if err != nil {
		log.Warn().Err(err).Str("path", name).Msg("ioext: failed to read changed file")
		return
	}
	ret := w.target.In(w.mountIterator(name), pathspace.InsertInput{Value: string(contents)})
	if len(ret.Errors) > 0 {
		log.Warn().Errs("errors", ret.Errors).Str("path", name).Msg("ioext: insert failed")
	}
}
