package config

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes a config file's directory for writes to path and
// pushes newly validated, reload-eligible Config snapshots onto
// Updates(). Editors that replace a file via rename (vim, many IDEs)
// emit Remove+Create rather than Write against the original inode,
// so the watcher is attached to the parent directory rather than the
// file itself and filters by basename.
type Watcher struct {
	w      *fsnotify.Watcher
	path   string
	base   string
	cur    *Config
	evC    chan *Config
	erC    chan error
	closed chan struct{}
}

// NewWatcher loads path once (the baseline) and begins watching its
// directory for subsequent writes.
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", dir, err)
	}
	cw := &Watcher{
		w:      fw,
		path:   path,
		base:   filepath.Base(path),
		cur:    cfg,
		evC:    make(chan *Config, 1),
		erC:    make(chan error, 1),
		closed: make(chan struct{}),
	}
	go cw.loop()
	return cw, nil
}

// Current returns the most recently accepted Config.
func (cw *Watcher) Current() *Config { return cw.cur }

// Updates streams a validated Config every time path changes to a
// reload-eligible file: same schemaVersion-compatible, same layout and
// process-image list as the previous accepted Config. An incompatible
// edit is reported on Errors() instead and the prior Config stands.
func (cw *Watcher) Updates() <-chan *Config { return cw.evC }

// Errors streams load/validation failures and rejected fixed-field
// changes encountered while watching.
func (cw *Watcher) Errors() <-chan error { return cw.erC }

// Close stops the watcher and releases the underlying fsnotify handle.
func (cw *Watcher) Close() error {
	close(cw.closed)
	return cw.w.Close()
}

func (cw *Watcher) loop() {
	for {
		select {
		case ev, ok := <-cw.w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != cw.base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cw.reload()
		case err, ok := <-cw.w.Errors:
			if !ok {
				return
			}
			cw.erC <- err
		case <-cw.closed:
			return
		}
	}
}

func (cw *Watcher) reload() {
	next, err := Load(cw.path)
	if err != nil {
		cw.erC <- err
		return
	}
	if cw.cur.FixedFieldsChanged(next) {
		cw.erC <- fmt.Errorf("config: %s changed a fixed field, ignoring reload", cw.path)
		return
	}
	cw.cur = next
	cw.evC <- next
}
