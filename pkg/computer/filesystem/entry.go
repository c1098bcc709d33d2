package filesystem

import (
	"errors"
	"fmt"

	"github.com/SquidDev-CC/bedrock/pkg/computer/core"
	"github.com/SquidDev-CC/bedrock/pkg/computer/persist"
)

// Entry is a single file or directory in a computer's filesystem.
//
// Whether an entry is a file or a directory is fixed when it is created. File
// content is fetched from the backend on first read and cached from then on;
// only SetContent replaces the cache.
//
// An entry tracks its own liveness: a reference held across a Delete sees
// Exists() == false and has its writes rejected, even though the tree no
// longer indexes it.
type Entry struct {
	backend persist.Backend
	path    string
	dir     bool

	children []string

	content []byte
	loaded  bool

	alive  bool
	signal *core.Signal
}

func newDirectory(backend persist.Backend, path string, children []string) *Entry {
	return &Entry{backend: backend, path: path, dir: true, children: children, alive: true}
}

func newFile(backend persist.Backend, path string) *Entry {
	return &Entry{backend: backend, path: path, alive: true}
}

// Create makes a new, empty entry and saves it to the backend before
// returning, so the backend never holds an entry whose content is unknown.
func Create(backend persist.Backend, path string, directory bool) (*Entry, error) {
	if directory {
		entry := newDirectory(backend, path, []string{})
		if err := backend.SetChildren(path, entry.children); err != nil {
			return nil, newPathError(OpMkdir, path, err)
		}
		return entry, nil
	}

	entry := newFile(backend, path)
	entry.content, entry.loaded = []byte{}, true
	if err := backend.SetContent(path, entry.content); err != nil {
		return nil, newPathError(OpCreate, path, err)
	}
	return entry, nil
}

// Path returns the entry's location.
func (e *Entry) Path() string {
	return e.path
}

// IsDirectory reports whether this entry is a directory.
func (e *Entry) IsDirectory() bool {
	return e.dir
}

// Exists reports whether the entry is still live.
func (e *Entry) Exists() bool {
	return e.alive
}

// Children returns a copy of a directory's ordered child names.
func (e *Entry) Children() ([]string, error) {
	if !e.dir {
		return nil, newPathError(OpChildren, e.path, ErrNotADirectory)
	}

	children := make([]string, len(e.children))
	copy(children, e.children)
	return children, nil
}

// SetChildren replaces a directory's child list. Observers are signalled
// only once the new list has been saved.
func (e *Entry) SetChildren(names []string) error {
	if !e.dir {
		return newPathError(OpSetChildren, e.path, ErrNotADirectory)
	}
	if !e.alive {
		return newPathError(OpSetChildren, e.path, ErrEntryDeleted)
	}

	children := make([]string, len(names))
	copy(children, names)
	if err := e.backend.SetChildren(e.path, children); err != nil {
		return newPathError(OpSetChildren, e.path, err)
	}

	e.children = children
	return e.notify()
}

// Content returns a copy of a file's bytes, loading them from the backend on
// first access.
func (e *Entry) Content() ([]byte, error) {
	if e.dir {
		return nil, newPathError(OpRead, e.path, ErrNotAFile)
	}

	if !e.loaded {
		content, err := e.backend.Content(e.path)
		if err != nil {
			return nil, newPathError(OpRead, e.path, err)
		}
		if content == nil {
			content = []byte{}
		}
		e.content, e.loaded = content, true
	}

	content := make([]byte, len(e.content))
	copy(content, e.content)
	return content, nil
}

// SetContent replaces a file's bytes. A deleted entry rejects the write
// without touching the backend.
func (e *Entry) SetContent(content []byte) error {
	if e.dir {
		return newPathError(OpWrite, e.path, ErrNotAFile)
	}
	if !e.alive {
		return newPathError(OpWrite, e.path, ErrEntryDeleted)
	}

	stored := make([]byte, len(content))
	copy(stored, content)
	if err := e.backend.SetContent(e.path, stored); err != nil {
		return newPathError(OpWrite, e.path, err)
	}

	e.content, e.loaded = stored, true
	return e.notify()
}

// Delete marks the entry dead and drops its saved form from the backend.
// Observers are signalled even when the backend fails. Deleting an already
// deleted entry does nothing.
func (e *Entry) Delete() error {
	if !e.alive {
		return nil
	}
	e.alive = false

	var err error
	if e.dir {
		err = e.backend.RemoveChildren(e.path)
	} else {
		err = e.backend.RemoveContent(e.path)
	}
	if err != nil {
		err = newPathError(OpDelete, e.path, err)
	}

	return errors.Join(err, e.notify())
}

// Signal returns the signal fired whenever this entry's content or children
// change, or it is deleted. It is created on first use.
func (e *Entry) Signal() *core.Signal {
	if e.signal == nil {
		e.signal = core.NewSignal()
	}
	return e.signal
}

func (e *Entry) notify() error {
	if e.signal == nil {
		return nil
	}
	if err := e.signal.Signal(); err != nil {
		return fmt.Errorf("notifying observers of /%s: %w", e.path, err)
	}
	return nil
}
