// Package filesystem implements a computer's in-memory file tree over a
// persist.Backend.
//
// The Tree indexes every Entry by path. All structural changes go through
// the Tree so that, for every live entry other than the root, the parent is
// an indexed directory listing the entry's name.
package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/rs/zerolog"

	"github.com/SquidDev-CC/bedrock/pkg/computer/persist"
)

// Tree is the path index of a computer's filesystem. It is not safe for
// concurrent use.
type Tree struct {
	backend persist.Backend
	entries map[string]*Entry
	logger  zerolog.Logger
}

// Load builds a tree by walking the backend once from the root. A path with
// a saved child list is a directory; any other path is a file whose content
// is loaded on first read. A backend without a root gets a fresh, empty one.
func Load(backend persist.Backend, logger zerolog.Logger) (*Tree, error) {
	t := &Tree{
		backend: backend,
		entries: make(map[string]*Entry),
		logger:  logger,
	}

	queue := []string{Root}
	for len(queue) > 0 {
		path := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		if _, seen := t.entries[path]; seen {
			continue
		}

		children, ok, err := backend.Children(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load /%s: %w", path, err)
		}

		switch {
		case ok:
			if children == nil {
				children = []string{}
			}
			t.entries[path] = newDirectory(backend, path, children)
			for _, child := range children {
				queue = append(queue, Join(path, child))
			}
		case path == Root:
			t.entries[path] = newDirectory(backend, path, []string{})
		default:
			t.entries[path] = newFile(backend, path)
		}
	}

	logger.Debug().Int("entries", len(t.entries)).Msg("loaded filesystem")
	return t, nil
}

// Entry returns the live entry at path.
func (t *Tree) Entry(path string) (*Entry, bool) {
	entry, ok := t.entries[path]
	return entry, ok
}

// Len returns the number of indexed entries, including the root.
func (t *Tree) Len() int {
	return len(t.entries)
}

// List returns the child names of the directory at path.
func (t *Tree) List(path string) ([]string, error) {
	entry, ok := t.entries[path]
	if !ok {
		return nil, newPathError(OpChildren, path, fs.ErrNotExist)
	}
	return entry.Children()
}

// CreateDirectory returns the directory at path, creating it and any missing
// parents as needed. It fails with ErrFileExists if a file is in the way.
func (t *Tree) CreateDirectory(path string) (*Entry, error) {
	if entry, ok := t.entries[path]; ok {
		if entry.IsDirectory() {
			return entry, nil
		}
		return nil, newPathError(OpMkdir, path, ErrFileExists)
	}
	if !validPath(path) {
		return nil, newPathError(OpMkdir, path, fs.ErrInvalid)
	}

	parentPath, name := Split(path)
	parent, err := t.CreateDirectory(parentPath)
	if err != nil {
		return nil, err
	}

	entry, err := Create(t.backend, path, true)
	if err != nil {
		return nil, err
	}
	if err := t.attach(parent, name, entry); err != nil {
		return nil, err
	}

	t.logger.Debug().Str("path", path).Msg("created directory")
	return entry, nil
}

// CreateFile returns the file at path, creating it if needed. Unlike
// CreateDirectory, the parent must already exist and be a directory:
// otherwise it fails with ErrAccessDenied. A directory at path fails with
// ErrCannotWriteDirectory.
func (t *Tree) CreateFile(path string) (*Entry, error) {
	if entry, ok := t.entries[path]; ok {
		if entry.IsDirectory() {
			return nil, newPathError(OpCreate, path, ErrCannotWriteDirectory)
		}
		return entry, nil
	}
	if !validPath(path) {
		return nil, newPathError(OpCreate, path, fs.ErrInvalid)
	}

	parentPath, name := Split(path)
	parent, ok := t.entries[parentPath]
	if !ok || !parent.IsDirectory() {
		return nil, newPathError(OpCreate, path, ErrAccessDenied)
	}

	entry, err := Create(t.backend, path, false)
	if err != nil {
		return nil, err
	}
	if err := t.attach(parent, name, entry); err != nil {
		return nil, err
	}

	t.logger.Debug().Str("path", path).Msg("created file")
	return entry, nil
}

// attach indexes a freshly created entry and lists it in its parent. If the
// parent's listing could not be saved the new entry is dropped again; if it
// was saved and only an observer failed, the entry stays.
func (t *Tree) attach(parent *Entry, name string, entry *Entry) error {
	t.entries[entry.path] = entry

	children := append(parent.children[:len(parent.children):len(parent.children)], name)
	err := parent.SetChildren(children)
	if err == nil || len(parent.children) == len(children) {
		return err
	}

	delete(t.entries, entry.path)
	if delErr := entry.Delete(); delErr != nil {
		t.logger.Warn().Err(delErr).Str("path", entry.path).Msg("failed to discard orphaned entry")
	}
	return err
}

// Delete removes the entry at path and everything beneath it. Missing paths
// are ignored. Deleting the root empties it; the root itself always remains.
//
// Every descendant is unindexed and marked dead even if the backend or an
// observer fails part way through; the failures are joined and returned.
func (t *Tree) Delete(path string) error {
	entry, ok := t.entries[path]
	if !ok {
		return nil
	}

	// A failed save leaves everything as it was. Once the new listing is
	// saved the subtree goes too, even if an observer then fails.
	var queue []string
	var errs []error
	if path == Root {
		for _, child := range entry.children {
			queue = append(queue, Join(Root, child))
		}
		if err := entry.SetChildren([]string{}); err != nil {
			if len(entry.children) != 0 {
				return err
			}
			errs = append(errs, err)
		}
	} else {
		parentPath, name := Split(path)
		parent := t.mustEntry(parentPath)

		remaining := make([]string, 0, len(parent.children))
		for _, child := range parent.children {
			if child != name {
				remaining = append(remaining, child)
			}
		}
		if err := parent.SetChildren(remaining); err != nil {
			if len(parent.children) != len(remaining) {
				return err
			}
			errs = append(errs, err)
		}
		queue = append(queue, path)
	}

	removed := 0
	for len(queue) > 0 {
		current := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		target, ok := t.entries[current]
		if !ok {
			continue
		}

		delete(t.entries, current)
		removed++
		if target.dir {
			for _, child := range target.children {
				queue = append(queue, Join(current, child))
			}
		}
		if err := target.Delete(); err != nil {
			errs = append(errs, err)
		}
	}

	t.logger.Debug().Str("path", path).Int("removed", removed).Msg("deleted entry")
	return errors.Join(errs...)
}

// Walk visits every live entry in tree order: each directory before its
// children, children in listing order. Returning an error stops the walk.
func (t *Tree) Walk(fn func(entry *Entry) error) error {
	queue := []string{Root}
	for len(queue) > 0 {
		path := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		entry, ok := t.entries[path]
		if !ok {
			continue
		}
		if err := fn(entry); err != nil {
			return err
		}
		if entry.dir {
			for i := len(entry.children) - 1; i >= 0; i-- {
				queue = append(queue, Join(path, entry.children[i]))
			}
		}
	}
	return nil
}

// mustEntry returns an entry which the tree invariants guarantee exists.
func (t *Tree) mustEntry(path string) *Entry {
	entry, ok := t.entries[path]
	if !ok {
		panic(fmt.Sprintf("filesystem: /%s missing from index", path))
	}
	return entry
}

// validPath rejects empty, "." and ".." components. The root is handled by
// callers before this is reached.
func validPath(path string) bool {
	if path == Root {
		return false
	}
	for _, part := range strings.Split(path, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}
