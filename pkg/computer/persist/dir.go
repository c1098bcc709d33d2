package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const (
	dirFiles = "files"
	dirTree  = "tree.json"
	dirLabel = "label"
)

// Dir is a Backend rooted at a host directory:
//
//	<root>/label      the label, absent when unset
//	<root>/tree.json  ordered child lists, keyed by directory path
//	<root>/files/...  file contents, mirroring the virtual paths
//
// Child order is significant, so listings live in tree.json rather than being
// read back from the host filesystem. Dir is safe for concurrent use.
type Dir struct {
	root string

	mu   sync.Mutex
	tree map[string][]string
}

var _ Backend = (*Dir)(nil)

// NewDir opens (creating if needed) a directory backend at root.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(filepath.Join(root, dirFiles), 0755); err != nil {
		return nil, fmt.Errorf("failed to create backend directory %s: %w", root, err)
	}

	d := &Dir{root: root, tree: make(map[string][]string)}

	data, err := os.ReadFile(filepath.Join(root, dirTree))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read directory index: %w", err)
	case len(data) > 0:
		if err := json.Unmarshal(data, &d.tree); err != nil {
			return nil, fmt.Errorf("failed to parse directory index: %w", err)
		}
	}

	return d, nil
}

// Root returns the host directory backing this store.
func (d *Dir) Root() string {
	return d.root
}

func (d *Dir) Label() (*string, error) {
	data, err := os.ReadFile(filepath.Join(d.root, dirLabel))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read label: %w", err)
	}
	label := string(data)
	return &label, nil
}

func (d *Dir) SetLabel(label *string) error {
	path := filepath.Join(d.root, dirLabel)
	if label == nil {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to clear label: %w", err)
		}
		return nil
	}
	return writeAtomic(path, []byte(*label))
}

func (d *Dir) Content(path string) ([]byte, error) {
	full, err := d.filePath("read", path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return []byte{}, nil
	} else if err != nil {
		return nil, err
	}
	return data, nil
}

func (d *Dir) SetContent(path string, content []byte) error {
	full, err := d.filePath("write", path)
	if err != nil {
		return err
	}

	// An emptied host directory may still sit where a virtual file now lives.
	if info, err := os.Stat(full); err == nil && info.IsDir() {
		if err := os.Remove(full); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}
	return os.WriteFile(full, content, 0644)
}

func (d *Dir) RemoveContent(path string) error {
	full, err := d.filePath("remove", path)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	d.pruneEmpty(filepath.Dir(full))
	return nil
}

func (d *Dir) Children(path string) ([]string, bool, error) {
	if !validPath(path) {
		return nil, false, &fs.PathError{Op: "children", Path: path, Err: fs.ErrInvalid}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	children, ok := d.tree[path]
	if !ok {
		return nil, false, nil
	}
	return cloneNames(children), true, nil
}

func (d *Dir) SetChildren(path string, children []string) error {
	if !validPath(path) {
		return &fs.PathError{Op: "setchildren", Path: path, Err: fs.ErrInvalid}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	previous, existed := d.tree[path]
	d.tree[path] = cloneNames(children)
	if err := d.saveTree(); err != nil {
		if existed {
			d.tree[path] = previous
		} else {
			delete(d.tree, path)
		}
		return err
	}
	return nil
}

func (d *Dir) RemoveChildren(path string) error {
	if !validPath(path) {
		return &fs.PathError{Op: "removechildren", Path: path, Err: fs.ErrInvalid}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	previous, existed := d.tree[path]
	if !existed {
		return nil
	}
	delete(d.tree, path)
	if err := d.saveTree(); err != nil {
		d.tree[path] = previous
		return err
	}
	return nil
}

// saveTree writes the directory index. Callers hold d.mu.
func (d *Dir) saveTree() error {
	data, err := json.MarshalIndent(d.tree, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal directory index: %w", err)
	}
	return writeAtomic(filepath.Join(d.root, dirTree), data)
}

func (d *Dir) filePath(op, path string) (string, error) {
	if !fs.ValidPath(path) || path == "." {
		return "", &fs.PathError{Op: op, Path: path, Err: fs.ErrInvalid}
	}
	return filepath.Join(d.root, dirFiles, filepath.FromSlash(path)), nil
}

// pruneEmpty removes empty host directories from dir up to the files root.
func (d *Dir) pruneEmpty(dir string) {
	stop := filepath.Join(d.root, dirFiles)
	for dir != stop && len(dir) > len(stop) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// validPath accepts the root ("") and any path fs.ValidPath accepts.
func validPath(path string) bool {
	return path == "" || (path != "." && fs.ValidPath(path))
}

// writeAtomic replaces path with data via a temporary file and rename.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
