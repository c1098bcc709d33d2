// Package persist provides the durable stores a computer saves its label and
// filesystem to.
//
// A Backend is not the canonical source of file information: the session's
// in-memory tree is. The backend is where the tree is finally saved, and where
// it is read back from when a session is reopened.
package persist

// Backend stores a computer's label, file contents and directory listings,
// keyed by path. Paths use "/" as separator and "" is the root directory.
//
// Calls are synchronous: a write returns only once it has succeeded or failed.
type Backend interface {
	// Label returns the stored label, or nil if none is set.
	Label() (*string, error)
	// SetLabel stores the label. A nil label clears it.
	SetLabel(label *string) error

	// Content returns the bytes stored for a file. Unknown paths yield an
	// empty slice.
	Content(path string) ([]byte, error)
	// SetContent replaces the bytes stored for a file.
	SetContent(path string, content []byte) error
	// RemoveContent drops a file's bytes. Unknown paths are ignored.
	RemoveContent(path string) error

	// Children returns the ordered child names of a directory. ok is false
	// when the path is not a known directory.
	Children(path string) (children []string, ok bool, err error)
	// SetChildren replaces a directory's child list.
	SetChildren(path string, children []string) error
	// RemoveChildren drops a directory's child list. Unknown paths are ignored.
	RemoveChildren(path string) error
}

// Void is a Backend which saves nothing, for temporary file systems.
type Void struct{}

var _ Backend = Void{}

func (Void) Label() (*string, error) { return nil, nil }
func (Void) SetLabel(*string) error { return nil }
func (Void) Content(string) ([]byte, error) { return []byte{}, nil }
func (Void) SetContent(string, []byte) error { return nil }
func (Void) RemoveContent(string) error { return nil }
func (Void) Children(string) ([]string, bool, error) { return nil, false, nil }
func (Void) SetChildren(string, []string) error { return nil }
func (Void) RemoveChildren(string) error { return nil }

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneNames(names []string) []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

func cloneLabel(label *string) *string {
	if label == nil {
		return nil
	}
	value := *label
	return &value
}
