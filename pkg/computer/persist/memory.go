package persist

import "sync"

// Memory is a map-backed Backend. It outlives any one session, so a session
// reopened over the same Memory sees everything the previous one saved.
//
// Values are copied on the way in and out. Memory is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	label    *string
	contents map[string][]byte
	children map[string][]string
}

var _ Backend = (*Memory)(nil)

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		contents: make(map[string][]byte),
		children: make(map[string][]string),
	}
}

func (m *Memory) Label() (*string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneLabel(m.label), nil
}

func (m *Memory) SetLabel(label *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.label = cloneLabel(label)
	return nil
}

func (m *Memory) Content(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneBytes(m.contents[path]), nil
}

func (m *Memory) SetContent(path string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contents[path] = cloneBytes(content)
	return nil
}

func (m *Memory) RemoveContent(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.contents, path)
	return nil
}

func (m *Memory) Children(path string) ([]string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	children, ok := m.children[path]
	if !ok {
		return nil, false, nil
	}
	return cloneNames(children), true, nil
}

func (m *Memory) SetChildren(path string, children []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.children[path] = cloneNames(children)
	return nil
}

func (m *Memory) RemoveChildren(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.children, path)
	return nil
}

// HasContent reports whether bytes are stored for path.
func (m *Memory) HasContent(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.contents[path]
	return ok
}
