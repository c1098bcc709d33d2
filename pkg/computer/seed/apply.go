package seed

import (
	"fmt"

	"github.com/gammazero/toposort"

	"github.com/SquidDev-CC/bedrock/pkg/computer"
	"github.com/SquidDev-CC/bedrock/pkg/computer/filesystem"
)

// Step is one path to create, after merging duplicate entries and adding
// the parent directories the manifest leaves implicit.
type Step struct {
	Path    string
	Dir     bool
	Content *string
}

// Plan returns the steps needed to apply the manifest, in an order where
// every directory comes before its contents and every entry after the
// entries it depends on.
func (m *Manifest) Plan() ([]Step, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	steps := make(map[string]*Step)
	var order []string
	add := func(path string, dir bool) *Step {
		if s, ok := steps[path]; ok {
			return s
		}
		s := &Step{Path: path, Dir: dir}
		steps[path] = s
		order = append(order, path)
		return s
	}

	edges := make([]toposort.Edge, 0)
	for _, entry := range m.Entries {
		s := add(entry.Path, entry.Dir)
		if entry.Content != nil {
			s.Content = entry.Content
		}

		child := entry.Path
		for parent := parentOf(child); parent != filesystem.Root; parent = parentOf(parent) {
			add(parent, true)
			edges = append(edges, toposort.Edge{parent, child})
			child = parent
		}
		for _, dep := range entry.Depends {
			edges = append(edges, toposort.Edge{dep, entry.Path})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCycle, err)
	}

	planned := make([]Step, 0, len(steps))
	seen := make(map[string]bool, len(steps))
	for _, node := range sorted {
		path, ok := node.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected type in topological sort result: %T", node)
		}
		if !seen[path] {
			seen[path] = true
			planned = append(planned, *steps[path])
		}
	}

	// Entries without parents or dependencies never appear in an edge.
	for _, path := range order {
		if !seen[path] {
			seen[path] = true
			planned = append(planned, *steps[path])
		}
	}
	return planned, nil
}

// Apply writes the manifest into session, creating directories, creating
// files and then setting their content. Existing entries are reused and
// files without content in the manifest keep whatever they held.
func Apply(session *computer.Session, manifest *Manifest) error {
	steps, err := manifest.Plan()
	if err != nil {
		return err
	}

	logger := session.Logger()
	for _, s := range steps {
		if s.Dir {
			if _, err := session.CreateDirectory(s.Path); err != nil {
				return err
			}
			logger.Trace().Str("path", s.Path).Msg("seeded directory")
			continue
		}

		parent, _ := filesystem.Split(s.Path)
		if _, err := session.CreateDirectory(parent); err != nil {
			return err
		}
		file, err := session.CreateFile(s.Path)
		if err != nil {
			return err
		}
		if s.Content != nil {
			if err := file.SetContent([]byte(*s.Content)); err != nil {
				return err
			}
		}
		logger.Trace().Str("path", s.Path).Msg("seeded file")
	}

	if manifest.Label != nil {
		if err := session.SetLabel(manifest.Label); err != nil {
			return err
		}
	}

	logger.Debug().Int("entries", len(steps)).Msg("applied seed manifest")
	return nil
}
