package seed_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SquidDev-CC/bedrock/pkg/computer"
	"github.com/SquidDev-CC/bedrock/pkg/computer/persist"
	"github.com/SquidDev-CC/bedrock/pkg/computer/seed"
)

const romManifest = `
label: rom
entries:
  - path: rom/programs/hello.lua
    content: |
      print("Hello, world!")
  - path: startup.lua
    content: shell.run("hello")
    depends: [rom/programs/hello.lua]
  - path: home
    dir: true
  - path: rom/apis/empty.lua
`

func indexOf(steps []seed.Step, path string) int {
	for i, s := range steps {
		if s.Path == path {
			return i
		}
	}
	return -1
}

func TestParse(t *testing.T) {
	manifest, err := seed.Parse([]byte(romManifest))
	require.NoError(t, err)

	require.NotNil(t, manifest.Label)
	assert.Equal(t, "rom", *manifest.Label)
	require.Len(t, manifest.Entries, 4)
	assert.Equal(t, "print(\"Hello, world!\")\n", *manifest.Entries[0].Content)
	assert.Equal(t, []string{"rom/programs/hello.lua"}, manifest.Entries[1].Depends)
	assert.True(t, manifest.Entries[2].Dir)
	assert.Nil(t, manifest.Entries[3].Content)
}

func TestParseEmpty(t *testing.T) {
	manifest, err := seed.Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, manifest.Entries)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := seed.Parse([]byte("entries:\n  - path: a\n    mode: 0644\n"))
	assert.Error(t, err)
}

func TestParseJSONC(t *testing.T) {
	manifest, err := seed.ParseJSONC([]byte(`{
		// installed on every new computer
		"label": "rom",
		"entries": [
			{"path": "startup.lua", "content": "print(1)"}, /* trailing comma next */
		],
	}`))
	require.NoError(t, err)
	assert.Equal(t, "rom", *manifest.Label)
	require.Len(t, manifest.Entries, 1)
	assert.Equal(t, "print(1)", *manifest.Entries[0].Content)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "seed.yaml")
	jsonPath := filepath.Join(dir, "seed.jsonc")
	require.NoError(t, os.WriteFile(yamlPath, []byte("entries:\n  - path: a.lua\n"), 0o644))
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"entries": [{"path": "b.lua"}, ]}`), 0o644))

	manifest, err := seed.ReadFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "a.lua", manifest.Entries[0].Path)

	manifest, err = seed.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "b.lua", manifest.Entries[0].Path)

	_, err = seed.ReadFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	content := "x"
	testCases := []struct {
		name    string
		entries []seed.Entry
		want    error
	}{
		{"Empty path", []seed.Entry{{Path: ""}}, seed.ErrInvalidEntry},
		{"Leading slash", []seed.Entry{{Path: "/a"}}, seed.ErrInvalidEntry},
		{"Dot-dot", []seed.Entry{{Path: "a/../b"}}, seed.ErrInvalidEntry},
		{"Directory with content", []seed.Entry{{Path: "a", Dir: true, Content: &content}}, seed.ErrInvalidEntry},
		{"Unknown dependency", []seed.Entry{{Path: "a", Depends: []string{"b"}}}, seed.ErrInvalidEntry},
		{"File and directory", []seed.Entry{{Path: "a"}, {Path: "a", Dir: true}}, seed.ErrConflict},
		{"File used as a parent", []seed.Entry{{Path: "a"}, {Path: "a/b"}}, seed.ErrConflict},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			manifest := seed.Manifest{Entries: tc.entries}
			assert.ErrorIs(t, manifest.Validate(), tc.want)
		})
	}

	ok := seed.Manifest{Entries: []seed.Entry{{Path: "a", Dir: true}, {Path: "a", Dir: true}, {Path: "a/b"}}}
	assert.NoError(t, ok.Validate())
}

func TestPlan(t *testing.T) {
	manifest, err := seed.Parse([]byte(romManifest))
	require.NoError(t, err)

	steps, err := manifest.Plan()
	require.NoError(t, err)

	paths := make([]string, len(steps))
	for i, s := range steps {
		paths[i] = s.Path
	}
	assert.ElementsMatch(t, []string{
		"rom", "rom/programs", "rom/programs/hello.lua", "rom/apis", "rom/apis/empty.lua", "startup.lua", "home",
	}, paths)

	before := func(a, b string) {
		t.Helper()
		assert.Less(t, indexOf(steps, a), indexOf(steps, b), "%s before %s", a, b)
	}
	before("rom", "rom/programs")
	before("rom/programs", "rom/programs/hello.lua")
	before("rom", "rom/apis")
	before("rom/apis", "rom/apis/empty.lua")
	before("rom/programs/hello.lua", "startup.lua")

	assert.True(t, steps[indexOf(steps, "rom/apis")].Dir, "implied parents are directories")
}

func TestPlanMergesDuplicates(t *testing.T) {
	first, second := "one", "two"
	manifest := seed.Manifest{Entries: []seed.Entry{
		{Path: "a.lua", Content: &first},
		{Path: "a.lua", Content: &second},
		{Path: "a.lua"},
	}}

	steps, err := manifest.Plan()
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "two", *steps[0].Content)
}

func TestPlanRejectsCycles(t *testing.T) {
	manifest := seed.Manifest{Entries: []seed.Entry{
		{Path: "a", Depends: []string{"b"}},
		{Path: "b", Depends: []string{"a"}},
	}}

	_, err := manifest.Plan()
	assert.ErrorIs(t, err, seed.ErrCycle)
}

func TestApply(t *testing.T) {
	backend := persist.NewMemory()
	session, err := computer.New(backend)
	require.NoError(t, err)

	manifest, err := seed.Parse([]byte(romManifest))
	require.NoError(t, err)
	require.NoError(t, seed.Apply(session, manifest))

	assert.Equal(t, "rom", *session.Label())

	hello, ok := session.Entry("rom/programs/hello.lua")
	require.True(t, ok)
	content, err := hello.Content()
	require.NoError(t, err)
	assert.Equal(t, "print(\"Hello, world!\")\n", string(content))

	home, ok := session.Entry("home")
	require.True(t, ok)
	assert.True(t, home.IsDirectory())

	empty, ok := session.Entry("rom/apis/empty.lua")
	require.True(t, ok)
	content, err = empty.Content()
	require.NoError(t, err)
	assert.Empty(t, content)

	// Applying again is harmless, and a reopened session sees the result.
	require.NoError(t, seed.Apply(session, manifest))
	reopened, err := computer.New(backend)
	require.NoError(t, err)
	children, err := reopened.Filesystem().List("rom")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"programs", "apis"}, children)
}

func TestApplyKeepsExistingContent(t *testing.T) {
	session, err := computer.New(persist.NewMemory())
	require.NoError(t, err)

	file, err := session.CreateFile("notes.txt")
	require.NoError(t, err)
	require.NoError(t, file.SetContent([]byte("mine")))

	manifest := &seed.Manifest{Entries: []seed.Entry{{Path: "notes.txt"}}}
	require.NoError(t, seed.Apply(session, manifest))

	content, err := file.Content()
	require.NoError(t, err)
	assert.Equal(t, "mine", string(content))
}

func TestApplyFailsOnExistingConflict(t *testing.T) {
	session, err := computer.New(persist.Void{})
	require.NoError(t, err)
	_, err = session.CreateDirectory("startup.lua")
	require.NoError(t, err)

	manifest := &seed.Manifest{Entries: []seed.Entry{{Path: "startup.lua"}}}
	assert.Error(t, seed.Apply(session, manifest))
}

func TestParseJSONCRejectsUnknownFields(t *testing.T) {
	_, err := seed.ParseJSONC([]byte(`{"entries": [{"path": "a", "mode": 420}]}`))
	assert.Error(t, err)
}
