package testutil

import (
	"path/filepath"
	"testing"
)

// Upstream is a pair of coupled repositories: an outer repository that
// references an inner repository as a submodule at InnerPath, and an
// unrelated submodule at UnusedPath that provisioning must never initialize.
type Upstream struct {
	Outer      string // bare outer repository
	Inner      string // bare inner repository
	InnerPath  string
	UnusedPath string

	// OuterCommits are outer commits, oldest first.
	OuterCommits []string
	// InnerCommits are inner commits, oldest first. The outer repository's
	// gitlink points at InnerCommits[0].
	InnerCommits []string
}

// CreateUpstream builds the fixture described on Upstream.
//
// Outer layout at OuterCommits[0]:
//
//	SConstruct
//	src/main.c
//	src/overlay/upstream.c
//	tools/build.py
//	tools/requirements.txt
//	tools/nested        (submodule -> Inner)
//	docs/guide.md
//	third_party/unused  (submodule, never initialized)
//
// OuterCommits[1] changes src/main.c only.
func CreateUpstream(t *testing.T) *Upstream {
	t.Helper()
	u := &Upstream{InnerPath: "tools/nested", UnusedPath: "third_party/unused"}

	inner := NewWorkRepo(t)
	WriteFiles(t, inner, map[string]string{
		"dbc/gateway.dbc": "BO_ 100 GATEWAY: 8 XXX\n",
		"parser.py":       "VERSION = 1\n",
	})
	u.InnerCommits = append(u.InnerCommits, Commit(t, inner, "inner v1"))
	WriteFiles(t, inner, map[string]string{
		"parser.py":     "VERSION = 2\n",
		"dbc/extra.dbc": "BO_ 200 EXTRA: 8 XXX\n",
	})
	u.InnerCommits = append(u.InnerCommits, Commit(t, inner, "inner v2"))
	u.Inner = CloneBare(t, inner)

	unused := CreateBareRepo(t)

	outer := NewWorkRepo(t)
	WriteFiles(t, outer, map[string]string{
		"SConstruct":             "env = Environment()\n",
		"src/main.c":             "int main(void) { return 0; }\n",
		"src/overlay/upstream.c": "/* upstream overlay */\n",
		"tools/build.py":         "print('build')\n",
		"tools/requirements.txt": "# runtime\nnumpy==1.26.4\n\npycryptodome>=3.9 ; python_version >= \"3.8\"\n",
		"docs/guide.md":          "# guide\n",
	})
	Git(t, outer, "submodule", "add", u.Inner, u.InnerPath)
	Git(t, filepath.Join(outer, u.InnerPath), "checkout", "--detach", u.InnerCommits[0])
	Git(t, outer, "submodule", "add", unused, u.UnusedPath)
	u.OuterCommits = append(u.OuterCommits, Commit(t, outer, "outer v1"))

	WriteFiles(t, outer, map[string]string{"src/main.c": "int main(void) { return 1; }\n"})
	u.OuterCommits = append(u.OuterCommits, Commit(t, outer, "outer v2"))

	u.Outer = CloneBare(t, outer)
	return u
}
