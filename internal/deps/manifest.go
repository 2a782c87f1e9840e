package deps

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/fbkclanna/pinroot/internal/failure"
)

// ReadManifest returns the requirements declared by the manifest at rel
// inside buildRoot, in file order.
func ReadManifest(buildRoot, rel string) ([]string, error) {
	path := filepath.Join(buildRoot, rel)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, &failure.MissingPathError{Kind: "dependency manifest", Path: rel, Root: buildRoot}
		}
		return nil, err
	}

	var (
		reqs []string
		err  error
	)
	if filepath.Ext(path) == ".toml" {
		reqs, err = readPyproject(path)
	} else {
		reqs, err = readRequirements(buildRoot, path, map[string]bool{})
	}
	if err != nil {
		return nil, &failure.DependencyInstallError{Manifest: rel, Err: err}
	}
	return reqs, nil
}

func readPyproject(path string) ([]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is inside the build root
	if err != nil {
		return nil, err
	}
	var doc struct {
		Project struct {
			Dependencies []string `toml:"dependencies"`
		} `toml:"project"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	var reqs []string
	for _, r := range doc.Project.Dependencies {
		if r = strings.TrimSpace(r); r != "" {
			reqs = append(reqs, r)
		}
	}
	return reqs, nil
}

func readRequirements(buildRoot, path string, visiting map[string]bool) ([]string, error) {
	if visiting[path] {
		return nil, fmt.Errorf("%s: include cycle", path)
	}
	visiting[path] = true
	defer delete(visiting, path)

	data, err := os.ReadFile(path) //nolint:gosec // path is inside the build root
	if err != nil {
		return nil, err
	}

	lines, err := logicalLines(data)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	var reqs []string
	for n, line := range lines {
		line = stripComment(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "-") {
			reqs = append(reqs, line)
			continue
		}

		include, ok := includeTarget(line)
		if !ok {
			return nil, fmt.Errorf("%s:%d: unsupported option %q", filepath.Base(path), n+1, line)
		}
		target := filepath.Join(filepath.Dir(path), include)
		rel, err := filepath.Rel(buildRoot, target)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("%s:%d: include %q escapes the build root", filepath.Base(path), n+1, include)
		}
		nested, err := readRequirements(buildRoot, target, visiting)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, nested...)
	}
	return reqs, nil
}

// logicalLines joins backslash-continued lines. The scan buffer may grow to
// the whole file, so no line is ever too long to read.
func logicalLines(data []byte) ([]string, error) {
	var (
		lines []string
		cur   strings.Builder
	)
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	for sc.Scan() {
		text := strings.TrimRight(sc.Text(), " \t\r")
		if strings.HasSuffix(text, "\\") {
			cur.WriteString(strings.TrimSuffix(text, "\\"))
			continue
		}
		cur.WriteString(text)
		lines = append(lines, cur.String())
		cur.Reset()
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines, nil
}

// stripComment drops a # comment that starts the line or follows whitespace.
func stripComment(line string) string {
	for i := 0; i < len(line); i++ {
		if line[i] == '#' && (i == 0 || line[i-1] == ' ' || line[i-1] == '\t') {
			line = line[:i]
			break
		}
	}
	return strings.TrimSpace(line)
}

func includeTarget(line string) (string, bool) {
	for _, flag := range []string{"--requirement", "-r"} {
		if !strings.HasPrefix(line, flag) {
			continue
		}
		rest := strings.TrimPrefix(line, flag)
		rest = strings.TrimPrefix(rest, "=")
		rest = strings.TrimSpace(rest)
		if rest == "" {
			return "", false
		}
		return rest, true
	}
	return "", false
}
