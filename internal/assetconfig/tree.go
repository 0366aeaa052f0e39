package assetconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// compiledRule pairs a Rule with its compiled glob and a used flag, tracked
// per-tree so UnusedRules can report config entries that never matched any
// asset in the source tree (a likely typo in the glob pattern).
type compiledRule struct {
	rule   Rule
	glob   *Glob
	origin string // config file path this rule came from, for UnusedRules
	used   bool
}

// node is one directory's entry in the arena-based config tree. Parent is
// an index into Tree.nodes rather than a pointer, so the tree can be built
// and walked without reference cycles or reflection over pointer graphs.
type node struct {
	dir     string // absolute directory path
	parent  int    // index into Tree.nodes, or -1 for the root
	rules   []*compiledRule
}

// Tree is the full config-rule tree for one asset source directory,
// loaded once and queried per-asset thereafter. mu guards the used flags
// mutated by GetAssetConfig.
type Tree struct {
	mu    sync.Mutex
	nodes []*node
	root  string
}

// Load walks rootDir recursively, reading at most one of
// ConfigFilenameJSON/ConfigFilenameJSON5 per directory (both present is an
// error) and compiling its rules relative to that directory.
func Load(rootDir string) (*Tree, error) {
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, err
	}
	t := &Tree{root: abs}
	dirIndex := map[string]int{}

	err = filepath.Walk(abs, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		parentIdx := -1
		if p != abs {
			parentIdx = dirIndex[filepath.Dir(p)]
		}
		n := &node{dir: p, parent: parentIdx}
		idx := len(t.nodes)
		t.nodes = append(t.nodes, n)
		dirIndex[p] = idx

		rules, origin, err := loadDirRules(p)
		if err != nil {
			return err
		}
		for _, r := range rules {
			g, err := CompileGlob(r.Match)
			if err != nil {
				return fmt.Errorf("%s: invalid glob %q: %w", origin, r.Match, err)
			}
			n.rules = append(n.rules, &compiledRule{rule: r, glob: g, origin: origin})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func loadDirRules(dir string) ([]Rule, string, error) {
	jsonPath := filepath.Join(dir, ConfigFilenameJSON)
	json5Path := filepath.Join(dir, ConfigFilenameJSON5)
	_, jsonErr := os.Stat(jsonPath)
	_, json5Err := os.Stat(json5Path)
	hasJSON := jsonErr == nil
	hasJSON5 := json5Err == nil

	if hasJSON && hasJSON5 {
		return nil, "", fmt.Errorf("%s: both %s and %s present", dir, ConfigFilenameJSON, ConfigFilenameJSON5)
	}
	switch {
	case hasJSON:
		data, err := os.ReadFile(jsonPath)
		if err != nil {
			return nil, jsonPath, err
		}
		rules, err := ParseRules(data, false)
		return rules, jsonPath, err
	case hasJSON5:
		data, err := os.ReadFile(json5Path)
		if err != nil {
			return nil, json5Path, err
		}
		rules, err := ParseRules(data, true)
		return rules, json5Path, err
	default:
		return nil, "", nil
	}
}

// chainFor returns the node indices from the tree root down to the
// directory containing assetDir (inclusive), in parent-first order.
func (t *Tree) chainFor(assetDir string) []int {
	idx := -1
	for i, n := range t.nodes {
		if n.dir == assetDir {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil
	}
	var chain []int
	for idx != -1 {
		chain = append(chain, idx)
		idx = t.nodes[idx].parent
	}
	// reverse to parent-first
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// GetAssetConfig resolves the merged configuration applicable to assetPath
// (absolute path to a file under the tree's root). Every ancestor
// directory's rules that match the asset's path (relative to that rule's
// own directory) are folded in parent-first order, so a closer/later rule
// always wins a direct field conflict. Ignore is folded like every other
// field: a rule is never excluded from consideration because an ancestor
// set ignore=true, which is what lets a more specific rule re-include a
// file under an ignored directory.
func (t *Tree) GetAssetConfig(assetPath string) (AssetConfig, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	assetDir := filepath.Dir(assetPath)
	chain := t.chainFor(assetDir)
	if chain == nil {
		return AssetConfig{}, fmt.Errorf("asset path %q not under tree root %q", assetPath, t.root)
	}

	var cfg AssetConfig
	for _, idx := range chain {
		n := t.nodes[idx]
		rel, err := filepath.Rel(n.dir, assetPath)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		for _, cr := range n.rules {
			if cr.glob.Match(rel) {
				cr.used = true
				cfg = Merge(cfg, cr.rule.Config)
			}
		}
	}
	return cfg, nil
}

// UnusedRules returns, for every config file that contributed at least one
// rule, the glob patterns that never matched any asset queried so far via
// GetAssetConfig. Paths are reported relative to the tree root.
func (t *Tree) UnusedRules() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := map[string]bool{}
	var out []string
	for _, n := range t.nodes {
		for _, cr := range n.rules {
			if cr.used {
				continue
			}
			rel, err := filepath.Rel(t.root, cr.origin)
			if err != nil {
				rel = cr.origin
			}
			key := rel + "::" + cr.rule.Match
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, fmt.Sprintf("%s: %s", filepath.ToSlash(rel), cr.rule.Match))
		}
	}
	sort.Strings(out)
	return out
}

// TrimRootPrefix strips the tree's root directory (plus separator) from an
// absolute path, returning a tree-relative, slash-separated asset key.
func (t *Tree) TrimRootPrefix(p string) string {
	rel, err := filepath.Rel(t.root, p)
	if err != nil {
		return p
	}
	return "/" + filepath.ToSlash(strings.TrimPrefix(rel, "./"))
}
