package assetsync

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"canister-assets/internal/assetconfig"
)

// DiscoverSources walks rootDir pre-order, skipping the two reserved
// config filenames and anything the effective configuration marks
// ignore=true, and returns one AssetSource per surviving regular file.
// Hidden dotfiles are skipped unless a rule explicitly sets ignore=false
// for them.
func DiscoverSources(rootDir string, tree *assetconfig.Tree) ([]AssetSource, error) {
	var out []AssetSource
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}
		name := info.Name()
		if name == assetconfig.ConfigFilenameJSON || name == assetconfig.ConfigFilenameJSON5 {
			return nil
		}

		cfg, err := tree.GetAssetConfig(path)
		if err != nil {
			return fmt.Errorf("resolve config for %s: %w", path, err)
		}

		hidden := strings.HasPrefix(name, ".")
		ignored := cfg.Ignore.Kind == assetconfig.Value && cfg.Ignore.Val
		explicitlyIncluded := cfg.Ignore.Kind == assetconfig.Value && !cfg.Ignore.Val
		if ignored {
			return nil
		}
		if hidden && !explicitlyIncluded {
			return nil
		}

		key := tree.TrimRootPrefix(path)
		if !strings.HasPrefix(key, "/") {
			key = "/" + key
		}
		out = append(out, AssetSource{
			Key:         filepath.ToSlash(key),
			AbsPath:     path,
			ContentType: contentTypeFor(name),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	seen := map[string]string{}
	for _, s := range out {
		if prior, ok := seen[s.Key]; ok {
			return nil, fmt.Errorf("duplicate key %q: %s and %s", s.Key, prior, s.AbsPath)
		}
		seen[s.Key] = s.AbsPath
	}
	return out, nil
}

func contentTypeFor(name string) string {
	ext := filepath.Ext(name)
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
