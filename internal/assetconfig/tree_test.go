package assetconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"canister-assets/internal/testutil"
)

func writeTree(t *testing.T, sb *testutil.Sandbox, files map[string]string) string {
	t.Helper()
	for name, content := range files {
		full := sb.Path(name)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
	return sb.Root
}

func TestTreeIgnoreReinclusion(t *testing.T) {
	sb, err := testutil.NewSandbox()
	require.NoError(t, err)
	defer sb.Cleanup()

	root := writeTree(t, sb, map[string]string{
		".ic-assets.json":            `[{"match": "private/**/*", "ignore": true}]`,
		"private/.ic-assets.json":    `[{"match": "public.txt", "ignore": false}]`,
		"private/public.txt":         "visible",
		"private/secret.txt":         "hidden",
	})

	tree, err := Load(root)
	require.NoError(t, err)

	cfg, err := tree.GetAssetConfig(filepath.Join(root, "private", "public.txt"))
	require.NoError(t, err)
	require.Equal(t, Value, cfg.Ignore.Kind)
	require.False(t, cfg.Ignore.Val, "descendant rule should re-include the file")

	cfg2, err := tree.GetAssetConfig(filepath.Join(root, "private", "secret.txt"))
	require.NoError(t, err)
	require.True(t, cfg2.Ignore.Val)
}

func TestTreeUnusedRules(t *testing.T) {
	sb, err := testutil.NewSandbox()
	require.NoError(t, err)
	defer sb.Cleanup()

	root := writeTree(t, sb, map[string]string{
		".ic-assets.json": `[{"match": "*.txt", "cache": {"max_age": 60}}, {"match": "*.nomatch", "cache": {"max_age": 1}}]`,
		"a.txt":           "hi",
	})

	tree, err := Load(root)
	require.NoError(t, err)
	_, err = tree.GetAssetConfig(filepath.Join(root, "a.txt"))
	require.NoError(t, err)

	unused := tree.UnusedRules()
	require.Len(t, unused, 1)
	require.Contains(t, unused[0], "*.nomatch")
}

func TestTreeJSON5Comments(t *testing.T) {
	sb, err := testutil.NewSandbox()
	require.NoError(t, err)
	defer sb.Cleanup()

	root := writeTree(t, sb, map[string]string{
		".ic-assets.json5": "[\n  // allow long caching on everything\n  {\"match\": \"*\", \"cache\": {\"max_age\": 3600},},\n]",
		"a.txt":            "hi",
	})

	tree, err := Load(root)
	require.NoError(t, err)
	cfg, err := tree.GetAssetConfig(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, uint64(3600), *cfg.Cache.Val.MaxAge)
}

func TestTreeBothConfigFilesIsError(t *testing.T) {
	sb, err := testutil.NewSandbox()
	require.NoError(t, err)
	defer sb.Cleanup()

	writeTree(t, sb, map[string]string{
		".ic-assets.json":  `[]`,
		".ic-assets.json5": `[]`,
	})

	_, err = Load(sb.Root)
	require.Error(t, err)
}
