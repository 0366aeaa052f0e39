package assetconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func maxAge(v uint64) Maybe[CacheConfig] {
	return Some(CacheConfig{MaxAge: &v})
}

func TestMergeScalarChildOverwritesParent(t *testing.T) {
	parent := AssetConfig{Cache: maxAge(100)}
	child := AssetConfig{Cache: maxAge(5)}
	merged := Merge(parent, child)
	assert.Equal(t, uint64(5), *merged.Cache.Val.MaxAge)
}

func TestMergeDisjointFieldsCommute(t *testing.T) {
	parent := AssetConfig{Cache: maxAge(100)}
	child := AssetConfig{Ignore: Some(true)}
	a := Merge(parent, child)
	b := Merge(child, parent) // not commutative in general, but disjoint fields still both present
	assert.Equal(t, uint64(100), *a.Cache.Val.MaxAge)
	assert.True(t, a.Ignore.Val)
	assert.Equal(t, uint64(100), *b.Cache.Val.MaxAge)
	assert.True(t, b.Ignore.Val)
}

func TestMergeHeadersExtend(t *testing.T) {
	parent := AssetConfig{Headers: Some(map[string]string{"X-A": "1"})}
	child := AssetConfig{Headers: Some(map[string]string{"X-B": "2"})}
	merged := Merge(parent, child)
	assert.Equal(t, "1", merged.Headers.Val["X-A"])
	assert.Equal(t, "2", merged.Headers.Val["X-B"])
}

func TestMergeHeadersNullClears(t *testing.T) {
	parent := AssetConfig{Headers: Some(map[string]string{"X-A": "1"})}
	child := AssetConfig{Headers: Maybe[map[string]string]{Kind: Null}}
	merged := Merge(parent, child)
	assert.True(t, merged.Headers.IsNull())
	assert.Empty(t, merged.Headers.Val)
}

func TestMergeHeadersAbsentInherits(t *testing.T) {
	parent := AssetConfig{Headers: Some(map[string]string{"X-A": "1"})}
	child := AssetConfig{}
	merged := Merge(parent, child)
	assert.Equal(t, "1", merged.Headers.Val["X-A"])
}

func TestMergeHeadersCaseInsensitivePrecedence(t *testing.T) {
	parent := AssetConfig{Headers: Some(map[string]string{"content-type": "text/plain"})}
	child := AssetConfig{Headers: Some(map[string]string{"Content-Type": "application/json"})}
	merged := Merge(parent, child)
	assert.Len(t, merged.Headers.Val, 1)
	assert.Equal(t, "application/json", merged.Headers.Val["Content-Type"])
}

func TestResolvedDefaults(t *testing.T) {
	var c AssetConfig
	assert.True(t, c.ResolvedAllowRawAccess())
	assert.True(t, c.ResolvedEnableAliasing())

	c.AllowRawAccess = Some(false)
	c.EnableAliasing = Some(false)
	assert.False(t, c.ResolvedAllowRawAccess())
	assert.False(t, c.ResolvedEnableAliasing())
}

func TestCombinedHeadersCustomWinsOverPolicy(t *testing.T) {
	c := AssetConfig{
		SecurityPolicy: Some(SecurityPolicyStandard),
		Headers:        Some(map[string]string{"X-Frame-Options": "SAMEORIGIN"}),
	}
	combined := c.CombinedHeaders(false)
	assert.Equal(t, "SAMEORIGIN", combined["X-Frame-Options"])
	assert.Equal(t, "nosniff", combined["X-Content-Type-Options"])
}

func TestCombinedHeadersInsecureDevModeSkipsPolicy(t *testing.T) {
	c := AssetConfig{
		SecurityPolicy: Some(SecurityPolicyHardened),
		Headers:        Some(map[string]string{"X-Custom": "1"}),
	}
	combined := c.CombinedHeaders(true)
	assert.Equal(t, map[string]string{"X-Custom": "1"}, combined)
}

func TestGlobAnchoring(t *testing.T) {
	star, err := CompileGlob("*")
	assert.NoError(t, err)
	assert.True(t, star.Match("a.txt"))
	assert.False(t, star.Match("sub/a.txt"))

	doubleStar, err := CompileGlob("**/*.js")
	assert.NoError(t, err)
	assert.True(t, doubleStar.Match("app.js"))
	assert.True(t, doubleStar.Match("deep/nested/app.js"))
	assert.False(t, doubleStar.Match("deep/nested/app.css"))
}
