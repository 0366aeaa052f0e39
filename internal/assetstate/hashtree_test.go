package assetstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrieWitnessPreservesRootHash(t *testing.T) {
	tr := NewTrie()
	tr.Set([]string{"http_assets", "/a.html"}, []byte{1, 2, 3})
	tr.Set([]string{"http_assets", "/b.html"}, []byte{4, 5, 6})
	tr.Set([]string{"http_expr", "c.html", "<$>", "aa", "bb"}, []byte{})

	full := tr.RootHash()
	witness := tr.Witness([]string{"http_assets", "/a.html"})
	assert.Equal(t, full, witness.hash())
}

func TestTrieDeleteRemovesLeaf(t *testing.T) {
	tr := NewTrie()
	tr.Set([]string{"http_assets", "/a.html"}, []byte{1})
	before := tr.RootHash()
	tr.Delete([]string{"http_assets", "/a.html"})
	after := tr.RootHash()
	assert.NotEqual(t, before, after)
}

func TestEncodeWitnessCBORRoundTripsShape(t *testing.T) {
	tr := NewTrie()
	tr.Set([]string{"http_assets", "/a.html"}, []byte{9, 9})
	witness := tr.Witness([]string{"http_assets", "/a.html"})
	data, err := EncodeWitness(witness)
	require.NoError(t, err)
	require.NotEmpty(t, data)
}
