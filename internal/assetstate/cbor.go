package assetstate

import (
	"github.com/fxamacker/cbor/v2"
)

var cborEncMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}

// EncodeWitness renders a hash-tree witness as self-describing CBOR, per
// §9's "Tree is self-describing CBOR" and the `certified_tree` operation.
func EncodeWitness(n Node) ([]byte, error) {
	return cborEncMode.Marshal(n.cbor())
}

// EncodeExprPath renders the v2 certificate's expr_path component: the
// label sequence leading to the "<$>" leaf, CBOR-encoded the same way a
// hash-tree label sequence would be.
func EncodeExprPath(segments []string) ([]byte, error) {
	labels := make([][]byte, len(segments))
	for i, s := range segments {
		labels[i] = []byte(s)
	}
	return cborEncMode.Marshal(labels)
}
