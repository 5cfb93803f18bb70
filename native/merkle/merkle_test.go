package merkle

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"testing"
)

func testLeaves(n int) [][32]byte {
	leaves := make([][32]byte, n)
	for i := range leaves {
		secret := []byte(fmt.Sprintf("secret-%d", i))
		leaves[i] = Leaf(uint64(i), sha256.Sum256(secret))
	}
	return leaves
}

func TestLeafEncoding(t *testing.T) {
	secretHash := sha256.Sum256([]byte("preimage"))
	leaf := Leaf(7, secretHash)

	var packed [40]byte
	binary.BigEndian.PutUint64(packed[:8], 7)
	copy(packed[8:], secretHash[:])
	want := sha256.Sum256(packed[:])
	if leaf != want {
		t.Fatalf("leaf mismatch: got %x want %x", leaf, want)
	}
}

func TestHashPairSorted(t *testing.T) {
	a := sha256.Sum256([]byte("a"))
	b := sha256.Sum256([]byte("b"))
	if HashPair(a, b) != HashPair(b, a) {
		t.Fatalf("pair hashing must be order independent")
	}
}

func TestRoundTripAllSizes(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 7, 8, 16, 33} {
		leaves := testLeaves(n)
		tree := NewTree(leaves)
		root := tree.Root()
		for i, leaf := range leaves {
			proof := tree.Proof(i)
			if !Verify(proof, root, leaf) {
				t.Fatalf("n=%d: proof for leaf %d rejected", n, i)
			}
		}
	}
}

func TestCorruptedProofFails(t *testing.T) {
	leaves := testLeaves(8)
	tree := NewTree(leaves)
	root := tree.Root()
	proof := tree.Proof(3)
	if len(proof) == 0 {
		t.Fatalf("expected non-empty proof")
	}
	for i := range proof {
		for bit := 0; bit < 8; bit++ {
			mutated := make([][32]byte, len(proof))
			copy(mutated, proof)
			mutated[i][0] ^= 1 << bit
			if Verify(mutated, root, leaves[3]) {
				t.Fatalf("corrupted proof element %d accepted", i)
			}
		}
	}
}

func TestWrongLeafFails(t *testing.T) {
	leaves := testLeaves(4)
	tree := NewTree(leaves)
	if Verify(tree.Proof(0), tree.Root(), leaves[1]) {
		t.Fatalf("proof for leaf 0 must not verify leaf 1")
	}
}

func TestSingleLeafTree(t *testing.T) {
	leaves := testLeaves(1)
	tree := NewTree(leaves)
	if tree.Root() != leaves[0] {
		t.Fatalf("single-leaf root must equal the leaf")
	}
	if proof := tree.Proof(0); len(proof) != 0 {
		t.Fatalf("single-leaf proof must be empty, got %d elements", len(proof))
	}
	if !Verify(nil, tree.Root(), leaves[0]) {
		t.Fatalf("empty proof must verify the single leaf")
	}
}

func TestProofOutOfRange(t *testing.T) {
	tree := NewTree(testLeaves(4))
	if tree.Proof(4) != nil || tree.Proof(-1) != nil {
		t.Fatalf("out-of-range proof requests must return nil")
	}
}
