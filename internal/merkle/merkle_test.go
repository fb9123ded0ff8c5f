package merkle

import "testing"

func TestSingleLeafRootIsLeafHash(t *testing.T) {
	tr, err := New([]string{"a"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	proof, err := tr.Proof("a")
	if err != nil {
		t.Fatalf("Proof: %v", err)
	}
	if len(proof) != 0 {
		t.Errorf("single-leaf proof should be empty, got %d steps", len(proof))
	}
	if !VerifyProof("a", proof, tr.Root()) {
		t.Error("VerifyProof failed for single-leaf tree")
	}
}

func TestProofRoundTripEvenLeaves(t *testing.T) {
	leaves := []string{"a", "b", "c", "d"}
	tr, err := New(leaves)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, leaf := range leaves {
		proof, err := tr.Proof(leaf)
		if err != nil {
			t.Fatalf("Proof(%s): %v", leaf, err)
		}
		if !VerifyProof(leaf, proof, tr.Root()) {
			t.Errorf("VerifyProof failed for leaf %s", leaf)
		}
	}
}

func TestProofRoundTripOddLeaves(t *testing.T) {
	leaves := []string{"a", "b", "c", "d", "e"}
	tr, err := New(leaves)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, leaf := range leaves {
		proof, err := tr.Proof(leaf)
		if err != nil {
			t.Fatalf("Proof(%s): %v", leaf, err)
		}
		if !VerifyProof(leaf, proof, tr.Root()) {
			t.Errorf("VerifyProof failed for leaf %s", leaf)
		}
	}
}

func TestVerifyProofRejectsWrongRoot(t *testing.T) {
	tr, _ := New([]string{"a", "b", "c"})
	proof, _ := tr.Proof("a")
	if VerifyProof("a", proof, "not-the-real-root") {
		t.Error("VerifyProof accepted a mismatched root")
	}
}

func TestVerifyProofRejectsTamperedLeaf(t *testing.T) {
	tr, _ := New([]string{"a", "b", "c", "d"})
	proof, _ := tr.Proof("a")
	if VerifyProof("tampered", proof, tr.Root()) {
		t.Error("VerifyProof accepted a different leaf value with the same proof")
	}
}

func TestProofUnknownLeaf(t *testing.T) {
	tr, _ := New([]string{"a", "b"})
	if _, err := tr.Proof("z"); err == nil {
		t.Error("Proof should fail for a leaf not in the tree")
	}
}

func TestDifferentOrderingsDifferentRoots(t *testing.T) {
	tr1, _ := New([]string{"a", "b", "c"})
	tr2, _ := New([]string{"c", "b", "a"})
	if tr1.Root() == tr2.Root() {
		t.Error("reordering leaves should change the root")
	}
}
