package chain

import (
	"context"
	"testing"

	"github.com/coinmesh/ledgerd/internal/crypto"
	"github.com/coinmesh/ledgerd/internal/merkle"
)

func TestGenesisIsGenesis(t *testing.T) {
	g := Genesis()
	if !g.IsGenesis() {
		t.Error("Genesis() should report IsGenesis")
	}
}

func TestMineProducesValidBlock(t *testing.T) {
	miner, _ := crypto.GenerateKeyPair()
	cb, err := NewCoinbase(miner.PublicHex)
	if err != nil {
		t.Fatalf("NewCoinbase: %v", err)
	}

	genesisHash, err := Genesis().Header.Hash()
	if err != nil {
		t.Fatalf("Header.Hash: %v", err)
	}

	block, err := Mine(context.Background(), genesisHash, []*Transaction{cb})
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if block == nil {
		t.Fatal("Mine returned nil block with no cancellation")
	}
	if err := block.Validate(); err != nil {
		t.Fatalf("mined block failed Validate: %v", err)
	}

	meets, err := block.Header.MeetsTarget()
	if err != nil {
		t.Fatalf("MeetsTarget: %v", err)
	}
	if !meets {
		t.Error("mined block header does not meet target")
	}
}

func TestMineCancellation(t *testing.T) {
	miner, _ := crypto.GenerateKeyPair()
	cb, _ := NewCoinbase(miner.PublicHex)
	genesisHash, _ := Genesis().Header.Hash()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	block, err := Mine(ctx, genesisHash, []*Transaction{cb})
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if block != nil {
		t.Error("Mine should return nil block when cancelled before any attempt succeeds")
	}
}

func TestBlockTransactionProofRoundTrip(t *testing.T) {
	miner, _ := crypto.GenerateKeyPair()
	alice, _ := crypto.GenerateKeyPair()
	cb, _ := NewCoinbase(miner.PublicHex)
	tx, err := New(miner.PublicHex, alice.PublicHex, 5, "", miner.Private)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	genesisHash, _ := Genesis().Header.Hash()

	block, err := Mine(context.Background(), genesisHash, []*Transaction{cb, tx})
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}

	txHash, err := tx.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	proof, err := block.TransactionProof(txHash)
	if err != nil {
		t.Fatalf("TransactionProof: %v", err)
	}

	j, err := tx.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if !merkle.VerifyProof(j, proof, block.Header.MerkleRoot) {
		t.Error("proof did not verify against the block's merkle root")
	}
}
