package chain

import (
	"context"
	"strings"
	"testing"

	"github.com/coinmesh/ledgerd/internal/crypto"
)

func mineOn(t *testing.T, prevHash string, txs []*Transaction) *Block {
	t.Helper()
	b, err := Mine(context.Background(), prevHash, txs)
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if b == nil {
		t.Fatal("Mine returned nil with no cancellation")
	}
	return b
}

func TestStoreSingleMinerSingleBlock(t *testing.T) {
	store, err := NewStore()
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	miner, _ := crypto.GenerateKeyPair()
	cb, _ := NewCoinbase(miner.PublicHex)

	block := mineOn(t, store.GenesisHash(), []*Transaction{cb})
	if err := store.Add(block); err != nil {
		t.Fatalf("Add: %v", err)
	}

	tip, tipHash, err := store.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	wantHash, _ := block.Header.Hash()
	if tipHash != wantHash {
		t.Errorf("Resolve tip hash = %s, want %s", tipHash, wantHash)
	}
	if len(tip.Transactions) != 1 {
		t.Fatalf("tip has %d transactions, want 1", len(tip.Transactions))
	}

	balance, err := store.BalanceOnFork(tipHash)
	if err != nil {
		t.Fatalf("BalanceOnFork: %v", err)
	}
	if balance[miner.PublicHex] != Reward {
		t.Errorf("miner balance = %d, want %d", balance[miner.PublicHex], Reward)
	}
}

func TestStoreAddIsIdempotent(t *testing.T) {
	store, _ := NewStore()
	miner, _ := crypto.GenerateKeyPair()
	cb, _ := NewCoinbase(miner.PublicHex)
	block := mineOn(t, store.GenesisHash(), []*Transaction{cb})

	if err := store.Add(block); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if err := store.Add(block); err != nil {
		t.Fatalf("second Add should be a no-op, got error: %v", err)
	}
}

func TestStoreRejectsUnknownParent(t *testing.T) {
	store, _ := NewStore()
	miner, _ := crypto.GenerateKeyPair()
	cb, _ := NewCoinbase(miner.PublicHex)
	orphan := mineOn(t, "ab"+strings.Repeat("00", 31), []*Transaction{cb})

	if err := store.Add(orphan); err == nil {
		t.Error("Add should reject a block with an unknown prev_hash")
	}
}

func TestStoreForkResolutionPrefersLongerChain(t *testing.T) {
	store, _ := NewStore()
	miner, _ := crypto.GenerateKeyPair()

	cb1, _ := NewCoinbase(miner.PublicHex)
	b1 := mineOn(t, store.GenesisHash(), []*Transaction{cb1})
	if err := store.Add(b1); err != nil {
		t.Fatalf("Add b1: %v", err)
	}
	h1, _ := b1.Header.Hash()

	cb2, _ := NewCoinbase(miner.PublicHex)
	b2 := mineOn(t, h1, []*Transaction{cb2})
	if err := store.Add(b2); err != nil {
		t.Fatalf("Add b2: %v", err)
	}
	h2, _ := b2.Header.Hash()

	// A competing single block directly on genesis is shorter and must lose.
	cbFork, _ := NewCoinbase(miner.PublicHex)
	fork := mineOn(t, store.GenesisHash(), []*Transaction{cbFork})
	if err := store.Add(fork); err != nil {
		t.Fatalf("Add fork: %v", err)
	}

	_, tipHash, err := store.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if tipHash != h2 {
		t.Errorf("Resolve chose %s, want the longer chain's tip %s", tipHash, h2)
	}

	// The losing fork's block must still be retained, just not a tip.
	forkHash, _ := fork.Header.Hash()
	if !store.Has(forkHash) {
		t.Error("losing fork block should be retained in the store")
	}
}

func TestStoreRejectsDoubleSpendAcrossFork(t *testing.T) {
	store, _ := NewStore()
	alice, _ := crypto.GenerateKeyPair()
	bob, _ := crypto.GenerateKeyPair()
	carol, _ := crypto.GenerateKeyPair()

	cb, _ := NewCoinbase(alice.PublicHex)
	funding := mineOn(t, store.GenesisHash(), []*Transaction{cb})
	if err := store.Add(funding); err != nil {
		t.Fatalf("Add funding: %v", err)
	}
	fundingHash, _ := funding.Header.Hash()

	spend, err := New(alice.PublicHex, bob.PublicHex, Reward, "", alice.Private)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cb2, _ := NewCoinbase(carol.PublicHex)
	spent := mineOn(t, fundingHash, []*Transaction{cb2, spend})
	if err := store.Add(spent); err != nil {
		t.Fatalf("Add spent: %v", err)
	}

	balance, err := store.BalanceOnFork(mustHash(t, spent))
	if err != nil {
		t.Fatalf("BalanceOnFork: %v", err)
	}
	if balance[alice.PublicHex] != 0 {
		t.Errorf("alice balance after spending = %d, want 0", balance[alice.PublicHex])
	}
	if balance[bob.PublicHex] != Reward {
		t.Errorf("bob balance = %d, want %d", balance[bob.PublicHex], Reward)
	}
}

func mustHash(t *testing.T, b *Block) string {
	t.Helper()
	h, err := b.Header.Hash()
	if err != nil {
		t.Fatalf("Header.Hash: %v", err)
	}
	return h
}
