package chain

import (
	"testing"

	"github.com/coinmesh/ledgerd/internal/crypto"
)

func TestNewTransactionSignsAndVerifies(t *testing.T) {
	sender, _ := crypto.GenerateKeyPair()
	receiver, _ := crypto.GenerateKeyPair()

	tx, err := New(sender.PublicHex, receiver.PublicHex, 10, "payment", sender.Private)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := tx.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !tx.VerifySignature() {
		t.Error("VerifySignature rejected a freshly signed transaction")
	}
}

func TestSignTwiceFails(t *testing.T) {
	sender, _ := crypto.GenerateKeyPair()
	receiver, _ := crypto.GenerateKeyPair()
	tx, err := New(sender.PublicHex, receiver.PublicHex, 10, "", sender.Private)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := tx.Sign(sender.Private); err == nil {
		t.Error("Sign should fail on an already-signed transaction")
	}
}

func TestVerifySignatureRejectsTamperedAmount(t *testing.T) {
	sender, _ := crypto.GenerateKeyPair()
	receiver, _ := crypto.GenerateKeyPair()
	tx, _ := New(sender.PublicHex, receiver.PublicHex, 10, "", sender.Private)

	tx.Amount = 1000
	if tx.VerifySignature() {
		t.Error("VerifySignature accepted a transaction with a tampered amount")
	}
}

func TestValidateRejectsNonPositiveAmount(t *testing.T) {
	sender, _ := crypto.GenerateKeyPair()
	receiver, _ := crypto.GenerateKeyPair()
	tx, _ := New(sender.PublicHex, receiver.PublicHex, 1, "", sender.Private)
	tx.Amount = 0
	if err := tx.Validate(); err == nil {
		t.Error("Validate should reject a zero amount")
	}
}

func TestEqualByJSON(t *testing.T) {
	sender, _ := crypto.GenerateKeyPair()
	receiver, _ := crypto.GenerateKeyPair()
	tx, _ := New(sender.PublicHex, receiver.PublicHex, 5, "note", sender.Private)

	j, err := tx.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	roundTripped, err := FromJSON(j)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if !tx.Equal(roundTripped) {
		t.Error("a round-tripped transaction should equal the original")
	}
}

func TestCoinbaseUnsigned(t *testing.T) {
	miner, _ := crypto.GenerateKeyPair()
	cb, err := NewCoinbase(miner.PublicHex)
	if err != nil {
		t.Fatalf("NewCoinbase: %v", err)
	}
	if cb.Sender != cb.Receiver {
		t.Error("coinbase sender and receiver must match")
	}
	if cb.Amount != Reward {
		t.Errorf("coinbase amount = %d, want %d", cb.Amount, Reward)
	}
	if cb.Signature != "" {
		t.Error("coinbase should be unsigned")
	}
}
