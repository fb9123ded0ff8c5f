package adversary

import (
	"testing"

	"go.uber.org/zap"

	"github.com/coinmesh/ledgerd/internal/crypto"
	"github.com/coinmesh/ledgerd/internal/netnode"
)

func newTestVendor(t *testing.T) *Vendor {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	v, err := NewVendor(kp.Private, kp.PublicHex, netnode.NewPeers(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewVendor: %v", err)
	}
	return v
}

func TestVendorSendProductFailsWithoutPeers(t *testing.T) {
	v := newTestVendor(t)
	shipped, err := v.SendProduct("deadbeef")
	if err == nil {
		t.Fatal("SendProduct should error when no peer can answer the proof request")
	}
	if shipped {
		t.Error("shipped should be false on a verification error")
	}
}
