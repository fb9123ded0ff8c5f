package adversary

import (
	"crypto/ecdsa"
	"fmt"

	"go.uber.org/zap"

	"github.com/coinmesh/ledgerd/internal/netnode"
	"github.com/coinmesh/ledgerd/internal/spv"
)

// Vendor is a plain SPV client that additionally waits for its own
// proof verification before shipping, then tells the buyer's client it
// has done so over tag p. It has no idea it might be dealing with a
// double-spending buyer; the adversarial behavior lives entirely on
// the buyer's side.
type Vendor struct {
	*spv.Client

	broadcaster *netnode.Broadcaster
}

// NewVendor returns a vendor SPV client.
func NewVendor(priv *ecdsa.PrivateKey, pub string, peers *netnode.Peers, logger *zap.Logger) (*Vendor, error) {
	client, err := spv.New(priv, pub, peers, logger)
	if err != nil {
		return nil, err
	}
	return &Vendor{Client: client, broadcaster: netnode.NewBroadcaster(logger)}, nil
}

// SendProduct verifies the purchase transaction txHash and, if the
// proof holds, notifies every known peer that the product has
// shipped. It returns whether the proof verified; a false result means
// nothing was sent.
func (v *Vendor) SendProduct(txHash string) (bool, error) {
	ok, err := v.Client.VerifyTransactionProof(txHash)
	if err != nil {
		return false, fmt.Errorf("adversary: verify purchase before shipping: %w", err)
	}
	if !ok {
		return false, nil
	}
	v.broadcaster.FireAndForget(v.Client.Peers().All(), netnode.TagProductShipped, []byte(txHash))
	return true, nil
}
