package adversary

import (
	"crypto/ecdsa"
	"sync"

	"go.uber.org/zap"

	"github.com/coinmesh/ledgerd/internal/netnode"
	"github.com/coinmesh/ledgerd/internal/spv"
)

// ColludingSPVClient is an ordinary SPV client with one extra trick:
// on receiving word from the vendor that the product has shipped, it
// immediately pays the colluding miner back the full amount, handing
// the miner the transaction it is watching for to flip into fire mode.
// It cannot buy from the vendor and then walk away -- the refund has
// to go somewhere a normal SPV client would never send money, which
// is exactly what makes this variant adversarial rather than honest.
type ColludingSPVClient struct {
	*spv.Client

	mu       sync.Mutex
	minerPub string
}

// NewColludingSPVClient returns a colluding SPV client that will
// refund minerPub once it observes a product-shipped notice. minerPub
// may be left empty and is then resolved from the rendezvous-announced
// RoleDoubleSpendMiner peer the first time a refund is due, the same
// peer-role lookup DoubleSpendMiner uses to find its accomplices --
// see internal/adversary's DESIGN.md entry. This keeps every adversary
// role launchable with spec.md §6.3's single port argument.
func NewColludingSPVClient(priv *ecdsa.PrivateKey, pub string, peers *netnode.Peers, minerPub string, logger *zap.Logger) (*ColludingSPVClient, error) {
	client, err := spv.New(priv, pub, peers, logger)
	if err != nil {
		return nil, err
	}
	return &ColludingSPVClient{Client: client, minerPub: minerPub}, nil
}

func (c *ColludingSPVClient) resolveMinerPub() string {
	c.mu.Lock()
	minerPub := c.minerPub
	c.mu.Unlock()
	if minerPub != "" {
		return minerPub
	}
	found := c.Client.Peers().ByRole(netnode.RoleDoubleSpendMiner)
	if len(found) == 0 {
		return ""
	}
	minerPub = found[0].PubKey
	c.mu.Lock()
	c.minerPub = minerPub
	c.mu.Unlock()
	return minerPub
}

// Dispatch shadows the embedded Client.Dispatch to add the
// product-shipped tag; everything else is the honest SPV behavior.
func (c *ColludingSPVClient) Dispatch(tag netnode.Tag, body []byte) ([]byte, bool) {
	if tag == netnode.TagProductShipped {
		c.handleProductShipped(body)
		return nil, false
	}
	return c.Client.Dispatch(tag, body)
}

func (c *ColludingSPVClient) handleProductShipped(body []byte) {
	minerPub := c.resolveMinerPub()
	if minerPub == "" {
		c.Client.Logger().Debug("double-spend miner not yet known, dropping refund")
		return
	}
	amount, err := c.Client.RequestBalance()
	if err != nil {
		c.Client.Logger().Debug("could not learn balance before refund", zap.Error(err))
		return
	}
	if amount <= 0 {
		return
	}
	if _, err := c.Client.CreateTransaction(minerPub, amount, "refund"); err != nil {
		c.Client.Logger().Debug("refund transaction failed", zap.Error(err))
	}
}
