package spv

import (
	"go.uber.org/zap"

	"github.com/coinmesh/ledgerd/internal/chain"
	"github.com/coinmesh/ledgerd/internal/chainjson"
	"github.com/coinmesh/ledgerd/internal/metrics"
	"github.com/coinmesh/ledgerd/internal/netnode"
)

// Dispatch implements netnode.Dispatcher for an SPV client: n, h and t
// are handled normally; r and x get the literal "spv" stub reply so a
// requester's quorum vote can filter SPV clients out of its peer set.
func (c *Client) Dispatch(tag netnode.Tag, body []byte) ([]byte, bool) {
	switch tag {
	case netnode.TagPeerAnnounce:
		c.handlePeerAnnounce(body)
		return nil, false
	case netnode.TagHeader:
		c.handleHeader(body)
		return nil, false
	case netnode.TagTransaction:
		c.handleTransaction(body)
		return nil, false
	case netnode.TagProofRequest, netnode.TagBalanceRequest:
		return []byte(netnode.SPVStubReply), true
	default:
		c.logger.Debug("spv client ignoring unexpected tag", zap.Int("tag", int(tag)))
		return nil, false
	}
}

func (c *Client) handlePeerAnnounce(body []byte) {
	var d netnode.Descriptor
	if err := chainjson.Unmarshal(body, &d); err != nil {
		c.logger.Debug("dropping malformed peer announcement", zap.Error(err))
		return
	}
	c.peers.Add(d)
	metrics.PeersConnected.Set(float64(len(c.peers.All())))
}

func (c *Client) handleHeader(body []byte) {
	var header chain.BlockHeader
	if err := chainjson.Unmarshal(body, &header); err != nil {
		c.logger.Debug("dropping malformed header", zap.Error(err))
		return
	}
	if err := c.AddHeader(header); err != nil {
		c.logger.Debug("rejected header", zap.Error(err))
	}
}

func (c *Client) handleTransaction(body []byte) {
	var t netnode.TransactionBody
	if err := chainjson.Unmarshal(body, &t); err != nil {
		c.logger.Debug("dropping malformed transaction message", zap.Error(err))
		return
	}
	if err := c.AddTransaction(t.TxJSON); err != nil {
		c.logger.Debug("rejected transaction", zap.Error(err))
	}
}
