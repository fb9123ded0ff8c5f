package miner

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/coinmesh/ledgerd/internal/chain"
	"github.com/coinmesh/ledgerd/internal/chainjson"
	"github.com/coinmesh/ledgerd/internal/metrics"
	"github.com/coinmesh/ledgerd/internal/netnode"
)

// Dispatch implements netnode.Dispatcher for a miner. It handles every
// tag a miner is expected to answer per spec.md §4.7: n (peer
// announce), b (block), h (ignored -- headers are for SPV clients), t
// (transaction), r (transaction-proof request) and x (balance
// request).
func (m *Miner) Dispatch(tag netnode.Tag, body []byte) ([]byte, bool) {
	switch tag {
	case netnode.TagPeerAnnounce:
		m.handlePeerAnnounce(body)
		return nil, false
	case netnode.TagBlock:
		m.handleBlock(body)
		return nil, false
	case netnode.TagHeader:
		return nil, false
	case netnode.TagTransaction:
		m.handleTransaction(body)
		return nil, false
	case netnode.TagProofRequest:
		return m.handleProofRequest(body)
	case netnode.TagBalanceRequest:
		return m.handleBalanceRequest(body)
	default:
		m.logger.Debug("miner ignoring unexpected tag", zap.Int("tag", int(tag)))
		return nil, false
	}
}

func (m *Miner) handlePeerAnnounce(body []byte) {
	var d netnode.Descriptor
	if err := chainjson.Unmarshal(body, &d); err != nil {
		m.logger.Debug("dropping malformed peer announcement", zap.Error(err))
		return
	}
	m.peers.Add(d)
	metrics.PeersConnected.Set(float64(len(m.peers.All())))
}

// handleBlock integrates a foreign block, stopping any mining attempt
// in flight first and resuming fresh mining once it's in. A block that
// fails validation or whose parent is unknown is dropped; the store
// itself is the source of truth for what "valid" means.
func (m *Miner) handleBlock(body []byte) {
	var b netnode.BlockBody
	if err := chainjson.Unmarshal(body, &b); err != nil {
		m.logger.Debug("dropping malformed block message", zap.Error(err))
		return
	}

	m.StopMining()
	defer m.ResumeMining()

	if _, err := m.IntegrateBlockJSON(b.BlkJSON); err != nil {
		m.logger.Debug("rejected foreign block", zap.Error(err))
		metrics.BlocksIntegrated.WithLabelValues("rejected").Inc()
		return
	}
	metrics.BlocksIntegrated.WithLabelValues("accepted").Inc()
}

func (m *Miner) handleTransaction(body []byte) {
	var t netnode.TransactionBody
	if err := chainjson.Unmarshal(body, &t); err != nil {
		m.logger.Debug("dropping malformed transaction message", zap.Error(err))
		return
	}
	tx, err := chain.FromJSON(t.TxJSON)
	if err != nil {
		m.logger.Debug("dropping unparseable transaction", zap.Error(err))
		return
	}
	if err := m.pool.AddTransaction(tx); err != nil {
		m.logger.Debug("rejected transaction", zap.Error(err))
	}
}

func (m *Miner) handleProofRequest(body []byte) ([]byte, bool) {
	var req netnode.ProofRequestBody
	if err := chainjson.Unmarshal(body, &req); err != nil {
		m.logger.Debug("dropping malformed proof request", zap.Error(err))
		return nil, false
	}

	_, tipHash, err := m.store.Resolve()
	if err != nil {
		m.logger.Error("resolve for proof request", zap.Error(err))
		return m.emptyProofReply()
	}
	blockHash, proof, err := m.store.TransactionProofOnFork(req.TxHash, tipHash)
	if err != nil {
		return m.emptyProofReply()
	}

	steps := make([]netnode.ProofStepJSON, len(proof))
	for i, step := range proof {
		steps[i] = netnode.ProofStepJSON{SiblingHash: step.SiblingHash, Direction: string(step.Direction)}
	}
	reply := netnode.ProofReplyBody{BlockHash: blockHash, Proof: steps, LastBlockHash: tipHash}
	out, err := chainjson.Marshal(reply)
	if err != nil {
		m.logger.Error("marshal proof reply", zap.Error(err))
		return nil, false
	}
	return out, true
}

func (m *Miner) emptyProofReply() ([]byte, bool) {
	out, err := chainjson.Marshal(netnode.ProofReplyBody{})
	if err != nil {
		return nil, false
	}
	return out, true
}

func (m *Miner) handleBalanceRequest(body []byte) ([]byte, bool) {
	var req netnode.BalanceRequestBody
	if err := chainjson.Unmarshal(body, &req); err != nil {
		m.logger.Debug("dropping malformed balance request", zap.Error(err))
		return nil, false
	}
	bal, err := m.pool.GetBalance(req.Identifier)
	if err != nil {
		m.logger.Error("get balance", zap.Error(err))
		return nil, false
	}
	return []byte(strconv.FormatInt(bal, 10)), true
}
