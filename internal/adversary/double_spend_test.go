package adversary

import (
	"testing"

	"go.uber.org/zap"

	"github.com/coinmesh/ledgerd/internal/chain"
	"github.com/coinmesh/ledgerd/internal/chainjson"
	"github.com/coinmesh/ledgerd/internal/crypto"
	"github.com/coinmesh/ledgerd/internal/mempool"
	"github.com/coinmesh/ledgerd/internal/netnode"
)

func newTestDoubleSpendMiner(t *testing.T, colludingSPVPub, vendorPub string) *DoubleSpendMiner {
	t.Helper()
	store, err := chain.NewStore()
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	pool := mempool.NewEngine(store)
	return NewDoubleSpendMiner(kp.Private, kp.PublicHex, store, pool, netnode.NewPeers(), colludingSPVPub, vendorPub, zap.NewNop())
}

func blockBody(t *testing.T, block *chain.Block) []byte {
	t.Helper()
	blkJSON, err := block.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	body, err := chainjson.Marshal(netnode.BlockBody{BlkJSON: blkJSON})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return body
}

func TestDoubleSpendMinerHonestInInitMode(t *testing.T) {
	dm := newTestDoubleSpendMiner(t, "collude", "vendor")
	if _, err := dm.CreateBlock(); err != nil {
		t.Fatalf("CreateBlock: %v", err)
	}
	if dm.Mode() != ModeInit {
		t.Fatalf("Mode = %v, want ModeInit", dm.Mode())
	}
}

func TestDispatchBlockTransitionsInitToFork(t *testing.T) {
	colludeKP, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	colludingPub := colludeKP.PublicHex
	dm := newTestDoubleSpendMiner(t, colludingPub, "vendor-pub")

	if _, err := dm.CreateBlock(); err != nil {
		t.Fatalf("CreateBlock (coinbase): %v", err)
	}
	if _, err := dm.CreateTransaction(colludingPub, 50, "pay"); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	block2, err := dm.CreateBlock()
	if err != nil {
		t.Fatalf("CreateBlock (payment): %v", err)
	}
	if len(block2.Transactions) != 2 {
		t.Fatalf("block2 has %d transactions, want 2 (coinbase + payment)", len(block2.Transactions))
	}

	dm.Dispatch(netnode.TagBlock, blockBody(t, block2))

	if dm.Mode() != ModeFork {
		t.Fatalf("Mode after observing own payment block = %v, want ModeFork", dm.Mode())
	}
	wantTip, err := block2.Header.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if dm.privateTip != wantTip {
		t.Errorf("privateTip = %q, want %q", dm.privateTip, wantTip)
	}
}

func TestForkModePlansOnPrivateTip(t *testing.T) {
	colludeKP, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	dm := newTestDoubleSpendMiner(t, colludeKP.PublicHex, "vendor-pub")
	if _, err := dm.CreateBlock(); err != nil {
		t.Fatalf("CreateBlock: %v", err)
	}
	if _, err := dm.CreateTransaction(colludeKP.PublicHex, 50, "pay"); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	block2, err := dm.CreateBlock()
	if err != nil {
		t.Fatalf("CreateBlock: %v", err)
	}
	dm.Dispatch(netnode.TagBlock, blockBody(t, block2))
	if dm.Mode() != ModeFork {
		t.Fatalf("Mode = %v, want ModeFork", dm.Mode())
	}

	privateBlock, err := dm.CreateBlock()
	if err != nil {
		t.Fatalf("CreateBlock (private): %v", err)
	}
	if privateBlock == nil {
		t.Fatal("expected a mined private block")
	}
	wantTip, _ := block2.Header.Hash()
	if privateBlock.Header.PrevHash != wantTip {
		t.Errorf("private block prev_hash = %q, want %q (fork point)", privateBlock.Header.PrevHash, wantTip)
	}
	if len(dm.withheld) != 1 {
		t.Fatalf("withheld = %d, want 1 (fork-mode block must not broadcast)", len(dm.withheld))
	}
}

func TestVendorTransactionExcludedFromMempool(t *testing.T) {
	vendorKP, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	vendorPub := vendorKP.PublicHex
	payerKP, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	// both keys are real and the payer signs, so the mempool itself
	// would admit this transaction; only the exclusion keeps it out.
	dm2 := newTestDoubleSpendMiner(t, payerKP.PublicHex, vendorPub)
	if _, err := dm2.CreateBlock(); err != nil {
		t.Fatalf("CreateBlock: %v", err)
	}

	tx, err := chain.New(payerKP.PublicHex, vendorPub, 50, "buy", payerKP.Private)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	txJSON, err := tx.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	body, err := chainjson.Marshal(netnode.TransactionBody{TxJSON: txJSON})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	dm2.Dispatch(netnode.TagTransaction, body)

	pending := dm2.Pool().Pending()
	for _, p := range pending {
		if p.Equal(tx) {
			t.Fatal("colluding-SPV-to-vendor transaction must never enter the mempool")
		}
	}
}

func TestRefundTransactionTransitionsForkToFire(t *testing.T) {
	colludeKP, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	colludingPub := colludeKP.PublicHex
	dm := newTestDoubleSpendMiner(t, colludingPub, "vendor-pub")
	if _, err := dm.CreateBlock(); err != nil {
		t.Fatalf("CreateBlock: %v", err)
	}
	if _, err := dm.CreateTransaction(colludingPub, 50, "pay"); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	block2, err := dm.CreateBlock()
	if err != nil {
		t.Fatalf("CreateBlock: %v", err)
	}
	dm.Dispatch(netnode.TagBlock, blockBody(t, block2))
	if dm.Mode() != ModeFork {
		t.Fatalf("Mode = %v, want ModeFork", dm.Mode())
	}

	refund, err := chain.New(colludingPub, dm.PubKey(), 50, "refund", colludeKP.Private)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	refundJSON, err := refund.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	body, err := chainjson.Marshal(netnode.TransactionBody{TxJSON: refundJSON})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	dm.Dispatch(netnode.TagTransaction, body)

	if dm.Mode() != ModeFire {
		t.Fatalf("Mode after refund = %v, want ModeFire", dm.Mode())
	}
}
