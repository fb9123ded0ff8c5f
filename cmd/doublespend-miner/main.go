// Command doublespend-miner runs the double-spend adversary: an honest
// miner that forks away from its own payment to a colluding SPV client
// and races to overtake the public chain before the vendor's payment
// is ever durably confirmed. Its colluding-SPV and vendor accomplices
// are resolved from the rendezvous-announced peer roles, so no flags
// or shared secrets are needed at startup.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"github.com/coinmesh/ledgerd/internal/adversary"
	"github.com/coinmesh/ledgerd/internal/chain"
	"github.com/coinmesh/ledgerd/internal/config"
	"github.com/coinmesh/ledgerd/internal/crypto"
	"github.com/coinmesh/ledgerd/internal/mempool"
	"github.com/coinmesh/ledgerd/internal/netnode"
)

func main() {
	port, err := parsePort()
	if err != nil {
		fmt.Fprintf(os.Stderr, "doublespend-miner: %v\n", err)
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "doublespend-miner: logger init: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	keyPair, err := crypto.GenerateKeyPair()
	if err != nil {
		logger.Fatal("generate key pair", zap.Error(err))
	}

	store, err := chain.NewStore()
	if err != nil {
		logger.Fatal("new chain store", zap.Error(err))
	}
	pool := mempool.NewEngine(store)

	selfAddr := netnode.Address{Host: "127.0.0.1", Port: port}
	self := netnode.Descriptor{Address: selfAddr, PubKey: keyPair.PublicHex, Role: netnode.RoleDoubleSpendMiner}
	peers, err := netnode.Bootstrap(config.RendezvousAddr(), self)
	if err != nil {
		logger.Fatal("bootstrap", zap.Error(err))
	}

	dm := adversary.NewDoubleSpendMiner(keyPair.Private, keyPair.PublicHex, store, pool, peers, "", "", logger)

	listenAddr := fmt.Sprintf("127.0.0.1:%d", port)
	listener, err := netnode.NewListener(listenAddr, dm, logger)
	if err != nil {
		logger.Fatal("bind listener", zap.String("addr", listenAddr), zap.Error(err))
	}
	go func() {
		if err := listener.Serve(); err != nil {
			logger.Error("listener stopped", zap.Error(err))
		}
	}()
	logger.Info("double-spend miner listening", zap.String("addr", listenAddr), zap.String("pubkey", keyPair.PublicHex))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := config.WaitForMineLock(ctx); err != nil {
			return
		}
		logger.Info("mine_lock observed, mining")
		dm.Run(ctx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("double-spend miner shutting down")
	cancel()
	listener.Close()
}

func parsePort() (int, error) {
	if len(os.Args) != 2 {
		return 0, fmt.Errorf("usage: %s <port>", os.Args[0])
	}
	port, err := strconv.Atoi(os.Args[1])
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", os.Args[1], err)
	}
	return port, nil
}
