// Command colluding-spv runs the double-spend demo's accomplice: an
// SPV client that, once notified its product has shipped, refunds its
// entire balance back to the double-spend miner -- the transaction
// that flips the miner from forking to racing to publish. The miner's
// public key is not a startup argument; it is resolved from the
// rendezvous-announced RoleDoubleSpendMiner peer the first time a
// refund is due, keeping this role launchable with the same single
// port argument as every other one.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"github.com/coinmesh/ledgerd/internal/adversary"
	"github.com/coinmesh/ledgerd/internal/config"
	"github.com/coinmesh/ledgerd/internal/crypto"
	"github.com/coinmesh/ledgerd/internal/netnode"
)

func main() {
	port, err := parsePort()
	if err != nil {
		fmt.Fprintf(os.Stderr, "colluding-spv: %v\n", err)
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "colluding-spv: logger init: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	keyPair, err := crypto.GenerateKeyPair()
	if err != nil {
		logger.Fatal("generate key pair", zap.Error(err))
	}

	selfAddr := netnode.Address{Host: "127.0.0.1", Port: port}
	self := netnode.Descriptor{Address: selfAddr, PubKey: keyPair.PublicHex, Role: netnode.RoleDoubleSpendSPV}
	peers, err := netnode.Bootstrap(config.RendezvousAddr(), self)
	if err != nil {
		logger.Fatal("bootstrap", zap.Error(err))
	}

	client, err := adversary.NewColludingSPVClient(keyPair.Private, keyPair.PublicHex, peers, "", logger)
	if err != nil {
		logger.Fatal("new colluding spv client", zap.Error(err))
	}

	listenAddr := fmt.Sprintf("127.0.0.1:%d", port)
	listener, err := netnode.NewListener(listenAddr, client, logger)
	if err != nil {
		logger.Fatal("bind listener", zap.String("addr", listenAddr), zap.Error(err))
	}
	go func() {
		if err := listener.Serve(); err != nil {
			logger.Error("listener stopped", zap.Error(err))
		}
	}()
	logger.Info("colluding spv client listening", zap.String("addr", listenAddr), zap.String("pubkey", keyPair.PublicHex))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("colluding spv client shutting down")
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
