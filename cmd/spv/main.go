// Command spv runs a header-only light client: it bootstraps through
// the rendezvous and then passively tracks headers and its own
// transactions, answering proof/balance requests with the "spv" stub.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"github.com/coinmesh/ledgerd/internal/config"
	"github.com/coinmesh/ledgerd/internal/crypto"
	"github.com/coinmesh/ledgerd/internal/netnode"
	"github.com/coinmesh/ledgerd/internal/spv"
)

func main() {
	port, err := parsePort()
	if err != nil {
		fmt.Fprintf(os.Stderr, "spv: %v\n", err)
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "spv: logger init: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	keyPair, err := crypto.GenerateKeyPair()
	if err != nil {
		logger.Fatal("generate key pair", zap.Error(err))
	}

	selfAddr := netnode.Address{Host: "127.0.0.1", Port: port}
	self := netnode.Descriptor{Address: selfAddr, PubKey: keyPair.PublicHex, Role: netnode.RoleSPV}
	peers, err := netnode.Bootstrap(config.RendezvousAddr(), self)
	if err != nil {
		logger.Fatal("bootstrap", zap.Error(err))
	}

	client, err := spv.New(keyPair.Private, keyPair.PublicHex, peers, logger)
	if err != nil {
		logger.Fatal("new spv client", zap.Error(err))
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
	logger.Info("spv client listening", zap.String("addr", listenAddr), zap.String("pubkey", keyPair.PublicHex))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("spv client shutting down")
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
