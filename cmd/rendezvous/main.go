// Command rendezvous runs the bootstrap registry every other role
// dials at startup: spec.md §6.2's single well-known address that
// hands out the current peer list and forwards new announcements.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/coinmesh/ledgerd/internal/config"
	"github.com/coinmesh/ledgerd/internal/netnode"
	"github.com/coinmesh/ledgerd/internal/rendezvous"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "rendezvous: logger init: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	server := rendezvous.New(logger)
	addr := config.RendezvousAddr()
	listener, err := netnode.NewListener(addr, server, logger)
	if err != nil {
		logger.Fatal("bind rendezvous listener", zap.String("addr", addr), zap.Error(err))
	}
	go func() {
		if err := listener.Serve(); err != nil {
			logger.Error("rendezvous listener stopped", zap.Error(err))
		}
	}()
	logger.Info("rendezvous listening", zap.String("addr", addr))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("rendezvous shutting down")
	listener.Close()
}
