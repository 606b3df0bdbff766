package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc"

	"xdao.co/claimvault/internal/log"
	"xdao.co/claimvault/ledger"
	"xdao.co/claimvault/market"
	"xdao.co/claimvault/marketrpc"
	"xdao.co/claimvault/registry"
	"xdao.co/claimvault/state"
	"xdao.co/claimvault/state/localfs"
)

func main() {
	fs := flag.NewFlagSet("claimvault-marketd", flag.ExitOnError)
	listen := fs.String("listen", "127.0.0.1:7878", "listen address")
	stateDir := fs.String("state-dir", "", "persist registry and market state under this directory (default: in-memory)")
	cooldown := fs.Uint64("cooldown", market.DefaultDisputeCooldown, "seller self-verification cooldown in blocks")
	faucet := fs.Bool("faucet", false, "enable the deposit faucet (development only)")
	blockInterval := fs.Duration("block-interval", 12*time.Second, "height advance interval")
	debug := fs.Bool("debug", false, "log at debug level")

	_ = fs.Parse(os.Args[1:])

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := log.New(level)
	log.SetDefault(logger)

	var regStore, mktStore state.Store
	if *stateDir == "" {
		regStore = state.Memory()
		mktStore = state.Memory()
	} else {
		var err error
		regStore, err = localfs.New(filepath.Join(*stateDir, "registry"))
		if err != nil {
			logger.Error("open registry state", "err", err)
			os.Exit(1)
		}
		mktStore, err = localfs.New(filepath.Join(*stateDir, "market"))
		if err != nil {
			logger.Error("open market state", "err", err)
			os.Exit(1)
		}
	}

	reg := registry.New(regStore)
	book := ledger.NewMemoryBook()
	chain := ledger.NewCounter(1)
	mkt, err := market.New(market.Config{
		Store:    mktStore,
		Registry: reg,
		Funds:    book,
		Chain:    chain,
		Cooldown: *cooldown,
	})
	if err != nil {
		logger.Error("market setup", "err", err)
		os.Exit(1)
	}

	go func() {
		ticker := time.NewTicker(*blockInterval)
		defer ticker.Stop()
		for range ticker.C {
			chain.Advance(1)
		}
	}()

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		logger.Error("listen", "addr", *listen, "err", err)
		os.Exit(1)
	}
	defer lis.Close()

	srv := grpc.NewServer(grpc.UnaryInterceptor(logCalls(logger.Module("rpc"))))
	marketrpc.RegisterMarketServer(srv, &marketrpc.Server{
		Registry: reg,
		Market:   mkt,
		Funds:    book,
		Chain:    chain,
		Faucet:   *faucet,
	})

	logger.Info("claimvault-marketd listening",
		"addr", lis.Addr().String(),
		"faucet", *faucet,
		"cooldown", *cooldown,
		"persistent", *stateDir != "",
	)
	if err := srv.Serve(lis); err != nil {
		logger.Error("serve", "err", err)
		os.Exit(1)
	}
}

func logCalls(l *log.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			l.Warn("call failed", "method", info.FullMethod, "dur", time.Since(start), "err", err)
			return resp, err
		}
		l.Debug("call ok", "method", info.FullMethod, "dur", time.Since(start))
		return resp, err
	}
}
