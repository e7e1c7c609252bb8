// cmd/relay/main.go
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/loto/internal/relay"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(os.Getenv("LOTO_LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	addr := ":8080"
	if a := os.Getenv("RELAY_ADDR"); a != "" {
		addr = a
	} else if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, addr, logger); err != nil {
		logger.Fatalf("relay exited: %v", err)
	}
}

func run(ctx context.Context, addr string, logger *logrus.Logger) error {
	srv := relay.NewServer(logger)
	server := &http.Server{
		Handler:     srv.Router(),
		ReadTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	logger.Infof("relay listening on %s", l.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("relay shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
