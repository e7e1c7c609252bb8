package main

import (
	"context"
	"fmt"

	"github.com/jason-s-yu/loto/internal/channel/wsrelay"
	"github.com/jason-s-yu/loto/internal/config"
	"github.com/jason-s-yu/loto/internal/credstore"
	"github.com/jason-s-yu/loto/internal/invite"
	"github.com/jason-s-yu/loto/internal/session"
	"github.com/sirupsen/logrus"
)

// runtime is everything a host or player needs besides its reconciler.
type runtime struct {
	cfg        config.Config
	logger     *logrus.Logger
	store      credstore.Store
	closeStore func() error
	mgr        *session.Manager
}

func loadConfig(opts *options) (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	if opts.relayURL != "" {
		cfg.RelayURL = opts.relayURL
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("log level: %w", err)
	}
	logger := logrus.New()
	logger.SetLevel(lvl)
	return cfg, logger, nil
}

func newRuntime(opts *options) (*runtime, error) {
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	store, closeStore, err := credstore.Open(cfg.Store)
	if err != nil {
		return nil, err
	}
	sub := wsrelay.New(cfg.RelayURL, logger)
	return &runtime{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		closeStore: closeStore,
		mgr:        session.NewManager(sub, store, cfg.Session, logger),
	}, nil
}

func (rt *runtime) Close() {
	rt.mgr.Teardown()
	if err := rt.closeStore(); err != nil {
		rt.logger.Warnf("closing credential store: %v", err)
	}
}

// inviteLink builds the shareable link for code, carrying saved relay
// credentials when there are any.
func inviteLink(ctx context.Context, cfg config.Config, store credstore.Store, game invite.Game, code string) (invite.Link, string, error) {
	link := invite.Link{Game: game, Room: code}
	creds, err := store.Load(ctx)
	if err != nil {
		return link, "", err
	}
	if creds.Complete() {
		link.Creds = creds
	}
	url, err := link.URL(cfg.InviteBase)
	return link, url, err
}

func (rt *runtime) announceRoom(ctx context.Context, scr *screen, game invite.Game, code string) {
	link, url, err := inviteLink(ctx, rt.cfg, rt.store, game, code)
	if err != nil {
		rt.logger.Warnf("building invite: %v", err)
		scr.printf("Mã phòng: %s\n", code)
		return
	}
	scr.printf("Mã phòng: %s\n%s\n%s\n", code, link.ShareText(), url)
}
