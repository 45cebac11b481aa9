package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"github.com/bjarneo/dropchat/internal/config"
	"github.com/bjarneo/dropchat/internal/ledger"
	"github.com/bjarneo/dropchat/internal/logging"
	"github.com/bjarneo/dropchat/internal/network"
	"github.com/bjarneo/dropchat/internal/transfer"
	"github.com/bjarneo/dropchat/internal/util"
)

const queueSize = 256

// headless is a session driven by a Queue instead of the terminal UI.
type headless struct {
	log     zerolog.Logger
	queue   *transfer.Queue
	channel *network.Channel
	session *transfer.Session
}

func newHeadless(opts *rootOptions) (*headless, error) {
	level, err := logging.Parse(opts.cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.Console(os.Stderr, level)
	cfg := opts.cfg

	q := transfer.NewQueue(queueSize)
	ch := network.NewChannel(network.Config{
		URL:              cfg.ServerURL,
		HandshakeTimeout: cfg.HandshakeTimeout,
		WriteTimeout:     cfg.WriteTimeout,
		PingInterval:     cfg.PingInterval,
		ReadLimit:        network.ReadLimitFor(cfg.MaxFileSize()),
	}, q, logger)
	s := transfer.NewSession(ch, transfer.Options{
		Mode:        cfg.DirectoryMode,
		MaxFileSize: cfg.MaxFileSize(),
		Logger:      logger,
	})
	s.Observe(func(e ledger.Entry) { logEntry(logger, e) })

	return &headless{log: logger, queue: q, channel: ch, session: s}, nil
}

// join opens the channel with the flag identity, the cached one, or a random
// one, in that order.
func (h *headless) join(ctx context.Context, opts *rootOptions) error {
	identity := util.NormalizeIdentity(opts.identity)
	cache := config.NewIdentityCache(opts.cfg.IdentityCache)
	if identity == "" {
		cached, err := cache.Load()
		if err != nil {
			h.log.Warn().Err(err).Msg("[cli] identity cache unreadable")
		}
		identity = util.NormalizeIdentity(cached)
	}
	if identity == "" {
		identity = util.RandomIdentity()
		if err := cache.Save(identity); err != nil {
			h.log.Warn().Err(err).Msg("[cli] identity cache not saved")
		}
	}
	return h.channel.Open(ctx, identity)
}

func logEntry(log zerolog.Logger, e ledger.Entry) {
	if e.Kind == ledger.KindNotice {
		ev := log.Info()
		if e.Category == ledger.CategoryError {
			ev = log.Error()
		}
		ev.Msg(e.Text)
		return
	}
	log.Info().
		Str("direction", e.Direction.String()).
		Str("peer", e.Counterpart).
		Str("file", e.DisplayName).
		Str("type", e.MimeType).
		Str("size", transfer.FormatSize(e.ByteLength)).
		Str("fingerprint", e.Fingerprint).
		Msg("transfer")
}
