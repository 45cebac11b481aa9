package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bjarneo/dropchat/internal/ledger"
	"github.com/bjarneo/dropchat/internal/transfer"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Join and log everything that arrives until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), opts, save)
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "write received files to transfer.download_dir")
	return cmd
}

func runWatch(parent context.Context, opts *rootOptions, save bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := newHeadless(opts)
	if err != nil {
		return err
	}
	defer h.session.Close()

	if err := h.join(ctx, opts); err != nil {
		return err
	}

	saved := 0
	err = h.queue.Run(ctx, h.session, func(s *transfer.Session) bool {
		transfers := s.Transfers()
		for ; saved < len(transfers); saved++ {
			if !save || transfers[saved].Direction != ledger.Inbound {
				continue
			}
			_, _ = s.SaveTransfer(saved+1, opts.cfg.DownloadDir)
		}
		return s.Disconnected()
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err == nil {
		return errors.New("connection to server lost")
	}
	return err
}
