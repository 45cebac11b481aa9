package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bjarneo/dropchat/internal/transfer"
)

func newSendCmd(opts *rootOptions) *cobra.Command {
	var (
		to   string
		wait time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send --to <name> <file>",
		Short: "Send one file to a peer and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd.Context(), opts, to, args[0], wait)
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "recipient name")
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "how long to wait for the recipient to come online")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func runSend(parent context.Context, opts *rootOptions, to, path string, wait time.Duration) error {
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

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	err = h.queue.Run(waitCtx, h.session, func(s *transfer.Session) bool {
		return s.SelectRecipient(to)
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s did not come online within %s", to, wait)
	}
	if err != nil {
		return err
	}

	if err := h.session.PrepareAttachment(ctx, path); err != nil {
		return err
	}
	if !h.session.Send() {
		return fmt.Errorf("could not send %s to %s", path, to)
	}
	return nil
}
