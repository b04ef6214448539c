// Package cli implements the imagehost admin command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"siteimage/internal/config"
	"siteimage/internal/logging"
	"siteimage/internal/selector"
	"siteimage/internal/service"
)

// Opener builds the image service a command runs against. The returned close function
// releases whatever the service holds.
type Opener func(ctx context.Context) (service.ImageService, func() error, error)

// DefaultOpener reads the environment, builds the configured host and logs to stderr.
func DefaultOpener(ctx context.Context) (service.ImageService, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(os.Stderr, cfg.LogLevel, time.Local)
	sel, err := selector.New(ctx, cfg, selector.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}

	svc := service.NewImageService(sel.Host(),
		service.WithObjectStorage(sel.Storage()),
		service.WithLogger(logger),
	)
	return svc, sel.Close, nil
}

type app struct {
	open  Opener
	svc   service.ImageService
	close func() error
}

// NewRootCommand assembles the command tree. Commands that touch images call open
// once, before they run.
func NewRootCommand(open Opener) *cobra.Command {
	a := &app{open: open}

	root := &cobra.Command{
		Use:   "imagehost",
		Short: "Manage site images on the configured host",
		Long: "imagehost uploads, lists, renames and deletes site images on the configured\n" +
			"backend (local disk or cloudinary) and keeps named transformations in sync.\n\n" +
			"Configuration comes from the environment (.env is loaded when present).",
		SilenceUsage:       true,
		PersistentPreRunE:  a.init,
		PersistentPostRunE: a.shutdown,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		newTransformationsCmd(a),
		newAssetsCmd(a),
		newUploadCmd(a),
		newURLCmd(a),
		newRenameCmd(a),
		newDestroyCmd(a),
		newDestroyAllCmd(a),
		newModerationCmd(a, "approve", "Approve an image pending moderation"),
		newModerationCmd(a, "reject", "Reject an image pending moderation"),
	)
	return root
}

// Execute runs the command line with DefaultOpener.
func Execute() {
	if err := NewRootCommand(DefaultOpener).Execute(); err != nil {
		os.Exit(1)
	}
}

func (a *app) init(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "help" || a.svc != nil {
		return nil
	}
	svc, closeFn, err := a.open(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	a.svc, a.close = svc, closeFn
	return nil
}

func (a *app) shutdown(*cobra.Command, []string) error {
	if a.close == nil {
		return nil
	}
	err := a.close()
	a.close = nil
	return err
}

// getContext returns the command's context, falling back to Background.
func getContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
