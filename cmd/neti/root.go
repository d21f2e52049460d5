package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Instagram/neti/pkg/cloudtag"
	"github.com/Instagram/neti/pkg/config"
	"github.com/Instagram/neti/pkg/coordinator"
	"github.com/Instagram/neti/pkg/identity"
	"github.com/Instagram/neti/pkg/netilog"
	"github.com/Instagram/neti/pkg/supervisor"
)

var (
	configPath string
	dryRun     bool
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "neti",
	Short: "Lease an overlay address and synthesize host packet-filter rules",
	RunE:  runNeti,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to neti.conf (default /etc/neti/neti.conf, falling back to ./testing.conf)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the synthesized rule program and exit instead of installing it")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "debug logging")
}

func runNeti(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		return err
	}

	logWriter, err := logOutput(cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file %q: %v\n", cfg.LogFile, err)
		return err
	}

	log := netilog.New(logWriter, debug)
	ctx := netilog.WithLogger(signalContext(context.Background()), log)
	ll := netilog.FromContext(ctx)

	var tagger cloudtag.Tagger = cloudtag.NoOp{}
	if cfg.AWSKey != "" {
		t, err := cloudtag.NewEC2Tagger(ctx, cfg.AWSKey, cfg.AWSSecretKey)
		if err != nil {
			ll.WithError(err).Warn("constructing EC2 tagger, falling back to no-op")
		} else {
			tagger = t
		}
	}

	sup := supervisor.New(
		cfg,
		identity.NewIMDSClient(),
		coordinator.Dial,
		supervisor.WithTagger(tagger),
		supervisor.WithDryRun(dryRun),
		supervisor.WithLogger(ll),
	)

	if err := sup.Run(ctx); err != nil && ctx.Err() == nil {
		ll.WithError(err).Error("neti exited")
		return err
	}
	return nil
}

// logOutput opens neti.log_file for append, creating it if necessary,
// mirroring the original's logging.FileHandler(LOG_FILE). An unset
// logFile falls back to stderr.
func logOutput(logFile string) (io.Writer, error) {
	if logFile == "" {
		return os.Stderr, nil
	}
	return os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

// signalContext cancels the returned context on SIGINT/SIGTERM, and
// exits hard on a second signal for the impatient - matching the
// teacher's cmd/wgmesh signal handling.
func signalContext(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
