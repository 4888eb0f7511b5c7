package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alignecoderepos/filereg/internal/config"
	"github.com/alignecoderepos/filereg/internal/logging"
	"github.com/alignecoderepos/filereg/internal/metrics"
	"github.com/alignecoderepos/filereg/internal/registry"
	"github.com/alignecoderepos/filereg/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run holds the program so deferred cleanup runs before the process exits.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("filereg", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var (
		configPath string
		scriptPath string
	)
	flags.StringVar(&configPath, "config", "filereg.toml", "Path to configuration file")
	flags.StringVar(&scriptPath, "script", "-", "Command script to run (use '-' for stdin)")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}

	if err := logging.InitLogger(cfg.LogFile, cfg.LogLevel); err != nil {
		fmt.Fprintf(stderr, "Failed to init logger: %v\n", err)
		return 1
	}
	defer logging.CloseLogger()

	var (
		m        *metrics.Metrics
		gatherer prometheus.Gatherer
	)
	if cfg.MetricsEnable {
		promReg := prometheus.NewRegistry()
		m = metrics.New(promReg)
		gatherer = promReg
	}

	in := stdin
	if scriptPath != "-" {
		f, err := os.Open(scriptPath)
		if err != nil {
			logging.L().Error("failed to open script", "path", scriptPath, "error", err)
			fmt.Fprintf(stderr, "Failed to open script: %v\n", err)
			return 1
		}
		defer f.Close()
		in = f
	}

	reg := registry.New(cfg, m)
	sess := session.New(reg, cfg, gatherer)

	sum, err := sess.Run(ctx, in, stdout)
	logging.L().Info("script finished", "commands", sum.Commands, "failed", sum.Failed, "records", reg.Len())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
