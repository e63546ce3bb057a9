// Package main is the analysisctl command-line client. It submits content to
// the analysis agent, waits for results and monitors the agent's job list.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kiranshivaraju/analysisctl/internal/agent"
	"github.com/kiranshivaraju/analysisctl/internal/config"
	"github.com/kiranshivaraju/analysisctl/internal/jobs"
	"github.com/kiranshivaraju/analysisctl/internal/logger"
	"github.com/kiranshivaraju/analysisctl/internal/present"
	"github.com/kiranshivaraju/analysisctl/internal/retry"
)

const usage = `usage: analysisctl [-url URL] <command> [flags] [args]

commands:
  health                         wait until the agent reports ready
  submit [-type T] [-wait] TEXT  submit TEXT (or -file F) for analysis
  wait ID [ID...]                wait for jobs to finish and print their results
  jobs                           list the agent's jobs
  monitor [-interval D]          follow the agent and print each result once
  history [-status S] [-limit N] list jobs from the local journal (needs DATABASE_URL)
  demo                           run a comprehensive and a thematic analysis end to end
`

// errJobNotCompleted marks a run whose job ended failed or timed out.
var errJobNotCompleted = errors.New("job did not complete")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			slog.Error("analysisctl failed", "error", err)
		}
		os.Exit(1)
	}
}

// app carries everything a command needs.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	client    *agent.HTTPClient
	submitter *jobs.Submitter
	poller    *jobs.Poller
	recorder  jobs.Recorder
	backends  *backends
	out       *present.Text
	stdout    io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fs := flag.NewFlagSet("analysisctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	baseURL := fs.String("url", cfg.Agent.BaseURL, "agent base URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := config.ValidateBaseURL(*baseURL); err != nil {
		return err
	}
	cfg.Agent.BaseURL = *baseURL

	if fs.NArg() == 0 {
		fs.Usage()
		return flag.ErrHelp
	}

	log := logger.New(stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	a, err := newApp(ctx, cfg, log, stdout)
	if err != nil {
		return err
	}
	defer a.backends.Close()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "health":
		return a.health(ctx)
	case "submit":
		return a.submit(ctx, rest)
	case "wait":
		return a.wait(ctx, rest)
	case "jobs":
		return a.listJobs(ctx)
	case "monitor":
		return a.monitor(ctx, rest)
	case "history":
		return a.history(ctx, rest)
	case "demo":
		return a.demo(ctx)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger, stdout io.Writer) (*app, error) {
	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	client := agent.NewHTTPClient(cfg.Agent.BaseURL, cfg.Agent.Timeout,
		agent.WithSubmitTimeout(cfg.Agent.SubmitTimeout),
		agent.WithLogger(log),
	)
	recorder := b.Recorder()

	return &app{
		cfg:    cfg,
		logger: log,
		client: client,
		submitter: jobs.NewSubmitter(client,
			jobs.WithSubmitPolicy(retry.Policy{MaxAttempts: cfg.Retry.SubmitMaxAttempts, Delay: cfg.Retry.SubmitDelay}),
			jobs.WithHealthPolicy(retry.Policy{MaxAttempts: cfg.Retry.HealthMaxAttempts, Delay: cfg.Retry.HealthDelay}),
			jobs.WithSubmitRecorder(recorder),
			jobs.WithSubmitLogger(log),
		),
		poller:   jobs.NewPoller(client, jobs.WithPollRecorder(recorder), jobs.WithPollLogger(log)),
		recorder: recorder,
		backends: b,
		out:      present.NewText(stdout),
		stdout:   stdout,
	}, nil
}
