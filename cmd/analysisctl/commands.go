package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kiranshivaraju/analysisctl/internal/jobs"
	"github.com/kiranshivaraju/analysisctl/internal/store"
	"github.com/kiranshivaraju/analysisctl/pkg/models"
)

const sampleContent = `Artificial intelligence is transforming how businesses operate across every industry.
From automating routine tasks to providing deep insights through data analysis, AI technologies
are becoming essential tools for competitive advantage. However, this transformation also raises
important questions about ethics, privacy, and the future of work. Organizations must carefully
consider how to implement AI responsibly while maximizing its benefits.

The key to successful AI adoption lies in understanding both the technical capabilities and the
human factors involved. Companies that can balance innovation with responsibility will be best
positioned to thrive in the AI-powered future.`

// waitFlags registers the poll interval and deadline flags shared by submit
// and wait.
func (a *app) waitFlags(fs *flag.FlagSet) (interval, maxWait *time.Duration) {
	interval = fs.Duration("interval", a.cfg.Polling.Interval, "time between status checks")
	maxWait = fs.Duration("max-wait", a.cfg.Polling.MaxWait, "give up waiting after this long")
	return interval, maxWait
}

func (a *app) health(ctx context.Context) error {
	attempts, err := a.submitter.WaitHealthy(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "agent at %s is ready (%d probe(s))\n", a.client.BaseURL(), attempts)

	checks, err := a.backends.Check(ctx)
	for name, state := range checks {
		fmt.Fprintf(a.stdout, "%s: %s\n", name, state)
	}
	return err
}

func (a *app) submit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	analysisType := fs.String("type", models.AnalysisComprehensive,
		"analysis type: "+strings.Join(models.KnownAnalysisTypes, ", "))
	file := fs.String("file", "", "read content from this file instead of the arguments")
	wait := fs.Bool("wait", false, "wait for the result and print it")
	interval, maxWait := a.waitFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	content, err := readContent(*file, fs.Args())
	if err != nil {
		return err
	}

	job, err := a.submitter.Submit(ctx, content, *analysisType)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "submitted %s analysis: %s\n", job.AnalysisType, job.ID)

	if !*wait {
		return nil
	}
	return a.waitOne(ctx, job.ID, *interval, *maxWait)
}

func (a *app) wait(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("wait", flag.ContinueOnError)
	interval, maxWait := a.waitFlags(fs)
	parallel := fs.Int("parallel", 0, "max jobs waited on at once (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ids := fs.Args()
	switch len(ids) {
	case 0:
		return errors.New("wait: at least one job id is required")
	case 1:
		return a.waitOne(ctx, ids[0], *interval, *maxWait)
	}

	results, err := a.poller.WaitAll(ctx, ids, *interval, *maxWait, *parallel)
	for _, job := range results {
		if job != nil {
			a.out.Job(job)
		}
	}
	if err != nil {
		return err
	}
	return checkCompleted(results...)
}

func (a *app) waitOne(ctx context.Context, id string, interval, maxWait time.Duration) error {
	fmt.Fprintf(a.stdout, "waiting for %s (up to %s)...\n", id, maxWait)
	if status, ok := a.backends.LastStatus(ctx, id); ok {
		fmt.Fprintf(a.stdout, "last recorded status: %s\n", status)
	}
	job, err := a.poller.WaitForCompletion(ctx, id, interval, maxWait)
	if err != nil {
		return err
	}
	a.out.Job(job)
	return checkCompleted(job)
}

func (a *app) listJobs(ctx context.Context) error {
	list, err := a.client.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	a.out.List(list)
	return nil
}

func (a *app) monitor(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	interval := fs.Duration("interval", a.cfg.Polling.MonitorInterval, "time between job list refreshes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "monitoring %s, press Ctrl+C to stop\n", a.client.BaseURL())
	mon := jobs.NewMonitor(a.client, a.out,
		jobs.WithInterval(*interval),
		jobs.WithMonitorRecorder(a.recorder),
		jobs.WithMonitorLogger(a.logger),
	)
	stats, err := mon.Run(ctx)
	a.out.Summary(stats)
	return err
}

func (a *app) history(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	status := fs.String("status", "", "only jobs in this status")
	limit := fs.Int("limit", 20, "max rows")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 1 {
		job, err := a.backends.LookupJob(ctx, fs.Arg(0))
		if err != nil {
			return fmt.Errorf("history %s: %w", fs.Arg(0), err)
		}
		a.out.Job(job)
		return nil
	}

	// Listing needs the journal; the cache is keyed by id only.
	if a.backends.journal == nil {
		return errNoJournal
	}

	rows, err := a.backends.journal.ListJobs(ctx, store.JobFilter{Status: *status, Limit: *limit})
	if err != nil {
		return err
	}
	list := &models.JobList{TotalJobs: len(rows)}
	for _, j := range rows {
		list.Jobs = append(list.Jobs, models.JobSummary{ID: j.ID, Status: j.Status, AnalysisType: j.AnalysisType})
	}
	a.out.List(list)
	return nil
}

// demo checks the agent, runs a comprehensive then a thematic analysis of a
// sample text and lists the agent's jobs.
func (a *app) demo(ctx context.Context) error {
	if err := a.health(ctx); err != nil {
		return err
	}

	for _, typ := range []string{models.AnalysisComprehensive, models.AnalysisThematic} {
		job, err := a.submitter.Submit(ctx, sampleContent, typ)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "submitted %s analysis: %s\n", typ, job.ID)
		if err := a.waitOne(ctx, job.ID, a.cfg.Polling.Interval, a.cfg.Polling.MaxWait); err != nil {
			return err
		}
	}

	if err := a.listJobs(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "demo completed")
	return nil
}

func readContent(file string, args []string) (string, error) {
	if file != "" {
		if len(args) > 0 {
			return "", errors.New("submit: give either -file or TEXT, not both")
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read content: %w", err)
		}
		return string(data), nil
	}
	if len(args) == 0 {
		return "", errors.New("submit: TEXT or -file is required")
	}
	return strings.Join(args, " "), nil
}

func checkCompleted(js ...*models.Job) error {
	var bad []string
	for _, j := range js {
		if j == nil || j.Status == models.JobStatusCompleted {
			continue
		}
		bad = append(bad, j.ID+" "+j.Status)
	}
	if len(bad) > 0 {
		return fmt.Errorf("%w: %s", errJobNotCompleted, strings.Join(bad, ", "))
	}
	return nil
}
