package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/signalsfoundry/rfcascade/core"
	"github.com/signalsfoundry/rfcascade/internal/chainfile"
	"github.com/signalsfoundry/rfcascade/internal/logging"
	"github.com/signalsfoundry/rfcascade/internal/observability"
	"github.com/signalsfoundry/rfcascade/internal/report"
	"github.com/signalsfoundry/rfcascade/internal/rpc"
	"github.com/signalsfoundry/rfcascade/model"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type evalOptions struct {
	output    string
	metrics   string
	power     string
	direction string
	plain     bool
	watch     bool
	debounce  time.Duration
	remote    string
}

// evalJob is a validated eval invocation.
type evalJob struct {
	path      string
	output    string
	direction model.Direction
	report    report.Options
	eval      *core.Evaluator
	client    *rpc.Client
}

func newEvalCmd(root *rootOptions) *cobra.Command {
	opts := &evalOptions{}
	cmd := &cobra.Command{
		Use:   "eval <chain-file>",
		Short: "Evaluate a chain file and print the cascade",
		Long: `Evaluate a chain file (.json, .yaml, .yml or .hcl) and print per-stage
metrics followed by the chain output. With --watch the chain is
re-evaluated every time the file changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := root.logger(cmd, "warn")
			if err != nil {
				return err
			}
			shutdownTracing, err := observability.InitTracing(cmd.Context(), observability.TracingConfigFromEnv(), log)
			if err != nil {
				return err
			}
			defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, 0, log)

			job, closeFn, err := opts.job(args[0], log)
			if err != nil {
				return err
			}
			defer closeFn()

			out := cmd.OutOrStdout()
			if !opts.watch {
				return job.run(cmd.Context(), out)
			}
			return watchFile(cmd.Context(), args[0], opts.debounce, log, func() {
				if err := job.run(cmd.Context(), out); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
				}
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "table", "output format: table or json")
	f.StringVarP(&opts.metrics, "metrics", "m", "", "comma separated metric keys to show (default: the standard set)")
	f.StringVar(&opts.power, "power", "dBm", "display unit for powers: dBm, dBW or W")
	f.StringVar(&opts.direction, "direction", "", "override the chain direction: rx or tx")
	f.BoolVar(&opts.plain, "plain", false, "disable colors")
	f.BoolVarP(&opts.watch, "watch", "w", false, "re-evaluate when the chain file changes")
	f.DurationVar(&opts.debounce, "debounce", 100*time.Millisecond, "quiet period before re-evaluating in watch mode")
	f.StringVar(&opts.remote, "remote", "", "evaluate on a running rfcascade server at this address")
	return cmd
}

func (o *evalOptions) job(path string, log logging.Logger) (*evalJob, func(), error) {
	output := strings.ToLower(o.output)
	if output != "table" && output != "json" {
		return nil, nil, fmt.Errorf("unknown output format %q", o.output)
	}
	power, err := report.ParsePowerUnit(o.power)
	if err != nil {
		return nil, nil, err
	}
	metrics, err := report.ParseMetrics(o.metrics)
	if err != nil {
		return nil, nil, err
	}
	job := &evalJob{
		path:   path,
		output: output,
		report: report.Options{Metrics: metrics, Power: power, Plain: o.plain},
	}
	if o.direction != "" {
		if job.direction, err = model.ParseDirection(o.direction); err != nil {
			return nil, nil, err
		}
	}

	if o.remote == "" {
		job.eval = core.NewEvaluator(core.WithLogger(log))
		return job, func() {}, nil
	}
	conn, err := grpc.NewClient(o.remote,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(rpc.RequestIDUnaryClientInterceptor()),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", o.remote, err)
	}
	job.client = rpc.NewClient(conn)
	return job, func() { _ = conn.Close() }, nil
}

func (j *evalJob) run(ctx context.Context, w io.Writer) error {
	spec, err := chainfile.Load(j.path)
	if err != nil {
		return err
	}
	if j.direction != "" {
		spec.Globals.Direction = j.direction
	}

	doc, err := j.evaluate(ctx, spec)
	if err != nil {
		return err
	}
	if j.output == "json" {
		return doc.Encode(w)
	}
	tbl, err := report.BuildDocument(doc, j.report)
	if err != nil {
		return err
	}
	return tbl.Render(w)
}

func (j *evalJob) evaluate(ctx context.Context, spec model.ChainSpec) (*report.Document, error) {
	if j.client != nil {
		names := make([]string, len(j.report.Metrics))
		for i, m := range j.report.Metrics {
			names[i] = m.String()
		}
		if j.output == "table" {
			names = nil
		}
		return j.client.Evaluate(ctx, spec, names)
	}

	ctx, _ = logging.EnsureRequestID(ctx)
	res, err := j.eval.EvaluateSpec(ctx, spec)
	if err != nil {
		return nil, err
	}
	metrics := j.report.Metrics
	if j.output == "table" {
		metrics = nil
	}
	return report.NewDocument(res, metrics)
}
