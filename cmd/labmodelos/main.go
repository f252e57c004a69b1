package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/Jason9-Alex/Lab-Modelos/internal/automation"
	"github.com/Jason9-Alex/Lab-Modelos/internal/config"
	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
	"github.com/Jason9-Alex/Lab-Modelos/internal/experiment"
	"github.com/Jason9-Alex/Lab-Modelos/internal/export"
	"github.com/Jason9-Alex/Lab-Modelos/internal/httpapi"
	"github.com/Jason9-Alex/Lab-Modelos/internal/integrators"
	"github.com/Jason9-Alex/Lab-Modelos/internal/logging"
	"github.com/Jason9-Alex/Lab-Modelos/internal/observability"
	"github.com/Jason9-Alex/Lab-Modelos/internal/optim"
	"github.com/Jason9-Alex/Lab-Modelos/internal/vectorfield"
	"github.com/Jason9-Alex/Lab-Modelos/internal/viz"
)

var (
	configFile string
	logLevel   string
	logFormat  string

	preset      string
	sets        []string
	useDefaults bool
	format      string
	plot        bool
	outFile     string
	method      string

	fieldReq = vectorfield.DefaultRequest()

	sweepParam string
	sweepFrom  float64
	sweepTo    float64
	sweepSteps int

	addr    string
	traceOn bool

	gridAxes []string
	metric   string
	maximize bool

	perturb []string
	trials  int
	seed    int64
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "labmodelos",
		Short:         "population and epidemic dynamics lab",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runDashboard,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "run a model and print its summary",
		Args:  cobra.ExactArgs(1),
		RunE:  runModel,
	}
	addParamFlags(runCmd)
	runCmd.Flags().StringVar(&format, "format", "table", "output format (table, csv, json)")
	runCmd.Flags().BoolVar(&plot, "plot", false, "draw the trajectory (table format)")
	runCmd.Flags().StringVarP(&outFile, "out", "o", "", "write output to file")
	runCmd.Flags().StringVar(&method, "method", "", "override solver method (euler, rk4, rk45)")

	fieldCmd := &cobra.Command{
		Use:   "field",
		Short: "evaluate a 2D vector field",
		Args:  cobra.NoArgs,
		RunE:  runField,
	}
	fieldCmd.Flags().StringVar(&fieldReq.FX, "fx", fieldReq.FX, "x component, in X and Y")
	fieldCmd.Flags().StringVar(&fieldReq.FY, "fy", fieldReq.FY, "y component, in X and Y")
	fieldCmd.Flags().Float64Var(&fieldReq.XMax, "xmax", fieldReq.XMax, "mesh half-width")
	fieldCmd.Flags().Float64Var(&fieldReq.YMax, "ymax", fieldReq.YMax, "mesh half-height")
	fieldCmd.Flags().IntVar(&fieldReq.N, "n", fieldReq.N, "mesh points per axis")
	fieldCmd.Flags().StringVar(&format, "format", "table", "output format (table, csv, json)")
	fieldCmd.Flags().StringVarP(&outFile, "out", "o", "", "write output to file")

	sweepCmd := &cobra.Command{
		Use:   "sweep [model]",
		Short: "rerun a model across a parameter range",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	addParamFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "", "parameter to sweep")
	sweepCmd.Flags().Float64Var(&sweepFrom, "from", 0, "first value")
	sweepCmd.Flags().Float64Var(&sweepTo, "to", 1, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 11, "number of values")
	sweepCmd.Flags().StringVar(&format, "format", "table", "output format (table, csv, json)")
	sweepCmd.Flags().BoolVar(&plot, "plot", false, "chart final value against the parameter")
	_ = sweepCmd.MarkFlagRequired("param")

	modelsCmd := &cobra.Command{
		Use:   "models [model]",
		Short: "list models, or describe one",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listModels,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for model: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, name := range presets {
				p := config.GetPreset(args[0], name)
				pairs := make([]string, 0, len(p))
				for _, k := range p.Names() {
					pairs = append(pairs, fmt.Sprintf("%s=%g", k, p[k]))
				}
				fmt.Printf("  %-14s %s\n", name, strings.Join(pairs, " "))
			}
			return nil
		},
	}

	compareCmd := &cobra.Command{
		Use:   "compare [model] [method1] [method2] ...",
		Short: "compare solver methods on the same model",
		Args:  cobra.MinimumNArgs(2),
		RunE:  compareMethods,
	}
	addParamFlags(compareCmd)

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run the steps of a yaml scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	optimizeCmd := &cobra.Command{
		Use:   "optimize [model]",
		Short: "grid search parameters for the best metric",
		Args:  cobra.ExactArgs(1),
		RunE:  runOptimize,
	}
	addParamFlags(optimizeCmd)
	optimizeCmd.Flags().StringArrayVar(&gridAxes, "grid", nil, "grid axis, name=from:to:steps or name=v1,v2 (repeatable)")
	optimizeCmd.Flags().StringVar(&metric, "metric", "final", "final, peak, peak_time, r0, ever_infected or a run metric")
	optimizeCmd.Flags().BoolVar(&maximize, "maximize", false, "maximize instead of minimize")
	_ = optimizeCmd.MarkFlagRequired("grid")

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo [model]",
		Short: "run perturbed trials and count outcomes",
		Args:  cobra.ExactArgs(1),
		RunE:  runMonteCarlo,
	}
	addParamFlags(monteCarloCmd)
	monteCarloCmd.Flags().StringArrayVar(&perturb, "perturb", nil, "uniform spread for a parameter, k=spread (repeatable)")
	monteCarloCmd.Flags().IntVar(&trials, "trials", 100, "number of trials")
	monteCarloCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 uses the clock)")
	monteCarloCmd.Flags().StringVar(&format, "format", "table", "output format (table, json)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the JSON API",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	serveCmd.Flags().BoolVar(&traceOn, "trace", false, "export spans to stdout")

	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "interactive terminal dashboard",
		Args:  cobra.NoArgs,
		RunE:  runDashboard,
	}

	rootCmd.AddCommand(runCmd, fieldCmd, sweepCmd, modelsCmd, presetsCmd, compareCmd,
		scenarioCmd, optimizeCmd, monteCarloCmd, serveCmd, tuiCmd)

	if err := rootCmd.Execute(); err != nil {
		if kind := dynamo.KindOf(err); kind != "" {
			fmt.Fprintf(os.Stderr, "error [%s]: %v\n", kind, err)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func addParamFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&preset, "preset", "", "start from a named preset")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "override a parameter, k=v (repeatable)")
	cmd.Flags().BoolVar(&useDefaults, "defaults", false, "take parameters not given by --preset or --set from the model defaults")
}

// runner picks the registry entry point for --defaults.
func runner(r *experiment.Registry) func(context.Context, string, dynamo.Params) (*experiment.Result, error) {
	if useDefaults {
		return r.RunWithDefaults
	}
	return r.Run
}

// loadConfig reads --config when given and applies the logging flags on top.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	return cfg, cfg.Validate()
}

type env struct {
	cfg      *config.Config
	log      logging.Logger
	ctx      context.Context
	registry *experiment.Registry
}

func setup(cmd *cobra.Command, opts ...experiment.Option) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.LoggingConfig())
	ctx := logging.ContextWithLogger(cmd.Context(), log)
	return &env{
		cfg:      cfg,
		log:      log,
		ctx:      ctx,
		registry: experiment.NewRegistry(cfg.SimConfig(), opts...),
	}, nil
}

// resolveParams starts from --preset and applies every --set in order.
func resolveParams(model string) (dynamo.Params, error) {
	params := dynamo.Params{}
	if preset != "" {
		p := config.GetPreset(model, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(model))
		}
		params = p
	}
	overrides, err := parseAssignments("--set", sets)
	if err != nil {
		return nil, err
	}
	return params.Merge(overrides), nil
}

// parseAssignments reads repeated k=v flag values.
func parseAssignments(flag string, pairs []string) (dynamo.Params, error) {
	out := dynamo.Params{}
	for _, kv := range pairs {
		name, raw, ok := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%s %q: expected k=v", flag, kv)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %q is not a number", flag, kv, raw)
		}
		out[name] = v
	}
	return out, nil
}

func output(write func(io.Writer) error) error {
	if outFile == "" {
		return write(os.Stdout)
	}
	if err := export.ToFile(outFile, write); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", outFile)
	return nil
}

func runModel(cmd *cobra.Command, args []string) error {
	model := args[0]
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	if method != "" {
		if _, err := integrators.New(method); err != nil {
			return err
		}
		e.cfg.Solver.Method = method
		e.registry = experiment.NewRegistry(e.cfg.SimConfig())
	}

	params, err := resolveParams(model)
	if err != nil {
		return err
	}
	res, err := runner(e.registry)(e.ctx, model, params)
	if err != nil {
		return fmt.Errorf("run %s: %w", model, err)
	}

	switch format {
	case "json":
		return output(func(w io.Writer) error { return export.WriteResultJSON(w, res) })
	case "csv":
		return output(func(w io.Writer) error { return export.WriteResultCSV(w, res) })
	case "table":
		return output(func(w io.Writer) error {
			if plot {
				fmt.Fprintln(w, viz.Plot(res, viz.DefaultChartOptions()))
				fmt.Fprintln(w)
			}
			_, err := fmt.Fprint(w, viz.SummaryTable(res))
			return err
		})
	}
	return fmt.Errorf("unknown format: %s", format)
}

func runField(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	f, err := vectorfield.EvaluateField(e.ctx, fieldReq)
	if err != nil {
		return fmt.Errorf("field: %w", err)
	}

	switch format {
	case "json":
		return output(func(w io.Writer) error { return export.WriteJSON(w, f) })
	case "csv":
		return output(func(w io.Writer) error { return export.WriteFieldCSV(w, f) })
	case "table":
		return output(func(w io.Writer) error {
			fmt.Fprintf(w, "fx = %s\nfy = %s\n\n", fieldReq.FX, fieldReq.FY)
			fmt.Fprint(w, viz.Quiver(f, 60, 24))
			_, err := fmt.Fprintf(w, "\n|F| in [%.4g, %.4g] over %dx%d points\n", f.MinMagnitude, f.MaxMagnitude, f.Rows(), f.Cols())
			return err
		})
	}
	return fmt.Errorf("unknown format: %s", format)
}

func runSweep(cmd *cobra.Command, args []string) error {
	model := args[0]
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	base, err := resolveParams(model)
	if err != nil {
		return err
	}

	points, err := e.registry.Sweep(e.ctx, experiment.SweepSpec{
		Model:    model,
		Base:     base,
		Param:    sweepParam,
		From:     sweepFrom,
		To:       sweepTo,
		Steps:    sweepSteps,
		Defaults: useDefaults,
	})
	if err != nil {
		return fmt.Errorf("sweep %s: %w", model, err)
	}

	switch format {
	case "json":
		return export.WriteJSON(os.Stdout, points)
	case "csv":
		return export.WriteSweepCSV(os.Stdout, sweepParam, points)
	case "table":
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "%s\tFINAL\tPEAK\tPEAK_T\tEXTINCT\n", strings.ToUpper(sweepParam))
		for _, p := range points {
			if p.Failed() {
				fmt.Fprintf(w, "%g\t-\t-\t-\t%s\n", p.Param, p.Err)
				continue
			}
			fmt.Fprintf(w, "%g\t%.4g\t%.4g\t%.4g\t%t\n", p.Param, p.Final, p.Peak, p.PeakTime, p.Extinct)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if plot {
			fmt.Println()
			fmt.Print(viz.PlotSweep(sweepParam, points, viz.ChartOptions{Width: 60, Height: 12}))
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", format)
}

func listModels(cmd *cobra.Command, args []string) error {
	registry := experiment.NewRegistry(config.DefaultConfig().SimConfig())
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	if len(args) == 1 {
		info, err := registry.Describe(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s (state %s)\n\n", info.Name, info.Title, strings.Join(info.Labels, ", "))
		fmt.Fprintln(w, "PARAM\tDEFAULT\tDESCRIPTION")
		for _, p := range info.Params {
			fmt.Fprintf(w, "%s\t%g\t%s\n", p.Name, p.Default, p.Doc)
		}
		return w.Flush()
	}

	fmt.Fprintln(w, "MODEL\tSTATE\tTITLE")
	for _, name := range registry.Names() {
		info, _ := registry.Describe(name)
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, strings.Join(info.Labels, ","), info.Title)
	}
	return w.Flush()
}

func compareMethods(cmd *cobra.Command, args []string) error {
	model, methods := args[0], args[1:]
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	params, err := resolveParams(model)
	if err != nil {
		return err
	}

	ctx := logging.ContextWithLogger(cmd.Context(), logging.New(cfg.LoggingConfig()))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tFINAL\tPEAK\tPEAK_T\tSTEPS\tTIME")

	for _, m := range methods {
		solver := cfg.SimConfig()
		solver.Method = m
		start := time.Now()
		res, err := runner(experiment.NewRegistry(solver))(ctx, model, params)
		if err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t%v\n", m, err)
			continue
		}
		fmt.Fprintf(w, "%s\t%.6g\t%.6g\t%.4g\t%d\t%v\n", m,
			res.Summary.FinalValue, res.Summary.PeakValue, res.Summary.PeakTime, res.Steps,
			time.Since(start).Round(time.Microsecond))
	}
	return w.Flush()
}

func runScenario(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	results, err := automation.RunScenario(e.ctx, sc, e.cfg.SimConfig(), filepath.Dir(args[0]))
	if err != nil {
		return err
	}

	if sc.Name != "" {
		fmt.Printf("scenario %s: %s\n\n", sc.Name, sc.Description)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tMODEL\tPRESET\tFINAL\tPEAK\tEXTINCT\tSAVED")
	failed := 0
	for i, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "%d\t%s\t%s\t-\t-\t-\t%v\n", i+1, r.Step.Model, r.Step.Preset, r.Err)
			continue
		}
		s := r.Result.Summary
		fmt.Fprintf(w, "%d\t%s\t%s\t%.4g\t%.4g\t%t\t%s\n", i+1, r.Step.Model, r.Step.Preset, s.FinalValue, s.PeakValue, s.Extinct, r.Saved)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d steps failed", failed, len(results))
	}
	return nil
}

func runOptimize(cmd *cobra.Command, args []string) error {
	model := args[0]
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	base, err := resolveParams(model)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(gridAxes))
	ranges := make([][]float64, 0, len(gridAxes))
	for _, axis := range gridAxes {
		name, values, err := optim.ParseAxis(axis)
		if err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}
	g, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}

	run := func(ctx context.Context, p dynamo.Params) (*experiment.Result, error) {
		return runner(e.registry)(ctx, model, p)
	}
	best, err := g.Search(e.ctx, base, run, optim.Objective{Metric: metric, Maximize: maximize})
	if err != nil {
		return fmt.Errorf("optimize %s: %w", model, err)
	}

	goal := "min"
	if maximize {
		goal = "max"
	}
	fmt.Printf("%s %s = %.6g after %d runs (%d failed)\n", goal, metric, best.Value, best.Evaluated, best.Failed)
	for _, name := range names {
		fmt.Printf("  %s = %g\n", name, best.Params[name])
	}
	return nil
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	model := args[0]
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	base, err := resolveParams(model)
	if err != nil {
		return err
	}
	spread, err := parseAssignments("--perturb", perturb)
	if err != nil {
		return err
	}

	results, err := automation.RunMonteCarlo(e.ctx, automation.MonteCarloConfig{
		Model:     model,
		Base:      base,
		Spread:    spread,
		NumTrials: trials,
		Seed:      seed,
		Defaults:  useDefaults,
	}, e.registry)
	if err != nil {
		return fmt.Errorf("montecarlo %s: %w", model, err)
	}

	if format == "json" {
		return export.WriteJSON(os.Stdout, results)
	}
	extinct, survived, failed := automation.MonteCarloStats(results)
	finals := make([]float64, 0, len(results))
	for _, r := range results {
		if r.Err == "" {
			finals = append(finals, r.Final)
		}
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "trials\t%d\n", len(results))
	fmt.Fprintf(w, "survived\t%d\n", survived)
	fmt.Fprintf(w, "extinct\t%d\n", extinct)
	fmt.Fprintf(w, "failed\t%d\n", failed)
	fmt.Fprintf(w, "finals\t%s\n", viz.Sparkline(finals, 40))
	return w.Flush()
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.New(cfg.LoggingConfig())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.ContextWithLogger(ctx, log)

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     traceOn || cfg.Server.Trace,
		ServiceName: "labmodelos",
	}, log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.WithoutCancel(ctx), shutdown, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := observability.NewCollector(reg)
	if err != nil {
		return err
	}

	listen := cfg.Server.Addr
	if addr != "" {
		listen = addr
	}
	srv := httpapi.NewServer(
		experiment.NewRegistry(cfg.SimConfig(), experiment.WithCollector(collector)),
		httpapi.WithLogger(log),
		httpapi.WithGatherer(reg),
		httpapi.WithTimeout(cfg.Server.RequestTimeout),
	)
	if err := srv.ListenAndServe(ctx, listen); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runDashboard(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	// the dashboard owns the terminal; keep engine logs quiet
	ctx := logging.ContextWithLogger(e.ctx, logging.Noop())
	return viz.RunDashboard(ctx, e.registry)
}
