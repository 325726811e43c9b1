package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"

	"github.com/sarchlab/qnet/config"
	"github.com/sarchlab/qnet/monitoring"
	"github.com/sarchlab/qnet/recording"
	"github.com/sarchlab/qnet/reservation"
	"github.com/sarchlab/qnet/sim"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type runOptions struct {
	scenario    string
	monitor     bool
	monitorPort int
	openBrowser bool
	record      string
	logLevel    string
	seed        int64
	seedSet     bool
	stopTime    float64
	parallelIDs bool
	wait        bool
}

func newRunCmd() *cobra.Command {
	opts := runOptions{}

	c := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			opts.scenario = args[0]
			opts.seedSet = c.Flags().Changed("seed")
			opts.wait = opts.monitor

			return runScenario(opts, c.OutOrStdout())
		},
	}

	c.Flags().BoolVar(&opts.monitor, "monitor", false,
		"Serve the monitoring web page while the simulation runs")
	c.Flags().IntVar(&opts.monitorPort, "monitor-port",
		envInt("QNET_MONITOR_PORT", 0),
		"Port of the monitoring server (0 picks a free port)")
	c.Flags().BoolVar(&opts.openBrowser, "open-browser", false,
		"Open the monitoring page in the default browser")
	c.Flags().StringVar(&opts.record, "record", os.Getenv("QNET_RECORD_DB"),
		"Record control-plane events into this SQLite database (without the "+
			".sqlite3 suffix)")
	c.Flags().StringVar(&opts.logLevel, "log-level", "info",
		"Log level (trace, debug, info, warn, error, fatal, panic)")
	c.Flags().Int64Var(&opts.seed, "seed", 0,
		"Seed of the physics model, overriding the scenario")
	c.Flags().Float64Var(&opts.stopTime, "stop-time", 0,
		"Stop the simulation at this simulated time (0 runs every event)")
	c.Flags().BoolVar(&opts.parallelIDs, "parallel-ids", false,
		"Use globally unique, non-reproducible IDs for events and messages")

	return c
}

func envInt(name string, fallback int) int {
	v, found := os.LookupEnv(name)
	if !found {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		logrus.Warnf("ignoring %s=%q: not a number", name, v)
		return fallback
	}

	return n
}

func runScenario(opts runOptions, out io.Writer) error {
	level, err := logrus.ParseLevel(opts.logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", opts.logLevel, err)
	}

	logrus.SetLevel(level)

	if opts.stopTime < 0 {
		return fmt.Errorf("invalid stop time %v", opts.stopTime)
	}

	if opts.parallelIDs {
		sim.UseParallelIDGenerator()
	}

	scenario, err := config.Load(opts.scenario)
	if err != nil {
		return err
	}

	var seed *int64
	if opts.seedSet {
		seed = &opts.seed
	}

	engine := sim.NewSerialEngine()
	if level >= logrus.TraceLevel {
		engine.AcceptHook(sim.NewEventLogger(logrus.StandardLogger()))
	}

	simulation, err := scenario.Build(engine, seed)
	if err != nil {
		return err
	}

	latency := recording.NewLatencyTracer()
	for _, r := range simulation.Routers {
		r.ReservationProtocol().AcceptHook(latency)
	}

	if opts.record != "" {
		closer, err := attachRecorder(simulation, opts.record)
		if err != nil {
			return err
		}
		defer closer()
	}

	if opts.monitor {
		if err := startMonitor(simulation, opts, len(scenario.Requests)); err != nil {
			return err
		}
	}

	if err := runEngine(engine, opts.stopTime); err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	engine.Finished()
	report(out, simulation, latency)

	if pending := engine.Pending(); pending > 0 {
		fmt.Fprintf(out, "stopped at %vs with %d events pending\n",
			float64(engine.CurrentTime()), pending)
	}

	if opts.wait {
		logrus.Info("Simulation finished. Press Ctrl+C to stop the monitor.")
		waitForInterrupt()
	}

	return nil
}

func runEngine(engine *sim.SerialEngine, stopTime float64) error {
	if stopTime > 0 {
		return engine.RunUntil(sim.VTimeInSec(stopTime))
	}

	return engine.Run()
}

func attachRecorder(simulation *config.Simulation, path string) (func(), error) {
	dr, err := recording.New(path)
	if err != nil {
		return nil, err
	}

	rec, err := recording.NewRecorder(dr)
	if err != nil {
		return nil, err
	}

	for _, r := range simulation.Routers {
		r.ResourceManager().AcceptHook(rec)
		r.ReservationProtocol().AcceptHook(rec)
	}

	return func() {
		if err := dr.Close(); err != nil {
			logrus.WithError(err).Error("cannot close recording")
		}
	}, nil
}

func startMonitor(
	simulation *config.Simulation,
	opts runOptions,
	numRequests int,
) error {
	m := monitoring.NewMonitor().
		WithPortNumber(opts.monitorPort).
		WithBrowser(opts.openBrowser)
	m.RegisterEngine(simulation.Engine)

	bar := m.CreateProgressBar("Reservations", uint64(numRequests))
	tracker := &progressTracker{bar: bar}

	for _, r := range simulation.Routers {
		m.RegisterNode(r)
		r.ReservationProtocol().AcceptHook(tracker)
	}

	_, err := m.StartServer()

	return err
}

// progressTracker counts reservation results on a progress bar.
type progressTracker struct {
	bar *monitoring.ProgressBar
}

func (t *progressTracker) Func(ctx sim.HookCtx) {
	if ctx.Pos == reservation.HookPosReservationResult {
		t.bar.IncrementFinished(1)
	}
}

func report(
	out io.Writer,
	simulation *config.Simulation,
	latency *recording.LatencyTracer,
) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INITIATOR\tRESPONDER\tSTART\tEND\tAPPROVED\tDELIVERED")

	for _, r := range simulation.Routers {
		a := simulation.Apps[r.Name()]
		for _, result := range a.Results() {
			res := result.Reservation
			fmt.Fprintf(w, "%s\t%s\t%v\t%v\t%t\t%d\n",
				res.Initiator, res.Responder,
				float64(res.StartTime), float64(res.EndTime),
				result.Approved, a.Delivered(res))
		}
	}

	w.Flush()

	approved, rejected := latency.Counts()
	fmt.Fprintf(out,
		"approved %d, rejected %d, admission latency avg %.6fs max %.6fs\n",
		approved, rejected,
		float64(latency.AverageLatency()), float64(latency.MaxLatency()))
}

func waitForInterrupt() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c
}
