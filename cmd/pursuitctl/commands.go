package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"pursuit/internal/config"
	"pursuit/internal/policy"
	"pursuit/internal/scape"
	"pursuit/internal/scenario"
	"pursuit/internal/trace"
	"pursuit/internal/transport/observer"
	"pursuit/internal/world"
	pursuitapi "pursuit/pkg/pursuit"
)

// rolloutFlags mirrors the rollout, policies and scenario sections of the
// run config. Only flags set on the command line override the file.
type rolloutFlags struct {
	mode           string
	episodes       int
	workers        int
	seed           int64
	steps          int
	cooperator     string
	adversary      string
	numAgents      int
	numAdversaries int
	numLandmarks   int
	traceOut       string
}

func (f *rolloutFlags) register(cmd *cobra.Command) {
	defaults := config.Default()
	flags := cmd.Flags()
	flags.StringVar(&f.mode, "mode", defaults.Rollout.Mode, "evaluation mode: gt|validation|test|benchmark")
	flags.IntVar(&f.episodes, "episodes", defaults.Rollout.Episodes, "number of independent episodes")
	flags.IntVar(&f.workers, "workers", defaults.Rollout.Workers, "episodes evaluated in parallel")
	flags.Int64Var(&f.seed, "seed", defaults.Rollout.Seed, "base seed; episode i uses seed+i")
	flags.IntVar(&f.steps, "steps", defaults.Rollout.Steps, "ticks per episode; 0 uses the mode default")
	flags.StringVar(&f.cooperator, "cooperator", defaults.Policies.Cooperator, "cooperator policy")
	flags.StringVar(&f.adversary, "adversary", defaults.Policies.Adversary, "adversary policy")
	flags.IntVar(&f.numAgents, "num-agents", defaults.Scenario.NumAgents, "total agents")
	flags.IntVar(&f.numAdversaries, "num-adversaries", defaults.Scenario.NumAdversaries, "adversaries among the agents")
	flags.IntVar(&f.numLandmarks, "num-landmarks", defaults.Scenario.NumLandmarks, "goal candidate landmarks")
	flags.StringVar(&f.traceOut, "trace-out", defaults.Rollout.TraceOut, "write frames to a zstd JSON-lines trace file")
}

func (f *rolloutFlags) apply(cmd *cobra.Command, cfg *config.RunConfig) error {
	changed := cmd.Flags().Changed
	if changed("mode") {
		cfg.Rollout.Mode = normalizeName(f.mode)
	}
	if changed("episodes") {
		cfg.Rollout.Episodes = f.episodes
	}
	if changed("workers") {
		cfg.Rollout.Workers = f.workers
	}
	if changed("seed") {
		cfg.Rollout.Seed = f.seed
	}
	if changed("steps") {
		cfg.Rollout.Steps = f.steps
	}
	if changed("cooperator") {
		cfg.Policies.Cooperator = normalizeName(f.cooperator)
	}
	if changed("adversary") {
		cfg.Policies.Adversary = normalizeName(f.adversary)
	}
	if changed("num-agents") {
		cfg.Scenario.NumAgents = f.numAgents
	}
	if changed("num-adversaries") {
		cfg.Scenario.NumAdversaries = f.numAdversaries
	}
	if changed("num-landmarks") {
		cfg.Scenario.NumLandmarks = f.numLandmarks
	}
	if changed("trace-out") {
		cfg.Rollout.TraceOut = f.traceOut
	}
	return cfg.Validate()
}

func runRequest(cfg config.RunConfig, sinks ...scape.FrameSink) pursuitapi.RunRequest {
	return pursuitapi.RunRequest{
		Scenario:         cfg.Scenario,
		Mode:             cfg.Rollout.Mode,
		Episodes:         cfg.Rollout.Episodes,
		Workers:          cfg.Rollout.Workers,
		Seed:             cfg.Rollout.Seed,
		Steps:            cfg.Rollout.Steps,
		CooperatorPolicy: cfg.Policies.Cooperator,
		AdversaryPolicy:  cfg.Policies.Adversary,
		TraceOut:         cfg.Rollout.TraceOut,
		Sinks:            sinks,
	}
}

func newRunCommand(a *app) *cobra.Command {
	var flags rolloutFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate scripted policies over independent episodes and store the run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.apply(cmd, &a.cfg); err != nil {
				return err
			}
			ctx := cmd.Context()
			client, err := a.client(ctx)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			summary, err := client.Run(ctx, runRequest(a.cfg))
			if err != nil {
				return err
			}
			printRunSummary(cmd, summary)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func printRunSummary(cmd *cobra.Command, summary pursuitapi.RunSummary) {
	out := cmd.OutOrStdout()
	printf(out, "run completed run_id=%s mode=%s episodes=%d steps=%d\n",
		summary.RunID, summary.Mode, summary.Episodes, summary.Steps)
	printf(out, "mean_fitness=%.6f cooperator_return=%.6f adversary_return=%.6f final_distance=%.6f occupancy_rate=%.4f\n",
		summary.MeanFitness, summary.MeanCooperatorReturn, summary.MeanAdversaryReturn, summary.MeanFinalDistance, summary.OccupancyRate)
	if summary.TraceFrames > 0 {
		printf(out, "trace_frames=%s\n", humanize.Comma(int64(summary.TraceFrames)))
	}
	if summary.NewBest {
		printf(out, "new scenario best mean_fitness=%.6f\n", summary.MeanFitness)
	}
}

func newRunsCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			client, err := a.client(ctx)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			runs, err := client.Runs(ctx, pursuitapi.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				printf(out, "no runs\n")
				return nil
			}
			for _, run := range runs {
				printf(out, "run_id=%s created=%s mode=%s seed=%d episodes=%s steps=%d policies=%s/%s mean_fitness=%.6f occupancy_rate=%.4f\n",
					run.RunID,
					createdAgo(run.CreatedAtUTC),
					run.Mode,
					run.Seed,
					humanize.Comma(int64(run.Episodes)),
					run.Steps,
					run.CooperatorPolicy,
					run.AdversaryPolicy,
					run.MeanFitness,
					run.OccupancyRate,
				)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum runs to list; 0 lists all")
	return cmd
}

func createdAgo(createdAtUTC string) string {
	t, err := time.Parse(time.RFC3339Nano, createdAtUTC)
	if err != nil {
		return createdAtUTC
	}
	return humanize.Time(t)
}

func newEpisodesCommand(a *app) *cobra.Command {
	var (
		runID  string
		latest bool
	)
	cmd := &cobra.Command{
		Use:   "episodes",
		Short: "Show per-episode results of a stored run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			client, err := a.client(ctx)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			episodes, err := client.Episodes(ctx, pursuitapi.EpisodesRequest{RunID: runID, Latest: latest || runID == ""})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range episodes {
				printf(out, "episode=%d seed=%d goal=%d cooperator_return=%.6f adversary_return=%.6f fitness=%.6f final_distance=%.6f occupied=%d\n",
					e.Episode, e.Seed, e.GoalIndex, e.CooperatorReturn, e.AdversaryReturn, e.Fitness, e.FinalDistance, e.Occupied)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run to show")
	cmd.Flags().BoolVar(&latest, "latest", false, "show the newest run")
	return cmd
}

func newReplayCommand(_ *app) *cobra.Command {
	var (
		episode int
		every   int
	)
	cmd := &cobra.Command{
		Use:   "replay <trace-file>",
		Short: "Decode a trace file written by run --trace-out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if every <= 0 {
				return fmt.Errorf("--every must be > 0, got %d", every)
			}
			out := cmd.OutOrStdout()
			frames := 0
			episodes := map[int]struct{}{}
			err := trace.Scan(args[0], func(frame scape.Frame) error {
				if episode >= 0 && frame.Episode != episode {
					return nil
				}
				frames++
				episodes[frame.Episode] = struct{}{}
				if frame.Tick%every != 0 {
					return nil
				}
				printf(out, "episode=%d tick=%d goal=%d", frame.Episode, frame.Tick, frame.GoalIndex)
				for i, a := range frame.Agents {
					printf(out, " %s[%s]=%s", a.Name, a.Role, formatVec(a.Pos))
					if i < len(frame.Rewards) {
						printf(out, " r=%.4f", frame.Rewards[i])
					}
				}
				printf(out, "\n")
				return nil
			})
			if err != nil {
				return err
			}
			printf(out, "frames=%s episodes=%d\n", humanize.Comma(int64(frames)), len(episodes))
			return nil
		},
	}
	cmd.Flags().IntVar(&episode, "episode", -1, "only replay this episode; -1 replays all")
	cmd.Flags().IntVar(&every, "every", 1, "print every n-th tick")
	return cmd
}

func formatVec(v []float64) string {
	s := "("
	for i, x := range v {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%.3f", x)
	}
	return s + ")"
}

func newWatchCommand(a *app) *cobra.Command {
	var (
		flags  rolloutFlags
		addr   string
		linger time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run episodes while streaming every frame to websocket observers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.apply(cmd, &a.cfg); err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				a.cfg.Observer.Addr = addr
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			hub := observer.NewHub(a.logger)
			serveErr := make(chan error, 1)
			go func() {
				serveErr <- hub.ListenAndServe(ctx, a.cfg.Observer.Addr)
			}()

			client, err := a.client(ctx)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			summary, err := client.Run(ctx, runRequest(a.cfg, hub))
			if err != nil {
				return err
			}
			printRunSummary(cmd, summary)
			printf(cmd.OutOrStdout(), "observer_addr=%s dropped_frames=%s\n", a.cfg.Observer.Addr, humanize.Comma(int64(hub.Dropped())))

			if linger > 0 {
				select {
				case <-time.After(linger):
				case <-ctx.Done():
				}
			}
			cancel()
			if err := <-serveErr; err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("observer server: %w", err)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", config.Default().Observer.Addr, "observer listen address")
	cmd.Flags().DurationVar(&linger, "linger", 0, "keep serving observers this long after the run finishes")
	return cmd
}

func newLayoutCommand(a *app) *cobra.Command {
	var flags rolloutFlags
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Print the observation layout of every agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.apply(cmd, &a.cfg); err != nil {
				return err
			}
			s, err := scenario.New(a.cfg.Scenario)
			if err != nil {
				return err
			}
			layout := s.Layout()
			out := cmd.OutOrStdout()
			printf(out, "scenario=%s agents=%d landmarks=%d dim_p=%d policies=%v\n",
				s.Name(), layout.NumAgents, layout.NumLandmarks, layout.DimP, policy.Names())
			for i, role := range s.Roles() {
				printf(out, "agent=%d role=%s obs_size=%d landmarks=[0,%d) agents=[%d,%d)",
					i,
					role,
					layout.Size(role),
					layout.DimP*layout.NumLandmarks,
					layout.DimP*layout.NumLandmarks,
					layout.DimP*layout.NumLandmarks+2*layout.DimP*layout.NumAgents,
				)
				if role == world.RoleCooperator {
					printf(out, " goal=[%d,%d)", layout.Size(role)-layout.DimP, layout.Size(role))
				}
				printf(out, "\n")
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
