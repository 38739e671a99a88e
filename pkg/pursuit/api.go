package pursuit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"pursuit/internal/model"
	"pursuit/internal/physics"
	"pursuit/internal/policy"
	"pursuit/internal/scape"
	"pursuit/internal/scenario"
	"pursuit/internal/storage"
	"pursuit/internal/trace"
)

const (
	defaultDBPath = "pursuit.db"
	// Fixed-width so stored timestamps sort lexically.
	createdAtLayout = "2006-01-02T15:04:05.000000000Z"
)

var ErrRunNotFound = errors.New("run not found")

type Options struct {
	StoreKind string
	DBPath    string
	Logger    *slog.Logger
}

type Client struct {
	store  storage.Store
	logger *slog.Logger

	initialized bool
}

type RunRequest struct {
	Scenario         scenario.Config
	Mode             string
	Episodes         int
	Workers          int
	Seed             int64
	Steps            int
	CooperatorPolicy string
	AdversaryPolicy  string
	// TraceOut, when set, receives every frame as zstd-compressed JSON lines.
	TraceOut string
	Sinks    []scape.FrameSink
}

type RunSummary struct {
	RunID                string
	CreatedAtUTC         string
	Mode                 string
	Episodes             int
	Steps                int
	MeanFitness          float64
	MeanCooperatorReturn float64
	MeanAdversaryReturn  float64
	MeanFinalDistance    float64
	OccupancyRate        float64
	TraceFrames          int
	NewBest              bool
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	Scenario         string
	Mode             string
	Seed             int64
	Episodes         int
	Steps            int
	CooperatorPolicy string
	AdversaryPolicy  string
	MeanFitness      float64
	OccupancyRate    float64
}

type EpisodesRequest struct {
	RunID  string
	Latest bool
}

type EpisodeItem struct {
	Episode          int
	Seed             int64
	GoalIndex        int
	CooperatorReturn float64
	AdversaryReturn  float64
	Fitness          float64
	FinalDistance    float64
	Occupied         int
}

type ScenarioSummaryItem struct {
	Name        string
	Description string
	BestFitness float64
	BestRunID   string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	return &Client{store: store, logger: logger}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureStore(ctx)
}

// Run evaluates independent episodes of the push scenario with scripted
// policies and persists the run, its episodes and the scenario's best
// cooperator fitness.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Scenario == (scenario.Config{}) {
		req.Scenario = scenario.DefaultConfig()
	}
	if req.Mode == "" {
		req.Mode = "gt"
	}
	if req.Episodes <= 0 {
		req.Episodes = 16
	}
	if req.Workers <= 0 {
		req.Workers = 4
	}
	if req.Steps < 0 {
		return RunSummary{}, fmt.Errorf("steps must be >= 0, got %d", req.Steps)
	}
	if req.CooperatorPolicy == "" {
		req.CooperatorPolicy = "seek"
	}
	if req.AdversaryPolicy == "" {
		req.AdversaryPolicy = "shadow"
	}

	s, err := scenario.New(req.Scenario)
	if err != nil {
		return RunSummary{}, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}

	layout := s.Layout()
	roles := s.Roles()
	factory := func(episode int) ([]scape.Policy, error) {
		return policy.Team(layout, roles, req.CooperatorPolicy, req.AdversaryPolicy, req.Seed+int64(episode))
	}
	if _, err := factory(0); err != nil {
		return RunSummary{}, err
	}

	p := scape.NewPushScape(s, physics.NewPointMass(), req.Seed)
	p.Steps = req.Steps
	p.Logger = c.logger
	p.Sinks = append(p.Sinks, req.Sinks...)

	var traceWriter *trace.Writer
	if strings.TrimSpace(req.TraceOut) != "" {
		traceWriter, err = trace.Create(req.TraceOut)
		if err != nil {
			return RunSummary{}, fmt.Errorf("create trace: %w", err)
		}
		p.Sinks = append(p.Sinks, traceWriter)
	}

	started := time.Now()
	results, err := scape.RunEpisodes(ctx, p, factory, req.Mode, req.Episodes, req.Workers)
	if traceWriter != nil {
		if closeErr := traceWriter.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close trace: %w", closeErr)
		}
	}
	if err != nil {
		return RunSummary{}, err
	}
	summary := scape.Summarize(results)

	cfg := s.Config()
	runID := uuid.NewString()
	createdAt := time.Now().UTC().Format(createdAtLayout)
	run := model.RunRecord{
		VersionedRecord:      storage.CurrentVersion(),
		ID:                   runID,
		CreatedAtUTC:         createdAt,
		Scenario:             s.Name(),
		Mode:                 results[0].Mode,
		Seed:                 req.Seed,
		Episodes:             len(results),
		Steps:                results[0].Steps,
		NumAgents:            cfg.NumAgents,
		NumAdversaries:       cfg.NumAdversaries,
		NumLandmarks:         cfg.NumLandmarks,
		CooperatorPolicy:     req.CooperatorPolicy,
		AdversaryPolicy:      req.AdversaryPolicy,
		MeanFitness:          summary.MeanFitness,
		MeanCooperatorReturn: summary.MeanCooperatorReturn,
		MeanAdversaryReturn:  summary.MeanAdversaryReturn,
		MeanFinalDistance:    summary.MeanFinalDistance,
		OccupancyRate:        summary.OccupancyRate,
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, err
	}

	episodes := make([]model.EpisodeRecord, len(results))
	for i, r := range results {
		episodes[i] = model.EpisodeRecord{
			VersionedRecord:  storage.CurrentVersion(),
			RunID:            runID,
			Episode:          r.Episode,
			Seed:             r.Seed,
			GoalIndex:        r.GoalIndex,
			Returns:          append([]float64(nil), r.Returns...),
			CooperatorReturn: r.CooperatorReturn(),
			AdversaryReturn:  r.AdversaryReturn(),
			Fitness:          float64(r.Fitness),
			FinalDistance:    r.FinalDistance,
			Occupied:         r.Occupied,
		}
	}
	if err := c.store.SaveEpisodes(ctx, runID, episodes); err != nil {
		return RunSummary{}, err
	}

	newBest, err := c.updateScenarioSummary(ctx, s.Name(), run)
	if err != nil {
		return RunSummary{}, err
	}

	out := RunSummary{
		RunID:                runID,
		CreatedAtUTC:         createdAt,
		Mode:                 run.Mode,
		Episodes:             run.Episodes,
		Steps:                run.Steps,
		MeanFitness:          run.MeanFitness,
		MeanCooperatorReturn: run.MeanCooperatorReturn,
		MeanAdversaryReturn:  run.MeanAdversaryReturn,
		MeanFinalDistance:    run.MeanFinalDistance,
		OccupancyRate:        run.OccupancyRate,
		NewBest:              newBest,
	}
	if traceWriter != nil {
		out.TraceFrames = traceWriter.Frames()
	}
	c.logger.Info("run finished",
		"run_id", runID,
		"mode", run.Mode,
		"episodes", run.Episodes,
		"mean_fitness", run.MeanFitness,
		"occupancy_rate", run.OccupancyRate,
		"elapsed", time.Since(started),
	)
	return out, nil
}

func (c *Client) updateScenarioSummary(ctx context.Context, name string, run model.RunRecord) (bool, error) {
	current, ok, err := c.store.GetScenarioSummary(ctx, name)
	if err != nil {
		return false, err
	}
	if ok && current.BestFitness >= run.MeanFitness {
		return false, nil
	}
	return true, c.store.SaveScenarioSummary(ctx, model.ScenarioSummary{
		VersionedRecord: storage.CurrentVersion(),
		Name:            name,
		Description:     "cooperators hold a shared goal landmark while adversaries push them off",
		BestFitness:     run.MeanFitness,
		BestRunID:       run.ID,
	})
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListRuns(ctx, req.Limit)
	if err != nil {
		return nil, err
	}
	items := make([]RunItem, 0, len(runs))
	for _, run := range runs {
		items = append(items, RunItem{
			RunID:            run.ID,
			CreatedAtUTC:     run.CreatedAtUTC,
			Scenario:         run.Scenario,
			Mode:             run.Mode,
			Seed:             run.Seed,
			Episodes:         run.Episodes,
			Steps:            run.Steps,
			CooperatorPolicy: run.CooperatorPolicy,
			AdversaryPolicy:  run.AdversaryPolicy,
			MeanFitness:      run.MeanFitness,
			OccupancyRate:    run.OccupancyRate,
		})
	}
	return items, nil
}

func (c *Client) Episodes(ctx context.Context, req EpisodesRequest) ([]EpisodeItem, error) {
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	episodes, ok, err := c.store.GetEpisodes(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	items := make([]EpisodeItem, 0, len(episodes))
	for _, e := range episodes {
		items = append(items, EpisodeItem{
			Episode:          e.Episode,
			Seed:             e.Seed,
			GoalIndex:        e.GoalIndex,
			CooperatorReturn: e.CooperatorReturn,
			AdversaryReturn:  e.AdversaryReturn,
			Fitness:          e.Fitness,
			FinalDistance:    e.FinalDistance,
			Occupied:         e.Occupied,
		})
	}
	return items, nil
}

func (c *Client) ScenarioSummary(ctx context.Context, name string) (ScenarioSummaryItem, bool, error) {
	if err := c.ensureStore(ctx); err != nil {
		return ScenarioSummaryItem{}, false, err
	}
	if name == "" {
		name = scenario.MustNew(scenario.DefaultConfig()).Name()
	}
	summary, ok, err := c.store.GetScenarioSummary(ctx, name)
	if err != nil || !ok {
		return ScenarioSummaryItem{}, ok, err
	}
	return ScenarioSummaryItem{
		Name:        summary.Name,
		Description: summary.Description,
		BestFitness: summary.BestFitness,
		BestRunID:   summary.BestRunID,
	}, true, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", errors.New("run id is required unless latest is set")
	}
	runs, err := c.store.ListRuns(ctx, 1)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", fmt.Errorf("%w: no runs recorded", ErrRunNotFound)
	}
	return runs[0].ID, nil
}

func (c *Client) ensureStore(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}
