package storage

import (
	"context"

	"pursuit/internal/model"
)

// Store defines transaction-like persistence operations for rollout results.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error)
	SaveEpisodes(ctx context.Context, runID string, episodes []model.EpisodeRecord) error
	GetEpisodes(ctx context.Context, runID string) ([]model.EpisodeRecord, bool, error)
	SaveScenarioSummary(ctx context.Context, summary model.ScenarioSummary) error
	GetScenarioSummary(ctx context.Context, name string) (model.ScenarioSummary, bool, error)
}
