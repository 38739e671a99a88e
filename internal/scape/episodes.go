package scape

import (
	"context"
	"fmt"
	"sync"
)

// PolicyFactory builds a fresh policy set for one episode. Policies are
// never shared across concurrently running episodes.
type PolicyFactory func(episode int) ([]Policy, error)

// RunEpisodes evaluates independent episodes in parallel. Each worker owns
// the world of the episode it runs; episode i uses seed p.Seed+i. Results
// come back in episode order.
func RunEpisodes(ctx context.Context, p *PushScape, factory PolicyFactory, mode string, episodes, workers int) ([]EpisodeResult, error) {
	if episodes <= 0 {
		return nil, fmt.Errorf("episode count must be > 0, got %d", episodes)
	}
	type result struct {
		idx     int
		episode EpisodeResult
		err     error
	}

	jobs := make(chan int)
	results := make(chan result, episodes)

	workerCount := workers
	if workerCount <= 0 {
		workerCount = 1
	}
	if workerCount > episodes {
		workerCount = episodes
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					results <- result{idx: idx, err: err}
					continue
				}
				policies, err := factory(idx)
				if err != nil {
					results <- result{idx: idx, err: fmt.Errorf("build policies for episode %d: %w", idx, err)}
					continue
				}
				episode, err := p.RunEpisode(ctx, policies, EpisodeRequest{
					Episode: idx,
					Seed:    p.Seed + int64(idx),
					Mode:    mode,
				})
				results <- result{idx: idx, episode: episode, err: err}
			}
		}()
	}

	for i := 0; i < episodes; i++ {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	close(results)

	out := make([]EpisodeResult, episodes)
	for res := range results {
		if res.err != nil {
			return nil, res.err
		}
		out[res.idx] = res.episode
	}
	return out, nil
}

// Summary aggregates episode results.
type Summary struct {
	Episodes             int
	MeanFitness          float64
	MeanCooperatorReturn float64
	MeanAdversaryReturn  float64
	MeanFinalDistance    float64
	OccupancyRate        float64
}

func Summarize(results []EpisodeResult) Summary {
	summary := Summary{Episodes: len(results)}
	if len(results) == 0 {
		return summary
	}
	for _, r := range results {
		summary.MeanFitness += float64(r.Fitness)
		summary.MeanCooperatorReturn += r.CooperatorReturn()
		summary.MeanAdversaryReturn += r.AdversaryReturn()
		summary.MeanFinalDistance += r.FinalDistance
		summary.OccupancyRate += float64(r.Occupied)
	}
	n := float64(len(results))
	summary.MeanFitness /= n
	summary.MeanCooperatorReturn /= n
	summary.MeanAdversaryReturn /= n
	summary.MeanFinalDistance /= n
	summary.OccupancyRate /= n
	return summary
}
