package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord describes one batch of rollouts of a scenario.
type RunRecord struct {
	VersionedRecord
	ID                   string  `json:"id"`
	CreatedAtUTC         string  `json:"created_at_utc"`
	Scenario             string  `json:"scenario"`
	Mode                 string  `json:"mode"`
	Seed                 int64   `json:"seed"`
	Episodes             int     `json:"episodes"`
	Steps                int     `json:"steps"`
	NumAgents            int     `json:"num_agents"`
	NumAdversaries       int     `json:"num_adversaries"`
	NumLandmarks         int     `json:"num_landmarks"`
	CooperatorPolicy     string  `json:"cooperator_policy"`
	AdversaryPolicy      string  `json:"adversary_policy"`
	MeanFitness          float64 `json:"mean_fitness"`
	MeanCooperatorReturn float64 `json:"mean_cooperator_return"`
	MeanAdversaryReturn  float64 `json:"mean_adversary_return"`
	MeanFinalDistance    float64 `json:"mean_final_distance"`
	OccupancyRate        float64 `json:"occupancy_rate"`
}

type EpisodeRecord struct {
	VersionedRecord
	RunID            string    `json:"run_id"`
	Episode          int       `json:"episode"`
	Seed             int64     `json:"seed"`
	GoalIndex        int       `json:"goal_index"`
	Returns          []float64 `json:"returns"`
	CooperatorReturn float64   `json:"cooperator_return"`
	AdversaryReturn  float64   `json:"adversary_return"`
	Fitness          float64   `json:"fitness"`
	FinalDistance    float64   `json:"final_distance"`
	Occupied         int       `json:"occupied"`
}

// ScenarioSummary tracks the best cooperator result seen for a scenario.
type ScenarioSummary struct {
	VersionedRecord
	Name        string  `json:"name"`
	Description string  `json:"description"`
	BestFitness float64 `json:"best_fitness"`
	BestRunID   string  `json:"best_run_id"`
}
