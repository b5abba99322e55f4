// Package store persists run history and resolver lookups so repeated runs
// do not hit remote identifier services for the same accessions.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// RunStatus is the lifecycle state of a recorded strategy run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusComplete  RunStatus = "complete"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run is one recorded strategy execution.
type Run struct {
	ID        string     `json:"id"`
	Strategy  string     `json:"strategy"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult is the outcome attached to a finished run.
type RunResult struct {
	Steps     int                `json:"steps"`
	Failed    int                `json:"failed"`
	Matches   int                `json:"matches"`
	Stats     map[string]float64 `json:"stats,omitempty"`
	Error     string             `json:"error,omitempty"`
	Summary   json.RawMessage    `json:"summary,omitempty"`
	Completed bool               `json:"completed"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status   RunStatus `json:"status,omitempty"`
	Strategy string    `json:"strategy,omitempty"`
	Limit    int       `json:"limit,omitempty"`
	Offset   int       `json:"offset,omitempty"`
}

// CachedResolution is a stored resolver answer. Found is false for
// identifiers the resolver reported as unknown.
type CachedResolution struct {
	Resolver    string    `json:"resolver"`
	Identifier  string    `json:"identifier"`
	Found       bool      `json:"found"`
	CanonicalID string    `json:"canonical_id,omitempty"`
	Score       float64   `json:"score"`
	CachedAt    time.Time `json:"cached_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Store defines the persistence interface for run history and the
// resolver cache.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, strategy string) (*Run, error)
	FinishRun(ctx context.Context, runID string, status RunStatus, result *RunResult) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	// Resolver cache
	GetCachedResolution(ctx context.Context, resolver, identifier string) (*CachedResolution, error)
	SetCachedResolution(ctx context.Context, entry CachedResolution, ttl time.Duration) error
	DeleteExpiredResolutions(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns a migrated store for the named driver. An empty driver
// means sqlite.
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case "", "sqlite":
		s, err = NewSQLite(dsn)
	case "postgres":
		s, err = NewPostgres(ctx, dsn, poolCfg)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

const defaultListLimit = 100

func listLimit(filter RunFilter) int {
	if filter.Limit <= 0 {
		return defaultListLimit
	}
	return filter.Limit
}

func marshalResult(result *RunResult) ([]byte, error) {
	if result == nil {
		return nil, nil
	}
	data, err := json.Marshal(result)
	return data, eris.Wrap(err, "marshal run result")
}

func unmarshalResult(data []byte) (*RunResult, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var r RunResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrap(err, "unmarshal run result")
	}
	return &r, nil
}
