package pruner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/s0up4200/deletarr-go/internal/client"
	"github.com/s0up4200/deletarr-go/internal/config"
	"github.com/s0up4200/deletarr-go/internal/metrics"
)

// ErrRunInProgress is reported when Run is called while another run holds
// the coordinator. Two concurrent runs could double delete.
var ErrRunInProgress = errors.New("a run is already in progress")

// ConnectFunc opens a session with the download client. Failing to connect
// is fatal for the run.
type ConnectFunc func(ctx context.Context, cfg *config.Config) (client.DownloadClient, error)

// RunResult is the only output of a run. Dry and real runs share the shape.
type RunResult struct {
	Success  bool            `json:"success"`
	Error    string          `json:"error,omitempty"`
	DryRun   bool            `json:"dryRun"`
	Services []ServiceResult `json:"services"`
	// Total is the number of torrents selected across services
	Total int `json:"total"`
	// Deleted is the number of torrents actually removed, always 0 in dry run
	Deleted  int       `json:"deleted"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	err error
}

// Err returns the error that ended the run, if any.
func (r RunResult) Err() error {
	return r.err
}

// Candidates maps each processed service to its final deletion list.
func (r RunResult) Candidates() map[string][]client.Torrent {
	out := make(map[string][]client.Torrent, len(r.Services))
	for _, s := range r.Services {
		out[s.Name] = s.Candidates
	}
	return out
}

// Coordinator runs the engine over every enabled service and performs the
// deletions. Runs are serialized.
type Coordinator struct {
	connect ConnectFunc
	metrics *metrics.Recorder

	runMu sync.Mutex

	cfgMu sync.RWMutex
	cfg   *config.Config

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewCoordinator(cfg *config.Config, connect ConnectFunc, rec *metrics.Recorder) *Coordinator {
	if connect == nil {
		connect = client.New
	}
	return &Coordinator{
		connect: connect,
		metrics: rec,
		cfg:     cfg,
		sleep:   sleepCtx,
		now:     time.Now,
	}
}

// Config returns the config used by the next run.
func (c *Coordinator) Config() *config.Config {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.cfg
}

// SetConfig replaces the config for subsequent runs. A run in progress keeps
// the config it started with.
func (c *Coordinator) SetConfig(cfg *config.Config) {
	c.cfgMu.Lock()
	c.cfg = cfg
	c.cfgMu.Unlock()
}

// Run processes all enabled services. dryRunOverride, when set, replaces the
// configured mode. Failures never escape: they are reported in the result.
func (c *Coordinator) Run(ctx context.Context, dryRunOverride *bool) RunResult {
	cfg := c.Config()
	dryRun := cfg.IsDryRun()
	if dryRunOverride != nil {
		dryRun = *dryRunOverride
	}

	result := RunResult{
		DryRun:   dryRun,
		Services: []ServiceResult{},
		Started:  c.now(),
	}

	if !c.runMu.TryLock() {
		log.Warn().Msg("run requested while another run is in progress")
		return c.fail(result, ErrRunInProgress)
	}
	defer c.runMu.Unlock()

	if dryRun {
		log.Info().Msg("dry run is ENABLED, no actual deletions will be performed")
	}

	dc, err := c.connect(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to download client")
		return c.fail(result, err)
	}
	defer closeClient(dc)

	snapshot, err := dc.ListTorrents(ctx, cfg.EnabledCategories())
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch torrents")
		return c.fail(result, fmt.Errorf("failed to fetch torrents: %w", err))
	}

	engine := NewEngine(dc, cfg)
	engine.now = c.now

	for _, svc := range cfg.Services {
		if err := ctx.Err(); err != nil {
			log.Warn().Err(err).Msg("run cancelled")
			return c.fail(result, err)
		}

		if !svc.IsEnabled() {
			log.Info().Str("service", svc.Name).Msg("service is disabled, skipping")
			continue
		}

		log.Info().Str("service", svc.Name).Msg("started processing")
		sr, err := engine.SelectDeletionCandidates(ctx, svc.Name, svc, snapshot)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return c.fail(result, ctxErr)
			}
			log.Error().Err(err).Str("service", svc.Name).Msg("service failed, nothing will be deleted for it")
		}
		if sr.Aborted {
			c.metrics.BudgetAbort(svc.Name)
		}
		c.metrics.SetCandidates(svc.Name, len(sr.Candidates))

		result.Services = append(result.Services, sr)
		result.Total += len(sr.Candidates)
	}

	if !dryRun {
		deleted, err := c.deleteAll(ctx, dc, result.Services, cfg.DeleteDelayDuration())
		result.Deleted = deleted
		c.metrics.AddDeleted(deleted)
		if err != nil {
			return c.fail(result, err)
		}
	}

	result.Success = true
	result.Finished = c.now()
	c.metrics.ObserveRun(result.DryRun, true, result.Finished.Sub(result.Started))
	return result
}

// deleteAll removes every candidate one call at a time with a pause in
// between. Individual failures are logged and skipped; only cancellation
// stops the loop.
func (c *Coordinator) deleteAll(ctx context.Context, dc client.DownloadClient, services []ServiceResult, delay time.Duration) (int, error) {
	var hashes []string
	names := make(map[string]string)
	for _, s := range services {
		for _, t := range s.Candidates {
			hashes = append(hashes, t.Hash)
			names[t.Hash] = t.Name
		}
	}

	if len(hashes) == 0 {
		log.Info().Msg("no deletions to perform")
		return 0, nil
	}

	log.Info().Int("count", len(hashes)).Msg("performing actual deletion of torrents")

	deleted := 0
	for i, hash := range hashes {
		if i > 0 {
			if err := c.sleep(ctx, delay); err != nil {
				log.Warn().Err(err).Int("deleted", deleted).Msg("deletion interrupted")
				return deleted, err
			}
		}

		if err := dc.DeleteTorrents(ctx, []string{hash}, true); err != nil {
			log.Error().Err(err).Str("hash", hash).Str("torrent", names[hash]).Msg("failed to delete torrent")
			continue
		}
		deleted++
		log.Info().Str("hash", hash).Str("torrent", names[hash]).Msg("deleted torrent and data")
	}

	log.Info().Int("deleted", deleted).Int("requested", len(hashes)).Msg("deletions completed")
	return deleted, nil
}

func (c *Coordinator) fail(result RunResult, err error) RunResult {
	result.Success = false
	result.err = err
	result.Error = err.Error()
	result.Finished = c.now()
	c.metrics.ObserveRun(result.DryRun, false, result.Finished.Sub(result.Started))
	return result
}

func closeClient(dc client.DownloadClient) {
	if err := dc.Close(); err != nil {
		log.Warn().Err(err).Str("client", dc.Name()).Msg("failed to close download client")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
