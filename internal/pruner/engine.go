// Package pruner decides which completed torrents can be removed without
// breaking a media library, and removes them.
package pruner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/s0up4200/deletarr-go/internal/client"
	"github.com/s0up4200/deletarr-go/internal/config"
	"github.com/s0up4200/deletarr-go/internal/hardlink"
	"github.com/s0up4200/deletarr-go/internal/retention"
)

// ErrFileListsUnavailable is returned for a service when no torrent could be
// checked, because every file list fetch or file stat failed. That more
// likely means the download client or the disks are broken than that nothing
// needs deleting.
var ErrFileListsUnavailable = errors.New("no torrent file list could be checked")

// ServiceResult is the decision for one service.
type ServiceResult struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	// Considered is the number of fully downloaded torrents in the category
	Considered int `json:"considered"`
	// Candidates is sorted by name and empty when Aborted is set
	Candidates    []client.Torrent `json:"candidates"`
	Aborted       bool             `json:"aborted"`
	DeletePercent float64          `json:"deletePercent"`
	Error         string           `json:"error,omitempty"`
}

type verdict int

const (
	verdictSkipped verdict = iota
	verdictProtected
	verdictCandidate
)

// Engine selects deletion candidates for one service at a time. It never
// deletes anything itself.
type Engine struct {
	client       client.DownloadClient
	scanTimeout  time.Duration
	scanMaxFiles int
	concurrency  int
	now          func() time.Time
}

// NewEngine creates an engine reading file lists from dc.
func NewEngine(dc client.DownloadClient, cfg *config.Config) *Engine {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{
		client:       dc,
		scanTimeout:  cfg.ScanTimeoutDuration(),
		scanMaxFiles: cfg.ScanMaxFiles,
		concurrency:  concurrency,
		now:          time.Now,
	}
}

// SelectDeletionCandidates applies category, completion, age and hardlink
// filters to snapshot, then the service's deletion budget.
func (e *Engine) SelectDeletionCandidates(ctx context.Context, name string, svc config.Service, snapshot []client.Torrent) (ServiceResult, error) {
	l := log.With().Str("service", name).Logger()
	result := ServiceResult{
		Name:       name,
		Category:   svc.Category,
		Candidates: []client.Torrent{},
	}

	l.Info().
		Str("category", svc.Category).
		Str("mediaRoot", svc.MediaRoot).
		Msg("processing category with hardlink detection")

	var pool []client.Torrent
	for _, t := range snapshot {
		if t.Category == svc.Category && t.Progress >= 1 {
			pool = append(pool, t)
		}
	}
	result.Considered = len(pool)

	now := e.now()
	minSeedDays := svc.SeedDays()
	var aged []client.Torrent
	for _, t := range pool {
		if t.CompletionOn == nil {
			l.Warn().Str("torrent", t.Name).Msg("torrent has no completion time, skipping")
			continue
		}
		if !retention.IsEligibleByAge(t.CompletionOn, minSeedDays, now) {
			l.Debug().
				Str("torrent", t.Name).
				Float64("seedDays", retention.SeedingDays(t.CompletionOn, now)).
				Int("minSeedDays", minSeedDays).
				Msg("torrent has not seeded long enough, skipping")
			continue
		}
		aged = append(aged, t)
	}

	var candidates []client.Torrent
	if len(aged) > 0 {
		var err error
		candidates, err = e.checkLinks(ctx, l, svc, aged)
		if err != nil {
			result.Error = err.Error()
			return result, err
		}
	}

	result.DeletePercent = retention.DeletePercent(len(candidates), len(pool))
	if !retention.CheckBudget(len(candidates), len(pool), svc.MaxDeletePercent) {
		l.Error().
			Float64("deletePercent", result.DeletePercent).
			Float64("maxDeletePercent", *svc.MaxDeletePercent).
			Int("candidates", len(candidates)).
			Int("considered", len(pool)).
			Msg("ABORTING: too many torrents would be deleted")
		result.Aborted = true
		return result, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Name < candidates[j].Name
	})
	result.Candidates = append(result.Candidates, candidates...)

	l.Info().
		Int("candidates", len(candidates)).
		Int("considered", len(pool)).
		Msg("finished processing category")

	return result, nil
}

// checkLinks fetches file lists and looks every file up in a fresh index of
// the media root. Results keep the order of torrents.
func (e *Engine) checkLinks(ctx context.Context, l zerolog.Logger, svc config.Service, torrents []client.Torrent) ([]client.Torrent, error) {
	scanCtx := ctx
	if e.scanTimeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, e.scanTimeout)
		defer cancel()
	}

	index, err := hardlink.BuildIndex(scanCtx, svc.MediaRoot, hardlink.IndexOptions{MaxFiles: e.scanMaxFiles})
	if err != nil {
		l.Error().Err(err).Str("mediaRoot", svc.MediaRoot).Msg("failed to index media root")
		return nil, fmt.Errorf("failed to index media root: %w", err)
	}

	verdicts := make([]verdict, len(torrents))
	unknown := make([]bool, len(torrents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, t := range torrents {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			files, err := e.client.ListFiles(gctx, t.Hash)
			switch {
			case err != nil:
				l.Warn().Err(err).Str("torrent", t.Name).Msg("could not get files for torrent, skipping")
				unknown[i] = true
				return nil
			case len(files) == 0:
				l.Warn().Str("torrent", t.Name).Msg("torrent has no files, skipping")
				unknown[i] = true
				return nil
			}

			for _, f := range files {
				path := filepath.Join(t.SavePath, filepath.FromSlash(f.Name))
				protected, err := index.Protects(path)
				if err != nil {
					l.Warn().Err(err).Str("torrent", t.Name).Str("file", f.Name).Msg("could not check file for hardlinks, skipping")
					unknown[i] = true
					return nil
				}
				if protected {
					l.Debug().Str("torrent", t.Name).Str("file", f.Name).Msg("file has hardlinks into media root")
					verdicts[i] = verdictProtected
					return nil
				}
			}

			l.Debug().Str("torrent", t.Name).Msg("no hardlinks found, marked for deletion")
			verdicts[i] = verdictCandidate
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := 0
	var candidates []client.Torrent
	for i, t := range torrents {
		if unknown[i] {
			failed++
		}
		if verdicts[i] == verdictCandidate {
			candidates = append(candidates, t)
		}
	}

	if failed == len(torrents) {
		l.Error().Int("torrents", len(torrents)).Msg("no torrent could be checked for hardlinks")
		return nil, ErrFileListsUnavailable
	}

	return candidates, nil
}
