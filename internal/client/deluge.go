package client

import (
	"context"
	"fmt"
	"sort"

	"github.com/autobrr/go-deluge"
	"github.com/rs/zerolog/log"

	"github.com/s0up4200/deletarr-go/internal/config"
)

// DelugeClient implements DownloadClient for Deluge. Categories map to labels
// from the label plugin.
type DelugeClient struct {
	client delugeAPI
	// labels returns the label of every given torrent id
	labels func(ctx context.Context, ids []string) (map[string]string, error)
	isV2   bool
}

// delugeAPI is the subset of the go-deluge v1 and v2 clients used here.
type delugeAPI interface {
	Connect(context.Context) error
	TorrentsStatus(ctx context.Context, state deluge.TorrentState, ids []string) (map[string]*deluge.TorrentStatus, error)
	TorrentStatus(ctx context.Context, id string) (*deluge.TorrentStatus, error)
	RemoveTorrent(ctx context.Context, id string, rmFiles bool) (bool, error)
	SessionState(ctx context.Context) ([]string, error)
	LabelPlugin(ctx context.Context) (*deluge.LabelPlugin, error)
	DaemonVersion(ctx context.Context) (string, error)
	Close() error
}

func newDelugeClient(api delugeAPI, isV2 bool) *DelugeClient {
	c := &DelugeClient{client: api, isV2: isV2}
	c.labels = c.pluginLabels
	return c
}

// NewDelugeClient creates a new Deluge client, trying the v2 protocol first
func NewDelugeClient(ctx context.Context, cfg config.DelugeConfig) (*DelugeClient, error) {
	settings := deluge.Settings{
		Hostname: cfg.Host,
		Port:     cfg.Port,
		Login:    cfg.Username,
		Password: cfg.Password,
	}

	v2client := deluge.NewV2(settings)
	if err := v2client.Connect(ctx); err == nil {
		log.Info().Str("host", cfg.Host).Msg("connected to deluge v2")
		return newDelugeClient(v2client, true), nil
	}

	v1client := deluge.NewV1(settings)
	if err := v1client.Connect(ctx); err != nil {
		log.Error().Err(err).Str("host", cfg.Host).Msg("failed to connect to deluge")
		return nil, fmt.Errorf("%w: deluge: %w", ErrLogin, err)
	}

	log.Info().Str("host", cfg.Host).Msg("connected to deluge v1")
	return newDelugeClient(v1client, false), nil
}

func (c *DelugeClient) Name() string {
	return "Deluge"
}

// ListTorrents returns finished torrents whose label is one of categories
func (c *DelugeClient) ListTorrents(ctx context.Context, categories []string) ([]Torrent, error) {
	ids, err := c.client.SessionState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get session state: %w", err)
	}

	labels, err := c.labels(ctx, ids)
	if err != nil {
		return nil, err
	}

	var wanted []string
	for id, label := range labels {
		if containsCategory(categories, label) {
			wanted = append(wanted, id)
		}
	}
	if len(wanted) == 0 {
		return nil, nil
	}
	sort.Strings(wanted)

	statuses, err := c.client.TorrentsStatus(ctx, deluge.StateUnspecified, wanted)
	if err != nil {
		return nil, fmt.Errorf("failed to get torrent status: %w", err)
	}

	out := make([]Torrent, 0, len(statuses))
	for _, id := range wanted {
		st, ok := statuses[id]
		if !ok || st == nil {
			continue
		}
		progress := float64(st.Progress) / 100
		if progress < 1 {
			continue
		}
		out = append(out, Torrent{
			Hash:         id,
			Name:         st.Name,
			Category:     labels[id],
			SavePath:     st.SavePath,
			Progress:     progress,
			Size:         st.TotalSize,
			CompletionOn: unixTime(st.CompletedTime),
		})
	}

	log.Info().
		Strs("categories", categories).
		Int("count", len(out)).
		Msg("fetched fully downloaded torrents")

	return out, nil
}

func (c *DelugeClient) pluginLabels(ctx context.Context, ids []string) (map[string]string, error) {
	labelPlugin, err := c.client.LabelPlugin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get label plugin: %w", err)
	}
	if labelPlugin == nil {
		return nil, fmt.Errorf("label plugin not available")
	}

	labels, err := labelPlugin.GetTorrentsLabels(deluge.StateUnspecified, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get torrent labels: %w", err)
	}
	return labels, nil
}

// ListFiles returns the files of a torrent
func (c *DelugeClient) ListFiles(ctx context.Context, hash string) ([]File, error) {
	st, err := c.client.TorrentStatus(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get torrent status: %w", err)
	}
	if st == nil {
		return nil, nil
	}

	out := make([]File, 0, len(st.Files))
	for _, f := range st.Files {
		out = append(out, File{Name: f.Path, Size: f.Size})
	}
	return out, nil
}

// DeleteTorrents removes torrents one by one. The first failure is returned
// after every hash was attempted.
func (c *DelugeClient) DeleteTorrents(ctx context.Context, hashes []string, deleteFiles bool) error {
	var firstErr error
	for _, hash := range hashes {
		ok, err := c.client.RemoveTorrent(ctx, hash, deleteFiles)
		if err == nil && !ok {
			err = fmt.Errorf("deluge refused to remove %s", hash)
		}
		if err != nil {
			log.Error().Err(err).Str("hash", hash).Msg("failed to remove torrent from deluge")
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to delete torrent: %w", err)
			}
		}
	}
	return firstErr
}

// Close closes the daemon RPC connection
func (c *DelugeClient) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close deluge connection: %w", err)
	}
	return nil
}

// Ping checks daemon connectivity
func (c *DelugeClient) Ping(ctx context.Context) error {
	version, err := c.client.DaemonVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get deluge version: %w", err)
	}
	log.Debug().Str("version", version).Bool("v2", c.isV2).Msg("deluge is reachable")
	return nil
}
