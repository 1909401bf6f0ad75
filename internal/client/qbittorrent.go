package client

import (
	"context"
	"fmt"

	qbittorrent "github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog/log"

	"github.com/s0up4200/deletarr-go/internal/config"
)

// qbitAPI is the subset of the go-qbittorrent client used here.
type qbitAPI interface {
	LoginCtx(ctx context.Context) error
	GetTorrentsCtx(ctx context.Context, o qbittorrent.TorrentFilterOptions) ([]qbittorrent.Torrent, error)
	GetFilesInformationCtx(ctx context.Context, hash string) (*qbittorrent.TorrentFiles, error)
	DeleteTorrentsCtx(ctx context.Context, hashes []string, deleteFiles bool) error
	GetAppVersionCtx(ctx context.Context) (string, error)
}

// QBitClient implements DownloadClient for qBittorrent
type QBitClient struct {
	client qbitAPI
	url    string
}

// NewQBitClient creates a new qBittorrent client and logs in
func NewQBitClient(ctx context.Context, cfg config.QBitConfig) (*QBitClient, error) {
	qb := qbittorrent.NewClient(qbittorrent.Config{
		Host:      cfg.URL,
		Username:  cfg.Username,
		Password:  cfg.Password,
		BasicUser: cfg.BasicUser,
		BasicPass: cfg.BasicPass,
		Timeout:   30,
	})

	if err := qb.LoginCtx(ctx); err != nil {
		log.Error().Err(err).Str("url", cfg.URL).Msg("failed to login to qbittorrent")
		return nil, fmt.Errorf("%w: qbittorrent: %w", ErrLogin, err)
	}

	log.Info().Str("url", cfg.URL).Msg("logged in to qbittorrent")
	return &QBitClient{
		client: qb,
		url:    cfg.URL,
	}, nil
}

func (c *QBitClient) Name() string {
	return "qBittorrent"
}

// ListTorrents returns completed torrents in the given categories
func (c *QBitClient) ListTorrents(ctx context.Context, categories []string) ([]Torrent, error) {
	var out []Torrent
	for _, category := range categories {
		torrents, err := c.client.GetTorrentsCtx(ctx, qbittorrent.TorrentFilterOptions{
			Filter:   qbittorrent.TorrentFilterCompleted,
			Category: category,
		})
		if err != nil {
			log.Error().Err(err).Str("category", category).Msg("failed to get torrents")
			return nil, fmt.Errorf("failed to get torrents: %w", err)
		}

		for _, t := range torrents {
			if t.Category != category || t.Progress < 1 {
				continue
			}
			out = append(out, Torrent{
				Hash:         t.Hash,
				Name:         t.Name,
				Category:     t.Category,
				SavePath:     t.SavePath,
				Progress:     t.Progress,
				Size:         t.Size,
				CompletionOn: unixTime(t.CompletionOn),
			})
		}
	}

	log.Info().
		Strs("categories", categories).
		Int("count", len(out)).
		Msg("fetched fully downloaded torrents")

	return out, nil
}

// ListFiles returns the files of a torrent
func (c *QBitClient) ListFiles(ctx context.Context, hash string) ([]File, error) {
	files, err := c.client.GetFilesInformationCtx(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get torrent files: %w", err)
	}
	if files == nil {
		return nil, nil
	}

	out := make([]File, 0, len(*files))
	for _, f := range *files {
		out = append(out, File{Name: f.Name, Size: f.Size})
	}
	return out, nil
}

// DeleteTorrents removes torrents, and their data when deleteFiles is set
func (c *QBitClient) DeleteTorrents(ctx context.Context, hashes []string, deleteFiles bool) error {
	log.Debug().
		Strs("hashes", hashes).
		Bool("deleteFiles", deleteFiles).
		Msg("deleting torrents from qbittorrent")

	if err := c.client.DeleteTorrentsCtx(ctx, hashes, deleteFiles); err != nil {
		return fmt.Errorf("failed to delete torrents: %w", err)
	}
	return nil
}

// Close is a no-op, the qbittorrent session is plain HTTP
func (c *QBitClient) Close() error {
	return nil
}

// Ping checks that the session is still valid
func (c *QBitClient) Ping(ctx context.Context) error {
	version, err := c.client.GetAppVersionCtx(ctx)
	if err != nil {
		return fmt.Errorf("failed to get qbittorrent version: %w", err)
	}
	log.Debug().Str("url", c.url).Str("version", version).Msg("qbittorrent is reachable")
	return nil
}
