package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	rtorrent "github.com/autobrr/go-rtorrent"
	"github.com/rs/zerolog/log"

	"github.com/s0up4200/deletarr-go/internal/config"
)

// RTorrentClient implements DownloadClient for rTorrent. Categories map to
// the ruTorrent label (d.custom1).
type RTorrentClient struct {
	client rtorrentAPI
	// torrents caches the last listing so files and deletes can resolve a hash
	mu       sync.RWMutex
	torrents map[string]rtorrent.Torrent
}

// rtorrentAPI is the subset of the go-rtorrent client used here.
type rtorrentAPI interface {
	Name(ctx context.Context) (string, error)
	GetTorrents(ctx context.Context, view rtorrent.View) ([]rtorrent.Torrent, error)
	GetTorrent(ctx context.Context, hash string) (rtorrent.Torrent, error)
	GetFiles(ctx context.Context, t rtorrent.Torrent) ([]rtorrent.File, error)
	Delete(ctx context.Context, t rtorrent.Torrent) error
}

// NewRTorrentClient creates a new rTorrent client
func NewRTorrentClient(ctx context.Context, cfg config.RTorrConfig) (*RTorrentClient, error) {
	rt := rtorrent.NewClient(rtorrent.Config{
		Addr:      cfg.URL,
		BasicUser: cfg.BasicUser,
		BasicPass: cfg.BasicPass,
	})

	if _, err := rt.Name(ctx); err != nil {
		log.Error().Err(err).Str("url", cfg.URL).Msg("failed to connect to rtorrent")
		return nil, fmt.Errorf("%w: rtorrent: %w", ErrLogin, err)
	}

	log.Info().Str("url", cfg.URL).Msg("connected to rtorrent")
	return &RTorrentClient{
		client:   rt,
		torrents: make(map[string]rtorrent.Torrent),
	}, nil
}

func (c *RTorrentClient) Name() string {
	return "rTorrent"
}

// ListTorrents returns completed torrents labelled with one of categories
func (c *RTorrentClient) ListTorrents(ctx context.Context, categories []string) ([]Torrent, error) {
	torrents, err := c.client.GetTorrents(ctx, rtorrent.ViewMain)
	if err != nil {
		return nil, fmt.Errorf("failed to get torrents: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Torrent
	for _, t := range torrents {
		if !containsCategory(categories, t.Label) || !t.Completed {
			continue
		}
		c.torrents[t.Hash] = t

		torrent := Torrent{
			Hash:     t.Hash,
			Name:     t.Name,
			Category: t.Label,
			SavePath: t.Path,
			Progress: 1,
			Size:     int64(t.Size),
		}
		if !t.Finished.IsZero() {
			finished := t.Finished
			torrent.CompletionOn = &finished
		}
		out = append(out, torrent)
	}

	log.Info().
		Strs("categories", categories).
		Int("count", len(out)).
		Msg("fetched fully downloaded torrents")

	return out, nil
}

func (c *RTorrentClient) lookup(ctx context.Context, hash string) (rtorrent.Torrent, error) {
	c.mu.RLock()
	t, ok := c.torrents[hash]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}
	t, err := c.client.GetTorrent(ctx, hash)
	if err != nil {
		return rtorrent.Torrent{}, fmt.Errorf("failed to get torrent %s: %w", hash, err)
	}
	return t, nil
}

// ListFiles returns the files of a torrent, relative to its SavePath.
// rTorrent reports the base path of a multi-file torrent as its directory and
// of a single-file torrent as the file itself. In the latter case the single
// file name is empty so that joining it with SavePath yields the payload.
func (c *RTorrentClient) ListFiles(ctx context.Context, hash string) ([]File, error) {
	t, err := c.lookup(ctx, hash)
	if err != nil {
		return nil, err
	}

	files, err := c.client.GetFiles(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("failed to get torrent files: %w", err)
	}

	single := len(files) == 1 && isSingleFile(t.Path, files[0].Path)

	out := make([]File, 0, len(files))
	for _, f := range files {
		name := f.Path
		if single {
			name = ""
		}
		out = append(out, File{Name: name, Size: int64(f.Size)})
	}
	return out, nil
}

// isSingleFile reports whether basePath is the payload file itself. The disk
// decides when it can be read, the names otherwise.
func isSingleFile(basePath, filePath string) bool {
	if fi, err := os.Stat(basePath); err == nil {
		return !fi.IsDir()
	}
	return filepath.Base(basePath) == filepath.Base(filePath)
}

// DeleteTorrents erases torrents from rTorrent and removes their data from
// disk, since rTorrent itself never deletes payloads.
func (c *RTorrentClient) DeleteTorrents(ctx context.Context, hashes []string, deleteFiles bool) error {
	var firstErr error
	for _, hash := range hashes {
		if err := c.deleteOne(ctx, hash, deleteFiles); err != nil {
			log.Error().Err(err).Str("hash", hash).Msg("failed to remove torrent from rtorrent")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (c *RTorrentClient) deleteOne(ctx context.Context, hash string, deleteFiles bool) error {
	t, err := c.lookup(ctx, hash)
	if err != nil {
		return err
	}

	if err := c.client.Delete(ctx, t); err != nil {
		return fmt.Errorf("failed to delete torrent: %w", err)
	}
	c.mu.Lock()
	delete(c.torrents, hash)
	c.mu.Unlock()

	if deleteFiles && t.Path != "" {
		if err := os.RemoveAll(t.Path); err != nil {
			return fmt.Errorf("failed to remove torrent data: %w", err)
		}
	}
	return nil
}

// Close drops the cached listing. rTorrent is reached over stateless XML-RPC
func (c *RTorrentClient) Close() error {
	c.mu.Lock()
	c.torrents = make(map[string]rtorrent.Torrent)
	c.mu.Unlock()
	return nil
}

// Ping checks connectivity
func (c *RTorrentClient) Ping(ctx context.Context) error {
	name, err := c.client.Name(ctx)
	if err != nil {
		return fmt.Errorf("failed to reach rtorrent: %w", err)
	}
	log.Debug().Str("name", name).Msg("rtorrent is reachable")
	return nil
}
