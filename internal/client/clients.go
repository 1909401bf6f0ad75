// Package client provides the download client and organizer integrations
// that feed the pruner.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/s0up4200/deletarr-go/internal/config"
)

// ErrLogin is returned when a download client rejects the configured
// credentials. Nothing can be listed without a session, so it is fatal for a run.
var ErrLogin = errors.New("failed to login to download client")

// Torrent is a read-only snapshot of a torrent as reported by the client.
type Torrent struct {
	Hash     string  `json:"hash"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	SavePath string  `json:"savePath"`
	Progress float64 `json:"progress"`
	Size     int64   `json:"size"`
	// CompletionOn is nil when the client does not know when the download finished
	CompletionOn *time.Time `json:"completionOn,omitempty"`
}

// File is a torrent file, Name being relative to the torrent's SavePath.
type File struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// DownloadClient defines what the pruner needs from a torrent client.
type DownloadClient interface {
	// Name identifies the client type in logs
	Name() string

	// ListTorrents returns fully downloaded torrents in any of the given categories
	ListTorrents(ctx context.Context, categories []string) ([]Torrent, error)

	// ListFiles returns the files of a torrent
	ListFiles(ctx context.Context, hash string) ([]File, error)

	// DeleteTorrents removes torrents from the client, and their data when deleteFiles is set
	DeleteTorrents(ctx context.Context, hashes []string, deleteFiles bool) error

	// Ping checks connectivity and credentials
	Ping(ctx context.Context) error

	// Close releases the session. The client is unusable afterwards
	Close() error
}

// New connects to the download client configured in cfg.
func New(ctx context.Context, cfg *config.Config) (DownloadClient, error) {
	switch {
	case cfg.QBittorrent != nil:
		return NewQBitClient(ctx, *cfg.QBittorrent)
	case cfg.Deluge != nil:
		return NewDelugeClient(ctx, *cfg.Deluge)
	case cfg.RTorrent != nil:
		return NewRTorrentClient(ctx, *cfg.RTorrent)
	default:
		return nil, fmt.Errorf("no download client configured")
	}
}

func containsCategory(categories []string, category string) bool {
	for _, c := range categories {
		if c == category {
			return true
		}
	}
	return false
}

func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0)
	return &t
}
