//go:build !windows

package pruner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/s0up4200/deletarr-go/internal/client"
	"github.com/s0up4200/deletarr-go/internal/config"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) *time.Time {
	t := testNow.Add(-time.Duration(n) * 24 * time.Hour)
	return &t
}

func pct(v float64) *float64 { return &v }
func days(v int) *int { return &v }
func boolPtr(v bool) *bool { return &v }

type fakeClient struct {
	mu sync.Mutex

	torrents  []client.Torrent
	files     map[string][]client.File
	fileErrs  map[string]error
	listErr   error
	deleteErr map[string]error

	listCalls int
	deleted   []string
	closed    int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		files:     make(map[string][]client.File),
		fileErrs:  make(map[string]error),
		deleteErr: make(map[string]error),
	}
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) ListTorrents(_ context.Context, categories []string) ([]client.Torrent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}

	var out []client.Torrent
	for _, t := range f.torrents {
		for _, c := range categories {
			if t.Category == c && t.Progress >= 1 {
				out = append(out, t)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeClient) ListFiles(_ context.Context, hash string) ([]client.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fileErrs[hash]; ok {
		return nil, err
	}
	return f.files[hash], nil
}

func (f *fakeClient) DeleteTorrents(_ context.Context, hashes []string, deleteFiles bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !deleteFiles {
		return errors.New("expected deleteFiles to be set")
	}
	for _, h := range hashes {
		if err, ok := f.deleteErr[h]; ok {
			return err
		}
	}
	f.deleted = append(f.deleted, hashes...)
	return nil
}

func (f *fakeClient) Ping(context.Context) error { return nil }

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeClient) deletedHashes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// library is a download directory and a media root on the same filesystem.
type library struct {
	t         *testing.T
	downloads string
	media     string
	client    *fakeClient
}

func newLibrary(t *testing.T) *library {
	t.Helper()
	base := t.TempDir()
	lib := &library{
		t:         t,
		downloads: filepath.Join(base, "downloads"),
		media:     filepath.Join(base, "media"),
		client:    newFakeClient(),
	}
	require.NoError(t, os.MkdirAll(lib.downloads, 0o755))
	require.NoError(t, os.MkdirAll(lib.media, 0o755))
	return lib
}

// add creates a single-file torrent completed completedDaysAgo days before
// testNow and returns the absolute path of its payload.
func (l *library) add(hash, name, category string, completedDaysAgo int) string {
	l.t.Helper()
	rel := filepath.Join(name, name+".mkv")
	path := filepath.Join(l.downloads, rel)
	require.NoError(l.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(l.t, os.WriteFile(path, []byte("payload of "+name), 0o644))

	l.client.torrents = append(l.client.torrents, client.Torrent{
		Hash:         hash,
		Name:         name,
		Category:     category,
		SavePath:     l.downloads,
		Progress:     1,
		Size:         1 << 30,
		CompletionOn: daysAgo(completedDaysAgo),
	})
	l.client.files[hash] = []client.File{{Name: filepath.ToSlash(rel), Size: 1 << 30}}
	return path
}

// link hard links payload into the media root.
func (l *library) link(payload, name string) {
	l.t.Helper()
	require.NoError(l.t, os.Link(payload, filepath.Join(l.media, name)))
}

func (l *library) config(svc config.Service) *config.Config {
	if svc.Name == "" {
		svc.Name = "movies"
	}
	if svc.Category == "" {
		svc.Category = "movies"
	}
	if svc.MediaRoot == "" {
		svc.MediaRoot = l.media
	}
	cfg := &config.Config{
		DryRun:      boolPtr(true),
		QBittorrent: &config.QBitConfig{URL: "http://localhost:8080"},
		Services:    []config.Service{svc},
	}
	cfg.ApplyDefaults()
	return cfg
}

func (l *library) coordinator(cfg *config.Config) *Coordinator {
	c := NewCoordinator(cfg, func(context.Context, *config.Config) (client.DownloadClient, error) {
		return l.client, nil
	}, nil)
	c.now = func() time.Time { return testNow }
	c.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return c
}

func candidateNames(torrents []client.Torrent) []string {
	names := make([]string, 0, len(torrents))
	for _, t := range torrents {
		names = append(names, t.Name)
	}
	return names
}
