package client

import (
	"context"
	"errors"
	"testing"
	"time"

	qbittorrent "github.com/autobrr/go-qbittorrent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQbit struct {
	torrents map[string][]qbittorrent.Torrent
	files    map[string]qbittorrent.TorrentFiles
	deleted  []string
	filters  []qbittorrent.TorrentFilterOptions
	err      error
}

func (f *fakeQbit) LoginCtx(context.Context) error { return f.err }

func (f *fakeQbit) GetTorrentsCtx(_ context.Context, o qbittorrent.TorrentFilterOptions) ([]qbittorrent.Torrent, error) {
	f.filters = append(f.filters, o)
	if f.err != nil {
		return nil, f.err
	}
	return f.torrents[o.Category], nil
}

func (f *fakeQbit) GetFilesInformationCtx(_ context.Context, hash string) (*qbittorrent.TorrentFiles, error) {
	if f.err != nil {
		return nil, f.err
	}
	files, ok := f.files[hash]
	if !ok {
		return nil, nil
	}
	return &files, nil
}

func (f *fakeQbit) DeleteTorrentsCtx(_ context.Context, hashes []string, deleteFiles bool) error {
	if !deleteFiles {
		return errors.New("expected deleteFiles")
	}
	f.deleted = append(f.deleted, hashes...)
	return f.err
}

func (f *fakeQbit) GetAppVersionCtx(context.Context) (string, error) { return "v4.6.2", f.err }

func TestQBitClient_ListTorrents(t *testing.T) {
	done := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	fake := &fakeQbit{
		torrents: map[string][]qbittorrent.Torrent{
			"radarr": {
				{Hash: "a", Name: "Movie.A", Category: "radarr", SavePath: "/dl", Progress: 1, Size: 100, CompletionOn: done.Unix()},
				{Hash: "b", Name: "Movie.B", Category: "radarr", SavePath: "/dl", Progress: 0.5},
				{Hash: "c", Name: "Movie.C", Category: "radarr", SavePath: "/dl", Progress: 1, CompletionOn: -1},
				{Hash: "d", Name: "Other", Category: "radarr-4k", SavePath: "/dl", Progress: 1},
			},
		},
	}
	c := &QBitClient{client: fake}

	got, err := c.ListTorrents(context.Background(), []string{"radarr"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "a", got[0].Hash)
	require.NotNil(t, got[0].CompletionOn)
	assert.True(t, done.Equal(*got[0].CompletionOn))
	assert.Equal(t, int64(100), got[0].Size)

	assert.Equal(t, "c", got[1].Hash)
	assert.Nil(t, got[1].CompletionOn, "unknown completion must stay nil")

	require.Len(t, fake.filters, 1)
	assert.Equal(t, qbittorrent.TorrentFilterCompleted, fake.filters[0].Filter)
}

func TestQBitClient_ListFiles(t *testing.T) {
	fake := &fakeQbit{files: map[string]qbittorrent.TorrentFiles{
		"a": {{Name: "Movie/movie.mkv", Size: 10}},
	}}
	c := &QBitClient{client: fake}

	files, err := c.ListFiles(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []File{{Name: "Movie/movie.mkv", Size: 10}}, files)

	files, err = c.ListFiles(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, files)

	fake.err = errors.New("forbidden")
	_, err = c.ListFiles(context.Background(), "a")
	assert.Error(t, err)
}

func TestQBitClient_DeleteAndPing(t *testing.T) {
	fake := &fakeQbit{}
	c := &QBitClient{client: fake}

	require.NoError(t, c.DeleteTorrents(context.Background(), []string{"a", "b"}, true))
	assert.Equal(t, []string{"a", "b"}, fake.deleted)
	require.NoError(t, c.Ping(context.Background()))

	fake.err = errors.New("down")
	assert.Error(t, c.Ping(context.Background()))
	assert.Equal(t, "qBittorrent", c.Name())
}
