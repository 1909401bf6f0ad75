// Package hardlink answers whether a torrent file is still referenced from a
// media library, using filesystem link identity instead of names or content.
package hardlink

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

var (
	// ErrRootUnavailable is returned when the target tree cannot be read at all.
	ErrRootUnavailable = errors.New("target directory unavailable")

	// ErrStatFailed is returned when a candidate file exists but cannot be
	// identified. Its protection state is unknown.
	ErrStatFailed = errors.New("failed to identify file")

	// ErrTooManyFiles is returned when an index build exceeds IndexOptions.MaxFiles.
	ErrTooManyFiles = errors.New("target directory exceeds file limit")

	errStopWalk = errors.New("stop walk")
)

// identify stats a candidate file. A missing file yields an error matching
// fs.ErrNotExist, which callers resolve to "not protected". Any other failure
// wraps ErrStatFailed: the file exists in some form but its identity is
// unknown.
func identify(path string) (id FileID, nlink uint64, err error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug().Str("path", path).Msg("file does not exist")
			return FileID{}, 0, err
		}
		log.Warn().Err(err).Str("path", path).Msg("failed to stat file")
		return FileID{}, 0, fmt.Errorf("%w: %s: %v", ErrStatFailed, path, err)
	}

	id, nlink, err = GetFileID(fi, path)
	if err == nil && id.IsZero() {
		err = errors.New("empty file identity")
	}
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to read file identity")
		return FileID{}, 0, fmt.Errorf("%w: %s: %v", ErrStatFailed, path, err)
	}

	return id, nlink, nil
}

// resolveRoot follows symlinks on root itself so a linked media directory is
// walked like the real one. The result must be a directory.
func resolveRoot(root string) (string, error) {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRootUnavailable, root, err)
	}

	fi, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRootUnavailable, root, err)
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrRootUnavailable, root)
	}

	if resolved != filepath.Clean(root) {
		log.Debug().Str("root", root).Str("resolved", resolved).Msg("resolved symlinked root")
	}
	return resolved, nil
}

// walkRegular calls fn for every regular file under root. Symlinks,
// directories and special files are never passed to fn. Errors on individual
// entries are skipped. fn returning false stops the walk.
func walkRegular(ctx context.Context, root string, fn func(path string, id FileID) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	root, err := resolveRoot(root)
	if err != nil {
		return err
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			if path == root {
				return fmt.Errorf("%w: %s: %v", ErrRootUnavailable, root, err)
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}

		id, _, err := GetFileID(fi, path)
		if err != nil || id.IsZero() {
			return nil
		}

		if !fn(path, id) {
			return errStopWalk
		}
		return nil
	})

	if errors.Is(err, errStopWalk) {
		return nil
	}
	return err
}

// HasHardLinkInto reports whether filePath shares its (device, inode) with
// any regular file under targetDir.
//
// A missing filePath is never protected. A filePath that exists but cannot be
// stat'ed returns ErrStatFailed, since its state is unknown. A link count of
// one short-circuits the walk. A symlinked targetDir is followed.
func HasHardLinkInto(ctx context.Context, filePath, targetDir string) (bool, error) {
	id, nlink, err := identify(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	if nlink <= 1 {
		log.Trace().Str("path", filePath).Msg("no additional hardlinks")
		return false, nil
	}

	found := false
	err = walkRegular(ctx, targetDir, func(path string, candidate FileID) bool {
		if candidate == id {
			log.Debug().Str("path", filePath).Str("link", path).Msg("hardlink found")
			found = true
			return false
		}
		return true
	})
	if err != nil {
		if errors.Is(err, ErrRootUnavailable) {
			log.Warn().Err(err).Str("target", targetDir).Msg("could not walk target directory")
			return false, nil
		}
		return false, err
	}

	if !found {
		log.Trace().Str("path", filePath).Str("target", targetDir).Msg("hardlinks exist but none point to target")
	}
	return found, nil
}
