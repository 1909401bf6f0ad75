package hardlink

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/rs/zerolog/log"
)

// IndexOptions bounds an index build. The time bound comes from the context.
type IndexOptions struct {
	// MaxFiles aborts the build once more regular files than this are seen.
	// Zero means unlimited.
	MaxFiles int
}

// Index is a snapshot of every regular file identity under a root. It is
// meant to live for a single run; the filesystem may change between runs.
type Index struct {
	root string
	ids  map[FileID]string
}

// BuildIndex walks root once and records the identity of every regular file.
func BuildIndex(ctx context.Context, root string, opts IndexOptions) (*Index, error) {
	start := time.Now()
	idx := &Index{
		root: root,
		ids:  make(map[FileID]string),
	}

	seen := 0
	var limitErr error
	err := walkRegular(ctx, root, func(path string, id FileID) bool {
		seen++
		if opts.MaxFiles > 0 && seen > opts.MaxFiles {
			limitErr = fmt.Errorf("%w: %s has more than %d files", ErrTooManyFiles, root, opts.MaxFiles)
			return false
		}
		if _, ok := idx.ids[id]; !ok {
			idx.ids[id] = path
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if limitErr != nil {
		return nil, limitErr
	}

	log.Debug().
		Str("root", root).
		Int("files", seen).
		Int("fileIDs", len(idx.ids)).
		Dur("took", time.Since(start)).
		Msg("built hardlink index")

	return idx, nil
}

// Root returns the directory the index was built from.
func (i *Index) Root() string {
	return i.root
}

// Len returns the number of distinct file identities in the index.
func (i *Index) Len() int {
	return len(i.ids)
}

// Lookup returns the first path seen under the root for id.
func (i *Index) Lookup(id FileID) (string, bool) {
	path, ok := i.ids[id]
	return path, ok
}

// Protects gives the same answer as HasHardLinkInto(ctx, filePath, i.Root())
// for the state of the filesystem when the index was built. A missing file
// is not protected; any other stat failure returns ErrStatFailed.
func (i *Index) Protects(filePath string) (bool, error) {
	id, nlink, err := identify(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if nlink <= 1 {
		return false, nil
	}

	link, ok := i.ids[id]
	if ok {
		log.Debug().Str("path", filePath).Str("link", link).Msg("hardlink found")
	}
	return ok, nil
}
