package runner

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ironsheep/desk-mode-mcp/internal/imaging"
)

// DirSource replays the frame files of a directory in name order.
//
// When looping, decoded frames are kept in an ImageCache so each file is
// read from disk only once.
type DirSource struct {
	mu    sync.Mutex
	paths []string
	next  int
	loop  bool
	cache *imaging.ImageCache
}

// NewDirSource lists the PNG, JPEG and GIF files in dir. Subdirectories are
// not visited. It fails when the directory has no frame files.
func NewDirSource(dir string, loop bool) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading frames directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !imaging.IsFrameFile(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no frame files in %s", dir)
	}
	sort.Strings(paths)

	s := &DirSource{paths: paths, loop: loop}
	if loop {
		s.cache = imaging.NewImageCache()
	}
	return s, nil
}

// Len returns the number of frame files.
func (s *DirSource) Len() int {
	return len(s.paths)
}

// Next returns the next frame, or io.EOF after the last one when not
// looping.
func (s *DirSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.next >= len(s.paths) {
		if !s.loop {
			s.mu.Unlock()
			return nil, io.EOF
		}
		s.next = 0
	}
	path := s.paths[s.next]
	s.next++
	s.mu.Unlock()

	if s.cache != nil {
		return s.cache.Load(path)
	}
	return imaging.LoadFrame(path)
}
