package upload_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mediaqueue/pkg/file"
	"github.com/dmitrymomot/mediaqueue/pkg/media"
)

// memStorage records Put calls and optionally holds them until gate closes.
type memStorage struct {
	gate    chan struct{}
	started chan string

	mu          sync.Mutex
	objects     map[string][]byte
	order       []string
	active      int
	maxActive   int
	activeAtPut map[string]int
}

func newMemStorage() *memStorage {
	return &memStorage{
		objects:     make(map[string][]byte),
		activeAtPut: make(map[string]int),
		started:     make(chan string, 64),
	}
}

func (s *memStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*file.File, error) {
	s.mu.Lock()
	s.active++
	s.maxActive = max(s.maxActive, s.active)
	s.activeAtPut[key] = s.active
	s.order = append(s.order, key)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	s.started <- key

	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()

	return &file.File{Key: key, Size: int64(len(data)), ContentType: contentType, URL: s.URL(key)}, nil
}

func (s *memStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memStorage) Exists(_ context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *memStorage) URL(key string) string {
	return "mem://" + key
}

func (s *memStorage) putOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// extProber classifies by extension and reports sizes from the filesystem.
func extProber() media.Prober {
	return media.ProberFunc(func(_ context.Context, path string) (media.Info, error) {
		st, err := os.Stat(path)
		if err != nil {
			return media.Info{}, err
		}
		info := media.Info{
			Path:     path,
			Name:     filepath.Base(path),
			Size:     st.Size(),
			ModTime:  st.ModTime(),
			Kind:     media.KindFromExtension(path),
			MIMEType: "application/octet-stream",
		}
		if info.Kind == media.KindImage {
			info.MIMEType = "image/jpeg"
		}
		return info, nil
	})
}

func writeFiles(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(strings.Repeat("x", 64)+name), 0o644))
		paths = append(paths, p)
	}
	return paths
}
