package media

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrymomot/mediaqueue/pkg/cache"

	// Decoders for image.DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Info describes a media file on disk.
type Info struct {
	Path     string
	Name     string
	Size     int64
	ModTime  time.Time
	MIMEType string
	Kind     Kind
	// Width and Height are set for images whose format can be decoded.
	Width  int
	Height int
}

// Pixels returns the image area, or zero when dimensions are unknown.
func (i Info) Pixels() int64 {
	return int64(i.Width) * int64(i.Height)
}

// Prober reads media metadata.
type Prober interface {
	Probe(ctx context.Context, path string) (Info, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, path string) (Info, error)

func (f ProberFunc) Probe(ctx context.Context, path string) (Info, error) {
	return f(ctx, path)
}

// Probe inspects the file at path.
// The MIME type is sniffed from the first 512 bytes rather than trusted from
// the extension; image dimensions come from the image header only.
func Probe(ctx context.Context, path string) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrFailedToOpenFile, err)
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrFailedToStatFile, err)
	}
	if st.IsDir() {
		return Info{}, ErrIsDirectory
	}

	// 512 bytes is the maximum http.DetectContentType reads
	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return Info{}, fmt.Errorf("%w: %v", ErrFailedToReadFile, err)
	}

	info := Info{
		Path:     path,
		Name:     filepath.Base(path),
		Size:     st.Size(),
		ModTime:  st.ModTime(),
		MIMEType: http.DetectContentType(buf[:n]),
	}
	info.Kind = detectKind(info.MIMEType, info.Name)

	if info.Kind == KindImage {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return Info{}, fmt.Errorf("%w: %v", ErrFailedToReadFile, err)
		}
		// Unsupported formats (heic, webp, ...) simply leave the dimensions unknown.
		if cfg, _, err := image.DecodeConfig(f); err == nil {
			info.Width, info.Height = cfg.Width, cfg.Height
		}
	}

	return info, nil
}

// DefaultProbeCacheSize bounds the number of entries a CachedProber keeps.
const DefaultProbeCacheSize = 4096

// CachedProber remembers probe results until the file's size or modification time changes.
// It keeps at most a fixed number of entries and is safe for concurrent use.
type CachedProber struct {
	next  Prober
	cache *cache.LRU[string, Info]
}

// NewCachedProber wraps next with a cache of DefaultProbeCacheSize entries.
// A nil next probes the filesystem with Probe.
func NewCachedProber(next Prober) *CachedProber {
	return NewCachedProberSize(next, DefaultProbeCacheSize)
}

// NewCachedProberSize is NewCachedProber with an explicit capacity.
func NewCachedProberSize(next Prober, size int) *CachedProber {
	if next == nil {
		next = ProberFunc(Probe)
	}
	return &CachedProber{
		next:  next,
		cache: cache.NewLRU[string, Info](size),
	}
}

// Probe returns the cached Info when the file is unchanged, otherwise probes it again.
func (c *CachedProber) Probe(ctx context.Context, path string) (Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		c.Forget(path)
		return Info{}, fmt.Errorf("%w: %v", ErrFailedToStatFile, err)
	}

	if cached, ok := c.cache.Get(path); ok && cached.Size == st.Size() && cached.ModTime.Equal(st.ModTime()) {
		return cached, nil
	}

	info, err := c.next.Probe(ctx, path)
	if err != nil {
		return Info{}, err
	}
	c.cache.Set(path, info)

	return info, nil
}

// Forget drops the cached entry for path.
func (c *CachedProber) Forget(path string) {
	c.cache.Delete(path)
}

// Len returns the number of cached entries.
func (c *CachedProber) Len() int {
	return c.cache.Len()
}
