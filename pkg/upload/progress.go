package upload

import (
	"errors"
	"io"

	"github.com/google/uuid"
)

// Progress reports how much of one upload has been sent.
type Progress struct {
	ID    uuid.UUID
	Key   string
	Sent  int64
	Total int64
}

// ProgressFunc receives progress reports. It is called from upload
// goroutines and must not block.
type ProgressFunc func(Progress)

var errNotSeekable = errors.New("upload: reader is not seekable")

// progressReader counts bytes read from r. Seeking resets the count to the
// new position, so storage backends that rewind the body still report
// accurate totals.
type progressReader struct {
	r      io.Reader
	p      Progress
	report ProgressFunc
}

func (pr *progressReader) Read(b []byte) (int, error) {
	n, err := pr.r.Read(b)
	if n > 0 {
		pr.p.Sent += int64(n)
		pr.report(pr.p)
	}
	return n, err
}

func (pr *progressReader) Seek(offset int64, whence int) (int64, error) {
	s, ok := pr.r.(io.Seeker)
	if !ok {
		return 0, errNotSeekable
	}
	pos, err := s.Seek(offset, whence)
	if err != nil {
		return pos, err
	}
	pr.p.Sent = pos
	return pos, nil
}
