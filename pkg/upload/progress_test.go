package upload

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressReader(t *testing.T) {
	t.Parallel()

	var reports []Progress
	pr := &progressReader{
		r:      bytes.NewReader([]byte("hello world")),
		p:      Progress{Key: "k", Total: 11},
		report: func(p Progress) { reports = append(reports, p) },
	}

	data, err := io.ReadAll(pr)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
	require.NotEmpty(t, reports)
	assert.Equal(t, int64(11), reports[len(reports)-1].Sent)

	pos, err := pr.Seek(0, io.SeekStart)
	require.NoError(t, err)
	assert.Zero(t, pos)

	buf := make([]byte, 5)
	_, err = io.ReadFull(pr, buf)
	require.NoError(t, err)
	assert.Equal(t, int64(5), reports[len(reports)-1].Sent)
}

func TestProgressReader_NotSeekable(t *testing.T) {
	t.Parallel()
	pr := &progressReader{r: strings.NewReader("x"), report: func(Progress) {}}
	// strings.Reader is seekable; hide it behind a plain reader
	pr.r = io.MultiReader(pr.r)

	_, err := pr.Seek(0, io.SeekStart)
	assert.ErrorIs(t, err, errNotSeekable)
}
