package app_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mediaqueue/cmd/mediaupload/app"
	"github.com/dmitrymomot/mediaqueue/pkg/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	config.Reset()
	t.Cleanup(config.Reset)

	cmd := app.NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestUploadCommand_LocalStorage(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "trip"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "trip", "notes.txt"), []byte("day one"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "readme.md"), []byte("# trip"), 0o644))

	t.Setenv("STORAGE_DRIVER", "local")
	t.Setenv("STORAGE_LOCAL_DIR", dst)
	t.Setenv("STORAGE_LOCAL_URL", "/media/")
	t.Setenv("STATUS_STORE", "memory")
	t.Setenv("LOG_LEVEL", "error")

	out, err := execute(t, "upload", src, "--prefix", "2025")
	require.NoError(t, err)

	assert.Contains(t, out, "2025/trip/notes.txt")
	assert.Contains(t, out, "/media/2025/readme.md")

	data, err := os.ReadFile(filepath.Join(dst, "2025", "trip", "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "day one", string(data))
}

func TestUploadCommand_Errors(t *testing.T) {
	t.Setenv("STORAGE_LOCAL_DIR", t.TempDir())
	t.Setenv("LOG_LEVEL", "error")

	t.Run("missing directory", func(t *testing.T) {
		_, err := execute(t, "upload", filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, err)
	})

	t.Run("no arguments", func(t *testing.T) {
		_, err := execute(t, "upload")
		assert.Error(t, err)
	})

	t.Run("unknown storage driver", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "ftp")
		_, err := execute(t, "upload", t.TempDir())
		assert.ErrorContains(t, err, "STORAGE_DRIVER")
	})
}

func TestStatusCommand_RequiresRedis(t *testing.T) {
	t.Setenv("STATUS_STORE", "memory")
	t.Setenv("LOG_LEVEL", "error")

	_, err := execute(t, "status", "batch-1")
	assert.ErrorContains(t, err, "STATUS_STORE")
}
