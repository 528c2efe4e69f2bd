package download

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var fastOpts = Options{
	PollInterval:   10 * time.Millisecond,
	StableInterval: 30 * time.Millisecond,
	Timeout:        2 * time.Second,
	MinSize:        16,
}

func write(t *testing.T, path string, size int) {
	t.Helper()
	err := os.WriteFile(path, make([]byte, size), 0o644)
	require.NoError(t, err)
}

func TestAwaitStableFile(t *testing.T) {
	dir := t.TempDir()
	want := filepath.Join(dir, "export.xlsx")
	write(t, want, 4096)

	got, err := Await(context.Background(), dir, ".xlsx", fastOpts)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestAwaitIgnoresGrowingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "export.xlsx")
	write(t, path, 64)

	// keep growing the file for a while, then let it settle
	stop := time.After(200 * time.Millisecond)
	done := make(chan struct{})
	go func() {
		defer close(done)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return
		}
		defer f.Close()
		for {
			select {
			case <-stop:
				return
			default:
				f.Write(make([]byte, 128))
				time.Sleep(5 * time.Millisecond)
			}
		}
	}()

	start := time.Now()
	got, err := Await(context.Background(), dir, ".xlsx", fastOpts)
	<-done
	require.NoError(t, err)
	require.Equal(t, path, got)
	// must not have accepted the file while it was still being written
	require.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestAwaitIgnoresSmallAndLockFiles(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "export.xlsx"), 8)        // below MinSize
	write(t, filepath.Join(dir, "~$export.xlsx"), 4096)   // editor lock file
	write(t, filepath.Join(dir, "report.pdf"), 4096)      // wrong extension

	opts := fastOpts
	opts.Timeout = 150 * time.Millisecond
	_, err := Await(context.Background(), dir, ".xlsx", opts)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestAwaitTimeout(t *testing.T) {
	dir := t.TempDir()
	opts := fastOpts
	opts.Timeout = 100 * time.Millisecond

	_, err := Await(context.Background(), dir, ".xlsx", opts)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "stale.xlsx"), 2048)
	write(t, filepath.Join(dir, "keep.csv"), 2048)

	require.NoError(t, Clear(dir, ".xlsx"))

	_, err := os.Stat(filepath.Join(dir, "stale.xlsx"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "keep.csv"))
	require.NoError(t, err)
}

func TestClearCreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "downloads")
	require.NoError(t, Clear(dir, ".xlsx"))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}
