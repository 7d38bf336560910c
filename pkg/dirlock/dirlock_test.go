package dirlock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/agentwatch/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOptions() Options {
	return Options{Retries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestAcquireAndRelease(t *testing.T) {
	target := filepath.Join(t.TempDir(), "sessions.json")

	lock, err := Acquire(target, DefaultOptions())
	require.NoError(t, err)
	assert.DirExists(t, target+".lock")

	pid, err := ReadHolder(target)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, lock.Release())
	assert.NoDirExists(t, target+".lock")

	// Releasing twice is harmless.
	require.NoError(t, lock.Release())
}

func TestAcquireFailsWhileHolderAlive(t *testing.T) {
	target := filepath.Join(t.TempDir(), "sessions.json")

	lock, err := Acquire(target, fastOptions())
	require.NoError(t, err)
	defer lock.Release()

	start := time.Now()
	_, err = Acquire(target, fastOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeLockBusy))
	assert.Less(t, time.Since(start), time.Second)

	// The live holder's marker is untouched.
	pid, err := ReadHolder(target)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestAcquireBreaksDeadHolder(t *testing.T) {
	target := filepath.Join(t.TempDir(), "sessions.json")
	marker := MarkerPath(target)
	require.NoError(t, os.Mkdir(marker, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(marker, "pid"), []byte(strconv.Itoa(1<<30)), 0644))

	lock, err := Acquire(target, fastOptions())
	require.NoError(t, err)
	defer lock.Release()

	pid, err := ReadHolder(target)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	leftovers, err := filepath.Glob(marker + ".stale-*")
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestOrphanMarkerWithoutPID(t *testing.T) {
	t.Run("fresh marker is respected", func(t *testing.T) {
		target := filepath.Join(t.TempDir(), "sessions.json")
		require.NoError(t, os.Mkdir(MarkerPath(target), 0755))

		_, err := Acquire(target, fastOptions())
		assert.True(t, errors.Is(err, errors.ErrCodeLockBusy))
	})

	t.Run("old marker is broken", func(t *testing.T) {
		target := filepath.Join(t.TempDir(), "sessions.json")
		marker := MarkerPath(target)
		require.NoError(t, os.Mkdir(marker, 0755))
		old := time.Now().Add(-time.Minute)
		require.NoError(t, os.Chtimes(marker, old, old))

		lock, err := Acquire(target, fastOptions())
		require.NoError(t, err)
		require.NoError(t, lock.Release())
	})
}

func TestWithReleasesOnError(t *testing.T) {
	target := filepath.Join(t.TempDir(), "sessions.json")

	err := With(target, fastOptions(), func() error {
		assert.DirExists(t, MarkerPath(target))
		return fmt.Errorf("boom")
	})
	require.EqualError(t, err, "boom")
	assert.NoDirExists(t, MarkerPath(target))
}

func TestWithSerializesWriters(t *testing.T) {
	target := filepath.Join(t.TempDir(), "counter")
	require.NoError(t, os.WriteFile(target, []byte("0"), 0644))

	opts := Options{Retries: 200, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- With(target, opts, func() error {
				data, err := os.ReadFile(target)
				if err != nil {
					return err
				}
				n, err := strconv.Atoi(string(data))
				if err != nil {
					return err
				}
				time.Sleep(time.Millisecond)
				return os.WriteFile(target, []byte(strconv.Itoa(n+1)), 0644)
			})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(workers), string(data))
}
