package checkpoint_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/lehaproxy/core/checkpoint"
)

func TestListHistory(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	s := e.store(t)

	titles := []string{"first", "second", "third"}
	for _, title := range titles {
		require.NoError(t, s.BeginTemporary([]string{e.path(title + ".pem")}, ""))
		_, err := s.MergeIntoPermanent(title)
		require.NoError(t, err)
	}

	t.Run("newest first", func(t *testing.T) {
		var got []string
		for cp, err := range s.ListHistory() {
			require.NoError(t, err)
			assert.False(t, cp.Pending())
			got = append(got, cp.Title)
		}
		assert.Equal(t, []string{"third", "second", "first"}, got)
	})

	t.Run("early stop", func(t *testing.T) {
		var got []string
		for cp, err := range s.ListHistory() {
			require.NoError(t, err)
			got = append(got, cp.Title)
			break
		}
		assert.Equal(t, []string{"third"}, got)
	})

	t.Run("ignores foreign directories", func(t *testing.T) {
		require.NoError(t, os.MkdirAll(filepath.Join(s.BackupDir(), "lost+found"), 0o700))
		require.NoError(t, s.BeginTemporary([]string{e.path("pending.pem")}, ""))

		n, err := s.HistoryLen()
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Len(t, historyIDs(t, s), 3)
	})
}

func TestListHistoryEmpty(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	s := e.store(t)

	assert.Empty(t, historyIDs(t, s))
}

func TestWalkCheckpoint(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	s := e.store(t)

	p := e.path("a.example.pem")
	writeFile(t, p, "pre-image bytes")
	require.NoError(t, s.Begin(checkpoint.KindPermanent, []string{p}, "changed a\n"))
	cp, err := s.MergeIntoPermanent("walk")
	require.NoError(t, err)

	files := map[string]string{}
	err = s.WalkCheckpoint(cp.ID, func(name string, r io.Reader) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		files[name] = string(data)
		return nil
	})
	require.NoError(t, err)

	assert.Contains(t, files, "manifest.json")
	assert.Contains(t, files["CHANGES_SINCE"], "-- walk --")
	assert.Equal(t, "pre-image bytes", files[cp.Changed[0].PreImage])
}

func TestWalkCheckpointNotFound(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	s := e.store(t)

	noop := func(string, io.Reader) error { return nil }
	assert.ErrorIs(t, s.WalkCheckpoint("IN_PROGRESS", noop), checkpoint.ErrNotFound)
	assert.ErrorIs(t, s.WalkCheckpoint("20200101T000000.000000000Z", noop), checkpoint.ErrNotFound)
}
