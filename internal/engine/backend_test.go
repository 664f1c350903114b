package engine

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/ilpi-dev/ilpi-store/internal/config"
	"github.com/ilpi-dev/ilpi-store/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseBackend runs the contract every Backend must satisfy.
func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	_, err := b.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, b.Put(ctx, "doc", []byte(`{"version":1}`)))
	got, err := b.Get(ctx, "doc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1}`, string(got))

	require.NoError(t, b.Put(ctx, "doc", []byte(`{"version":2}`)))
	got, err = b.Get(ctx, "doc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":2}`, string(got))

	require.NoError(t, b.Delete(ctx, "doc"))
	_, err = b.Get(ctx, "doc")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, b.Delete(ctx, "doc"), "deleting a missing key is not an error")
}

func TestMemBackend(t *testing.T) {
	b := NewMemBackend(nil)
	exerciseBackend(t, b)

	// values are copied in and out
	ctx := context.Background()
	val := []byte("abc")
	require.NoError(t, b.Put(ctx, "k", val))
	val[0] = 'x'
	got, _ := b.Get(ctx, "k")
	got[1] = 'y'
	again, _ := b.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestFileBackend(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir)
	require.NoError(t, err)
	exerciseBackend(t, b)

	ctx := context.Background()
	require.NoError(t, b.Put(ctx, DefaultKey, []byte(`{}`)))
	_, err = os.Stat(filepath.Join(dir, DefaultKey+".json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, DefaultKey+".json.tmp"))
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")

	assert.Error(t, b.Put(ctx, "../escape", []byte(`{}`)))
}

func TestFileBackend_StorePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b1, err := NewFileBackend(dir)
	require.NoError(t, err)
	s1 := newTestStore(t, b1)
	seed, err := s1.Load(ctx)
	require.NoError(t, err)
	_, err = s1.Save(ctx, schema.EmployeesPatch(append(seed.Employees, newEmployee("2", "Elena"))))
	require.NoError(t, err)

	b2, err := NewFileBackend(dir)
	require.NoError(t, err)
	env, err := newTestStore(t, b2).Load(ctx)
	require.NoError(t, err)
	assert.Len(t, env.Employees, 2)
}

func TestSQLiteBackend(t *testing.T) {
	b, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "ilpi.db"))
	require.NoError(t, err)
	defer b.Close()
	exerciseBackend(t, b)
}

func TestBadgerBackend(t *testing.T) {
	b, err := OpenBadger(filepath.Join(t.TempDir(), "badger"))
	require.NoError(t, err)
	defer b.Close()
	exerciseBackend(t, b)
}

func TestBadgerBackend_InMemory(t *testing.T) {
	b, err := OpenBadger("")
	require.NoError(t, err)
	defer b.Close()
	exerciseBackend(t, b)
}

func TestSealedBackend(t *testing.T) {
	ctx := context.Background()
	inner := NewMemBackend(nil)
	b := NewSealedBackend(inner, []byte("thisis32byteslongsecretkey123456"))
	exerciseBackend(t, b)

	require.NoError(t, b.Put(ctx, "doc", []byte(`{"employees":[]}`)))
	raw, err := inner.Get(ctx, "doc")
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "employees")

	wrongKey := NewSealedBackend(inner, []byte("another32byteslongsecretkey65432"))
	_, err = wrongKey.Get(ctx, "doc")
	assert.Error(t, err)
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, kind := range []string{config.BackendFile, config.BackendMemory, config.BackendSQLite, config.BackendBadger} {
		t.Run(kind, func(t *testing.T) {
			b, err := OpenBackend(ctx, config.StorageConfig{Backend: kind, DataDir: filepath.Join(dir, kind)})
			require.NoError(t, err)
			defer b.Close()
			exerciseBackend(t, b)
		})
	}

	sealed, err := OpenBackend(ctx, config.StorageConfig{
		Backend:   config.BackendMemory,
		MasterKey: hex.EncodeToString([]byte("thisis32byteslongsecretkey123456")),
	})
	require.NoError(t, err)
	assert.IsType(t, &SealedBackend{}, sealed)

	_, err = OpenBackend(ctx, config.StorageConfig{Backend: config.BackendMemory, MasterKey: "short"})
	assert.Error(t, err)

	_, err = OpenBackend(ctx, config.StorageConfig{Backend: "tape"})
	assert.Error(t, err)
}

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	src := NewMemBackend(nil)
	seeded, err := newTestStore(t, src).Load(ctx)
	require.NoError(t, err)

	dst, err := OpenSQLite(filepath.Join(t.TempDir(), "ilpi.db"))
	require.NoError(t, err)
	defer dst.Close()

	require.NoError(t, Transfer(ctx, src, dst, DefaultKey))

	env, err := newTestStore(t, dst).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, seeded.Employees, env.Employees)

	assert.ErrorIs(t, Transfer(ctx, NewMemBackend(nil), dst, DefaultKey), ErrKeyNotFound)
}
