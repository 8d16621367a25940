package server

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKeySource struct {
	mu      sync.Mutex
	keys    []string
	version int64
	err     error
}

func (f *fakeKeySource) LoadAPIKeys() ([]string, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keys, f.version, f.err
}

func (f *fakeKeySource) set(version int64, keys ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.version, f.keys = version, keys
}

func TestVaultWatcherPoll(t *testing.T) {
	source := &fakeKeySource{keys: []string{"old"}, version: 2}
	var rotated [][]string
	vw := NewVaultWatcher(source, time.Minute, 2, func(keys []string) { rotated = append(rotated, keys) }, nil)

	changed, err := vw.poll()
	require.NoError(t, err)
	assert.False(t, changed, "startup version must not be re-applied")

	source.set(3, "new-a", "new-b")
	changed, err = vw.poll()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, [][]string{{"new-a", "new-b"}}, rotated)
	assert.Equal(t, int64(3), vw.Status()["last_version"])

	source.set(4)
	_, err = vw.poll()
	assert.Error(t, err, "an empty key list must not lock everyone out")
	assert.Len(t, rotated, 1)

	source.mu.Lock()
	source.err = fmt.Errorf("vault sealed")
	source.mu.Unlock()
	_, err = vw.poll()
	assert.ErrorContains(t, err, "vault sealed")
	assert.Equal(t, "vault sealed", vw.Status()["last_error"])
}

func TestVaultWatcherRotatesServerKeys(t *testing.T) {
	source := &fakeKeySource{keys: []string{"first"}, version: 1}
	s := newTestServer(t, func(cfg *ServerConfig) { cfg.APIKeys = []string{"first"} })

	vw := NewVaultWatcher(source, 10*time.Millisecond, 1, s.SetAPIKeys, nil)
	require.NoError(t, vw.Start())
	t.Cleanup(func() { _ = vw.Stop() })
	assert.Error(t, vw.Start())

	source.set(2, "second")
	require.Eventually(t, func() bool {
		_, ok := s.keys()["second"]
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	_, stillValid := s.keys()["first"]
	assert.False(t, stillValid)
}

func TestVaultWatcherRejectsZeroInterval(t *testing.T) {
	vw := NewVaultWatcher(&fakeKeySource{}, 0, 0, func([]string) {}, nil)
	assert.Error(t, vw.Start())
	assert.NoError(t, vw.Stop())
}
