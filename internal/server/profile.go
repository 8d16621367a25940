package server

import (
	"sync/atomic"
	"time"

	"fairaudit/internal/config"
	"fairaudit/internal/types"
)

// ActiveProfile is the threshold profile requests are evaluated against.
type ActiveProfile struct {
	config.LoadedProfile
	LoadedAt time.Time
}

// Source names where the profile came from.
func (p *ActiveProfile) Source() string {
	if p.Path == "" {
		return "builtin"
	}
	return p.Path
}

// ProfileStore publishes the active profile to concurrent readers.
// A request reads it once and keeps that snapshot for its whole evaluation.
type ProfileStore struct {
	current atomic.Pointer[ActiveProfile]
}

func NewProfileStore(initial config.LoadedProfile) *ProfileStore {
	ps := &ProfileStore{}
	ps.current.Store(&ActiveProfile{LoadedProfile: initial, LoadedAt: time.Now()})
	return ps
}

// Current returns the active profile snapshot.
func (ps *ProfileStore) Current() *ActiveProfile {
	return ps.current.Load()
}

// Reload parses path and swaps it in. On any error the previous profile stays active.
// changed is false when the file content hashes to the active profile.
func (ps *ProfileStore) Reload(path string) (changed bool, err error) {
	loaded, err := config.LoadThresholdProfile(path)
	if err != nil {
		return false, err
	}
	if cur := ps.Current(); cur != nil && cur.Hash == loaded.Hash {
		return false, nil
	}
	ps.current.Store(&ActiveProfile{LoadedProfile: loaded, LoadedAt: time.Now()})
	return true, nil
}

// Describe renders the active profile for GET /thresholds.
func (ps *ProfileStore) Describe() types.ThresholdProfileResponse {
	cur := ps.Current()
	return types.ThresholdProfileResponse{
		Name:     cur.Thresholds.Name(),
		Hash:     cur.Hash,
		Source:   cur.Source(),
		LoadedAt: cur.LoadedAt.UTC(),
		Profile:  config.DocumentFor(cur.Thresholds),
	}
}
