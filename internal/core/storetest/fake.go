// Package storetest provides an in-memory DurableStore for unit tests.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrUnavailable is returned by every operation once Fail is set.
var ErrUnavailable = errors.New("store unavailable")

type scoredMember struct {
	member string
	score  float64
}

// Fake is an in-memory DurableStore with honest conditional-write semantics.
// It is safe for concurrent use.
type Fake struct {
	mu      sync.Mutex
	sets    map[string]map[string]float64
	records map[string][]byte
	expiry  map[string]time.Time

	// Fail makes every operation return ErrUnavailable while set.
	fail bool

	// Now is the clock used for TTL accounting. Defaults to time.Now.
	Now func() time.Time
}

// NewFake creates an empty in-memory store.
func NewFake() *Fake {
	return &Fake{
		sets:    make(map[string]map[string]float64),
		records: make(map[string][]byte),
		expiry:  make(map[string]time.Time),
		Now:     time.Now,
	}
}

// SetFail toggles failure injection for all subsequent operations.
func (f *Fake) SetFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *Fake) checkFail() error {
	if f.fail {
		return ErrUnavailable
	}
	return nil
}

func (f *Fake) pruneExpiredLocked(key string) {
	deadline, ok := f.expiry[key]
	if !ok {
		return
	}
	if f.Now().After(deadline) {
		delete(f.records, key)
		delete(f.expiry, key)
	}
}

// AddScored adds or rescores a member in the sorted set at key.
func (f *Fake) AddScored(_ context.Context, key string, score float64, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkFail(); err != nil {
		return err
	}
	set, ok := f.sets[key]
	if !ok {
		set = make(map[string]float64)
		f.sets[key] = set
	}
	set[member] = score
	return nil
}

// RangeByScore returns members with scores in [min, max] in ascending order.
func (f *Fake) RangeByScore(_ context.Context, key string, min, max float64, limit int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkFail(); err != nil {
		return nil, err
	}

	matched := make([]scoredMember, 0)
	for member, score := range f.sets[key] {
		if score >= min && score <= max {
			matched = append(matched, scoredMember{member: member, score: score})
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].score != matched[j].score {
			return matched[i].score < matched[j].score
		}
		return matched[i].member < matched[j].member
	})

	if limit > 0 && int64(len(matched)) > limit {
		matched = matched[:limit]
	}

	members := make([]string, 0, len(matched))
	for _, m := range matched {
		members = append(members, m.member)
	}
	return members, nil
}

// RemoveMember removes a member; exactly one concurrent caller observes true.
func (f *Fake) RemoveMember(_ context.Context, key, member string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkFail(); err != nil {
		return false, err
	}
	set, ok := f.sets[key]
	if !ok {
		return false, nil
	}
	if _, exists := set[member]; !exists {
		return false, nil
	}
	delete(set, member)
	return true, nil
}

// Cardinality returns the number of members in the sorted set at key.
func (f *Fake) Cardinality(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkFail(); err != nil {
		return 0, err
	}
	return int64(len(f.sets[key])), nil
}

// Ping reports store liveness.
func (f *Fake) Ping(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkFail()
}

// ScanKeys returns all record keys matching the given prefix.
func (f *Fake) ScanKeys(_ context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkFail(); err != nil {
		return nil, err
	}
	keys := make([]string, 0)
	for key := range f.records {
		f.pruneExpiredLocked(key)
		if _, ok := f.records[key]; !ok {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Expire sets a TTL on key. Returns true if the key exists.
func (f *Fake) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkFail(); err != nil {
		return false, err
	}
	f.pruneExpiredLocked(key)
	if _, ok := f.records[key]; !ok {
		return false, nil
	}
	f.expiry[key] = f.Now().Add(ttl)
	return true, nil
}

// SetRecord writes a record with a TTL. TTL zero means no expiry.
func (f *Fake) SetRecord(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkFail(); err != nil {
		return err
	}
	f.records[key] = append([]byte(nil), value...)
	if ttl > 0 {
		f.expiry[key] = f.Now().Add(ttl)
	} else {
		delete(f.expiry, key)
	}
	return nil
}

// GetRecord reads a record. Returns nil when the key is absent.
func (f *Fake) GetRecord(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkFail(); err != nil {
		return nil, err
	}
	f.pruneExpiredLocked(key)
	value, ok := f.records[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), value...), nil
}

// SetIfEquals atomically sets key to next only if its current value equals
// expected. A nil expected means "set only if the key is absent".
func (f *Fake) SetIfEquals(_ context.Context, key string, expected, next []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkFail(); err != nil {
		return false, err
	}
	f.pruneExpiredLocked(key)

	current, exists := f.records[key]
	if expected == nil {
		if exists {
			return false, nil
		}
	} else {
		if !exists || !bytes.Equal(current, expected) {
			return false, nil
		}
	}

	f.records[key] = append([]byte(nil), next...)
	return true, nil
}

// Members returns a copy of the sorted set at key, for assertions.
func (f *Fake) Members(key string) map[string]float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]float64, len(f.sets[key]))
	for member, score := range f.sets[key] {
		out[member] = score
	}
	return out
}
