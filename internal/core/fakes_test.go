package core

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/robodata/internal/config"
)

// memRepo is an in-memory DatasetRepository and ReferenceChecker.
type memRepo struct {
	mu       sync.Mutex
	datasets map[string]*Dataset
	robots   map[string]bool
	skills   map[string]bool

	// beforeSave runs inside SaveOutcome before the status check.
	beforeSave func(id string)
	getErr     error
}

func newMemRepo() *memRepo {
	return &memRepo{
		datasets: make(map[string]*Dataset),
		robots:   map[string]bool{"so100": true, "aloha": true},
		skills:   map[string]bool{"pick-place": true},
	}
}

func (r *memRepo) Create(_ context.Context, d *Dataset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.datasets[d.ID] = d.Clone()
	return nil
}

func (r *memRepo) Get(_ context.Context, id string) (*Dataset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	d, ok := r.datasets[id]
	if !ok {
		return nil, nil
	}
	return d.Clone(), nil
}

func (r *memRepo) List(_ context.Context, f ListFilter, p Pagination) (*DatasetList, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []Dataset
	for _, d := range r.datasets {
		if f.RobotTypeID != "" && d.RobotTypeID != f.RobotTypeID {
			continue
		}
		if f.SkillID != "" && (d.SkillID == nil || *d.SkillID != f.SkillID) {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		if f.MinQualityScore != nil && d.QualityScore < *f.MinQualityScore {
			continue
		}
		if !f.UpdatedBefore.IsZero() && !d.UpdatedAt.Before(f.UpdatedBefore) {
			continue
		}
		matched = append(matched, *d.Clone())
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	p = p.Normalize()
	start := min(p.Offset(), len(matched))
	end := min(start+p.PageSize, len(matched))
	return &DatasetList{Items: matched[start:end], Total: len(matched), Page: p.Page, PageSize: p.PageSize}, nil
}

func (r *memRepo) UpdateDetails(_ context.Context, id string, patch DatasetPatch) (*Dataset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.datasets[id]
	if !ok {
		return nil, nil
	}
	if patch.Name != nil {
		d.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		d.Description = *patch.Description
	}
	switch {
	case patch.ClearSkill:
		d.SkillID = nil
	case patch.SkillID != nil:
		skill := *patch.SkillID
		d.SkillID = &skill
	}
	d.UpdatedAt = time.Now()
	return d.Clone(), nil
}

func (r *memRepo) TransitionStatus(_ context.Context, id string, from, to DatasetStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !CanTransition(from, to) {
		return false, ErrInvalidState
	}
	d, ok := r.datasets[id]
	if !ok || d.Status != from {
		return false, nil
	}
	d.Status = to
	d.UpdatedAt = time.Now()
	return true, nil
}

func (r *memRepo) SaveOutcome(_ context.Context, id string, o ValidationOutcome) (bool, error) {
	if r.beforeSave != nil {
		r.beforeSave(id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.datasets[id]
	if !ok || d.Status != StatusValidating {
		return false, nil
	}
	d.applyOutcome(o, time.Now())
	return true, nil
}

func (r *memRepo) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.datasets[id]; !ok {
		return false, nil
	}
	delete(r.datasets, id)
	return true, nil
}

func (r *memRepo) RobotTypeExists(_ context.Context, id string) (bool, error) {
	return r.robots[id], nil
}

func (r *memRepo) SkillExists(_ context.Context, id string) (bool, error) {
	return r.skills[id], nil
}

// put stores d directly, bypassing Create.
func (r *memRepo) put(d *Dataset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.datasets[d.ID] = d.Clone()
}

// memStorage is an in-memory Storage.
type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte

	existsErr error
	deleteErr error
	deleted   []string
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (s *memStorage) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.objects[key]
	return ok, nil
}

func (s *memStorage) Download(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func (s *memStorage) PresignUpload(_ context.Context, prefix string, c UploadConstraints) (*UploadTarget, error) {
	return &UploadTarget{
		URL:       "https://storage.test/bucket",
		Fields:    map[string]string{"key": prefix + "/${filename}"},
		Path:      prefix,
		ExpiresAt: time.Now().Add(c.Expiry),
	}, nil
}

func (s *memStorage) DeletePrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, prefix)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	for k := range s.objects {
		if strings.HasPrefix(k, prefix+"/") {
			delete(s.objects, k)
		}
	}
	return nil
}

func (s *memStorage) put(key, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = []byte(body)
}

// memBroker records publishes and dedups on key.
type memBroker struct {
	mu         sync.Mutex
	connected  bool
	publishErr error
	published  []ValidationJob
	keys       map[string]bool
}

func newMemBroker(connected bool) *memBroker {
	return &memBroker{connected: connected, keys: make(map[string]bool)}
}

func (b *memBroker) Publish(_ context.Context, _ string, payload []byte, dedupKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	if b.keys[dedupKey] {
		return nil
	}
	job, err := DecodeJob(payload)
	if err != nil {
		return err
	}
	b.keys[dedupKey] = true
	b.published = append(b.published, job)
	return nil
}

func (b *memBroker) Connected(context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *memBroker) jobs() []ValidationJob {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ValidationJob(nil), b.published...)
}

// memKV is an in-memory KVStore.
type memKV struct {
	mu     sync.Mutex
	values map[string][]byte
	writes []string
}

func newMemKV() *memKV {
	return &memKV{values: make(map[string][]byte)}
}

func (k *memKV) Put(_ context.Context, key string, value []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.values[key] = append([]byte(nil), value...)
	k.writes = append(k.writes, string(value))
	return nil
}

func (k *memKV) Get(_ context.Context, key string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.values[key]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{Prefix: "datasets", UploadURLExpiry: time.Hour},
		Broker:  config.BrokerConfig{Enabled: true, TaskQueue: "test", HealthTimeout: time.Second},
		Validation: config.ValidationConfig{
			MaxConcurrent:    2,
			MaxWaitTime:      time.Second,
			Timeout:          time.Minute,
			ManifestPath:     "meta/info.json",
			StatsPath:        "meta/stats.json",
			EpisodeIndexPath: "meta/episodes.jsonl",
		},
		Scoring: config.ScoringConfig{
			EpisodeCeiling:     50,
			DurationCeiling:    3600,
			DiversityThreshold: 10,
			DiversityHigh:      0.8,
			DiversityLow:       0.4,
			DemonstrationMax:   40,
			DurationMax:        30,
			DiversityMax:       20,
			ManifestCredit:     4,
			StatsCredit:        3,
			ValidityCredit:     3,
		},
	}
}

type testEnv struct {
	svc     *Service
	repo    *memRepo
	storage *memStorage
	broker  *memBroker
	kv      *memKV
}

// newTestEnv builds a Service on in-memory fakes. A nil broker forces
// inline validation.
func newTestEnv(t *testing.T, broker *memBroker) *testEnv {
	t.Helper()

	env := &testEnv{
		repo:    newMemRepo(),
		storage: newMemStorage(),
		broker:  broker,
		kv:      newMemKV(),
	}
	deps := Deps{
		Repository: env.repo,
		References: env.repo,
		Storage:    env.storage,
		KV:         env.kv,
	}
	if broker != nil {
		deps.Broker = broker
	}

	svc, err := NewService(deps, testConfig())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	env.svc = svc
	return env
}

// uploadTree writes a dataset tree under prefix. An empty manifest skips it.
func (e *testEnv) uploadTree(prefix, manifest string, withStats bool) {
	if manifest != "" {
		e.storage.put(prefix+"/meta/info.json", manifest)
	}
	if withStats {
		e.storage.put(prefix+"/meta/stats.json", `{"observation.state":{"mean":[0.1],"std":[0.2]}}`)
	}
	e.storage.put(prefix+"/meta/episodes.jsonl", `{"episode_index":0}`)
}

const goodManifest = `{
	"codebase_version": "v2.0",
	"robot_type": "so100",
	"fps": 30,
	"features": {"observation.state": {"dtype": "float32", "shape": [6]}},
	"total_episodes": 50,
	"total_frames": 108000
}`
