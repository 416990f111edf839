package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/campus-schedule-api/pkg/errors"
)

type memoryCacheRepo struct {
	data     map[string][]byte
	getErr   error
	patterns []string
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{data: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	m.data = map[string][]byte{}
	return nil
}

func TestCacheServiceHitAndMiss(t *testing.T) {
	repo := newMemoryCacheRepo()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, 0, nil, true)
	ctx := context.Background()

	var out []string
	assert.False(t, svc.Get(ctx, TeacherScheduleKey("t1"), &out))

	svc.Set(ctx, TeacherScheduleKey("t1"), []string{"a"}, 0)
	assert.True(t, svc.Get(ctx, TeacherScheduleKey("t1"), &out))
	assert.Equal(t, []string{"a"}, out)
	assert.InDelta(t, 0.5, metrics.Snapshot().CacheHitRatio, 0.001)

	svc.InvalidateSchedules(ctx)
	assert.Equal(t, []string{"schedule:*"}, repo.patterns)
	assert.False(t, svc.Get(ctx, TeacherScheduleKey("t1"), &out))
}

func TestCacheServiceBackendErrorIsMiss(t *testing.T) {
	repo := newMemoryCacheRepo()
	repo.getErr = errors.New("connection refused")
	svc := NewCacheService(repo, nil, time.Minute, nil, true)

	var out []string
	assert.False(t, svc.Get(context.Background(), StudentScheduleKey("s1"), &out))
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, nil, false)
	ctx := context.Background()

	svc.Set(ctx, "k", "v", 0)
	assert.Empty(t, repo.data)
	var out string
	assert.False(t, svc.Get(ctx, "k", &out))

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	nilSvc.InvalidateSchedules(ctx)
}
