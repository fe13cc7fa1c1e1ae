package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockvoid/cachebay/graph"
)

func TestPutRecordCreatesAndBumpsVersion(t *testing.T) {
	t.Parallel()

	s := graph.NewStore(nil)

	v1, changed := s.PutRecord("User:u1", graph.Record{"name": "Ada"})
	require.True(t, changed)
	assert.Equal(t, int64(1), v1)

	v2, changed := s.PutRecord("User:u1", graph.Record{"name": "Ada"})
	assert.False(t, changed)
	assert.Equal(t, v1, v2)

	v3, changed := s.PutRecord("User:u1", graph.Record{"name": "Ada Lovelace"})
	assert.True(t, changed)
	assert.Equal(t, int64(2), v3)
}

func TestBatchDeliversSingleNotification(t *testing.T) {
	t.Parallel()

	var calls int
	var lastTouched map[string]struct{}
	s := graph.NewStore(func(touched map[string]struct{}) {
		calls++
		lastTouched = touched
	})

	s.Batch(func() {
		s.PutRecord("User:u1", graph.Record{"name": "Ada"})
		s.PutRecord("User:u2", graph.Record{"name": "Grace"})
		s.Touch("User:u3")
	})

	assert.Equal(t, 1, calls)
	assert.Len(t, lastTouched, 3)
}

func TestNestedBatchDeliversOnce(t *testing.T) {
	t.Parallel()

	var calls int
	s := graph.NewStore(func(map[string]struct{}) { calls++ })

	s.Batch(func() {
		s.Batch(func() {
			s.PutRecord("User:u1", graph.Record{"name": "Ada"})
		})
		s.PutRecord("User:u2", graph.Record{"name": "Grace"})
	})

	assert.Equal(t, 1, calls)
}

func TestOnChangeReentrancyPanics(t *testing.T) {
	t.Parallel()

	var s *graph.Store
	s = graph.NewStore(func(map[string]struct{}) {
		s.PutRecord("User:u2", graph.Record{"name": "should panic"})
	})

	assert.Panics(t, func() {
		s.PutRecord("User:u1", graph.Record{"name": "Ada"})
	})
}

func TestOptimisticOverlayShadowsReads(t *testing.T) {
	t.Parallel()

	s := graph.NewStore(nil)
	s.PutRecord("User:u1", graph.Record{"name": "Ada"})

	ov := s.OpenOptimistic("mut-1")
	ov.PutRecord("User:u1", graph.Record{"name": "Ada (pending)"})

	rec, _, ok := s.GetRecord("User:u1")
	require.True(t, ok)
	assert.Equal(t, "Ada (pending)", rec["name"])

	ov.Commit()

	rec, _, ok = s.GetRecord("User:u1")
	require.True(t, ok)
	assert.Equal(t, "Ada", rec["name"], "commit drops the overlay without touching base data")
}

func TestOptimisticRollbackTouchesShadowedRecords(t *testing.T) {
	t.Parallel()

	var touched map[string]struct{}
	s := graph.NewStore(func(t map[string]struct{}) { touched = t })
	s.PutRecord("User:u1", graph.Record{"name": "Ada"})

	ov := s.OpenOptimistic("mut-1")
	ov.PutRecord("User:u1", graph.Record{"name": "Ada (pending)"})

	ov.Rollback()

	require.Contains(t, touched, "User:u1")

	rec, _, ok := s.GetRecord("User:u1")
	require.True(t, ok)
	assert.Equal(t, "Ada", rec["name"])
}

func TestOptimisticOverlaysStackMostRecentFirst(t *testing.T) {
	t.Parallel()

	s := graph.NewStore(nil)
	s.PutRecord("User:u1", graph.Record{"name": "Ada"})

	ov1 := s.OpenOptimistic("mut-1")
	ov1.PutRecord("User:u1", graph.Record{"name": "first overlay"})

	ov2 := s.OpenOptimistic("mut-2")
	ov2.PutRecord("User:u1", graph.Record{"name": "second overlay"})

	rec, _, _ := s.GetRecord("User:u1")
	assert.Equal(t, "second overlay", rec["name"])

	ov2.Rollback()

	rec, _, _ = s.GetRecord("User:u1")
	assert.Equal(t, "first overlay", rec["name"])
}
