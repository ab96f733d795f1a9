package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-workflow-console/internal/modal"
)

type blockingSteps struct {
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
	err     error
}

func (b *blockingSteps) Steps(ctx context.Context) (*modal.StepCatalog, error) {
	if b.calls.Add(1) == 1 && b.entered != nil {
		close(b.entered)
		<-b.release
	}
	if b.err != nil {
		return nil, b.err
	}
	return &modal.StepCatalog{Steps: map[string]string{"A": "Project Initiated"}}, nil
}

func TestStepCatalogFetchDoesNotBlockOtherRenders(t *testing.T) {
	src := &blockingSteps{entered: make(chan struct{}), release: make(chan struct{})}
	cache := &stepCatalogCache{api: src, retryAfter: time.Minute}

	done := make(chan *modal.StepCatalog, 1)
	go func() { done <- cache.get(context.Background()) }()
	<-src.entered

	// The first fetch is still waiting on the service.
	returned := make(chan *modal.StepCatalog, 1)
	go func() { returned <- cache.get(context.Background()) }()
	select {
	case got := <-returned:
		assert.Nil(t, got)
	case <-time.After(time.Second):
		t.Fatal("get blocked behind the in-flight catalog fetch")
	}

	close(src.release)
	got := <-done
	require.NotNil(t, got)
	assert.Equal(t, "Project Initiated", got.Describe("A"))
	assert.Same(t, got, cache.get(context.Background()))
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestStepCatalogFailureIsRetriedLater(t *testing.T) {
	src := &blockingSteps{err: errors.New("not found")}
	cache := &stepCatalogCache{api: src, retryAfter: time.Hour}

	assert.Nil(t, cache.get(context.Background()))
	assert.Nil(t, cache.get(context.Background()))
	assert.Equal(t, int32(1), src.calls.Load())

	cache.lastAttempt = time.Time{}
	src.err = nil
	assert.NotNil(t, cache.get(context.Background()))
	assert.Equal(t, int32(2), src.calls.Load())
}
