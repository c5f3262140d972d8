package services

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestDispatcher_RunsTasksAndSurvivesPanics(t *testing.T) {
	d := NewDispatcher(zap.NewNop())
	var ran atomic.Int32

	for i := 0; i < 10; i++ {
		assert.True(t, d.Submit(func() { ran.Add(1) }))
	}
	assert.True(t, d.Submit(func() { panic("boom") }))
	assert.True(t, d.Submit(func() { ran.Add(1) }))

	d.Wait()
	assert.Equal(t, int32(11), ran.Load())
}

func TestDispatcher_RejectsAfterWait(t *testing.T) {
	d := NewDispatcher(zap.NewNop())
	d.Wait()

	assert.False(t, d.Submit(func() { t.Error("must not run") }))
	// Wait is idempotent.
	d.Wait()
}
