package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProfilerFrameEndRollsCounters(t *testing.T) {
	p := NewProfiler()
	p.Bindings.DrawCalls = 4
	p.Bindings.VertexShader = 1

	p.FrameEnd(0.016)

	assert.Equal(t, uint64(4), p.LastFrame.DrawCalls)
	assert.Equal(t, uint64(1), p.LastFrame.VertexShader)
	assert.Equal(t, BindingCounters{}, p.Bindings)
}

func TestProfilerAverages(t *testing.T) {
	p := NewProfiler()
	for i := 0; i < int(AVG_COUNT); i++ {
		p.FrameEnd(0.010)
	}
	_, ms := p.Frame()
	assert.InDelta(t, 10.0, ms, 1e-9)
	assert.InDelta(t, 10.0, p.FrameTime(), 1e-9)

	// 100 frames of 10ms fill the first second
	for i := int(AVG_COUNT); i < 101; i++ {
		p.FrameEnd(0.010)
	}
	fps, _ := p.Frame()
	assert.Equal(t, 100.0, fps)
}

func TestProfilerInitializeResets(t *testing.T) {
	p := NewProfiler()
	p.FrameEnd(0.5)
	p.Bindings.DrawCalls = 2

	assert.NoError(t, p.Initialize())
	assert.Equal(t, Profiler{}, *p)
	assert.NoError(t, p.Shutdown())
}
