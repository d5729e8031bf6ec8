package rhi_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-rhi/engine/renderer/headless"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"
)

func newCommandList(t *testing.T) (*rhi.CommandList, *headless.Device) {
	t.Helper()
	device := headless.New()
	pool, err := device.CreateCommandPool()
	require.NoError(t, err)
	cl, err := rhi.NewCommandList(device, pool, 0)
	require.NoError(t, err)
	return cl, device
}

func TestCommandListStates(t *testing.T) {
	cl, device := newCommandList(t)
	ctx := context.Background()

	assert.Equal(t, rhi.CommandListReady, cl.State())
	require.NoError(t, cl.Begin(ctx))
	assert.Equal(t, rhi.CommandListRecording, cl.State())
	require.NoError(t, cl.End())
	assert.Equal(t, rhi.CommandListRecordingEnded, cl.State())
	require.NoError(t, cl.Submit(nil))
	assert.Equal(t, rhi.CommandListSubmitted, cl.State())

	submit := device.CallsNamed("Submit")[0].Args[0].(rhi.SubmitInfo)
	assert.Equal(t, cl.Handle(), submit.CommandBuffer)
	assert.Nil(t, submit.WaitSemaphore)
	assert.Equal(t, cl.RenderCompleteSemaphore().Handle(), submit.SignalSemaphore)

	cl.Recycle()
	assert.Equal(t, rhi.CommandListReady, cl.State())
}

func TestCommandListRejectsOutOfOrderCalls(t *testing.T) {
	cl, _ := newCommandList(t)

	assert.Error(t, cl.End())
	assert.Error(t, cl.Submit(nil))
	require.NoError(t, cl.Begin(context.Background()))
	assert.Error(t, cl.Begin(context.Background()))
	assert.Error(t, cl.Submit(nil))
}

func TestCommandListBeginWaitsForInFlightWork(t *testing.T) {
	cl, device := newCommandList(t)
	ctx := context.Background()

	require.NoError(t, cl.Begin(ctx))
	require.NoError(t, cl.End())
	require.NoError(t, cl.Submit(nil))
	device.ResetCalls()

	require.NoError(t, cl.Begin(ctx))
	assert.Equal(t, []string{"WaitFence", "BeginCommandBuffer"}, device.CallNames())

	// the fence is reset before the next submit
	require.NoError(t, cl.End())
	require.NoError(t, cl.Submit(nil))
	assert.Equal(t, 1, device.Count("ResetFence"))
}

func TestCommandListSubmitFailure(t *testing.T) {
	cl, device := newCommandList(t)
	ctx := context.Background()
	device.FailOn("Submit", errors.New("queue lost"))

	require.NoError(t, cl.Begin(ctx))
	require.NoError(t, cl.End())
	assert.Error(t, cl.Submit(nil))
	assert.Equal(t, rhi.CommandListRecordingEnded, cl.State())
	require.NoError(t, cl.WaitIdle(ctx))
}

func TestCommandListDestroy(t *testing.T) {
	cl, device := newCommandList(t)

	cl.Destroy()
	cl.Destroy()
	assert.Equal(t, rhi.CommandListNotAllocated, cl.State())
	assert.Equal(t, 1, device.Live(), "only the pool is left")

	cl.Recycle()
	assert.Equal(t, rhi.CommandListNotAllocated, cl.State())
}

func TestCommandListAllocationFailure(t *testing.T) {
	device := headless.New()
	pool, err := device.CreateCommandPool()
	require.NoError(t, err)
	device.FailOn("CreateSemaphore", errors.New("boom"))

	cl, err := rhi.NewCommandList(device, pool, 1)
	assert.Nil(t, cl)
	assert.Error(t, err)
	assert.Equal(t, 1, device.Live())
}
