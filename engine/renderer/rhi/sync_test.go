package rhi_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-rhi/engine/core"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/headless"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"
)

func TestFenceSignaledSkipsDevice(t *testing.T) {
	device := headless.New()
	fence, err := rhi.NewFence(device, true)
	require.NoError(t, err)
	device.ResetCalls()

	require.NoError(t, fence.Wait(context.Background()))
	assert.Zero(t, device.Count("WaitFence"))

	require.NoError(t, fence.Reset())
	assert.False(t, fence.IsSignaled())
	assert.Equal(t, 1, device.Count("ResetFence"))

	// resetting an unsignaled fence is a no-op
	require.NoError(t, fence.Reset())
	assert.Equal(t, 1, device.Count("ResetFence"))
}

func TestFenceWaitReset(t *testing.T) {
	device := headless.New()
	pool, err := device.CreateCommandPool()
	require.NoError(t, err)
	cl, err := rhi.NewCommandList(device, pool, 0)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, cl.Begin(ctx))
	require.NoError(t, cl.End())
	require.NoError(t, cl.Submit(nil))

	fence := cl.Fence()
	assert.False(t, fence.IsSignaled())
	require.NoError(t, fence.WaitReset(ctx))
	assert.False(t, fence.IsSignaled())
	assert.Equal(t, []string{"WaitFence", "ResetFence"}, device.CallNames()[len(device.CallNames())-2:])
}

func TestFenceDeviceLost(t *testing.T) {
	device := headless.New()
	fence, err := rhi.NewFence(device, false)
	require.NoError(t, err)
	device.FailOn("WaitFence", core.ErrDeviceLost)

	err = fence.Wait(context.Background())
	assert.ErrorIs(t, err, core.ErrDeviceLost)
	assert.False(t, fence.IsSignaled())
}

func TestFenceCancelledContext(t *testing.T) {
	device := headless.New()
	fence, err := rhi.NewFence(device, false)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, fence.Wait(ctx), context.Canceled)
	assert.Zero(t, device.Count("WaitFence"))
}

func TestFenceDestroyIsIdempotent(t *testing.T) {
	device := headless.New()
	fence, err := rhi.NewFence(device, false)
	require.NoError(t, err)

	fence.Destroy()
	fence.Destroy()
	assert.Equal(t, 1, device.Count("DestroyFence"))
	assert.Nil(t, fence.Handle())
	assert.ErrorIs(t, fence.Wait(context.Background()), core.ErrNotInitialized)
}

func TestSemaphoreLifetime(t *testing.T) {
	device := headless.New()
	s, err := rhi.NewSemaphore(device)
	require.NoError(t, err)
	assert.NotNil(t, s.Handle())

	s.Destroy()
	s.Destroy()
	assert.Nil(t, s.Handle())
	assert.Zero(t, device.Live())

	var none *rhi.Semaphore
	assert.Nil(t, none.Handle())
}
