package rhi

import (
	"context"
	"errors"
	"fmt"

	"github.com/spaghettifunk/anima-rhi/engine/core"
)

// Fence lets the CPU wait for submitted GPU work.
type Fence struct {
	device   ObjectDevice
	handle   Handle
	signaled bool
}

func NewFence(device ObjectDevice, createSignaled bool) (*Fence, error) {
	handle, err := device.CreateFence(createSignaled)
	if err != nil {
		err = fmt.Errorf("failed to create fence: %w", err)
		core.LogError(err.Error())
		return nil, err
	}
	return &Fence{
		device:   device,
		handle:   handle,
		signaled: createSignaled,
	}, nil
}

func (f *Fence) Handle() Handle {
	return f.handle
}

func (f *Fence) IsSignaled() bool {
	return f.signaled
}

// Wait blocks until the fence is signaled. ctx is only checked before the wait,
// the native wait has no timeout.
func (f *Fence) Wait(ctx context.Context) error {
	if f.signaled {
		// If already signaled, do not wait.
		return nil
	}
	if f.handle == nil {
		return fmt.Errorf("wait on destroyed fence: %w", core.ErrNotInitialized)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.device.WaitFence(f.handle); err != nil {
		if errors.Is(err, core.ErrDeviceLost) {
			core.LogError("fence wait: device lost")
		}
		err = fmt.Errorf("fence wait failed: %w", err)
		core.LogError(err.Error())
		return err
	}
	f.signaled = true
	return nil
}

// Reset returns a signaled fence to the unsignaled state.
func (f *Fence) Reset() error {
	if !f.signaled {
		return nil
	}
	if err := f.device.ResetFence(f.handle); err != nil {
		err = fmt.Errorf("fence reset failed: %w", err)
		core.LogError(err.Error())
		return err
	}
	f.signaled = false
	return nil
}

func (f *Fence) WaitReset(ctx context.Context) error {
	if err := f.Wait(ctx); err != nil {
		return err
	}
	return f.Reset()
}

// submitted marks the fence as owned by in-flight work.
func (f *Fence) submitted() {
	f.signaled = false
}

func (f *Fence) Destroy() {
	if f.handle != nil {
		f.device.DestroyFence(f.handle)
		f.handle = nil
	}
	f.signaled = false
}

// Semaphore orders GPU work against GPU work, the CPU never waits on it.
type Semaphore struct {
	device ObjectDevice
	handle Handle
}

func NewSemaphore(device ObjectDevice) (*Semaphore, error) {
	handle, err := device.CreateSemaphore()
	if err != nil {
		err = fmt.Errorf("failed to create semaphore: %w", err)
		core.LogError(err.Error())
		return nil, err
	}
	return &Semaphore{device: device, handle: handle}, nil
}

// Handle is nil for a nil or destroyed semaphore.
func (s *Semaphore) Handle() Handle {
	if s == nil {
		return nil
	}
	return s.handle
}

func (s *Semaphore) Destroy() {
	if s.handle != nil {
		s.device.DestroySemaphore(s.handle)
		s.handle = nil
	}
}
