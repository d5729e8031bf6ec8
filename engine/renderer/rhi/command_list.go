package rhi

import (
	"context"
	"fmt"

	"github.com/spaghettifunk/anima-rhi/engine/core"
)

type CommandListState int

const (
	CommandListReady CommandListState = iota
	CommandListRecording
	CommandListRecordingEnded
	CommandListSubmitted
	CommandListNotAllocated
)

func (s CommandListState) String() string {
	switch s {
	case CommandListReady:
		return "ready"
	case CommandListRecording:
		return "recording"
	case CommandListRecordingEnded:
		return "recording_ended"
	case CommandListSubmitted:
		return "submitted"
	case CommandListNotAllocated:
		return "not_allocated"
	}
	return fmt.Sprintf("CommandListState(%d)", int(s))
}

// CommandList is a primary command buffer together with the fence and semaphore
// that track its last submission.
type CommandList struct {
	slot   uint32
	device ObjectDevice
	pool   Handle

	buffer         Handle
	fence          *Fence
	renderComplete *Semaphore
	state          CommandListState
}

func NewCommandList(device ObjectDevice, pool Handle, slot uint32) (*CommandList, error) {
	cl := &CommandList{
		slot:   slot,
		device: device,
		pool:   pool,
		state:  CommandListNotAllocated,
	}

	buffer, err := device.AllocateCommandBuffer(pool)
	if err != nil {
		err = fmt.Errorf("failed to allocate command buffer for slot %d: %w", slot, err)
		core.LogError(err.Error())
		return nil, err
	}
	cl.buffer = buffer

	if cl.fence, err = NewFence(device, false); err != nil {
		cl.Destroy()
		return nil, err
	}
	if cl.renderComplete, err = NewSemaphore(device); err != nil {
		cl.Destroy()
		return nil, err
	}

	cl.state = CommandListReady
	return cl, nil
}

func (cl *CommandList) Slot() uint32 {
	return cl.slot
}

func (cl *CommandList) Handle() Handle {
	return cl.buffer
}

func (cl *CommandList) State() CommandListState {
	return cl.state
}

func (cl *CommandList) Fence() *Fence {
	return cl.fence
}

func (cl *CommandList) RenderCompleteSemaphore() *Semaphore {
	return cl.renderComplete
}

// Begin starts recording. A list that is still in flight is waited on first.
func (cl *CommandList) Begin(ctx context.Context) error {
	if cl.state == CommandListSubmitted {
		if err := cl.WaitIdle(ctx); err != nil {
			return err
		}
		cl.state = CommandListReady
	}
	if cl.state != CommandListReady {
		err := fmt.Errorf("command list %d: cannot begin in state %s", cl.slot, cl.state)
		core.LogError(err.Error())
		return err
	}
	if err := cl.device.BeginCommandBuffer(cl.buffer); err != nil {
		err = fmt.Errorf("command list %d: begin failed: %w", cl.slot, err)
		core.LogError(err.Error())
		return err
	}
	cl.state = CommandListRecording
	return nil
}

func (cl *CommandList) End() error {
	if cl.state != CommandListRecording {
		err := fmt.Errorf("command list %d: cannot end in state %s", cl.slot, cl.state)
		core.LogError(err.Error())
		return err
	}
	if err := cl.device.EndCommandBuffer(cl.buffer); err != nil {
		err = fmt.Errorf("command list %d: end failed: %w", cl.slot, err)
		core.LogError(err.Error())
		return err
	}
	cl.state = CommandListRecordingEnded
	return nil
}

// Submit queues the recorded commands. The GPU waits on wait (if any) and
// signals the render complete semaphore and the fence when done.
func (cl *CommandList) Submit(wait *Semaphore) error {
	if cl.state != CommandListRecordingEnded {
		err := fmt.Errorf("command list %d: cannot submit in state %s", cl.slot, cl.state)
		core.LogError(err.Error())
		return err
	}
	if err := cl.fence.Reset(); err != nil {
		return err
	}
	info := SubmitInfo{
		CommandBuffer:   cl.buffer,
		WaitSemaphore:   wait.Handle(),
		SignalSemaphore: cl.renderComplete.Handle(),
		Fence:           cl.fence.Handle(),
	}
	if err := cl.device.Submit(info); err != nil {
		err = fmt.Errorf("command list %d: submit failed: %w", cl.slot, err)
		core.LogError(err.Error())
		return err
	}
	cl.fence.submitted()
	cl.state = CommandListSubmitted
	return nil
}

// WaitIdle blocks until the last submission finished. Lists that were not
// submitted return immediately.
func (cl *CommandList) WaitIdle(ctx context.Context) error {
	if cl.state != CommandListSubmitted {
		return nil
	}
	return cl.fence.Wait(ctx)
}

// Recycle marks the list ready again after its pool was reset.
func (cl *CommandList) Recycle() {
	if cl.state != CommandListNotAllocated {
		cl.state = CommandListReady
	}
}

func (cl *CommandList) Destroy() {
	if cl.renderComplete != nil {
		cl.renderComplete.Destroy()
		cl.renderComplete = nil
	}
	if cl.fence != nil {
		cl.fence.Destroy()
		cl.fence = nil
	}
	if cl.buffer != nil {
		cl.device.FreeCommandBuffer(cl.pool, cl.buffer)
		cl.buffer = nil
	}
	cl.state = CommandListNotAllocated
}
