package core

import "fmt"

// SubsystemTag is the static key a subsystem is registered under.
type SubsystemTag uint8

const (
	SubsystemProfiler SubsystemTag = iota
	SubsystemDevice
	SubsystemSwapChain
	SubsystemPipeline
	SubsystemPlatform
)

func (t SubsystemTag) String() string {
	switch t {
	case SubsystemProfiler:
		return "profiler"
	case SubsystemDevice:
		return "device"
	case SubsystemSwapChain:
		return "swapchain"
	case SubsystemPipeline:
		return "pipeline"
	case SubsystemPlatform:
		return "platform"
	}
	return fmt.Sprintf("subsystem(%d)", uint8(t))
}

type Subsystem interface {
	Initialize() error
	Shutdown() error
}

type registryEntry struct {
	tag       SubsystemTag
	subsystem Subsystem
}

// Registry maps subsystem tags to instances. Lookups never inspect dynamic types:
// the tag is resolved when the subsystem is registered.
type Registry struct {
	entries []registryEntry
	byTag   map[SubsystemTag]Subsystem
}

func NewRegistry() *Registry {
	return &Registry{
		byTag: make(map[SubsystemTag]Subsystem),
	}
}

func (r *Registry) Register(tag SubsystemTag, s Subsystem) error {
	if s == nil {
		return fmt.Errorf("register %s: %w", tag, ErrInvalidArgument)
	}
	if _, ok := r.byTag[tag]; ok {
		return fmt.Errorf("register %s: %w", tag, ErrSubsystemRegistered)
	}
	r.byTag[tag] = s
	r.entries = append(r.entries, registryEntry{tag: tag, subsystem: s})
	return nil
}

func (r *Registry) Get(tag SubsystemTag) (Subsystem, bool) {
	s, ok := r.byTag[tag]
	return s, ok
}

// Profiler returns the registered profiler, or nil.
func (r *Registry) Profiler() *Profiler {
	s, ok := r.byTag[SubsystemProfiler]
	if !ok {
		return nil
	}
	p, _ := s.(*Profiler)
	return p
}

// InitializeAll initializes in registration order and reports every failure.
func (r *Registry) InitializeAll() error {
	var failed []SubsystemTag
	for _, e := range r.entries {
		if err := e.subsystem.Initialize(); err != nil {
			LogError("Failed to initialize %s: %s", e.tag, err)
			failed = append(failed, e.tag)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to initialize subsystems %v", failed)
	}
	return nil
}

// ShutdownAll shuts subsystems down in reverse registration order.
func (r *Registry) ShutdownAll() error {
	var firstErr error
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if err := e.subsystem.Shutdown(); err != nil {
			LogError("Failed to shutdown %s: %s", e.tag, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	r.entries = nil
	r.byTag = make(map[SubsystemTag]Subsystem)
	return firstErr
}
