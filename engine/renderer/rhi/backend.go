package rhi

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/spaghettifunk/anima-rhi/engine/core"
)

type BackendType int

const (
	BackendVulkan BackendType = iota
	BackendHeadless
)

func (b BackendType) String() string {
	switch b {
	case BackendVulkan:
		return "vulkan"
	case BackendHeadless:
		return "headless"
	}
	return fmt.Sprintf("BackendType(%d)", int(b))
}

func ParseBackendType(name string) (BackendType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "vulkan":
		return BackendVulkan, nil
	case "headless":
		return BackendHeadless, nil
	}
	return 0, fmt.Errorf("backend `%s`: %w", name, core.ErrUnknownBackend)
}

// DeviceConfig is handed to the backend constructor.
type DeviceConfig struct {
	ApplicationName string
	// Window is nil for backends that never present to the screen.
	Window     Window
	Validation bool
}

type DeviceConstructor func(config DeviceConfig) (Device, error)

var (
	backendsMu sync.RWMutex
	backends   = map[BackendType]DeviceConstructor{}
)

// RegisterBackend is called from the init function of a backend package.
func RegisterBackend(backend BackendType, ctor DeviceConstructor) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if ctor == nil {
		panic(fmt.Sprintf("rhi: nil constructor for backend %s", backend))
	}
	backends[backend] = ctor
}

// Backends lists every registered backend.
func Backends() []BackendType {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	list := make([]BackendType, 0, len(backends))
	for b := range backends {
		list = append(list, b)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}

func NewDevice(backend BackendType, config DeviceConfig) (Device, error) {
	backendsMu.RLock()
	ctor, ok := backends[backend]
	backendsMu.RUnlock()
	if !ok {
		err := fmt.Errorf("backend %s is not registered: %w", backend, core.ErrUnknownBackend)
		core.LogError(err.Error())
		return nil, err
	}

	device, err := ctor(config)
	if err != nil {
		err = fmt.Errorf("failed to create %s device: %w", backend, err)
		core.LogError(err.Error())
		return nil, err
	}
	core.LogInfo("%s device created: %s", backend, device.Name())
	return device, nil
}
