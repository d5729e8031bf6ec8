package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-rhi/engine/core"
	"github.com/spaghettifunk/anima-rhi/engine/renderer/rhi"
)

func init() {
	rhi.RegisterBackend(rhi.BackendVulkan, func(config rhi.DeviceConfig) (rhi.Device, error) {
		return New(config)
	})
}

var (
	_ rhi.Device       = (*Device)(nil)
	_ rhi.ShaderLoader = (*Device)(nil)
)

// extensionSource is implemented by *glfw.Window.
type extensionSource interface {
	GetRequiredInstanceExtensions() []string
}

// Device is the Vulkan implementation of rhi.Device. It records state calls into
// the command buffer most recently begun.
type Device struct {
	name        string
	context     *VulkanContext
	lockPool    *VulkanLockPool
	pipelines   *pipelineCache
	state       graphicsState
	debug       bool
	initialized bool
}

// New creates the instance and picks a device able to present to config.Window.
func New(config rhi.DeviceConfig) (*Device, error) {
	if config.Window == nil || !config.Window.IsValid() {
		err := fmt.Errorf("the vulkan backend needs a window: %w", core.ErrInvalidArgument)
		core.LogError(err.Error())
		return nil, err
	}

	d := &Device{
		name:     config.ApplicationName,
		context:  newVulkanContext(),
		lockPool: NewVulkanLockPool(),
		state:    newGraphicsState(),
		debug:    config.Validation,
	}
	d.pipelines = newPipelineCache(d)

	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		err := fmt.Errorf("GetInstanceProcAddress is nil")
		core.LogError(err.Error())
		return nil, err
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return nil, err
	}

	if err := d.createInstance(config); err != nil {
		return nil, err
	}

	if d.debug {
		if err := d.createDebugger(); err != nil {
			d.destroyInstance()
			return nil, err
		}
	}

	// Queue families are chosen against a surface of the window, which is then
	// dropped. The swap chain creates its own through CreateSurface.
	probe, err := createVulkanSurface(d.context, config.Window)
	if err != nil {
		d.destroyInstance()
		return nil, err
	}
	err = DeviceCreate(d.context, probe)
	vk.DestroySurface(d.context.Instance, probe, d.context.Allocator)
	if err != nil {
		d.destroyInstance()
		return nil, err
	}
	d.lockPool.SetQueueFamily(uint32(d.context.Device.GraphicsQueueIndex))
	d.lockPool.SetQueueFamily(uint32(d.context.Device.PresentQueueIndex))

	d.initialized = true
	core.LogInfo("Vulkan renderer initialized successfully.")
	return d, nil
}

func (d *Device) createInstance(config rhi.DeviceConfig) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(config.ApplicationName),
		PEngineName:        VulkanSafeString("Anima RHI"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := []string{"VK_KHR_surface"} // Generic surface extension
	if source, ok := config.Window.Native().(extensionSource); ok {
		for _, ext := range source.GetRequiredInstanceExtensions() {
			if ext != "VK_KHR_surface" {
				requiredExtensions = append(requiredExtensions, ext)
			}
		}
	}

	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if d.debug {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		layers = []string{"VK_LAYER_KHRONOS_validation"}
		if err := checkValidationLayers(layers); err != nil {
			return err
		}
	}
	core.LogDebug("Required extensions: %v", requiredExtensions)

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	var instance vk.Instance
	if err := resultError("vkCreateInstance", vk.CreateInstance(&createInfo, d.context.Allocator, &instance)); err != nil {
		return err
	}
	d.context.Instance = instance
	if err := vk.InitInstance(instance); err != nil {
		core.LogError(err.Error())
		vk.DestroyInstance(instance, d.context.Allocator)
		d.context.Instance = nil
		return err
	}

	core.LogInfo("Vulkan Instance created.")
	return nil
}

// checkValidationLayers makes sure every layer in required is installed.
func checkValidationLayers(required []string) error {
	core.LogInfo("Validation layers enabled. Enumerating...")

	var count uint32
	if err := resultError("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return err
	}
	available := make([]vk.LayerProperties, count)
	if err := resultError("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, available)); err != nil {
		return err
	}

	for _, name := range required {
		found := false
		for i := range available {
			available[i].Deref()
			end := FindFirstZeroInByteArray(available[i].LayerName[:])
			if name == string(available[i].LayerName[:end]) {
				found = true
				break
			}
		}
		if !found {
			err := fmt.Errorf("required validation layer is missing: %s", name)
			core.LogError(err.Error())
			return err
		}
	}
	core.LogInfo("All required validation layers are present.")
	return nil
}

func (d *Device) createDebugger() error {
	core.LogDebug("Creating Vulkan debugger...")
	debugCreateInfo := vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
		PfnCallback: dbgCallbackFunc,
	}

	var dbg vk.DebugReportCallback
	if err := resultError("vkCreateDebugReportCallback",
		vk.CreateDebugReportCallback(d.context.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
		return err
	}
	d.context.debugMessenger = dbg
	core.LogDebug("Vulkan debugger created.")
	return nil
}

func (d *Device) Name() string {
	return d.name
}

func (d *Device) Initialized() bool {
	return d.initialized
}

// Shutdown destroys what the device owns. Objects handed out through
// rhi.ObjectDevice must be destroyed by their owners first.
func (d *Device) Shutdown() error {
	if !d.initialized {
		return nil
	}
	if err := d.WaitIdle(); err != nil {
		core.LogWarn("device did not go idle before shutdown: %s", err)
	}

	d.pipelines.destroyAll()
	if n := len(d.context.CommandBuffers); n > 0 {
		core.LogWarn("%d command buffers are still allocated at shutdown", n)
	}

	core.LogDebug("Destroying Vulkan device...")
	DeviceDestroy(d.context)
	d.destroyInstance()

	d.initialized = false
	return nil
}

func (d *Device) destroyInstance() {
	if d.context.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(d.context.Instance, d.context.debugMessenger, d.context.Allocator)
		d.context.debugMessenger = vk.NullDebugReportCallback
	}
	if d.context.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(d.context.Instance, d.context.Allocator)
		d.context.Instance = nil
	}
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		core.LogDebug("DEBUG: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
