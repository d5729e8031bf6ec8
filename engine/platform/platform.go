package platform

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/anima-rhi/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type Options struct {
	ApplicationName string
	X               int32
	Y               int32
	Width           uint32
	Height          uint32
}

// Platform owns the glfw window the swap chain presents to. It implements
// rhi.Window and core.Subsystem.
type Platform struct {
	options Options
	window  *glfw.Window

	// framebuffer size in pixels, updated from the size callback
	width  uint32
	height uint32
}

func New(options Options) *Platform {
	return &Platform{
		options: options,
		width:   options.Width,
		height:  options.Height,
	}
}

func (p *Platform) Initialize() error {
	return p.Startup()
}

func (p *Platform) Startup() error {
	if p.window != nil {
		return nil
	}
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		err := fmt.Errorf("glfw reports no Vulkan loader")
		core.LogError(err.Error())
		return err
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(p.options.Width), int(p.options.Height), p.options.ApplicationName, nil, nil)
	if err != nil {
		glfw.Terminate()
		core.LogError("failed to create window: %s", err)
		return err
	}
	p.window = window

	p.window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.window.SetPos(int(p.options.X), int(p.options.Y))
	p.window.Show()

	fw, fh := p.window.GetFramebufferSize()
	p.width, p.height = uint32(fw), uint32(fh)
	core.LogInfo("window created %dx%d, framebuffer %dx%d", p.options.Width, p.options.Height, p.width, p.height)
	return nil
}

func (p *Platform) Shutdown() error {
	if p.window == nil {
		return nil
	}
	p.window.Destroy()
	p.window = nil
	glfw.Terminate()
	return nil
}

// PumpMessages processes pending window events. Size callbacks fire from here.
func (p *Platform) PumpMessages() {
	if p.window != nil {
		glfw.PollEvents()
	}
}

func (p *Platform) ShouldClose() bool {
	return p.window == nil || p.window.ShouldClose()
}

func (p *Platform) IsValid() bool {
	return p.window != nil
}

// Native returns the *glfw.Window, nil before Startup.
func (p *Platform) Native() any {
	if p.window == nil {
		return nil
	}
	return p.window
}

// FramebufferSize is the drawable size in pixels. It is zero while minimised.
func (p *Platform) FramebufferSize() (uint32, uint32) {
	return p.width, p.height
}

func (p *Platform) SetTitle(title string) {
	if p.window != nil {
		p.window.SetTitle(title)
	}
}

// Resize asks the window system for a new client size. The framebuffer size
// follows once the resize event is pumped.
func (p *Platform) Resize(width, height uint32) {
	if p.window != nil {
		p.window.SetSize(int(width), int(height))
	}
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	if width < 0 || height < 0 {
		return
	}
	p.width, p.height = uint32(width), uint32(height)
	core.LogDebug("framebuffer resized to %dx%d", width, height)
}
