package core

const AVG_COUNT uint8 = 30

// BindingCounters counts native calls issued by the pipeline during a frame.
type BindingCounters struct {
	RenderTarget   uint64
	Texture        uint64
	Sampler        uint64
	ConstantBuffer uint64
	VertexShader   uint64
	PixelShader    uint64
	IndexBuffer    uint64
	VertexBuffer   uint64
	DrawCalls      uint64
}

// Profiler keeps the per-frame RHI counters and the rolling frame time average.
type Profiler struct {
	Bindings BindingCounters
	// counters of the last completed frame
	LastFrame BindingCounters

	FrameAVGCounter    uint8
	MStimes            [AVG_COUNT]float64
	MSavg              float64
	Frames             int32
	AccumulatedFrameMS float64
	FPS                float64
}

func NewProfiler() *Profiler {
	return &Profiler{
		MStimes: [AVG_COUNT]float64{0},
	}
}

func (p *Profiler) Name() string {
	return "profiler"
}

func (p *Profiler) Initialize() error {
	p.Reset()
	return nil
}

func (p *Profiler) Shutdown() error {
	return nil
}

// Reset clears every counter and the timing history.
func (p *Profiler) Reset() {
	*p = Profiler{}
}

// FrameEnd closes the current frame: counters move to LastFrame and the frame time
// feeds the average.
func (p *Profiler) FrameEnd(frameElapsedTime float64) {
	p.LastFrame = p.Bindings
	p.Bindings = BindingCounters{}
	p.update(frameElapsedTime)
}

func (p *Profiler) update(frameElapsedTime float64) {
	// Calculate frame ms average
	frameMS := (frameElapsedTime * 1000.0)
	p.MStimes[p.FrameAVGCounter] = frameMS
	if p.FrameAVGCounter == AVG_COUNT-1 {
		p.MSavg = 0
		for i := uint8(0); i < AVG_COUNT; i++ {
			p.MSavg += p.MStimes[i]
		}

		p.MSavg /= float64(AVG_COUNT)
	}
	p.FrameAVGCounter++
	p.FrameAVGCounter %= AVG_COUNT

	// Calculate Frames per second.
	p.AccumulatedFrameMS += frameMS
	if p.AccumulatedFrameMS > 1000 {
		p.FPS = float64(p.Frames)
		p.AccumulatedFrameMS -= 1000
		p.Frames = 0
	}

	// Count all Frames.
	p.Frames++
}

func (p *Profiler) FrameTime() float64 {
	return p.MSavg
}

func (p *Profiler) Frame() (float64, float64) {
	return p.FPS, p.MSavg
}
