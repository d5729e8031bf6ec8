package rhi

import "github.com/spaghettifunk/anima-rhi/engine/core"

type teardownStep struct {
	name    string
	destroy func()
}

// Teardown records destroy calls as objects are created and runs them in
// reverse order.
type Teardown struct {
	name  string
	steps []teardownStep
}

func NewTeardown(name string) *Teardown {
	return &Teardown{name: name}
}

func (t *Teardown) Push(name string, destroy func()) {
	t.steps = append(t.steps, teardownStep{name: name, destroy: destroy})
}

func (t *Teardown) Len() int {
	return len(t.steps)
}

// Run destroys everything recorded so far, newest first. Running an empty
// teardown does nothing.
func (t *Teardown) Run() {
	for i := len(t.steps) - 1; i >= 0; i-- {
		step := t.steps[i]
		core.LogDebug("%s: destroying %s", t.name, step.name)
		step.destroy()
	}
	t.steps = nil
}
