//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and renders the testbed in a window.
func (Run) Engine() error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run engine...")
	if _, err := executeCmd("go", withArgs("run", ".", "run", "--config", "anima.toml"), withStream()); err != nil {
		return err
	}
	return nil
}

// Renders a few hundred frames on the headless backend.
func (Run) Headless() error {
	fmt.Println("Run headless engine...")
	if _, err := executeCmd("go", withArgs("run", ".", "run", "--backend", "headless", "--frames", "300", "--watch=false"), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the unit tests. The Vulkan backend tests only cover the pure helpers.
func (Run) Tests() error {
	if _, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream()); err != nil {
		return err
	}
	return nil
}
