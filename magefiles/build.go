//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Compiles the GLSL sources in shaders/ to SPIR-V.
func (Build) Shaders() error {
	return buildShaders()
}

// Compiles the shaders and builds the anima-rhi binary into bin/.
func (Build) Binary() error {
	mg.Deps(Build.Shaders)
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/anima-rhi", "."), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs go mod tidy and go vet over the module.
func (Build) Tidy() error {
	return goTidy()
}
