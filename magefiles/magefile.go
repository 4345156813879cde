//go:build mage

// Package main provides build targets for the pharmadb project using Mage.
//
// Usage:
//
//	mage build           Compile pharmadb binary to bin/
//	mage test            Run all tests (integration tests skip without TEST_DB_*)
//	mage testIntegration Run tests against a live database
//	mage lint            Run golangci-lint
//	mage clean           Remove build artifacts
//	mage install         Install pharmadb to GOPATH/bin
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName = "pharmadb"
	binaryDir  = "bin"
	cmdDir     = "./cmd/pharmadb"
)

// Build compiles the pharmadb binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV("go", "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Test runs the full suite. Integration tests skip themselves unless
// TEST_DB_HOST is set.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// TestIntegration runs the suite against a live database, defaulting
// TEST_DB_HOST to localhost when unset.
func TestIntegration() error {
	mg.Deps(Build)
	env := map[string]string{}
	if os.Getenv("TEST_DB_HOST") == "" {
		env["TEST_DB_HOST"] = "localhost"
	}
	return sh.RunWithV(env, "go", "test", "-count=1", "./...")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV("go", "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output("go", "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}
