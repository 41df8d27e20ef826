// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for crudkit using Mage.
//
// Usage:
//
//	mage build          Compile the crudkit binary to bin/
//	mage install        Install crudkit to GOPATH/bin
//	mage test:all       Run every test
//	mage test:race      Run every test with the race detector
//	mage test:cover     Write coverage to bin/coverage.out
//	mage test:redis     Run the redis backend tests against REDIS_HOST
//	mage lint           Run golangci-lint
//	mage clean          Remove build artifacts
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "crudkit"
	binaryDir  = "bin"
	cmdDir     = "./cmd/crudkit"
)

// Build compiles the crudkit binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}
