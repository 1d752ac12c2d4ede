package main

import (
	"github.com/pandagen/kernel/hal"
	"github.com/pandagen/kernel/kernel"
)

// newKernel adapts kernel.New's *core.KernelError return to a plain
// error, the shape cobra's RunE and fmt.Errorf wrapping expect.
func newKernel(cfg kernel.Config, dev hal.BlockDevice) (*kernel.SimKernel, error) {
	k, err := kernel.New(cfg, dev)
	if err != nil {
		return nil, err
	}
	return k, nil
}
