package npu

import (
	"context"

	"github.com/wmc1992/npustat/internal/npu/base"
)

// Backends returns the query backends in order of preference. ascend-dmi
// comes first because only it reports realtime power.
func Backends(types *CardTypeCache) []base.Backend {
	return []base.Backend{
		AscendDMI{},
		NewNpuSmi(types),
	}
}

// Select returns the first backend whose tool answers on the host. With
// tableOnly set, only npu-smi is considered.
func Select(ctx context.Context, runCmd base.RunCmdFunc, types *CardTypeCache, tableOnly bool) (base.Backend, error) {
	for _, b := range Backends(types) {
		if tableOnly && b.RealtimePower() {
			continue
		}
		if b.Detect(ctx, runCmd) {
			return b, nil
		}
	}
	return nil, ErrNoBackend
}

// ByName returns the backend with the given tool name, or nil.
func ByName(name string, types *CardTypeCache) base.Backend {
	for _, b := range Backends(types) {
		if b.Name() == name {
			return b
		}
	}
	return nil
}
