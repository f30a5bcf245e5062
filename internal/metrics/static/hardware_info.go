package static

import (
	"context"

	"emperror.dev/errors"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// HardwareInfo contains CPU and memory specifications
type HardwareInfo struct {
	CPUModel    string
	CPUCores    int
	CPUThreads  int
	TotalMemory uint64
}

// host readers, replaced in tests
var (
	readCPUInfo   = cpu.InfoWithContext
	readCPUCounts = cpu.CountsWithContext
	readMemory    = mem.VirtualMemoryWithContext
)

// CollectHardwareInfo gathers CPU and memory specifications. Fields that cannot
// be read stay zero and the error combines every failure; the result is nil only
// when nothing could be read.
func CollectHardwareInfo(ctx context.Context) (*HardwareInfo, error) {
	info := &HardwareInfo{}
	var errs []error

	if cpus, err := readCPUInfo(ctx); err != nil {
		errs = append(errs, errors.WrapIf(err, "cpu model"))
	} else if len(cpus) > 0 {
		// All sockets usually report the same model
		info.CPUModel = cpus[0].ModelName
	}

	cores, err := readCPUCounts(ctx, false)
	if err != nil {
		errs = append(errs, errors.WrapIf(err, "physical cores"))
	}
	info.CPUCores = cores

	threads, err := readCPUCounts(ctx, true)
	if err != nil {
		errs = append(errs, errors.WrapIf(err, "logical cores"))
	}
	info.CPUThreads = threads

	if vm, err := readMemory(ctx); err != nil {
		errs = append(errs, errors.WrapIf(err, "total memory"))
	} else {
		info.TotalMemory = vm.Total
	}

	if len(errs) == 4 {
		return nil, errors.Combine(errs...)
	}
	return info, errors.Combine(errs...)
}
