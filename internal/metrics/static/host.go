// Package static collects host facts that rarely change.
package static

import (
	"context"
	"sync"

	"emperror.dev/errors"
)

// HostInfo is the combined static view of the host
type HostInfo struct {
	System   *SystemInfo
	Hardware *HardwareInfo
	Network  *NetworkInfo
}

// Collect gathers all static information in parallel.
// Parts that fail are left nil; the error combines every failure.
func Collect(ctx context.Context) (*HostInfo, error) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error
	result := &HostInfo{}

	record := func(what string, err error) {
		mu.Lock()
		errs = append(errs, errors.WrapIf(err, what))
		mu.Unlock()
	}

	wg.Add(3)

	go func() {
		defer wg.Done()
		info, err := CollectSystemInfo(ctx)
		if err != nil {
			record("system info", err)
			return
		}
		mu.Lock()
		result.System = info
		mu.Unlock()
	}()

	go func() {
		defer wg.Done()
		info, err := CollectHardwareInfo(ctx)
		if err != nil {
			record("hardware info", err)
		}
		if info != nil {
			mu.Lock()
			result.Hardware = info
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		info, err := CollectNetworkInfo(ctx)
		if err != nil {
			record("network info", err)
			return
		}
		mu.Lock()
		result.Network = info
		mu.Unlock()
	}()

	wg.Wait()

	return result, errors.Combine(errs...)
}
