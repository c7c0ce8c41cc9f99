package framework

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/pprof"
)

// Profiles writes pprof CPU and heap profiles around a run.
type Profiles struct {
	cpuFile  *os.File
	heapPath string
	logger   *slog.Logger
}

// StartProfiles begins CPU profiling into cpuPath. The heap profile is written
// to heapPath by Stop. Empty paths disable the respective profile.
func StartProfiles(cpuPath, heapPath string, logger *slog.Logger) (*Profiles, error) {
	p := &Profiles{heapPath: heapPath, logger: logger}

	if cpuPath == "" {
		return p, nil
	}

	cpuFile, err := os.Create(cpuPath)
	if err != nil {
		return nil, fmt.Errorf("create CPU profile: %w", err)
	}

	err = pprof.StartCPUProfile(cpuFile)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("start CPU profile: %w", err), cpuFile.Close())
	}

	p.cpuFile = cpuFile

	return p, nil
}

// Stop ends CPU profiling and writes the heap profile.
func (p *Profiles) Stop() error {
	var errs []error

	if p.cpuFile != nil {
		pprof.StopCPUProfile()

		errs = append(errs, p.cpuFile.Close())
		p.cpuFile = nil
	}

	if p.heapPath != "" {
		errs = append(errs, writeHeapProfile(p.heapPath))
	}

	err := errors.Join(errs...)
	if err != nil && p.logger != nil {
		p.logger.Warn("profile write failed", "error", err)
	}

	return err
}

func writeHeapProfile(path string) error {
	heapFile, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create heap profile: %w", err)
	}

	runtime.GC()

	writeErr := pprof.WriteHeapProfile(heapFile)
	closeErr := heapFile.Close()

	if writeErr != nil {
		return fmt.Errorf("write heap profile: %w", writeErr)
	}

	return closeErr
}
