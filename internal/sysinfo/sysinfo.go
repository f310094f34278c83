// Package sysinfo reports the host vitals shown by the status command.
package sysinfo

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// DefaultThermalZone is the SoC temperature file on a Raspberry Pi.
const DefaultThermalZone = "/sys/class/thermal/thermal_zone0/temp"

// Vitals is a point-in-time host reading.
type Vitals struct {
	TempC      float64
	CPUPercent float64
	RAMPercent float64
}

// Reader collects Vitals.
type Reader struct {
	thermalZone string
}

// New creates a Reader. An empty thermalZone uses DefaultThermalZone.
func New(thermalZone string) *Reader {
	if thermalZone == "" {
		thermalZone = DefaultThermalZone
	}
	return &Reader{thermalZone: thermalZone}
}

// Read samples temperature, CPU and memory usage.
func (r *Reader) Read(ctx context.Context) (Vitals, error) {
	temp, err := readMilliCelsius(r.thermalZone)
	if err != nil {
		return Vitals{}, err
	}

	// A zero interval compares against the previous call, like psutil.cpu_percent().
	cpus, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return Vitals{}, fmt.Errorf("cpu usage: %w", err)
	}
	var cpuPct float64
	if len(cpus) > 0 {
		cpuPct = cpus[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Vitals{}, fmt.Errorf("memory usage: %w", err)
	}

	return Vitals{TempC: temp, CPUPercent: cpuPct, RAMPercent: vm.UsedPercent}, nil
}

// readMilliCelsius parses a sysfs thermal file, which holds millidegrees.
func readMilliCelsius(path string) (float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading temperature: %w", err)
	}
	milli, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing temperature %q: %w", raw, err)
	}
	return milli / 1000, nil
}
