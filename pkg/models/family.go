package models

import (
	"strings"

	"emperror.dev/errors"
)

// MetricFamily identifies a collector/sampler pairing
type MetricFamily string

const (
	FamilyCPU       MetricFamily = "cpu"
	FamilyMemory    MetricFamily = "memory"
	FamilyDisk      MetricFamily = "disk"
	FamilyNetwork   MetricFamily = "network"
	FamilyProcesses MetricFamily = "processes"
)

// AllFamilies returns every family in canonical display order
func AllFamilies() []MetricFamily {
	return []MetricFamily{FamilyCPU, FamilyMemory, FamilyDisk, FamilyNetwork, FamilyProcesses}
}

// Valid reports whether f is one of the known families
func (f MetricFamily) Valid() bool {
	switch f {
	case FamilyCPU, FamilyMemory, FamilyDisk, FamilyNetwork, FamilyProcesses:
		return true
	}
	return false
}

func (f MetricFamily) String() string {
	return string(f)
}

// ParseFamily parses a family name, case-insensitively. "proc" and "mem" are accepted as aliases.
func ParseFamily(s string) (MetricFamily, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "mem":
		name = string(FamilyMemory)
	case "proc", "process", "procs":
		name = string(FamilyProcesses)
	case "net":
		name = string(FamilyNetwork)
	}

	f := MetricFamily(name)
	if !f.Valid() {
		return "", errors.Errorf("unknown metric family %q", s)
	}
	return f, nil
}

// ParseFamilies parses a comma separated list, dropping duplicates
func ParseFamilies(s string) ([]MetricFamily, error) {
	var out []MetricFamily
	seen := make(map[MetricFamily]bool)

	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		f, err := ParseFamily(part)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}

	return out, nil
}
