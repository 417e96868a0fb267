package membudget

import "strings"

// HardwareProfile is a known host model with its measured memory ceiling:
// the allocation level at which decoding sessions started to fail.
type HardwareProfile struct {
	Model            string
	PhysicalMB       int
	CrashThresholdMB int
}

// KnownHardware is matched by exact model name first, then by physical
// memory within NearbyPhysicalMB.
var KnownHardware = []HardwareProfile{
	{Model: "Raspberry Pi 3 Model B Rev 1.2", PhysicalMB: 1024, CrashThresholdMB: 600},
	{Model: "Raspberry Pi 3 Model B Plus Rev 1.3", PhysicalMB: 1024, CrashThresholdMB: 620},
	{Model: "Raspberry Pi 4 Model B Rev 1.2", PhysicalMB: 2048, CrashThresholdMB: 1200},
	{Model: "Raspberry Pi 4 Model B Rev 1.4", PhysicalMB: 4096, CrashThresholdMB: 2600},
	{Model: "Raspberry Pi 4 Model B Rev 1.5", PhysicalMB: 8192, CrashThresholdMB: 5400},
	{Model: "Raspberry Pi 5 Model B Rev 1.0", PhysicalMB: 8192, CrashThresholdMB: 5600},
	{Model: "Surface Go", PhysicalMB: 4096, CrashThresholdMB: 2300},
	{Model: "MacBookAir10,1", PhysicalMB: 8192, CrashThresholdMB: 5800},
	{Model: "Mac14,2", PhysicalMB: 8192, CrashThresholdMB: 5800},
	{Model: "Mac14,15", PhysicalMB: 16384, CrashThresholdMB: 11500},
}

func lookupModel(table []HardwareProfile, model string) (HardwareProfile, bool) {
	model = strings.TrimSpace(model)
	if model == "" {
		return HardwareProfile{}, false
	}
	for _, p := range table {
		if strings.EqualFold(p.Model, model) {
			return p, true
		}
	}
	return HardwareProfile{}, false
}

// nearbyThreshold returns the lowest threshold among entries whose physical
// memory is within NearbyPhysicalMB of physicalMB.
func nearbyThreshold(table []HardwareProfile, physicalMB int) (int, bool) {
	best, found := 0, false
	for _, p := range table {
		diff := p.PhysicalMB - physicalMB
		if diff < -NearbyPhysicalMB || diff > NearbyPhysicalMB {
			continue
		}
		if !found || p.CrashThresholdMB < best {
			best, found = p.CrashThresholdMB, true
		}
	}
	return best, found
}
