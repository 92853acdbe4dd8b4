package bus

import "runtime"

// ComponentType classifies a bus consumer for CPU-affinity and priority
// scheduling purposes (spec §4.1).
type ComponentType int

const (
	ComponentGeneral ComponentType = iota
	ComponentMarketData
	ComponentExecution
	ComponentStrategy
	ComponentRisk
)

// Priority returns the default realtime priority associated with a
// component type: MARKET_DATA=90, EXECUTION=85, STRATEGY=80, RISK=75,
// GENERAL=70 (spec §6).
func (c ComponentType) Priority() int {
	switch c {
	case ComponentMarketData:
		return 90
	case ComponentExecution:
		return 85
	case ComponentStrategy:
		return 80
	case ComponentRisk:
		return 75
	default:
		return 70
	}
}

// setAffinity is a best-effort hook for pinning the calling goroutine's
// OS thread. The Go runtime does not expose portable core-pinning without
// platform-specific syscalls, so this only locks the goroutine to its
// current OS thread (preventing migration). The caller only invokes this
// when Config.EnableAffinity is set; disabling it, as required by spec
// §4.1, never affects correctness, only scheduling behavior.
func setAffinity(ComponentType) {
	runtime.LockOSThread()
}
