package services

const maxBackoffMs = 60_000

// backoffMs implements spec §4.8's "min(baseBackoffMs * 2^restartCount,
// 60000)", saturating the shift and the multiplication so large
// restartCount values can never overflow (spec §9 design note).
func backoffMs(base int64, restartCount int) int64 {
	if base <= 0 {
		base = 1000
	}
	shift := restartCount
	if shift > 32 {
		shift = 32
	}
	mult := int64(1) << uint(shift)
	if mult != 0 && base > maxBackoffMs/mult {
		return maxBackoffMs
	}
	v := base * mult
	if v > maxBackoffMs || v <= 0 {
		return maxBackoffMs
	}
	return v
}
