package entities

// PotBalances is a per-tick cache of pot balances keyed by pot id
type PotBalances map[string]int64

// Apply adjusts a cached pot balance by a signed amount after a transfer
func (p PotBalances) Apply(potID string, delta int64) int64 {
	p[potID] += delta
	return p[potID]
}
