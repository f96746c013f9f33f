package usdc

// Decimals is the USDC token's on-chain decimal count.
const Decimals = 6

// centsToBaseUnits: 1 cent = 10^(Decimals-2) base units.
const centsPerUnit = 10_000

// BaseUnits converts an amount in integer cents to USDC base units.
// 5000 cents ($50.00) becomes 50_000_000.
func BaseUnits(cents int64) uint64 {
	if cents <= 0 {
		return 0
	}
	return uint64(cents) * centsPerUnit
}

// Cents converts USDC base units back to integer cents, truncating any dust
// below cent resolution.
func Cents(baseUnits uint64) int64 {
	return int64(baseUnits / centsPerUnit)
}
