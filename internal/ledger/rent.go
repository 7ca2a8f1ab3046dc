package ledger

const (
	// AccountStorageOverhead is charged on top of the data length of every account.
	AccountStorageOverhead = 128
	// LamportsPerByteYear is the rent rate.
	LamportsPerByteYear = 3480
	// ExemptionThresholdYears is the number of years of rent an account must hold.
	ExemptionThresholdYears = 2

	// LamportsPerSOL is the native currency scale.
	LamportsPerSOL uint64 = 1_000_000_000
)

// MinimumBalance returns the rent-exempt minimum for an account holding size data bytes.
func MinimumBalance(size int) uint64 {
	return uint64(AccountStorageOverhead+size) * LamportsPerByteYear * ExemptionThresholdYears
}
