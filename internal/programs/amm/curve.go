package amm

import (
	"github.com/holiman/uint256"

	"solana-custody-lab/internal/protocol"
)

// MaxFeeBps is the largest accepted fee, 100%.
const MaxFeeBps = 10_000

func u(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

func toU64(v *uint256.Int, what string) (uint64, error) {
	if !v.IsUint64() {
		return 0, protocol.Errorf(protocol.ErrArithmetic, "%s overflows u64", what)
	}
	return v.Uint64(), nil
}

// mulDiv returns floor(a*b/c), or the ceiling when roundUp is set.
func mulDiv(a, b, c uint64, roundUp bool, what string) (uint64, error) {
	if c == 0 {
		return 0, protocol.Errorf(protocol.ErrArithmetic, "%s: division by zero", what)
	}
	num := new(uint256.Int).Mul(u(a), u(b))
	q, r := new(uint256.Int).DivMod(num, u(c), new(uint256.Int))
	if roundUp && !r.IsZero() {
		q.Add(q, u(1))
	}
	return toU64(q, what)
}

// InitialLiquidity returns the LP supply minted by the first deposit, the
// integer square root of x*y.
func InitialLiquidity(x, y uint64) (uint64, error) {
	k := new(uint256.Int).Mul(u(x), u(y))
	return toU64(new(uint256.Int).Sqrt(k), "initial liquidity")
}

// DepositAmounts returns the reserves required to mint lp tokens against an
// existing supply, rounded up so the pool never gives away value.
func DepositAmounts(reserveX, reserveY, supply, lp uint64) (x, y uint64, err error) {
	if x, err = mulDiv(reserveX, lp, supply, true, "deposit x"); err != nil {
		return 0, 0, err
	}
	if y, err = mulDiv(reserveY, lp, supply, true, "deposit y"); err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// WithdrawAmounts returns the reserves released for burning lp tokens, rounded down.
func WithdrawAmounts(reserveX, reserveY, supply, lp uint64) (x, y uint64, err error) {
	if lp > supply {
		return 0, 0, protocol.Errorf(protocol.ErrInsufficientFunds, "burn %d exceeds supply %d", lp, supply)
	}
	if x, err = mulDiv(reserveX, lp, supply, false, "withdraw x"); err != nil {
		return 0, 0, err
	}
	if y, err = mulDiv(reserveY, lp, supply, false, "withdraw y"); err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// SwapOut returns the output for amountIn against a constant-product pool.
//
// The fee is taken from the input: eff = floor(amountIn * (10000-fee) / 10000).
// The output is reserveOut - floor(reserveIn*reserveOut / (reserveIn+eff)),
// capped so that the full post-trade product never falls below the
// pre-trade product.
func SwapOut(reserveIn, reserveOut, amountIn uint64, feeBps uint16) (uint64, error) {
	if feeBps > MaxFeeBps {
		return 0, protocol.Errorf(protocol.ErrInvalidParameter, "fee %d bps", feeBps)
	}
	if reserveIn == 0 || reserveOut == 0 {
		return 0, protocol.Errorf(protocol.ErrArithmetic, "empty pool")
	}

	eff, err := mulDiv(amountIn, MaxFeeBps-uint64(feeBps), MaxFeeBps, false, "effective input")
	if err != nil {
		return 0, err
	}

	k := new(uint256.Int).Mul(u(reserveIn), u(reserveOut))

	denom := new(uint256.Int).Add(u(reserveIn), u(eff))
	remaining := new(uint256.Int).Div(k, denom)
	out := new(uint256.Int).Sub(u(reserveOut), remaining)

	// Largest output keeping (reserveIn+amountIn)*(reserveOut-out) >= k.
	newIn := new(uint256.Int).Add(u(reserveIn), u(amountIn))
	minRemaining, rem := new(uint256.Int).DivMod(k, newIn, new(uint256.Int))
	if !rem.IsZero() {
		minRemaining.Add(minRemaining, u(1))
	}
	limit := new(uint256.Int).Sub(u(reserveOut), minRemaining)
	if limit.Lt(out) {
		out = limit
	}

	return toU64(out, "swap output")
}
