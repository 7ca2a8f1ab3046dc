package protocol

import "math/bits"

// CheckedAdd returns a+b or ErrArithmetic on overflow.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, Errorf(ErrArithmetic, "%d + %d overflows u64", a, b)
	}
	return sum, nil
}

// CheckedSub returns a-b or ErrArithmetic on underflow.
func CheckedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, Errorf(ErrArithmetic, "%d - %d underflows u64", a, b)
	}
	return diff, nil
}

// CheckedMul returns a*b or ErrArithmetic on overflow.
func CheckedMul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, Errorf(ErrArithmetic, "%d * %d overflows u64", a, b)
	}
	return lo, nil
}

// MulDiv returns floor(a*b/c) using a 128-bit intermediate.
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, Errorf(ErrArithmetic, "division by zero")
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return 0, Errorf(ErrArithmetic, "%d * %d / %d overflows u64", a, b, c)
	}
	q, _ := bits.Div64(hi, lo, c)
	return q, nil
}
