package field

import (
	"math/big"
	"testing"
)

func TestToFromBytes32Hex(t *testing.T) {
	x := big.NewInt(0x111)
	s := ToBytes32Hex(x)
	if len(s) != 66 {
		t.Fatalf("expected 66-char hex string (0x + 64 hex), got %d: %s", len(s), s)
	}
	got, err := FromBytes32Hex(s)
	if err != nil {
		t.Fatalf("FromBytes32Hex: %v", err)
	}
	if got.Cmp(x) != 0 {
		t.Fatalf("round trip mismatch: got %s want %s", got, x)
	}
}

func TestFromBytes32HexEmptyIsZero(t *testing.T) {
	got, err := FromBytes32Hex("")
	if err != nil {
		t.Fatalf("empty string should decode to zero, got error: %v", err)
	}
	if got.Sign() != 0 {
		t.Fatalf("expected zero, got %s", got)
	}
}

func TestStrictFromHexRejectsEmpty(t *testing.T) {
	if _, err := StrictFromHex(""); err != ErrInvalidHex {
		t.Fatalf("expected ErrInvalidHex, got %v", err)
	}
}

func TestStrictFromHexRejectsGarbage(t *testing.T) {
	if _, err := StrictFromHex("0xzzzz"); err != ErrInvalidHex {
		t.Fatalf("expected ErrInvalidHex, got %v", err)
	}
}

func TestStrictFromHexRejectsValueAtOrAboveOrder(t *testing.T) {
	s := ToBytes32Hex(Order) // Order itself is out of [0, Order)
	if _, err := StrictFromHex(s); err != ErrOutOfField {
		t.Fatalf("expected ErrOutOfField, got %v", err)
	}
}

func TestStrictFromHexAcceptsZero(t *testing.T) {
	got, err := StrictFromHex(ToBytes32Hex(big.NewInt(0)))
	if err != nil {
		t.Fatalf("StrictFromHex: %v", err)
	}
	if got.Sign() != 0 {
		t.Fatalf("expected zero, got %s", got)
	}
}

func TestNegIsAdditiveInverse(t *testing.T) {
	x := big.NewInt(12345)
	n := Neg(x)
	sum := Add(x, n)
	if sum.Sign() != 0 {
		t.Fatalf("x + Neg(x) should be 0 mod Order, got %s", sum)
	}
}

func TestRandField248Bounded(t *testing.T) {
	bound := new(big.Int).Lsh(big.NewInt(1), 248)
	for i := 0; i < 50; i++ {
		v, err := RandField248()
		if err != nil {
			t.Fatalf("RandField248: %v", err)
		}
		if v.Sign() < 0 || v.Cmp(bound) >= 0 {
			t.Fatalf("value out of [0, 2^248): %s", v)
		}
	}
}

func TestPoseidonDeterministic(t *testing.T) {
	a := big.NewInt(1)
	b := big.NewInt(2)
	h1, err := Poseidon2(a, b)
	if err != nil {
		t.Fatalf("poseidon: %v", err)
	}
	h2, err := Poseidon2(a, b)
	if err != nil {
		t.Fatalf("poseidon: %v", err)
	}
	if h1.Cmp(h2) != 0 {
		t.Fatalf("poseidon is not deterministic: %s != %s", h1, h2)
	}
}

func TestPoseidonArityBounds(t *testing.T) {
	if _, err := Poseidon(); err == nil {
		t.Fatal("expected error for zero-arity poseidon call")
	}
	args := make([]*big.Int, MaxPoseidonArity+1)
	for i := range args {
		args[i] = big.NewInt(int64(i))
	}
	if _, err := Poseidon(args...); err == nil {
		t.Fatal("expected error for over-arity poseidon call")
	}
}
