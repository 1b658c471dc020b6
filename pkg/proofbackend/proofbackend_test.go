package proofbackend

import (
	"context"
	"strings"
	"testing"
)

func TestMockBackendProveVerifyRoundTrip(t *testing.T) {
	b := NewMockBackend()
	proof, err := b.Prove(context.Background(), CircuitWithdraw, map[string]any{"amount": 100})
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	ok, err := b.Verify(context.Background(), CircuitWithdraw, proof)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("expected verification to succeed for a freshly produced proof")
	}
}

func TestMockBackendVerifyRejectsWrongCircuit(t *testing.T) {
	b := NewMockBackend()
	proof, err := b.Prove(context.Background(), CircuitWithdraw, nil)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	ok, err := b.Verify(context.Background(), CircuitTransfer, proof)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatal("expected verification against a different circuit to fail")
	}
}

func TestParseFFLONKCalldata(t *testing.T) {
	var fields []string
	for i := 0; i < 26; i++ {
		fields = append(fields, "0xabcdef")
	}
	calldata := strings.Join(fields, ", ")

	proofHex, signals, err := ParseFFLONKCalldata(calldata, 2)
	if err != nil {
		t.Fatalf("ParseFFLONKCalldata: %v", err)
	}
	if len(proofHex) != 24*len("abcdef") {
		t.Fatalf("expected concatenated 24-field proof blob, got length %d", len(proofHex))
	}
	if len(signals) != 2 {
		t.Fatalf("expected 2 public signals, got %d", len(signals))
	}
}

func TestParseFFLONKCalldataTooShort(t *testing.T) {
	_, _, err := ParseFFLONKCalldata("0xabc, 0xdef", 2)
	if err == nil {
		t.Fatal("expected an error for calldata with too few hex fields")
	}
}
