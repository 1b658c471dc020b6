package keys

import "testing"

// Deterministic key derivation against a fixed worked example.
func TestDeriveIsDeterministic(t *testing.T) {
	sig := []byte("0x1234000000000000000000000000000000000000000000000000000000000a")
	k1, err := Derive(sig, "123456")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	k2, err := Derive(sig, "123456")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if k1.SpendingKey.Cmp(k2.SpendingKey) != 0 {
		t.Fatal("spending key not deterministic")
	}
	if k1.NullifierKey.Cmp(k2.NullifierKey) != 0 {
		t.Fatal("nullifier key not deterministic")
	}
}

func TestDeriveDifferentPinDiffersKeys(t *testing.T) {
	sig := []byte("0x1234000000000000000000000000000000000000000000000000000000000a")
	k1, err := Derive(sig, "123456")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	k2, err := Derive(sig, "111111")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if k1.SpendingKey.Cmp(k2.SpendingKey) == 0 {
		t.Fatal("different PIN should yield a different spending key")
	}
	if k1.NullifierKey.Cmp(k2.NullifierKey) == 0 {
		t.Fatal("different PIN should yield a different nullifier key")
	}
}

func TestDeriveRequiresPin(t *testing.T) {
	if _, err := Derive([]byte("sig"), ""); err != ErrPinRequired {
		t.Fatalf("expected ErrPinRequired, got %v", err)
	}
}

func TestDeriveViewKey(t *testing.T) {
	k, err := Derive([]byte("sig"), "123456")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	vk, err := DeriveViewKey(k)
	if err != nil {
		t.Fatalf("DeriveViewKey: %v", err)
	}
	if vk.NullifierKey.Cmp(k.NullifierKey) != 0 {
		t.Fatal("view key nullifier key should match the source key")
	}
	if vk.OwnerPubKey.Sign() == 0 {
		t.Fatal("owner pub key should not be zero for a nonzero spending key")
	}
}
