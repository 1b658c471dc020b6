package viewkey

import (
	"math/big"
	"testing"

	"github.com/duststealth/core/internal/keys"
)

func TestPlainRoundTrip(t *testing.T) {
	vk := keys.ViewKey{OwnerPubKey: big.NewInt(0x111), NullifierKey: big.NewInt(0x222)}
	s := SerializePlain(vk)

	plain, scoped, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if scoped != nil {
		t.Fatal("expected a plain view key, got a scoped one")
	}
	if plain.OwnerPubKey.Cmp(vk.OwnerPubKey) != 0 || plain.NullifierKey.Cmp(vk.NullifierKey) != 0 {
		t.Fatal("round trip should reconstruct the original view key")
	}
}

func TestScopedRoundTrip(t *testing.T) {
	svk := keys.ScopedViewKey{
		ViewKey:    keys.ViewKey{OwnerPubKey: big.NewInt(0xaaa), NullifierKey: big.NewInt(0xbbb)},
		StartBlock: 100,
		EndBlock:   200,
	}
	s := SerializeScoped(svk)

	plain, scoped, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if plain != nil {
		t.Fatal("expected a scoped view key, got a plain one")
	}
	if scoped.OwnerPubKey.Cmp(svk.OwnerPubKey) != 0 || scoped.NullifierKey.Cmp(svk.NullifierKey) != 0 {
		t.Fatal("round trip should reconstruct the original owner/nullifier keys")
	}
	if scoped.StartBlock != svk.StartBlock || scoped.EndBlock != svk.EndBlock {
		t.Fatal("round trip should reconstruct the original block range")
	}
}

func TestParseRejectsUnknownPrefix(t *testing.T) {
	if _, _, err := Parse("dvk9:abc"); err != ErrUnknownPrefix {
		t.Fatalf("expected ErrUnknownPrefix, got %v", err)
	}
}

func TestParseRejectsBadHexLength(t *testing.T) {
	if _, _, err := Parse("dvk1:abc:def"); err != ErrInvalidHexPart {
		t.Fatalf("expected ErrInvalidHexPart, got %v", err)
	}
}

func TestParseRejectsInvertedBlockRange(t *testing.T) {
	svk := keys.ScopedViewKey{
		ViewKey:    keys.ViewKey{OwnerPubKey: big.NewInt(1), NullifierKey: big.NewInt(2)},
		StartBlock: 200,
		EndBlock:   100,
	}
	s := SerializeScoped(svk)
	if _, _, err := Parse(s); err != ErrBadRange {
		t.Fatalf("expected ErrBadRange, got %v", err)
	}
}

func TestParseRejectsWrongPartCount(t *testing.T) {
	if _, _, err := Parse("dvk1:onlyonepart"); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}
