package disclosure

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/duststealth/core/internal/field"
)

var weiPerUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// formatHuman renders a wei-denominated amount as a trimmed decimal string,
// e.g. 1250000000000000000 -> "1.25".
func formatHuman(amount *big.Int) string {
	whole := new(big.Int)
	rem := new(big.Int)
	whole.QuoRem(amount, weiPerUnit, rem)
	if rem.Sign() == 0 {
		return whole.String()
	}
	frac := fmt.Sprintf("%018s", rem.String())
	frac = strings.TrimRight(frac, "0")
	return whole.String() + "." + frac
}

func csvStatus(n DisclosedNote) string {
	if n.Spent {
		return "Spent"
	}
	return "Unspent"
}

func csvType(n DisclosedNote) string {
	if n.LeafIndex < 0 {
		return "Pending"
	}
	return "Confirmed"
}

// ExportCSV renders r as CSV: a header row, one row per disclosed note, a
// blank line, then 7 summary lines.
func ExportCSV(r *Report) string {
	var b strings.Builder
	b.WriteString("Date,Type,Amount (raw),Amount (human),Asset,Commitment,Leaf Index,Status\n")

	for _, n := range r.Notes {
		b.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%d,%s\n",
			n.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			csvType(n),
			n.Amount.String(),
			formatHuman(n.Amount),
			field.ToBytes32Hex(n.Asset),
			field.ToBytes32Hex(n.Commitment),
			n.LeafIndex,
			csvStatus(n),
		))
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "Owner Public Key,%s\n", field.ToBytes32Hex(r.OwnerPubKey))
	fmt.Fprintf(&b, "Chain ID,%d\n", r.ChainID)
	fmt.Fprintf(&b, "Total Notes,%d\n", len(r.Notes))
	fmt.Fprintf(&b, "Total Deposited (raw),%s\n", r.TotalDeposited.String())
	fmt.Fprintf(&b, "Total Spent (raw),%s\n", r.TotalSpent.String())
	fmt.Fprintf(&b, "Total Unspent (raw),%s\n", r.TotalUnspent.String())
	fmt.Fprintf(&b, "Generated At,%s\n", r.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z"))

	return b.String()
}
