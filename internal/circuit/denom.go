package circuit

import (
	"errors"
	"math/big"
	"sort"
)

// ErrUnknownDenomTable is returned for a token symbol with no hard-coded
// denomination table.
var ErrUnknownDenomTable = errors.New("circuit: unknown denomination table")

func wei(eth int64, decimals int) *big.Int {
	// eth is expressed in thousandths (e.g. 10_000 == 10.000 ETH) so the
	// table below can stay in integers; decimals converts that to wei.
	v := big.NewInt(eth)
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-3)), nil)
	return v.Mul(v, scale)
}

// ethDenoms and usdcDenoms are the hard-coded, descending denomination
// tables used by suggest_rounded and decompose when the caller passes a
// known token symbol instead of an explicit table.
var (
	ethDenoms = []*big.Int{
		wei(10000, 18), wei(5000, 18), wei(3000, 18), wei(2000, 18), wei(1000, 18),
		wei(500, 18), wei(300, 18), wei(200, 18), wei(100, 18),
		wei(50, 18), wei(30, 18), wei(20, 18), wei(10, 18),
	}
	usdcDenoms = []*big.Int{
		big.NewInt(10_000_000_000), big.NewInt(5_000_000_000), big.NewInt(2_000_000_000),
		big.NewInt(1_000_000_000), big.NewInt(500_000_000), big.NewInt(200_000_000),
		big.NewInt(100_000_000), big.NewInt(50_000_000), big.NewInt(20_000_000),
		big.NewInt(10_000_000), big.NewInt(5_000_000), big.NewInt(2_000_000), big.NewInt(1_000_000),
	}
)

// DenomTable returns the hard-coded descending denomination table for a
// known token symbol ("ETH" or "USDC").
func DenomTable(symbol string) ([]*big.Int, error) {
	switch symbol {
	case "ETH":
		return ethDenoms, nil
	case "USDC":
		return usdcDenoms, nil
	default:
		return nil, ErrUnknownDenomTable
	}
}

// Decompose greedily breaks amount into a descending sequence of
// denomination-sized chunks, with any non-standard remainder appended last.
// If maxChunks is supplied (> 0) and the natural decomposition exceeds it,
// the tail collapses into a single final chunk so the result never exceeds
// maxChunks entries. sum(result) == amount always holds for amount > 0.
func Decompose(amount *big.Int, denominations []*big.Int, maxChunks int) []*big.Int {
	if amount.Sign() <= 0 {
		return nil
	}
	if len(denominations) == 0 {
		return []*big.Int{new(big.Int).Set(amount)}
	}

	remaining := new(big.Int).Set(amount)
	var chunks []*big.Int
	for _, d := range denominations {
		for remaining.Cmp(d) >= 0 {
			chunks = append(chunks, new(big.Int).Set(d))
			remaining.Sub(remaining, d)
		}
	}
	if remaining.Sign() > 0 {
		chunks = append(chunks, new(big.Int).Set(remaining))
	}

	if maxChunks > 0 && len(chunks) > maxChunks {
		kept := chunks[:maxChunks-1]
		residual := new(big.Int)
		for _, c := range chunks[maxChunks-1:] {
			residual.Add(residual, c)
		}
		chunks = append(kept, residual)
	}
	return chunks
}

// SuggestRounded produces up to maxSuggestions rounded-down alternatives to
// amount, each aligned to a standard denomination, that decompose into
// strictly fewer chunks than decompose(amount, denominations, 0). Results
// are sorted by ascending chunk count, then by descending amount.
func SuggestRounded(amount *big.Int, denominations []*big.Int, maxSuggestions int) []*big.Int {
	if amount.Sign() <= 0 || len(denominations) == 0 || maxSuggestions <= 0 {
		return nil
	}
	baseline := len(Decompose(amount, denominations, 0))

	seen := make(map[string]struct{})
	var candidates []*big.Int
	for _, d := range denominations {
		rounded := new(big.Int).Div(amount, d)
		rounded.Mul(rounded, d)
		if rounded.Sign() <= 0 {
			continue
		}
		if rounded.Cmp(amount) == 0 {
			continue
		}
		if len(Decompose(rounded, denominations, 0)) >= baseline {
			continue
		}
		key := rounded.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		candidates = append(candidates, rounded)
	}

	sort.Slice(candidates, func(i, j int) bool {
		ci := len(Decompose(candidates[i], denominations, 0))
		cj := len(Decompose(candidates[j], denominations, 0))
		if ci != cj {
			return ci < cj
		}
		return candidates[i].Cmp(candidates[j]) > 0
	})

	if len(candidates) > maxSuggestions {
		candidates = candidates[:maxSuggestions]
	}
	return candidates
}
