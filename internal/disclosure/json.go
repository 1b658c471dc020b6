package disclosure

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/duststealth/core/internal/field"
)

type jsonDateRange struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

type jsonBlockRange struct {
	StartBlock uint64 `json:"startBlock"`
	EndBlock   uint64 `json:"endBlock"`
}

type jsonNote struct {
	Commitment string `json:"commitment"`
	Amount     string `json:"amount"`
	Asset      string `json:"asset"`
	ChainID    uint64 `json:"chainId"`
	Blinding   string `json:"blinding"`
	LeafIndex  int64  `json:"leafIndex"`
	Spent      bool   `json:"spent"`
	CreatedAt  int64  `json:"createdAt"`
}

type jsonReport struct {
	Version        int             `json:"version"`
	OwnerPubKey    string          `json:"ownerPubKey"`
	ChainID        uint64          `json:"chainId"`
	Notes          []jsonNote      `json:"notes"`
	TotalDeposited string          `json:"totalDeposited"`
	TotalSpent     string          `json:"totalSpent"`
	TotalUnspent   string          `json:"totalUnspent"`
	DateRange      *jsonDateRange  `json:"dateRange"`
	BlockRange     *jsonBlockRange `json:"blockRange"`
	GeneratedAt    int64           `json:"generatedAt"`
}

func msSinceEpoch(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMs(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// MarshalJSON renders r in the persisted disclosure-report schema.
func (r *Report) MarshalJSON() ([]byte, error) {
	jr := jsonReport{
		Version:        r.Version,
		OwnerPubKey:    field.ToBytes32Hex(r.OwnerPubKey),
		ChainID:        r.ChainID,
		TotalDeposited: r.TotalDeposited.String(),
		TotalSpent:     r.TotalSpent.String(),
		TotalUnspent:   r.TotalUnspent.String(),
		GeneratedAt:    msSinceEpoch(r.GeneratedAt),
	}
	if r.DateRange != nil {
		jr.DateRange = &jsonDateRange{From: msSinceEpoch(r.DateRange.From), To: msSinceEpoch(r.DateRange.To)}
	}
	if r.BlockRange != nil {
		jr.BlockRange = &jsonBlockRange{StartBlock: r.BlockRange.StartBlock, EndBlock: r.BlockRange.EndBlock}
	}
	for _, n := range r.Notes {
		jr.Notes = append(jr.Notes, jsonNote{
			Commitment: field.ToBytes32Hex(n.Commitment),
			Amount:     n.Amount.String(),
			Asset:      field.ToBytes32Hex(n.Asset),
			ChainID:    n.ChainID,
			Blinding:   field.ToBytes32Hex(n.Blinding),
			LeafIndex:  n.LeafIndex,
			Spent:      n.Spent,
			CreatedAt:  msSinceEpoch(n.CreatedAt),
		})
	}
	return json.Marshal(jr)
}

// UnmarshalJSON parses a disclosure report serialized by MarshalJSON.
func (r *Report) UnmarshalJSON(data []byte) error {
	var jr jsonReport
	if err := json.Unmarshal(data, &jr); err != nil {
		return err
	}

	owner, err := field.StrictFromHex(jr.OwnerPubKey)
	if err != nil {
		return err
	}
	totalDeposited, ok := new(big.Int).SetString(jr.TotalDeposited, 10)
	if !ok {
		return field.ErrInvalidHex
	}
	totalSpent, ok := new(big.Int).SetString(jr.TotalSpent, 10)
	if !ok {
		return field.ErrInvalidHex
	}
	totalUnspent, ok := new(big.Int).SetString(jr.TotalUnspent, 10)
	if !ok {
		return field.ErrInvalidHex
	}

	*r = Report{
		Version:        jr.Version,
		OwnerPubKey:    owner,
		ChainID:        jr.ChainID,
		TotalDeposited: totalDeposited,
		TotalSpent:     totalSpent,
		TotalUnspent:   totalUnspent,
		GeneratedAt:    fromMs(jr.GeneratedAt),
	}
	if jr.DateRange != nil {
		r.DateRange = &DateRange{From: fromMs(jr.DateRange.From), To: fromMs(jr.DateRange.To)}
	}
	if jr.BlockRange != nil {
		r.BlockRange = &BlockRange{StartBlock: jr.BlockRange.StartBlock, EndBlock: jr.BlockRange.EndBlock}
	}

	for _, n := range jr.Notes {
		commitment, err := field.StrictFromHex(n.Commitment)
		if err != nil {
			return err
		}
		amount, ok := new(big.Int).SetString(n.Amount, 10)
		if !ok {
			return field.ErrInvalidHex
		}
		asset, err := field.StrictFromHex(n.Asset)
		if err != nil {
			return err
		}
		blinding, err := field.StrictFromHex(n.Blinding)
		if err != nil {
			return err
		}
		r.Notes = append(r.Notes, DisclosedNote{
			Commitment: commitment,
			Amount:     amount,
			Asset:      asset,
			ChainID:    n.ChainID,
			Blinding:   blinding,
			LeafIndex:  n.LeafIndex,
			Spent:      n.Spent,
			CreatedAt:  fromMs(n.CreatedAt),
		})
	}
	return nil
}
