// Package payout computes how a gig fee is split between the members of a
// performer entity, and how a band's internal splits move when its roster
// changes.
package payout

import (
	"math"

	"gigbook/internal/models"
	"gigbook/internal/money"
)

// ComputeShares returns the split of totalFee among the performer's active
// members with a positive share, or nil when there are none. Percentages
// are kept as configured, so they may not sum to 100.
func ComputeShares(p models.Performer, totalFee int64) *models.PayoutConfig {
	artist, ok := p.(models.ArtistEntity)
	if !ok {
		return nil
	}

	var shares []models.PayoutShare
	for _, m := range artist.Members {
		if m.Status != models.MemberActive || m.PayoutSharePercent <= 0 {
			continue
		}
		shares = append(shares, models.PayoutShare{UserID: m.UserID, Percent: m.PayoutSharePercent})
	}
	if len(shares) == 0 {
		return nil
	}

	return &models.PayoutConfig{
		PerformerEntityID: artist.EntityID(),
		TotalFee:          totalFee,
		Shares:            shares,
	}
}

// ShareAmount is round(totalFee * percent / 100) in pence.
func ShareAmount(totalFee int64, percent float64) int64 {
	return money.Percent(totalFee, percent)
}

// Amounts maps each share's user to its amount. Users listed twice are
// summed.
func Amounts(cfg *models.PayoutConfig) map[string]int64 {
	out := make(map[string]int64, len(cfg.Shares))
	for _, s := range cfg.Shares {
		out[s.UserID] += ShareAmount(cfg.TotalFee, s.Percent)
	}
	return out
}

// EvenSplit gives each of n members floor(100/n) percent and the remainder
// to the first member.
func EvenSplit(n int) []float64 {
	if n <= 0 {
		return nil
	}
	base := 100 / n
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(base)
	}
	out[0] += float64(100 - base*n)
	return out
}

// RedistributeRemoved drops splits[removed] and shares it equally among the
// rest, each result rounded to 2 decimals. The total may drift by the
// rounding of the shared part.
func RedistributeRemoved(splits []float64, removed int) []float64 {
	if removed < 0 || removed >= len(splits) {
		return append([]float64(nil), splits...)
	}
	if len(splits) == 1 {
		return []float64{}
	}

	rest := len(splits) - 1
	gain := math.Round(float64(hundredths(splits[removed])) / float64(rest))

	out := make([]float64, 0, rest)
	for i, s := range splits {
		if i == removed {
			continue
		}
		out = append(out, float64(hundredths(s)+int64(gain))/100)
	}
	return out
}

func hundredths(v float64) int64 {
	return int64(math.Round(v * 100))
}
