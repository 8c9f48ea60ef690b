package payout

import (
	"math"
	"math/rand"
	"testing"

	"gigbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func artist(members ...models.Member) models.ArtistEntity {
	return models.ArtistEntity{
		Profile: &models.ArtistProfile{ID: "a1", UserID: "u1"},
		Members: members,
	}
}

func TestComputeSharesSixtyForty(t *testing.T) {
	p := artist(
		models.Member{UserID: "u1", Status: models.MemberActive, PayoutSharePercent: 60},
		models.Member{UserID: "u2", Status: models.MemberActive, PayoutSharePercent: 40},
	)

	cfg := ComputeShares(p, 10000)
	require.NotNil(t, cfg)
	assert.Equal(t, "a1", cfg.PerformerEntityID)
	assert.Equal(t, int64(10000), cfg.TotalFee)
	assert.Equal(t, []models.PayoutShare{{UserID: "u1", Percent: 60}, {UserID: "u2", Percent: 40}}, cfg.Shares)
	assert.Equal(t, map[string]int64{"u1": 6000, "u2": 4000}, Amounts(cfg))
}

func TestComputeSharesSkipsInactiveAndZero(t *testing.T) {
	p := artist(
		models.Member{UserID: "u1", Status: models.MemberActive, PayoutSharePercent: 50},
		models.Member{UserID: "u2", Status: models.MemberRemoved, PayoutSharePercent: 30},
		models.Member{UserID: "u3", Status: models.MemberActive, PayoutSharePercent: 0},
	)

	cfg := ComputeShares(p, 10000)
	require.NotNil(t, cfg)
	assert.Equal(t, []models.PayoutShare{{UserID: "u1", Percent: 50}}, cfg.Shares, "partial splits are stored unnormalised")
}

func TestComputeSharesNil(t *testing.T) {
	assert.Nil(t, ComputeShares(artist(models.Member{UserID: "u1", Status: models.MemberActive}), 10000))
	assert.Nil(t, ComputeShares(models.MusicianEntity{Profile: &models.MusicianProfile{ID: "m1"}}, 10000))
	assert.Nil(t, ComputeShares(models.BandEntity{Band: &models.Band{ID: "b1"}}, 10000))
}

func TestShareAmountSumBound(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		total := rng.Int63n(1_000_000)
		n := 1 + rng.Intn(6)

		remaining := 100.0
		var members []models.Member
		for j := 0; j < n; j++ {
			pct := math.Round(rng.Float64()*remaining*100) / 100
			remaining -= pct
			members = append(members, models.Member{UserID: string(rune('a' + j)), Status: models.MemberActive, PayoutSharePercent: pct})
		}

		cfg := ComputeShares(artist(members...), total)
		if cfg == nil {
			continue
		}
		var sum int64
		for _, s := range cfg.Shares {
			amount := ShareAmount(total, s.Percent)
			assert.Equal(t, int64(math.Round(float64(total)*s.Percent/100)), amount)
			sum += amount
		}
		assert.LessOrEqual(t, sum, total+int64(len(cfg.Shares)))
	}
}

func sumHundredths(splits []float64) int64 {
	var s int64
	for _, v := range splits {
		s += int64(math.Round(v * 100))
	}
	return s
}

func TestEvenSplit(t *testing.T) {
	assert.Nil(t, EvenSplit(0))
	assert.Equal(t, []float64{100}, EvenSplit(1))
	assert.Equal(t, []float64{34, 33, 33}, EvenSplit(3))
	assert.Equal(t, []float64{16, 14, 14, 14, 14, 14, 14}, EvenSplit(7))

	for n := 1; n <= 40; n++ {
		assert.Equal(t, int64(10000), sumHundredths(EvenSplit(n)), "n=%d", n)
	}
}

func TestRedistributeRemovedFourToThree(t *testing.T) {
	for _, removed := range []int{0, 2, 3} {
		got := RedistributeRemoved([]float64{25, 25, 25, 25}, removed)
		require.Len(t, got, 3)
		for i, v := range got {
			assert.InDelta(t, 33.33, v, 1e-9, "removed=%d member=%d", removed, i)
		}
	}
}

func TestRedistributeRemovedKeepsUnevenSplits(t *testing.T) {
	got := RedistributeRemoved([]float64{50, 30, 20}, 2)
	assert.InDelta(t, 60, got[0], 1e-9)
	assert.InDelta(t, 40, got[1], 1e-9)
}

func TestRedistributeRemovedDriftIsBounded(t *testing.T) {
	splits := EvenSplit(6)
	for len(splits) > 1 {
		before := sumHundredths(splits)
		splits = RedistributeRemoved(splits, len(splits)/2)
		drift := sumHundredths(splits) - before
		assert.LessOrEqual(t, drift, int64(len(splits)), "n=%d", len(splits))
		assert.GreaterOrEqual(t, drift, -int64(len(splits)), "n=%d", len(splits))
	}
	assert.Equal(t, []float64{}, RedistributeRemoved([]float64{100}, 0))
	assert.Equal(t, []float64{50, 50}, RedistributeRemoved([]float64{50, 50}, 5))
}
