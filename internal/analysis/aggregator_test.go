package analysis

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windfleet/turbinewatch/internal/domain"
)

func reading(day, min, turbineID int, power float64) domain.Reading {
	return domain.Reading{
		Timestamp:   time.Date(2025, 4, day, 0, 5*min, 0, 0, time.UTC),
		TurbineID:   turbineID,
		WindSpeed:   5,
		PowerOutput: power,
	}
}

func TestSummarize_DailyStatistics(t *testing.T) {
	sets := []domain.CleanReadingSet{{
		TurbineID: 1,
		Readings: []domain.Reading{
			reading(1, 0, 1, 100),
			reading(1, 1, 1, 100),
			reading(1, 2, 1, 100),
			reading(1, 3, 1, 80),
		},
	}}

	summaries := NewAggregator(zerolog.Nop()).Summarize(sets)
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.Equal(t, 1, s.TurbineID)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), s.Date)
	assert.Equal(t, 380.0, s.DailyTotal)
	assert.Equal(t, 95.0, s.Mean)
	assert.Equal(t, 80.0, s.Min)
	assert.Equal(t, 100.0, s.Max)
	assert.InDelta(t, 10.0, s.Std, 1e-9) // sample std of 100,100,100,80
	assert.Equal(t, 4, s.Count)
}

func TestSummarize_SingleReadingHasZeroStd(t *testing.T) {
	sets := []domain.CleanReadingSet{{
		TurbineID: 1,
		Readings:  []domain.Reading{reading(1, 0, 1, 42)},
	}}

	summaries := NewAggregator(zerolog.Nop()).Summarize(sets)
	require.Len(t, summaries, 1)
	assert.Equal(t, 0.0, summaries[0].Std)
	assert.Equal(t, 42.0, summaries[0].DailyTotal)
}

func TestSummarize_SplitsByCalendarDate(t *testing.T) {
	sets := []domain.CleanReadingSet{{
		TurbineID: 1,
		Readings: []domain.Reading{
			reading(1, 0, 1, 10),
			reading(1, 1, 1, 20),
			reading(2, 0, 1, 30),
		},
	}}

	summaries := NewAggregator(zerolog.Nop()).Summarize(sets)
	require.Len(t, summaries, 2)
	assert.Equal(t, 30.0, summaries[0].DailyTotal)
	assert.Equal(t, 30.0, summaries[1].DailyTotal)
	assert.True(t, summaries[0].Date.Before(summaries[1].Date))
}

func TestSummarize_EmptyDayProducesNoRecord(t *testing.T) {
	sets := []domain.CleanReadingSet{
		{TurbineID: 1}, // all rows dropped during cleaning
		{TurbineID: 2, Readings: []domain.Reading{reading(1, 0, 2, 5)}},
	}

	summaries := NewAggregator(zerolog.Nop()).Summarize(sets)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].TurbineID)
}

func TestSummarize_Deterministic(t *testing.T) {
	sets := []domain.CleanReadingSet{{
		TurbineID: 1,
		Readings: []domain.Reading{
			reading(1, 0, 1, 10),
			reading(2, 0, 1, 20),
			reading(3, 0, 1, 30),
		},
	}}

	agg := NewAggregator(zerolog.Nop())
	assert.Equal(t, agg.Summarize(sets), agg.Summarize(sets))
}
