//go:build !integration

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/evolbiolab/paperval/internal/metrics"
	"github.com/evolbiolab/paperval/internal/model"
)

func fptr(v float64) *float64 { return &v }

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:              "abc12345-6789-0000-0000-000000000000",
			PapersEvaluated: 12,
			Summary: metrics.Summary{
				PapersEvaluated: 12,
				Overall: metrics.Metrics{
					TP: 30, FP: 10, FN: 10,
					Precision: fptr(0.75), Recall: fptr(0.75), F1: fptr(0.75),
				},
			},
			CreatedAt: now,
		},
		{
			ID:              "def12345-6789-0000-0000-000000000000",
			PapersEvaluated: 3,
			Summary: metrics.Summary{
				PapersEvaluated: 3,
				Overall:         metrics.Metrics{},
			},
			CreatedAt: now.Add(-1 * time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "PRECISION")
	assert.Contains(t, output, "abc12345")
	assert.Contains(t, output, "75.0%")
	assert.Contains(t, output, "2025-06-15 10:30")
	// Undefined rates render as N/A, never 0%.
	assert.Contains(t, output, "N/A")
}

func TestComputeRunStats(t *testing.T) {
	runs := []model.Run{
		{
			PapersEvaluated: 10,
			Summary: metrics.Summary{
				Overall: metrics.Metrics{Precision: fptr(0.8), Recall: fptr(0.6), F1: fptr(0.686)},
			},
		},
		{
			PapersEvaluated: 20,
			Summary: metrics.Summary{
				Overall: metrics.Metrics{Precision: fptr(0.6), Recall: fptr(0.8), F1: fptr(0.686)},
			},
		},
		{
			// No counts at all: rates undefined.
			PapersEvaluated: 1,
			Summary:         metrics.Summary{Overall: metrics.Metrics{}},
		},
	}

	stats := computeRunStats(runs)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 31, stats.Papers)
	assert.Equal(t, 2, stats.RatedRuns)
	assert.Equal(t, 1, stats.UndefinedRuns)
	assert.InDelta(t, 0.7, stats.AvgPrecision, 0.001)
	assert.InDelta(t, 0.7, stats.AvgRecall, 0.001)
	assert.InDelta(t, 0.686, stats.AvgF1, 0.001)
}

func TestFormatRunStats(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, runStats{
		Total: 2, Papers: 31, RatedRuns: 2,
		AvgPrecision: 0.7, AvgRecall: 0.7, AvgF1: 0.686,
	})

	output := buf.String()
	assert.Contains(t, output, "Total runs:")
	assert.Contains(t, output, "Papers evaluated:")
	assert.Contains(t, output, "70.0%")
	assert.Contains(t, output, "68.6%")
}

func TestRatePct(t *testing.T) {
	assert.Equal(t, "N/A", ratePct(nil))
	assert.Equal(t, "37.5%", ratePct(fptr(0.375)))
	assert.Equal(t, "100.0%", ratePct(fptr(1.0)))
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000-0000-000000000000"))
	assert.Equal(t, "short", truncateID("short"))
}
