package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchpad-index/internal/domain"
)

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	summary := &domain.RefreshSummary{
		Total:     12,
		Updated:   10,
		Errors:    2,
		Batches:   3,
		StartedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, printSummary(&buf, summary))
	out := buf.String()
	assert.Contains(t, out, `"total": 12`)
	assert.Contains(t, out, `"updated": 10`)
	assert.Contains(t, out, `"started_at": "2026-03-01T00:00:00Z"`)
	assert.True(t, strings.HasSuffix(out, "}\n"))
}

func TestPrintSummary_FailedListing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, &domain.RefreshSummary{Errors: 1}))
	assert.Contains(t, buf.String(), `"errors": 1`)
}
