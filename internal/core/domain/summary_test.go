package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_BucketsReconcile(t *testing.T) {
	items := []UnifiedItem{
		{ID: "1", Amount: decimal.NewFromInt(150000), Status: StatusApproved},
		{ID: "2", Amount: decimal.RequireFromString("75000.50"), Status: StatusPending},
		{ID: "3", Amount: decimal.RequireFromString("0.10"), Status: StatusRejected},
		{ID: "4", Amount: decimal.RequireFromString("0.20"), Status: StatusApproved},
	}

	s := Summarize(items)

	assert.True(t, s.Total.Equal(decimal.RequireFromString("225000.80")), "total = %s", s.Total)
	assert.True(t, s.Approved.Equal(decimal.RequireFromString("150000.20")))
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 2, s.ApprovedCount)
	assert.Equal(t, 1, s.PendingCount)
	assert.Equal(t, 1, s.RejectedCount)
	require.True(t, s.Reconciles(decimal.Zero))
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.True(t, s.Total.IsZero())
	assert.Equal(t, 0, s.Count)
	assert.True(t, s.Reconciles(decimal.Zero))
}

func TestClassifiedError_CanRetry(t *testing.T) {
	e := &ClassifiedError{Category: CategoryNetwork, Retryable: true, MaxRetries: 3}
	assert.True(t, e.CanRetry())

	e.RetryCount = 3
	assert.False(t, e.CanRetry())

	e = &ClassifiedError{Category: CategoryAuthentication, Retryable: false, MaxRetries: 0}
	assert.False(t, e.CanRetry())
}

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant("dokter")
	require.NoError(t, err)
	assert.Equal(t, VariantDokter, v)

	_, err = ParseVariant("perawat")
	assert.Error(t, err)
}
