package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yakey01/dokterku-sub007/internal/core/domain"
)

func fixedNormalizer() *Normalizer {
	cfg := DefaultConfig()
	cfg.Now = func() time.Time { return time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC) }
	return New(cfg)
}

func TestNormalize_DokterCategorizedScenario(t *testing.T) {
	payload := []byte(`{"jaga_quests":[{"id":1,"tanggal":"2025-01-10","jenis_jaspel":"jaga_pagi","nominal":150000}],"achievement_tindakan":[]}`)

	res, err := fixedNormalizer().Normalize(payload, domain.VariantDokter)
	require.NoError(t, err)

	assert.Equal(t, ShapeCategorized, res.Shape)
	require.Len(t, res.Items, 1)

	item := res.Items[0]
	assert.Equal(t, "1", item.ID)
	assert.Equal(t, "jaga_pagi", item.Category)
	assert.Equal(t, "2025-01-10", item.DateString())
	assert.True(t, item.Amount.Equal(decimal.NewFromInt(150000)))
	assert.Equal(t, domain.StatusApproved, item.Status)

	assert.True(t, res.Summary.Total.Equal(decimal.NewFromInt(150000)))
	assert.True(t, res.Summary.Approved.Equal(res.Summary.Total))
	assert.Equal(t, 1, res.Summary.ApprovedCount)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 100, res.QualityScore)
}

func TestNormalize_ValidatedShape(t *testing.T) {
	payload := []byte(`{
		"success": true,
		"data": {
			"jaspel_items": [
				{"id": "j-1", "tanggal": "2025-01-05", "jenis": "tindakan", "nominal": "Rp 75.000",
				 "validation": {"status": "disetujui", "validated_by": "Bendahara", "validated_at": "2025-01-06 10:00:00", "notes": "ok"}},
				{"id": "j-2", "tanggal": "2025-01-07", "jenis": "jaga_malam", "nominal": 200000,
				 "status": "approved", "validation": {"status": "ditolak"}},
				{"id": "j-3", "tanggal": "2025-01-08", "jenis": "konsultasi", "nominal": 50000.5, "status": "menunggu"}
			]
		}
	}`)

	res, err := fixedNormalizer().Normalize(payload, domain.VariantParamedis)
	require.NoError(t, err)
	assert.Equal(t, ShapeValidated, res.Shape)
	require.Len(t, res.Items, 3)

	first := res.Items[0]
	assert.Equal(t, domain.StatusApproved, first.Status)
	assert.Equal(t, "Bendahara", first.Validator)
	require.NotNil(t, first.ValidatedAt)
	assert.Equal(t, 6, first.ValidatedAt.Day())
	assert.Equal(t, "ok", first.Note)
	assert.Equal(t, "75000", first.Amount.String())

	// the validation sub-object wins over the top-level status
	assert.Equal(t, domain.StatusRejected, res.Items[1].Status)
	assert.Equal(t, domain.StatusPending, res.Items[2].Status)

	assert.Equal(t, 1, res.Summary.ApprovedCount)
	assert.Equal(t, 1, res.Summary.RejectedCount)
	assert.Equal(t, 1, res.Summary.PendingCount)
	assert.True(t, res.Summary.Reconciles(decimal.Zero))
}

func TestNormalize_LegacyArraySkipsIncompleteRecords(t *testing.T) {
	payload := []byte(`[
		{"id": 10, "date": "2025-01-02", "category": "jaga", "amount": 100000, "status": "paid"},
		{"id": 11, "date": "2025-01-03", "amount": 5000},
		"garbage",
		{"id": 12, "date": "2025-01-04", "category": "visite", "amount": 25000, "status": "mystery"}
	]`)

	res, err := fixedNormalizer().Normalize(payload, domain.VariantDokter)
	require.NoError(t, err)

	assert.Equal(t, ShapeLegacy, res.Shape)
	assert.Equal(t, 4, res.Records)
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Items, 2)
	assert.Equal(t, domain.StatusApproved, res.Items[0].Status)
	assert.Equal(t, domain.StatusPending, res.Items[1].Status)
	require.Len(t, res.Warnings, 3)
	assert.Contains(t, res.Warnings[0], "missing required field(s) [category]")
	assert.Contains(t, res.Warnings[1], "not an object")
	assert.Contains(t, res.Warnings[2], "unrecognized status")
	assert.Less(t, res.Quality.Completeness, 100.0)
	assert.Less(t, res.Quality.Accuracy, 100.0)
}

func TestNormalize_LegacyObjectAndGeneric(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		shape   Shape
	}{
		{"legacy object", `{"jaspel":[{"id":1,"tanggal":"2025-01-02","jenis_jaspel":"jaga","nominal":1}]}`, ShapeLegacy},
		{"generic data array", `{"success":true,"data":[{"id":1,"tanggal":"2025-01-02","jenis":"jaga","jumlah":"1,000"}]}`, ShapeGeneric},
		{"generic nested items", `{"data":{"items":[{"id":1,"date":"2025-01-02","category":"jaga","total":1}]}}`, ShapeGeneric},
		{"generic items", `{"items":[{"id":1,"date":"2025-01-02","category":"jaga","amount":1}]}`, ShapeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := fixedNormalizer().Normalize([]byte(tt.payload), domain.VariantDokter)
			require.NoError(t, err)
			assert.Equal(t, tt.shape, res.Shape)
			assert.Len(t, res.Items, 1)
		})
	}
}

func TestNormalize_ShapePriority(t *testing.T) {
	payload := []byte(`{
		"jaspel_items": [{"id":"v","tanggal":"2025-01-02","jenis":"x","nominal":1}],
		"jaga_quests": [{"id":"c","tanggal":"2025-01-02","jenis_jaspel":"y","nominal":2}]
	}`)
	res, err := fixedNormalizer().Normalize(payload, domain.VariantDokter)
	require.NoError(t, err)
	assert.Equal(t, ShapeCategorized, res.Shape)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "c", res.Items[0].ID)
}

func TestNormalize_VariantAmountField(t *testing.T) {
	payload := []byte(`{"data":[{"id":1,"tanggal":"2025-01-02","jenis":"tindakan","jasa_dokter":30000,"jasa_paramedis":12000,"nominal":42000}]}`)

	dokter, err := fixedNormalizer().Normalize(payload, domain.VariantDokter)
	require.NoError(t, err)
	paramedis, err := fixedNormalizer().Normalize(payload, domain.VariantParamedis)
	require.NoError(t, err)

	assert.Equal(t, "30000", dokter.Items[0].Amount.String())
	assert.Equal(t, "12000", paramedis.Items[0].Amount.String())
}

func TestNormalize_UnknownShape(t *testing.T) {
	res, err := fixedNormalizer().Normalize([]byte(`{"message":"ok","foo":1}`), domain.VariantDokter)
	require.NoError(t, err)
	assert.Equal(t, ShapeUnknown, res.Shape)
	assert.Empty(t, res.Items)
	assert.Equal(t, []string{"payload does not match any known jaspel shape"}, res.Warnings)
	assert.Empty(t, res.Errors)
	assert.True(t, res.Summary.Total.IsZero())
}

func TestNormalize_AllRecordsRejected(t *testing.T) {
	payload := `[{"id":1,"tanggal":"2025-01-02"},"bad"]`
	res, err := fixedNormalizer().Normalize([]byte(payload), domain.VariantDokter)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Records)
	assert.Equal(t, 2, res.Skipped)
	assert.Len(t, res.Warnings, 2)
	assert.Equal(t, []string{"none of 2 records could be normalized"}, res.Errors)
}

func TestNormalize_MalformedPayload(t *testing.T) {
	_, err := fixedNormalizer().Normalize([]byte(`{"jaga_quests": [`), domain.VariantDokter)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedPayload))
}

func TestNormalize_RejectsNegativeAndInvalidValues(t *testing.T) {
	payload := []byte(`{"data":[
		{"id":1,"tanggal":"2025-01-02","jenis":"a","nominal":-5},
		{"id":2,"tanggal":"kemarin","jenis":"a","nominal":5},
		{"id":3,"tanggal":"2025-01-02","jenis":"a","nominal":"lima"},
		{"id":3,"tanggal":"2025-01-02","jenis":"a","nominal":5},
		{"id":3,"tanggal":"2025-01-03","jenis":"a","nominal":6}
	]}`)
	res, err := fixedNormalizer().Normalize(payload, domain.VariantDokter)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, 4, res.Skipped)
	assert.Len(t, res.Warnings, 4)
}

func TestNormalize_Idempotent(t *testing.T) {
	payload := []byte(`{"data":{"jaspel_items":[
		{"id":"a","tanggal":"2025-01-02","jenis":"jaga","nominal":"150.000,50","status":"approved"},
		{"id":"b","tanggal":"2025-01-03","jenis":"jaga","nominal":1200,"status":"rejected"},
		{"id":"c","tanggal":"2025-01-04","nominal":1200}
	]}}`)
	n := fixedNormalizer()

	first, err := n.Normalize(payload, domain.VariantDokter)
	require.NoError(t, err)
	second, err := n.Normalize(payload, domain.VariantDokter)
	require.NoError(t, err)

	assert.Equal(t, first.Items, second.Items)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, first.Warnings, second.Warnings)
	assert.Equal(t, first.QualityScore, second.QualityScore)
	assert.Equal(t, "150000.5", first.Items[0].Amount.String())
}

func TestNormalize_QualityValidity(t *testing.T) {
	payload := []byte(`{"data":[{"id":"a1","tanggal":"2025-03-01","jenis":"jaga","nominal":150000,"status":"approved","keterangan":"Jaga pagi IGD"}]}`)
	res, err := fixedNormalizer().Normalize(payload, domain.VariantDokter)
	require.NoError(t, err)

	assert.Equal(t, 100.0, res.Quality.Completeness)
	assert.Equal(t, 100.0, res.Quality.Consistency)
	assert.Equal(t, 50.0, res.Quality.Validity) // future date
	assert.Equal(t, 100.0, res.Quality.Accuracy)
	assert.Equal(t, 88, res.QualityScore)
}

func TestNormalize_QualityOutOfRangeAmount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Now = func() time.Time { return time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC) }
	cfg.MaxAmount = decimal.NewFromInt(1000)
	n := New(cfg)

	res, err := n.Normalize([]byte(`[{"id":1,"date":"2023-01-01","category":"x","amount":5000}]`), domain.VariantDokter)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Quality.Validity)
}

func TestSummaryReconcilesAcrossMixedPayload(t *testing.T) {
	payload := []byte(`{"data":[
		{"id":1,"tanggal":"2025-01-02","jenis":"a","nominal":"0.1","status":"approved"},
		{"id":2,"tanggal":"2025-01-02","jenis":"a","nominal":"0.2","status":"pending"},
		{"id":3,"tanggal":"2025-01-02","jenis":"a","nominal":"0.3","status":"rejected"},
		{"id":4,"tanggal":"2025-01-02","jenis":"a","nominal":"1234567.89","status":"unknown-thing"}
	]}`)
	res, err := fixedNormalizer().Normalize(payload, domain.VariantDokter)
	require.NoError(t, err)

	s := res.Summary
	sum := s.Approved.Add(s.Pending).Add(s.Rejected)
	assert.True(t, sum.Equal(s.Total), "%s != %s", sum, s.Total)
	assert.Equal(t, "1234568.49", s.Total.String())
}
