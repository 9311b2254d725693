package normalize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yakey01/dokterku-sub007/internal/core/domain"
)

var (
	idKeys          = []string{"id", "jaspel_id", "uuid"}
	dateKeys        = []string{"tanggal", "date", "tanggal_tindakan", "tanggal_jaga"}
	categoryKeys    = []string{"jenis_jaspel", "category", "jenis", "kategori", "jenis_tindakan"}
	noteKeys        = []string{"keterangan", "note", "catatan"}
	descriptionKeys = []string{"description", "deskripsi", "keterangan"}
	statusKeys      = []string{"status_validasi", "status"}
	validatorKeys   = []string{"validated_by", "validator", "validasi_oleh"}
	validatedAtKeys = []string{"validated_at", "tanggal_validasi"}
)

// amountKeys puts the variant specific share first.
func amountKeys(v domain.Variant) []string {
	base := []string{"nominal", "amount", "jumlah", "total"}
	switch v {
	case domain.VariantDokter:
		return append([]string{"jasa_dokter"}, base...)
	case domain.VariantParamedis:
		return append([]string{"jasa_paramedis"}, base...)
	}
	return base
}

// rawRecord is one undecoded record plus the defaults its shape implies.
type rawRecord struct {
	fields          map[string]any
	validationInfo  map[string]any
	categoryDefault string
	statusDefault   domain.Status
}

func records(arr []any, categoryDefault string, statusDefault domain.Status) []rawRecord {
	out := make([]rawRecord, 0, len(arr))
	for _, v := range arr {
		m, _ := v.(map[string]any)
		out = append(out, rawRecord{
			fields:          m,
			categoryDefault: categoryDefault,
			statusDefault:   statusDefault,
		})
	}
	return out
}

// status returns the raw status value, preferring the validation sub-object.
func (r rawRecord) status() (any, bool) {
	if r.validationInfo != nil {
		if v, ok := lookup(r.validationInfo, "status"); ok {
			return v, true
		}
	}
	return lookup(r.fields, statusKeys...)
}

func (r rawRecord) validation() (string, *time.Time) {
	var validator string
	var at *time.Time
	for _, src := range []map[string]any{r.validationInfo, r.fields} {
		if src == nil {
			continue
		}
		if validator == "" {
			if v, ok := lookup(src, validatorKeys...); ok {
				validator = scalarString(v)
			}
		}
		if at == nil {
			if v, ok := lookup(src, validatedAtKeys...); ok {
				if t, err := parseDate(scalarString(v)); err == nil {
					at = &t
				}
			}
		}
	}
	return validator, at
}

// lookup returns the first non-null value among keys.
func lookup(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	time.DateTime,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000000Z",
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date %q", s)
}

var idrGrouping = regexp.MustCompile(`^\d{1,3}(\.\d{3})+(,\d+)?$`)

// parseAmount accepts JSON numbers and numeric strings, including Rupiah formatting
// such as "Rp 150.000" or "150.000,50".
func parseAmount(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case json.Number:
		return decimal.NewFromString(t.String())
	case string:
		s := strings.TrimSpace(t)
		s = strings.TrimPrefix(strings.TrimPrefix(s, "Rp"), "IDR")
		s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
		if idrGrouping.MatchString(s) {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
		if s == "" {
			return decimal.Zero, fmt.Errorf("empty amount")
		}
		return decimal.NewFromString(s)
	default:
		return decimal.Zero, fmt.Errorf("unsupported amount type %T", v)
	}
}
