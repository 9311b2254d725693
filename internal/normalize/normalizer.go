// Package normalize converts heterogeneous Jaspel payloads into unified items and a summary.
//
// Payloads are decoded as a tagged union: each known shape is tried in a fixed priority
// order and the first structural match wins. Record level problems never fail the whole
// payload; they are reported as warnings and the record is skipped. Only a payload that is
// not valid JSON returns an error.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yakey01/dokterku-sub007/internal/core/domain"
)

// ErrMalformedPayload is returned when the payload is not valid JSON.
var ErrMalformedPayload = errors.New("malformed payload")

// Config holds the bounds used by the validity score.
type Config struct {
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
	MaxAge    time.Duration
	Now       func() time.Time
}

// DefaultConfig returns the default validity bounds.
func DefaultConfig() Config {
	return Config{
		MinAmount: decimal.Zero,
		MaxAmount: decimal.NewFromInt(100_000_000),
		MaxAge:    365 * 24 * time.Hour,
		Now:       time.Now,
	}
}

// Quality holds the four sub-scores, each in 0..100.
type Quality struct {
	Completeness float64 `json:"completeness"`
	Consistency  float64 `json:"consistency"`
	Validity     float64 `json:"validity"`
	Accuracy     float64 `json:"accuracy"`
}

// Score is the rounded mean of the sub-scores.
func (q Quality) Score() int {
	return int(math.Round((q.Completeness + q.Consistency + q.Validity + q.Accuracy) / 4))
}

// Result is the normalized form of one payload.
type Result struct {
	Shape        Shape                `json:"shape"`
	Variant      domain.Variant       `json:"variant"`
	Items        []domain.UnifiedItem `json:"items"`
	Summary      domain.Summary       `json:"summary"`
	QualityScore int                  `json:"quality_score"`
	Quality      Quality              `json:"quality"`
	Records      int                  `json:"records"`
	Skipped      int                  `json:"skipped"`
	Warnings     []string             `json:"warnings,omitempty"`

	// Errors lists payload level faults, such as a payload whose records were all rejected.
	Errors []string `json:"errors,omitempty"`
}

// Normalizer is stateless apart from its configuration and safe for concurrent use.
type Normalizer struct {
	cfg Config
}

// New creates a Normalizer. Zero fields of cfg fall back to DefaultConfig.
func New(cfg Config) *Normalizer {
	def := DefaultConfig()
	if cfg.MaxAmount.IsZero() {
		cfg.MaxAmount = def.MaxAmount
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = def.MaxAge
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	return &Normalizer{cfg: cfg}
}

// Normalize decodes payload and returns unified items, summary and quality report.
func (n *Normalizer) Normalize(payload []byte, variant domain.Variant) (*Result, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	res := &Result{Variant: variant, Items: []domain.UnifiedItem{}}

	shape, records := detect(root)
	res.Shape = shape
	if shape == ShapeUnknown {
		res.Warnings = append(res.Warnings, "payload does not match any known jaspel shape")
		res.Summary = domain.Summarize(nil)
		return res, nil
	}

	res.Records = len(records)
	sc := newScorer(n.cfg)
	seen := make(map[string]bool, len(records))

	for i, rec := range records {
		item, ok := n.decodeRecord(i, rec, variant, shape, sc, res)
		if !ok {
			res.Skipped++
			continue
		}
		if seen[item.ID] {
			res.Warnings = append(res.Warnings, fmt.Sprintf("record %d: duplicate id %s skipped", i, item.ID))
			res.Skipped++
			continue
		}
		seen[item.ID] = true
		res.Items = append(res.Items, item)
	}
	if res.Records > 0 && len(res.Items) == 0 {
		res.Errors = append(res.Errors, fmt.Sprintf("none of %d records could be normalized", res.Records))
	}

	res.Summary = domain.Summarize(res.Items)
	res.Quality = sc.quality()
	res.QualityScore = res.Quality.Score()
	return res, nil
}

// Normalize runs a default-configured Normalizer.
func Normalize(payload []byte, variant domain.Variant) (*Result, error) {
	return New(DefaultConfig()).Normalize(payload, variant)
}

func (n *Normalizer) decodeRecord(
	i int,
	rec rawRecord,
	variant domain.Variant,
	shape Shape,
	sc *scorer,
	res *Result,
) (domain.UnifiedItem, bool) {
	if rec.fields == nil {
		sc.completeness(0)
		res.Warnings = append(res.Warnings, fmt.Sprintf("record %d: not an object", i))
		return domain.UnifiedItem{}, false
	}

	idRaw, hasID := lookup(rec.fields, idKeys...)
	dateRaw, hasDate := lookup(rec.fields, dateKeys...)
	categoryRaw, hasCategory := lookup(rec.fields, categoryKeys...)
	amountRaw, hasAmount := lookup(rec.fields, amountKeys(variant)...)

	id := scalarString(idRaw)
	hasID = hasID && id != ""
	category := scalarString(categoryRaw)
	if category == "" && rec.categoryDefault != "" {
		category = rec.categoryDefault
	}
	hasCategory = category != ""
	hasDate = hasDate && scalarString(dateRaw) != ""

	present := 0
	var missing []string
	for _, f := range []struct {
		name string
		ok   bool
	}{{"id", hasID}, {"date", hasDate}, {"category", hasCategory}, {"amount", hasAmount}} {
		if f.ok {
			present++
		} else {
			missing = append(missing, f.name)
		}
	}
	sc.completeness(present)
	if len(missing) > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("record %d: missing required field(s) %v", i, missing))
		return domain.UnifiedItem{}, false
	}

	statusRaw, statusPresent := rec.status()
	sc.consistency(id, scalarString(dateRaw), amountRaw, statusRaw, statusPresent)

	date, err := parseDate(scalarString(dateRaw))
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("record %d (id=%s): invalid date %q", i, id, scalarString(dateRaw)))
		return domain.UnifiedItem{}, false
	}

	amount, err := parseAmount(amountRaw)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("record %d (id=%s): invalid amount: %v", i, id, err))
		return domain.UnifiedItem{}, false
	}
	if amount.IsNegative() {
		res.Warnings = append(res.Warnings, fmt.Sprintf("record %d (id=%s): negative amount %s", i, id, amount))
		return domain.UnifiedItem{}, false
	}

	status, recognized := rec.statusDefault, rec.statusDefault != ""
	if s, ok := statusRaw.(string); ok && s != "" {
		status, recognized = MapStatus(s)
		if !recognized {
			res.Warnings = append(res.Warnings, fmt.Sprintf("record %d (id=%s): unrecognized status %q, treated as pending", i, id, s))
		}
	} else if status == "" {
		status = domain.StatusPending
	}

	item := domain.UnifiedItem{
		ID:       id,
		Date:     date,
		Category: category,
		Amount:   amount,
		Status:   status,
		Source:   string(shape),
	}
	if v, ok := lookup(rec.fields, noteKeys...); ok {
		item.Note = scalarString(v)
	}
	if v, ok := lookup(rec.fields, descriptionKeys...); ok {
		item.Description = scalarString(v)
	}
	item.Validator, item.ValidatedAt = rec.validation()
	if item.Note == "" && rec.validationInfo != nil {
		if v, ok := lookup(rec.validationInfo, "notes", "catatan"); ok {
			item.Note = scalarString(v)
		}
	}

	sc.validity(date, amount)
	sc.accuracy(item.Description, recognized)

	return item, true
}
