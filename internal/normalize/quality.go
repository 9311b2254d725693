package normalize

import (
	"encoding/json"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var (
	idPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
)

const (
	minDescriptionLen = 3
	maxDescriptionLen = 500
)

// check counts passed checks over total checks.
type check struct {
	passed, total int
}

func (c *check) add(ok bool) {
	c.total++
	if ok {
		c.passed++
	}
}

func (c check) percent() float64 {
	if c.total == 0 {
		return 100
	}
	return float64(c.passed) / float64(c.total) * 100
}

// scorer accumulates the four quality sub-scores while records are decoded.
type scorer struct {
	cfg Config
	now time.Time

	complete, consistent, valid, accurate check
}

func newScorer(cfg Config) *scorer {
	return &scorer{cfg: cfg, now: cfg.Now()}
}

func (s *scorer) completeness(present int) {
	s.complete.passed += present
	s.complete.total += 4
}

func (s *scorer) consistency(id, date string, amount, status any, statusPresent bool) {
	s.consistent.add(idPattern.MatchString(id))
	s.consistent.add(datePattern.MatchString(date))
	_, numeric := amount.(json.Number)
	s.consistent.add(numeric)
	_, isString := status.(string)
	s.consistent.add(!statusPresent || isString)
}

func (s *scorer) validity(date time.Time, amount decimal.Decimal) {
	today := time.Date(s.now.Year(), s.now.Month(), s.now.Day(), 0, 0, 0, 0, s.now.Location())
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, s.now.Location())
	s.valid.add(!day.After(today) && !day.Before(today.Add(-s.cfg.MaxAge)))
	s.valid.add(amount.GreaterThanOrEqual(s.cfg.MinAmount) && amount.LessThanOrEqual(s.cfg.MaxAmount))
}

func (s *scorer) accuracy(description string, statusRecognized bool) {
	n := utf8.RuneCountInString(description)
	s.accurate.add(description == "" || (n >= minDescriptionLen && n <= maxDescriptionLen))
	s.accurate.add(statusRecognized)
}

func (s *scorer) quality() Quality {
	return Quality{
		Completeness: s.complete.percent(),
		Consistency:  s.consistent.percent(),
		Validity:     s.valid.percent(),
		Accuracy:     s.accurate.percent(),
	}
}
