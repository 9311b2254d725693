package cache

import "github.com/yakey01/dokterku-sub007/internal/core/domain"

// VariantTag tags entries belonging to a variant.
func VariantTag(v domain.Variant) string { return "variant:" + string(v) }

// PeriodTag tags entries belonging to a reporting period.
func PeriodTag(period string) string { return "period:" + period }

// UserTag tags entries belonging to a user.
func UserTag(userID string) string { return "user:" + userID }

// Key builds the cache key variant:period[:user].
func Key(v domain.Variant, period, userID string) string {
	k := string(v) + ":" + period
	if userID != "" {
		k += ":" + userID
	}
	return k
}

// Tags returns the standard tag set of an entry stored in namespace.
func Tags(namespace string, v domain.Variant, period, userID string) []string {
	tags := []string{VariantTag(v), PeriodTag(period), namespace}
	if userID != "" {
		tags = append(tags, UserTag(userID))
	}
	return tags
}
