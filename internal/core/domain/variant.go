package domain

import "fmt"

// Variant identifies which staff role a dashboard serves.
type Variant string

const (
	VariantDokter    Variant = "dokter"    // physicians
	VariantParamedis Variant = "paramedis" // allied health staff
)

// Variants lists every served variant in a stable order.
var Variants = []Variant{VariantDokter, VariantParamedis}

// ParseVariant validates a variant name.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(s); v {
	case VariantDokter, VariantParamedis:
		return v, nil
	default:
		return "", fmt.Errorf("unknown variant %q", s)
	}
}

func (v Variant) String() string {
	return string(v)
}
