package normalize

import "github.com/yakey01/dokterku-sub007/internal/core/domain"

// Shape names a known payload layout.
type Shape string

const (
	// ShapeCategorized carries nested category arrays (jaga_quests, achievement_tindakan).
	ShapeCategorized Shape = "categorized"
	// ShapeValidated carries jaspel_items records with a validation sub-object.
	ShapeValidated Shape = "validated"
	// ShapeLegacy is a bare array or an object carrying a jaspel array.
	ShapeLegacy Shape = "legacy"
	// ShapeGeneric carries a data (or items) array.
	ShapeGeneric Shape = "generic"
	ShapeUnknown Shape = "unknown"
)

// decoder attempts one shape against a JSON object and returns its records on match.
type decoder struct {
	shape  Shape
	decode func(obj map[string]any) ([]rawRecord, bool)
}

// decoders in priority order.
var decoders = []decoder{
	{ShapeCategorized, decodeCategorized},
	{ShapeValidated, decodeValidated},
	{ShapeLegacy, decodeLegacyObject},
	{ShapeGeneric, decodeGeneric},
}

// detect finds the first shape matching root. An object carrying a data object
// (the usual {success, data, message} envelope) is inspected at both levels,
// the outer level first.
func detect(root any) (Shape, []rawRecord) {
	if arr, ok := root.([]any); ok {
		return ShapeLegacy, records(arr, "", "")
	}

	obj, ok := root.(map[string]any)
	if !ok {
		return ShapeUnknown, nil
	}

	levels := []map[string]any{obj}
	if inner, ok := obj["data"].(map[string]any); ok {
		levels = append(levels, inner)
	}

	for _, d := range decoders {
		for _, level := range levels {
			if recs, ok := d.decode(level); ok {
				return d.shape, recs
			}
		}
	}
	return ShapeUnknown, nil
}

func decodeCategorized(obj map[string]any) ([]rawRecord, bool) {
	jaga, hasJaga := obj["jaga_quests"].([]any)
	tindakan, hasTindakan := obj["achievement_tindakan"].([]any)
	if !hasJaga && !hasTindakan {
		return nil, false
	}
	recs := records(jaga, "jaga", domain.StatusApproved)
	recs = append(recs, records(tindakan, "tindakan", domain.StatusApproved)...)
	return recs, true
}

func decodeValidated(obj map[string]any) ([]rawRecord, bool) {
	items, ok := obj["jaspel_items"].([]any)
	if !ok {
		return nil, false
	}
	recs := records(items, "", "")
	for i := range recs {
		if recs[i].fields == nil {
			continue
		}
		if v, ok := recs[i].fields["validation"].(map[string]any); ok {
			recs[i].validationInfo = v
		}
	}
	return recs, true
}

func decodeLegacyObject(obj map[string]any) ([]rawRecord, bool) {
	arr, ok := obj["jaspel"].([]any)
	if !ok {
		return nil, false
	}
	return records(arr, "", ""), true
}

func decodeGeneric(obj map[string]any) ([]rawRecord, bool) {
	if arr, ok := obj["data"].([]any); ok {
		return records(arr, "", ""), true
	}
	if arr, ok := obj["items"].([]any); ok {
		return records(arr, "", ""), true
	}
	return nil, false
}
