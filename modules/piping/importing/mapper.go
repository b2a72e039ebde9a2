package importing

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// ImportKind selects the synonym table and identity fields.
type ImportKind string

const (
	KindComponent ImportKind = "component"
	KindWeld      ImportKind = "weld"
)

// Canonical field names. TagID is the component id for component imports and
// the weld id for weld imports.
const (
	FieldDrawing            = "drawing"
	FieldTagID              = "tagId"
	FieldCategory           = "category"
	FieldSize               = "size"
	FieldQuantity           = "quantity"
	FieldSpec               = "spec"
	FieldMaterial           = "material"
	FieldPressureRating     = "pressureRating"
	FieldDescription        = "description"
	FieldArea               = "area"
	FieldSystem             = "system"
	FieldTestPackage        = "testPackage"
	FieldInspectionRequired = "inspectionRequired"
	FieldInspectionDate     = "inspectionDate"
	FieldWeldType           = "weldType"
	FieldWelderID           = "welderId"
)

// ColumnMapping maps canonical field name -> source header. Each canonical
// field maps to at most one header; a header is claimable by only one field.
type ColumnMapping map[string]string

// Header returns the source header mapped to the field, or "".
func (m ColumnMapping) Header(field string) string {
	return m[field]
}

var commonSynonyms = map[string][]string{
	FieldDrawing:            {"drawing", "drawingno", "drawingnumber", "dwg", "dwgno", "iso", "isono", "isometric", "isodrawing"},
	FieldQuantity:           {"quantity", "qty", "count", "noreqd", "numreqd"},
	FieldSpec:               {"spec", "speccode", "pipespec", "specification"},
	FieldMaterial:           {"material", "matl", "materialgrade", "materialspec"},
	FieldPressureRating:     {"pressurerating", "pressure", "rating", "designpressure", "presspsi"},
	FieldDescription:        {"description", "desc", "shortdesc", "componentdescription", "remarks"},
	FieldArea:               {"area", "unitarea", "plantarea"},
	FieldSystem:             {"system", "subsystem", "systemcode"},
	FieldTestPackage:        {"testpackage", "testpkg", "testpack", "hydropackage"},
	FieldInspectionRequired: {"inspectionrequired", "inspreqd", "ndereqd", "requiresinspection", "qcrequired"},
	FieldInspectionDate:     {"inspectiondate", "inspdate", "ndedate", "qcdate"},
}

var componentSynonyms = map[string][]string{
	FieldTagID:    {"componentid", "component", "tag", "tagno", "tagnumber", "pieceno", "piecemark", "itemno", "partno"},
	FieldCategory: {"type", "componenttype", "category", "commodity", "commoditycode", "class"},
	FieldSize:     {"size", "nps", "dia", "diameter", "nominalsize", "pipesize"},
}

var weldSynonyms = map[string][]string{
	FieldTagID:    {"weldid", "weld", "weldno", "weldnumber", "jointno", "jointnumber"},
	FieldWeldType: {"weldtype", "jointtype", "weldcategory"},
	FieldWelderID: {"welderid", "welder", "welderno", "stencil"},
	FieldSize:     {"size", "nps", "dia", "diameter", "nominalsize", "pipesize"},
	FieldCategory: {"type", "category", "class"},
}

// fieldOrder fixes claim precedence so identity fields win contested headers.
var fieldOrder = []string{
	FieldDrawing, FieldTagID, FieldWeldType, FieldSize, FieldCategory,
	FieldQuantity, FieldSpec, FieldMaterial, FieldPressureRating,
	FieldWelderID, FieldDescription, FieldArea, FieldSystem,
	FieldTestPackage, FieldInspectionRequired, FieldInspectionDate,
}

// MapColumns infers the canonical-field -> header mapping for the given kind.
// Exact normalized matches win first; a fuzzy pass then claims what is left.
// Never fails: a field without a plausible header stays unmapped and is
// reported by validation, not here.
func MapColumns(headers []string, kind ImportKind) ColumnMapping {
	synonyms := synonymTable(kind)

	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalizeHeader(h)
	}

	mapping := make(ColumnMapping)
	claimed := make(map[int]bool, len(headers))

	// Exact pass.
	for _, field := range fieldOrder {
		syns, ok := synonyms[field]
		if !ok {
			continue
		}
		for i, norm := range normalized {
			if claimed[i] {
				continue
			}
			if containsString(syns, norm) {
				mapping[field] = headers[i]
				claimed[i] = true
				break
			}
		}
	}

	// Fuzzy pass for headers with decoration ("Component ID *", "Qty Req'd").
	for _, field := range fieldOrder {
		if _, done := mapping[field]; done {
			continue
		}
		syns, ok := synonyms[field]
		if !ok {
			continue
		}
		best, bestRank := -1, -1
		for i, norm := range normalized {
			if claimed[i] || norm == "" {
				continue
			}
			for _, syn := range syns {
				rank := fuzzy.RankMatchNormalizedFold(syn, norm)
				if rank < 0 {
					continue
				}
				// Lower rank is a closer match.
				if best == -1 || rank < bestRank {
					best, bestRank = i, rank
				}
			}
		}
		// Tolerate only small decorations; a rank beyond a few characters
		// of slack is a different column.
		if best >= 0 && bestRank <= 3 {
			mapping[field] = headers[best]
			claimed[best] = true
		}
	}

	return mapping
}

func synonymTable(kind ImportKind) map[string][]string {
	table := make(map[string][]string, len(commonSynonyms)+4)
	for field, syns := range commonSynonyms {
		table[field] = syns
	}
	var specific map[string][]string
	if kind == KindWeld {
		specific = weldSynonyms
	} else {
		specific = componentSynonyms
	}
	for field, syns := range specific {
		table[field] = syns
	}
	return table
}

func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
