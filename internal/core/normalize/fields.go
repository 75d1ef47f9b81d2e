// Package normalize turns loosely-typed rows from external payment feeds into
// canonical values. Nothing in here panics or returns an error on bad input:
// lookups report "not found" and coercions fall back to a documented default
// while counting a warning.
package normalize

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Field is a canonical payment-record field name.
type Field string

const (
	FieldID               Field = "id"
	FieldReference        Field = "reference"
	FieldAmount           Field = "amount"
	FieldInstrument       Field = "instrument"
	FieldStatus           Field = "status"
	FieldPaymentDate      Field = "payment_date"
	FieldCreatedAt        Field = "created_at"
	FieldRepresentativeID Field = "representative_id"
	FieldEnrollmentCode   Field = "enrollment_code"
	FieldLevel            Field = "level"
	FieldNotes            Field = "notes"
	FieldType             Field = "type"
)

// Synonyms is the normalization table: every key spelling accepted for a
// canonical field, in priority order. Entries are compared after Fold, so
// case, accents and whitespace don't matter here.
var Synonyms = map[Field][]string{
	FieldID:               {"id", "id pago", "payment id", "codigo pago"},
	FieldReference:        {"referencia", "reference", "ref", "nro referencia", "numero referencia", "numero de referencia"},
	FieldAmount:           {"monto", "amount", "importe", "monto pagado", "total"},
	FieldInstrument:       {"metodo", "metodo pago", "metodo de pago", "forma de pago", "method", "instrumento"},
	FieldStatus:           {"estado", "estatus", "status"},
	FieldPaymentDate:      {"fecha pago", "fecha de pago", "fecha", "payment date", "date"},
	FieldCreatedAt:        {"marca temporal", "timestamp", "fecha registro", "created at"},
	FieldRepresentativeID: {"cedula", "cedula representante", "ci", "id representante", "representative id"},
	FieldEnrollmentCode:   {"matricula", "codigo matricula", "codigo", "enrollment code"},
	FieldLevel:            {"nivel", "level", "grado"},
	FieldNotes:            {"observaciones", "notas", "notes", "comentario", "comentarios"},
	FieldType:             {"tipo", "tipo pago", "tipo de pago", "modalidad", "type"},
}

// Fold lowercases s, strips accents and drops whitespace, underscores and
// dashes, so "Método de Pago" and "metodo_de_pago" fold to the same key.
func Fold(s string) string {
	// transformers are stateful, so build one per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		if unicode.IsSpace(r) || r == '_' || r == '-' {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Lookup finds the value of a canonical field in record. The second result is
// false when no key matches or the matching value is nil.
func Lookup(record map[string]any, field Field) (any, bool) {
	if len(record) == 0 {
		return nil, false
	}

	keys := make([]string, 0, len(record))
	for key := range record {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	// colliding spellings resolve in key order
	folded := make(map[string]string, len(keys))
	for _, key := range keys {
		f := Fold(key)
		if _, dup := folded[f]; !dup {
			folded[f] = key
		}
	}

	names := Synonyms[field]
	if len(names) == 0 {
		names = []string{string(field)}
	}
	for _, name := range names {
		key, ok := folded[Fold(name)]
		if !ok {
			continue
		}
		if v := record[key]; v != nil {
			return v, true
		}
	}
	return nil, false
}
