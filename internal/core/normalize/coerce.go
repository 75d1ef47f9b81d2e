package normalize

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/ojedapedro/colegiopay/internal/core/domain"
)

// WarningKind names a class of bad external data.
type WarningKind string

const (
	WarnAmount     WarningKind = "amount"
	WarnInstrument WarningKind = "instrument"
	WarnStatus     WarningKind = "status"
	WarnDate       WarningKind = "date"
	WarnLevel      WarningKind = "level"
)

// Normalizer coerces raw values and keeps a tally of every fallback it had
// to take. It is safe for concurrent use.
type Normalizer struct {
	fallback domain.Instrument
	logger   *slog.Logger

	mu       sync.Mutex
	warnings map[WarningKind]int64
}

// New builds a Normalizer. Unrecognized instrument text maps to fallback.
func New(fallback domain.Instrument, logger *slog.Logger) *Normalizer {
	if !fallback.Valid() {
		fallback = domain.Transfer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		fallback: fallback,
		logger:   logger,
		warnings: make(map[WarningKind]int64),
	}
}

// Warnings returns a copy of the per-kind warning counters.
func (n *Normalizer) Warnings() map[WarningKind]int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[WarningKind]int64, len(n.warnings))
	for k, v := range n.warnings {
		out[k] = v
	}
	return out
}

// Warn counts a data-quality problem found by a caller after coercion.
func (n *Normalizer) Warn(kind WarningKind, raw any, fallback string) {
	n.warn(kind, raw, fallback)
}

func (n *Normalizer) warn(kind WarningKind, raw any, fallback string) {
	n.mu.Lock()
	n.warnings[kind]++
	n.mu.Unlock()
	n.logger.Warn("normalize: unrecognized value, using fallback",
		"kind", kind,
		"raw", fmt.Sprint(raw),
		"fallback", fallback,
	)
}

// ToText renders a raw value as trimmed text. Whole numbers print without a
// decimal part so numeric references survive JSON decoding.
func ToText(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// ToAmount parses a monetary value, accepting comma as the decimal separator
// ("25,50", "1.234,56") as well as dot notation ("1,234.56"). Unparseable
// input yields zero and a warning.
func (n *Normalizer) ToAmount(raw any) decimal.Decimal {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v.Round(domain.AmountPlaces)
	case float64:
		return decimal.NewFromFloat(v).Round(domain.AmountPlaces)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case json.Number:
		// JSON numbers are always dot-decimal
		if d, err := decimal.NewFromString(v.String()); err == nil {
			return d.Round(domain.AmountPlaces)
		}
	case string:
		if d, ok := parseLocaleAmount(v); ok {
			return d
		}
	}
	n.warn(WarnAmount, raw, "0")
	return decimal.Zero
}

func parseLocaleAmount(s string) (decimal.Decimal, bool) {
	// cut currency symbols and labels around the number: "Bs. 25,50", "$ 10"
	start := strings.IndexFunc(s, unicode.IsDigit)
	end := strings.LastIndexFunc(s, unicode.IsDigit)
	if start < 0 {
		return decimal.Zero, false
	}
	negative := start > 0 && s[start-1] == '-'
	body := s[start : end+1]

	var b strings.Builder
	for _, r := range body {
		switch {
		case unicode.IsDigit(r), r == '.', r == ',':
			b.WriteRune(r)
		case unicode.IsSpace(r):
		default:
			return decimal.Zero, false
		}
	}
	num := b.String()

	dots := strings.Count(num, ".")
	commas := strings.Count(num, ",")
	switch {
	case dots > 0 && commas > 0:
		// the separator that comes last is the decimal one
		if strings.LastIndex(num, ",") > strings.LastIndex(num, ".") {
			num = strings.ReplaceAll(num, ".", "")
			num = strings.Replace(num, ",", ".", 1)
		} else {
			num = strings.ReplaceAll(num, ",", "")
		}
	case commas == 1:
		num = strings.Replace(num, ",", ".", 1)
	case commas > 1:
		num = strings.ReplaceAll(num, ",", "")
	case dots > 1:
		num = strings.ReplaceAll(num, ".", "")
	case dots == 1 && len(num)-strings.Index(num, ".") == 4:
		// "1.500" is fifteen hundred in the comma-decimal feed
		num = strings.Replace(num, ".", "", 1)
	}
	if strings.Count(num, ".") > 1 {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d.Round(domain.AmountPlaces), true
}

// Status synonyms, matched as substrings of the folded text. Pending phrases
// are checked first, then any verified or rejected stem preceded by a
// negation ("no confirmado", "sin aprobar", "por rechazar") is pending too.
var (
	pendingWords  = []string{"pendiente", "pending", "enrevision", "enproceso"}
	negations     = []string{"no", "sin", "por", "falta", "not", "un"}
	rejectedWords = []string{"rechaz", "reject", "anulad", "deneg", "declin", "invalid"}
	verifiedWords = []string{"verific", "aprob", "approv", "confirm", "conciliad", "acreditad"}
)

// ToStatus classifies free-text status values. Anything unrecognized is
// Pending; non-empty unrecognized text also counts a warning.
func (n *Normalizer) ToStatus(raw any) domain.PaymentStatus {
	text := Fold(ToText(raw))
	if text == "" {
		return domain.StatusPending
	}
	switch {
	case containsAny(text, pendingWords),
		negated(text, verifiedWords),
		negated(text, rejectedWords):
		return domain.StatusPending
	case containsAny(text, rejectedWords):
		return domain.StatusRejected
	case containsAny(text, verifiedWords):
		return domain.StatusVerified
	}
	n.warn(WarnStatus, raw, string(domain.StatusPending))
	return domain.StatusPending
}

// Instrument synonyms in match order.
var instrumentWords = []struct {
	instrument domain.Instrument
	words      []string
}{
	{domain.Zelle, []string{"zelle"}},
	{domain.PagoMovil, []string{"movil", "mobile"}},
	{domain.Transfer, []string{"transfer", "deposito", "wire"}},
	{domain.PointOfSale, []string{"puntodeventa", "punto", "pointofsale", "tarjeta", "debito", "card"}},
	{domain.Cash, []string{"efectivo", "cash", "divisa"}},
}

// ToMethod classifies a free-text payment instrument ("Pago Móvil",
// "TRANSFERENCIA BANESCO"). Unrecognized text maps to the configured fallback.
func (n *Normalizer) ToMethod(raw any) domain.Instrument {
	text := Fold(ToText(raw))
	if text != "" {
		for _, entry := range instrumentWords {
			if containsAny(text, entry.words) {
				return entry.instrument
			}
		}
	}
	n.warn(WarnInstrument, raw, string(n.fallback))
	return n.fallback
}

var levelWords = []struct {
	level domain.Level
	words []string
}{
	{domain.Preschool, []string{"preescolar", "preschool", "kinder"}},
	{domain.Nursery, []string{"maternal", "nursery", "guarderia"}},
	{domain.Primary, []string{"primaria", "primary", "basica"}},
	{domain.Secondary, []string{"secundaria", "secondary", "bachillerato", "liceo", "media"}},
}

// ToLevel classifies an enrollment level. Unknown text yields "" and a warning.
func (n *Normalizer) ToLevel(raw any) domain.Level {
	text := Fold(ToText(raw))
	if text == "" {
		return ""
	}
	for _, entry := range levelWords {
		if containsAny(text, entry.words) {
			return entry.level
		}
	}
	n.warn(WarnLevel, raw, "")
	return ""
}

// ToType classifies a payment type; "" means the caller decides.
func ToType(raw any) domain.PaymentType {
	text := Fold(ToText(raw))
	switch {
	case text == "":
		return ""
	case containsAny(text, []string{"parcial", "partial", "abono"}):
		return domain.TypePartial
	case containsAny(text, []string{"total", "full", "complet", "liquid"}):
		return domain.TypeFull
	}
	return ""
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"2/1/2006 15:04:05",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
}

// ToDate parses the date formats the virtual office is known to send
// (ISO and day-first). Missing values return fallback silently, unparseable
// ones return fallback with a warning.
func (n *Normalizer) ToDate(raw any, fallback time.Time) time.Time {
	if t, ok := raw.(time.Time); ok {
		return t
	}
	text := ToText(raw)
	if text == "" {
		return fallback
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, text, time.Local); err == nil {
			return t
		}
	}
	n.warn(WarnDate, raw, fallback.Format(time.RFC3339))
	return fallback
}

// ToIdentifier canonicalizes a national ID: nationality prefix letters and
// punctuation are dropped, so "V-12345678", "v12345678" and "12.345.678"
// all become "12345678".
func ToIdentifier(raw any) string {
	text := strings.ToUpper(ToText(raw))

	var b strings.Builder
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	id := b.String()

	if len(id) > 1 && strings.ContainsRune("VEJGP", rune(id[0])) && isDigits(id[1:]) {
		id = id[1:]
	}
	return id
}

// SameIdentifier compares two national IDs after canonicalization.
func SameIdentifier(a, b string) bool {
	ca := ToIdentifier(a)
	return ca != "" && ca == ToIdentifier(b)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// negated reports whether some stem in words occurs right after a negation.
func negated(text string, words []string) bool {
	for _, w := range words {
		for from := 0; ; {
			i := strings.Index(text[from:], w)
			if i < 0 {
				break
			}
			i += from
			for _, neg := range negations {
				if strings.HasSuffix(text[:i], neg) {
					return true
				}
			}
			from = i + len(w)
		}
	}
	return false
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
