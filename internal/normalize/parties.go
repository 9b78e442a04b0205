package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Sentinels used when the portal omits a value.
const (
	NotAvailable      = "NOT AVAILABLE"
	CourtNotAvailable = "COURT NOT AVAILABLE"
	TypeNotAvailable  = "TYPE NOT AVAILABLE"
)

// Labels in priority order. The first label present in the text wins.
var (
	plaintiffLabels = []string{"demandante", "accionante", "ejecutante", "solicitante", "convocante"}
	defendantLabels = []string{"demandado", "accionado", "ejecutado", "convocado"}
)

// Matches "Label:" or "Labels:" at a word boundary. Accents are folded
// before matching so only ASCII forms are needed.
var labelPattern = regexp.MustCompile(`(?i)\b(demandantes?|accionantes?|ejecutantes?|solicitantes?|convocantes?|demandados?|accionados?|ejecutados?|convocados?)\s*:`)

var spaces = regexp.MustCompile(`\s+`)

// ParseParties extracts the plaintiff and defendant from the portal's
// "Demandante: X | Demandado: Y" text. A missing label yields NotAvailable.
func ParseParties(text string) (plaintiff, defendant string) {
	values := labelledValues(text)
	return pick(values, plaintiffLabels), pick(values, defendantLabels)
}

// labelledValues maps each singular label to the first value found for it.
// Labels are located in the accent-folded text; values keep their accents.
func labelledValues(text string) map[string]string {
	values := map[string]string{}
	folded := Fold(text)
	original := []rune(text)
	if utf8.RuneCountInString(folded) != len(original) {
		// decomposed input, rune positions differ
		original = []rune(folded)
	}

	locs := labelPattern.FindAllStringSubmatchIndex(folded, -1)
	for i, loc := range locs {
		label := strings.TrimSuffix(strings.ToLower(folded[loc[2]:loc[3]]), "s")

		start := utf8.RuneCountInString(folded[:loc[1]])
		end := len(original)
		if i+1 < len(locs) {
			end = utf8.RuneCountInString(folded[:locs[i+1][0]])
		}

		value := string(original[start:end])
		if cut := strings.Index(value, "|"); cut >= 0 {
			value = value[:cut]
		}
		value = cleanValue(value)

		if _, seen := values[label]; !seen && value != "" {
			values[label] = value
		}
	}
	return values
}

func pick(values map[string]string, labels []string) string {
	for _, label := range labels {
		if v, ok := values[label]; ok {
			return v
		}
	}
	return NotAvailable
}

func cleanValue(v string) string {
	v = spaces.ReplaceAllString(v, " ")
	return strings.Trim(v, " ,;-|")
}
