package normalize

import (
	"regexp"
	"strings"
)

type ActivityType string

const (
	ActivityHearing      ActivityType = "hearing"
	ActivityResolution   ActivityType = "resolution"
	ActivityNotification ActivityType = "notification"
	ActivityDocument     ActivityType = "document"
	ActivityAppeal       ActivityType = "appeal"
	ActivityOther        ActivityType = "other"
)

// keyword is either a whole word or a stem matched at the start of a word.
type keyword struct {
	text   string
	prefix bool
}

// Checked in order; the first type with a matching keyword wins.
var activityKeywords = []struct {
	kind     ActivityType
	keywords []keyword
}{
	{ActivityHearing, []keyword{{"audiencia", true}, {"diligencia", true}, {"hearing", true}}},
	{ActivityResolution, []keyword{{"auto", false}, {"autos", false}, {"sentencia", true}, {"providencia", true}, {"fallo", false}, {"resolucion", true}, {"resuelve", false}, {"resolution", true}, {"ruling", true}}},
	{ActivityNotification, []keyword{{"notifica", true}, {"edicto", true}, {"emplazamiento", true}, {"citacion", true}, {"notification", true}}},
	{ActivityDocument, []keyword{{"documento", true}, {"memorial", true}, {"oficio", true}, {"escrito", true}, {"document", true}}},
	{ActivityAppeal, []keyword{{"apelacion", true}, {"apela", true}, {"recurso", true}, {"impugna", true}, {"appeal", true}}},
}

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

// ClassifyActivity maps the portal's free-text activity name to a closed set
// of types. Matching ignores case and accents; unmatched text is Other.
func ClassifyActivity(text string) ActivityType {
	words := strings.Fields(nonWord.ReplaceAllString(key(text), " "))
	if len(words) == 0 {
		return ActivityOther
	}

	for _, group := range activityKeywords {
		for _, kw := range group.keywords {
			for _, w := range words {
				if w == kw.text || (kw.prefix && strings.HasPrefix(w, kw.text)) {
					return group.kind
				}
			}
		}
	}
	return ActivityOther
}
