package agmarknet

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Filters narrows a fetch to a commodity, state, district, or market. Values
// are normalized to title case before being sent, matching the source API's
// expected casing ("tomato" would return nothing, "Tomato" matches).
type Filters struct {
	Commodity string
	State     string
	District  string
	Market    string
}

// TitleCase normalizes a filter value to the API's title-cased convention.
// A fresh caser per call: cases.Caser is stateful and fetches run concurrently.
func TitleCase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ToLower(s))
}

func (f Filters) normalized() Filters {
	return Filters{
		Commodity: TitleCase(f.Commodity),
		State:     TitleCase(f.State),
		District:  TitleCase(f.District),
		Market:    TitleCase(f.Market),
	}
}
