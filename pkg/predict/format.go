package predict

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	supportedLocales = []language.Tag{
		language.AmericanEnglish, // first entry is the fallback
		language.BritishEnglish,
		language.German,
		language.French,
	}
	dateTimeLayouts = []string{
		"1/2/2006, 3:04:05 PM",
		"02/01/2006, 15:04:05",
		"2.1.2006, 15:04:05",
		"02/01/2006 15:04:05",
	}
	localeMatcher = language.NewMatcher(supportedLocales)
)

// Formatter renders derived values for display in a given locale.
type Formatter struct {
	tag     language.Tag
	layout  string
	printer *message.Printer
	loc     *time.Location
}

// NewFormatter creates a formatter for a BCP 47 locale like "en-US" or "de".
// Unknown or empty locales use American English.
func NewFormatter(locale string, opts ...FormatterOption) *Formatter {
	tag, idx := language.AmericanEnglish, 0
	if locale != "" {
		if parsed, err := language.Parse(locale); err == nil {
			_, idx, _ = localeMatcher.Match(parsed)
			tag = supportedLocales[idx]
		}
	}
	ret := &Formatter{
		tag:     tag,
		layout:  dateTimeLayouts[idx],
		printer: message.NewPrinter(tag),
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

type FormatterOption func(*Formatter)

func WithLocation(loc *time.Location) FormatterOption {
	return func(f *Formatter) {
		f.loc = loc
	}
}

func (f *Formatter) Locale() string {
	return f.tag.String()
}

func (f *Formatter) DateTime(t time.Time) string {
	return t.In(f.loc).Format(f.layout)
}

// Percent formats v (already in percent) with one decimal place.
func (f *Formatter) Percent(v float64) string {
	return f.printer.Sprintf("%.1f%%", v)
}
