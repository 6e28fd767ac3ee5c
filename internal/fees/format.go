package fees

import (
	"fmt"

	"github.com/rpattn/clubhouse/internal/domain"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Formatter renders amounts for display in one locale.
type Formatter struct {
	printer *message.Printer
}

// NewFormatter returns a formatter for the BCP 47 tag, falling back to
// British English when the tag does not parse.
func NewFormatter(tag string) *Formatter {
	lang, err := language.Parse(tag)
	if err != nil {
		lang = language.BritishEnglish
	}
	return &Formatter{printer: message.NewPrinter(lang)}
}

// Format renders amount with the currency's symbol. Unknown currency codes
// fall back to "<code> <amount>".
func (f *Formatter) Format(amount domain.Amount, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return fmt.Sprintf("%s %s", code, amount.String())
	}
	return f.printer.Sprint(currency.Symbol(unit.Amount(amount.Float())))
}

// DisplayLine is one formatted row of a quote.
type DisplayLine struct {
	Frequency domain.Frequency `json:"frequency"`
	Required  string           `json:"required"`
	Optional  []string         `json:"optional,omitempty"`
}

// Display formats every frequency group of quote in a stable order.
func (f *Formatter) Display(quote domain.FeeQuote) []DisplayLine {
	lines := make([]DisplayLine, 0, len(quote.PerFrequency))
	for _, freq := range quote.Frequencies() {
		group := quote.PerFrequency[freq]
		line := DisplayLine{Frequency: freq, Required: f.Format(group.Required, quote.Currency)}
		for _, opt := range group.Optional {
			line.Optional = append(line.Optional, fmt.Sprintf("%s (optional): %s", opt.Name, f.Format(opt.Amount, quote.Currency)))
		}
		lines = append(lines, line)
	}
	return lines
}
