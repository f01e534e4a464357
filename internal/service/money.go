package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var rupeePrinter = message.NewPrinter(language.English)

// FormatRupees renders an amount the way prices are shown in the shop:
// "Rs 1,500" or "Rs 1,499.50".
func FormatRupees(d decimal.Decimal) string {
	d = d.Round(2)
	if d.Equal(d.Truncate(0)) {
		return rupeePrinter.Sprintf("Rs %d", d.IntPart())
	}
	f, _ := d.Float64()
	return rupeePrinter.Sprintf("Rs %.2f", f)
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not an amount", ErrInvalidInput, s)
	}
	return d, nil
}

// humanNumber builds PREFIX-YYMMDD-XXXXXX with six upper-case characters
// taken from a fresh UUID.
func humanNumber(prefix string, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("060102"), suffix)
}
