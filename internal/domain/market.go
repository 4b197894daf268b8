package domain

import (
	"fmt"
	"regexp"
	"strings"
)

const marketSeparator = "-"

var currencyCode = regexp.MustCompile(`^[A-Za-z0-9]{1,16}$`)

type Market struct {
	Base  string
	Quote string
}

func (m Market) String() string {
	return m.Base + marketSeparator + m.Quote
}

// Currencies restricts the accepted currency codes. A nil or empty set
// accepts every well-formed code.
type Currencies map[string]struct{}

func NewCurrencies(codes ...string) Currencies {
	c := make(Currencies, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code != "" {
			c[code] = struct{}{}
		}
	}
	return c
}

func (c Currencies) Validate(code string) error {
	if !currencyCode.MatchString(code) {
		return fmt.Errorf("%w: malformed currency %q", ErrInvalidMarketOrCurrency, code)
	}
	if len(c) == 0 {
		return nil
	}
	if _, ok := c[code]; !ok {
		return fmt.Errorf("%w: unsupported currency %q", ErrInvalidMarketOrCurrency, code)
	}
	return nil
}

// ParseMarket splits a "BASE-QUOTE" symbol and validates both codes.
func (c Currencies) ParseMarket(symbol string) (Market, error) {
	parts := strings.Split(symbol, marketSeparator)
	if len(parts) != 2 {
		return Market{}, fmt.Errorf("%w: market %q is not BASE-QUOTE", ErrInvalidMarketOrCurrency, symbol)
	}
	m := Market{Base: parts[0], Quote: parts[1]}
	if err := c.Validate(m.Base); err != nil {
		return Market{}, err
	}
	if err := c.Validate(m.Quote); err != nil {
		return Market{}, err
	}
	if m.Base == m.Quote {
		return Market{}, fmt.Errorf("%w: market %q trades a currency against itself", ErrInvalidMarketOrCurrency, symbol)
	}
	return m, nil
}
