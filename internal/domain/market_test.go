package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMarket(t *testing.T) {
	tests := []struct {
		name       string
		currencies Currencies
		symbol     string
		want       Market
		wantErr    bool
	}{
		{name: "eth btc", symbol: "ETH-BTC", want: Market{Base: "ETH", Quote: "BTC"}},
		{name: "numeric codes", symbol: "001-002", want: Market{Base: "001", Quote: "002"}},
		{name: "allow-listed", currencies: NewCurrencies("ETH", "BTC"), symbol: "BTC-ETH", want: Market{Base: "BTC", Quote: "ETH"}},
		{name: "not allow-listed", currencies: NewCurrencies("ETH", "BTC"), symbol: "ETH-USD", wantErr: true},
		{name: "no separator", symbol: "ETHBTC", wantErr: true},
		{name: "three parts", symbol: "ETH-BTC-USD", wantErr: true},
		{name: "empty base", symbol: "-BTC", wantErr: true},
		{name: "same currency", symbol: "BTC-BTC", wantErr: true},
		{name: "malformed", symbol: "ET$-BTC", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := tt.currencies.ParseMarket(tt.symbol)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidMarketOrCurrency)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m)
			assert.Equal(t, tt.symbol, m.String())
		})
	}
}

func TestOrderLocked(t *testing.T) {
	m := Market{Base: "ETH", Quote: "BTC"}

	bid := &Order{Side: Bid, Price: decimal.RequireFromString("0.5"), Volume: decimal.NewFromInt(3)}
	cur, amount := bid.Locked(m)
	assert.Equal(t, "BTC", cur)
	assert.True(t, amount.Equal(decimal.RequireFromString("1.5")))

	ask := &Order{Side: Ask, Price: decimal.NewFromInt(7), Volume: decimal.NewFromInt(3)}
	cur, amount = ask.Locked(m)
	assert.Equal(t, "ETH", cur)
	assert.True(t, amount.Equal(decimal.NewFromInt(3)))
}

func TestOrderValidate(t *testing.T) {
	ok := &Order{Side: Bid, Price: decimal.NewFromInt(1), Volume: decimal.NewFromInt(1)}
	require.NoError(t, ok.Validate())

	for _, o := range []*Order{
		{Side: "buy", Price: decimal.NewFromInt(1), Volume: decimal.NewFromInt(1)},
		{Side: Ask, Price: decimal.Zero, Volume: decimal.NewFromInt(1)},
		{Side: Ask, Price: decimal.NewFromInt(1), Volume: decimal.Zero},
		{Side: Bid, Price: decimal.NewFromInt(1), Volume: decimal.NewFromInt(-1)},
	} {
		assert.ErrorIs(t, o.Validate(), ErrInvalidOrder)
	}
}

func TestTradePriceImprovement(t *testing.T) {
	tr := Trade{Price: decimal.NewFromInt(2), Volume: decimal.RequireFromString("0.5"), BidPrice: decimal.NewFromInt(3)}
	assert.True(t, tr.PriceImprovement().Equal(decimal.RequireFromString("0.5")))

	tr.BidPrice = decimal.NewFromInt(2)
	assert.True(t, tr.PriceImprovement().IsZero())
}
