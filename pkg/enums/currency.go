package enums

// Currency is a settlement currency PayWay accepts. KHR has no minor unit
// in practice but is still stored in cents like USD.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyKHR Currency = "KHR"
)

var currencies = []Currency{CurrencyUSD, CurrencyKHR}

func (c Currency) String() string { return string(c) }

func (c Currency) IsValid() bool { return member(c, currencies) }

func ParseCurrency(value string) (Currency, error) {
	return parse(value, currencies, "currency")
}
