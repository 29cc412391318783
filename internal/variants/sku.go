package variants

import (
	"strings"
)

// Option names that drive SKU derivation.
const (
	OptionColor   = "Color"
	OptionStorage = "Storage"
)

const colorCodeLength = 3

// DeriveSKU builds {productSKU}-{COLOR CODE}-{storage without "GB"}, e.g.
// ("PROD", "Space Gray", "256GB") -> "PROD-SPA-256". It reports false when
// color or storage is missing, in which case no SKU is derived.
func DeriveSKU(productSKU, color, storage string) (string, bool) {
	color = strings.TrimSpace(color)
	storage = strings.TrimSpace(storage)
	if color == "" || storage == "" {
		return "", false
	}

	code := []rune(color)
	if len(code) > colorCodeLength {
		code = code[:colorCodeLength]
	}
	capacity := strings.TrimSpace(strings.ReplaceAll(storage, "GB", ""))
	if capacity == "" {
		return "", false
	}

	return strings.TrimSpace(productSKU) + "-" + strings.ToUpper(string(code)) + "-" + capacity, true
}
