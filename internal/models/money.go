package models

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	DefaultCurrency = "USD"

	amountScale     = 2
	amountIntDigits = 18
)

var maxAmount = decimal.New(1, amountIntDigits)

// CheckAmount rejects amounts the decimal(20,2) columns cannot hold exactly.
func CheckAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.New("amount must be greater than zero")
	}
	if !amount.Equal(amount.Round(amountScale)) {
		return errors.New("amount must have at most 2 decimal places")
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return errors.New("amount must have at most 18 integer digits")
	}
	return nil
}

// NormalizeCurrency upper-cases a currency code, defaulting to USD, and
// rejects anything but three ASCII letters.
func NormalizeCurrency(currency string) (string, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return DefaultCurrency, nil
	}
	if len(currency) != 3 {
		return "", errors.New("currency must be a 3-letter code")
	}
	for _, r := range currency {
		if r < 'A' || r > 'Z' {
			return "", errors.New("currency must be a 3-letter code")
		}
	}
	return currency, nil
}
