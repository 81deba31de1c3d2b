package invoice

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-desk/constants"
	"github.com/joseph-ayodele/invoice-desk/internal/formengine"
)

var tolerance = decimal.New(1, -2)

// Totals compares the sum of line item amounts with the declared invoice total.
type Totals struct {
	Lines       int             `json:"lines"`
	LineSum     decimal.Decimal `json:"line_sum"`
	Declared    decimal.Decimal `json:"declared"`
	HasDeclared bool            `json:"has_declared"`
	Matches     bool            `json:"matches"`
}

// Mismatch is true only when both sides are known and differ by more than a cent.
func (t Totals) Mismatch() bool {
	return t.HasDeclared && t.Lines > 0 && !t.Matches
}

func CheckTotals(record *formengine.Mapping) Totals {
	var t Totals
	if items := lineItems(record); items != nil {
		for _, item := range items.Items() {
			m, ok := item.(*formengine.Mapping)
			if !ok {
				continue
			}
			if amt, ok := firstAmount(m, constants.LineAmountKeys); ok {
				t.LineSum = t.LineSum.Add(amt)
				t.Lines++
			}
		}
	}

	t.Declared, t.HasDeclared = firstAmount(record, constants.InvoiceTotalKeys)
	if !t.HasDeclared {
		if v, ok := record.Get(constants.KeyInvoiceDetails); ok {
			if details, ok := v.(*formengine.Mapping); ok {
				t.Declared, t.HasDeclared = firstAmount(details, constants.InvoiceTotalKeys)
			}
		}
	}
	t.Matches = t.HasDeclared && t.LineSum.Sub(t.Declared).Abs().LessThanOrEqual(tolerance)
	return t
}

func lineItems(record *formengine.Mapping) *formengine.Sequence {
	for _, k := range constants.LineItemKeys {
		if v, ok := record.Get(k); ok {
			if seq, ok := v.(*formengine.Sequence); ok {
				return seq
			}
		}
	}
	return nil
}

func firstAmount(m *formengine.Mapping, keys []string) (decimal.Decimal, bool) {
	for _, k := range keys {
		text, ok := m.Text(k)
		if !ok {
			continue
		}
		if d, ok := ParseAmount(text); ok {
			return d, true
		}
	}
	return decimal.Zero, false
}

var amountCleaner = strings.NewReplacer(",", "", "₹", "", "$", "", "€", "", "INR", "", "Rs.", "", "Rs", "", " ", "")

// ParseAmount reads money text such as "₹ 1,180.50".
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = amountCleaner.Replace(strings.TrimSpace(s))
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
