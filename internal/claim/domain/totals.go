package domain

// SumTotals adds up the amount and tax that pick returns for each child.
func SumTotals[T any](children []T, pick func(*T) (amount, tax int64)) (int64, int64) {
	var amount, tax int64
	for i := range children {
		a, t := pick(&children[i])
		amount += a
		tax += t
	}
	return amount, tax
}

func chargeTotals(c *ChargeReference) (int64, int64) { return c.Amount, c.Tax }

func itemTotals(i *ClaimItem) (int64, int64) { return i.Total, i.Tax }

// RecalculateTotals rolls charge amounts up into items and items up into the claim.
func (c *Claim) RecalculateTotals() {
	for i := range c.Items {
		c.Items[i].Recalculate()
	}
	c.Amount, c.Tax = SumTotals(c.Items, itemTotals)
}

func (i *ClaimItem) Recalculate() {
	i.Total, i.Tax = SumTotals(i.Charges, chargeTotals)
}
