package settlement

import "errors"

var (
	ErrNoItems         = errors.New("settlement: at least one line item is required")
	ErrInvalidQuantity = errors.New("settlement: quantity must be greater than zero")
	ErrInvalidAccount  = errors.New("settlement: account id is required")
)

// Item is a single priced order line. UnitPrice is in cents and is only
// trustworthy after the catalog has replenished it.
type Item struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// Settlement is the priced line-item bundle a payment is created from.
// Item order is preserved.
type Settlement struct {
	AccountID int64  `json:"account_id"`
	Items     []Item `json:"items"`
}

func New(accountID int64, items []Item) (*Settlement, error) {
	if accountID <= 0 {
		return nil, ErrInvalidAccount
	}
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
	}
	return &Settlement{
		AccountID: accountID,
		Items:     append([]Item(nil), items...),
	}, nil
}

// TotalAmount derives the payable total from the line items. Callers must not
// trust any total supplied alongside the settlement.
func (s *Settlement) TotalAmount() int64 {
	var total int64
	for _, it := range s.Items {
		total += it.UnitPrice * int64(it.Quantity)
	}
	return total
}

func (s *Settlement) Clone() *Settlement {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Items = append([]Item(nil), s.Items...)
	return &clone
}
