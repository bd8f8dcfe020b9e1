package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

var errMissingAmount = errors.New("line item has no amount")

// LineItem is a product in the cart together with the requested amount.
type LineItem struct {
	Product
	Amount int
}

func (li LineItem) MarshalJSON() ([]byte, error) {
	out := li.Product.fields()
	out["amount"] = li.Amount
	return json.Marshal(out)
}

func (li *LineItem) UnmarshalJSON(data []byte) error {
	var p Product
	raw, err := p.decodeFields(data)
	if err != nil {
		return err
	}

	v, ok := raw["amount"]
	if !ok {
		return errMissingAmount
	}
	var amount int
	if err := json.Unmarshal(v, &amount); err != nil {
		return fmt.Errorf("field %q: %w", "amount", err)
	}
	delete(raw, "amount")

	p.Extra = nonEmpty(raw)
	*li = LineItem{Product: p, Amount: amount}
	return nil
}

func (li LineItem) Subtotal() float64 {
	return li.Price * float64(li.Amount)
}

// Cart is kept in insertion order and serialized as a JSON array.
type Cart []LineItem

// Find returns the index of the line with the given product id, or -1.
func (c Cart) Find(productID int) int {
	for i := range c {
		if c[i].ID == productID {
			return i
		}
	}
	return -1
}

func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	for i, item := range c {
		out[i] = LineItem{Product: item.Product.clone(), Amount: item.Amount}
	}
	return out
}

// Without returns a copy of the cart minus the line for productID.
func (c Cart) Without(productID int) Cart {
	out := make(Cart, 0, len(c))
	for _, item := range c {
		if item.ID != productID {
			out = append(out, item)
		}
	}
	return out
}

// TotalAmount is the number of units across all lines.
func (c Cart) TotalAmount() int {
	total := 0
	for _, item := range c {
		total += item.Amount
	}
	return total
}

func (c Cart) Total() float64 {
	var total float64
	for _, item := range c {
		total += item.Subtotal()
	}
	return total
}

// Validate checks that every amount is positive and no id repeats.
func (c Cart) Validate() error {
	seen := make(map[int]struct{}, len(c))
	for _, item := range c {
		if item.Amount < 1 {
			return fmt.Errorf("product %d: amount %d is not positive", item.ID, item.Amount)
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("product %d appears more than once", item.ID)
		}
		seen[item.ID] = struct{}{}
	}
	return nil
}

func (c Cart) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]LineItem(c))
}
