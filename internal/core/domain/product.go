package domain

import (
	"encoding/json"
	"fmt"
)

// Product is a catalog record. Fields the cart does not know about are kept
// in Extra and written back unchanged.
type Product struct {
	ID    int
	Title string
	Price float64
	Image string
	Extra map[string]json.RawMessage
}

type Stock struct {
	ID     int `json:"id"`
	Amount int `json:"amount"`
}

func (p Product) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.fields())
}

func (p *Product) UnmarshalJSON(data []byte) error {
	raw, err := p.decodeFields(data)
	if err != nil {
		return err
	}
	p.Extra = nonEmpty(raw)
	return nil
}

func (p Product) fields() map[string]any {
	out := make(map[string]any, len(p.Extra)+4)
	for k, v := range p.Extra {
		out[k] = v
	}
	out["id"] = p.ID
	out["title"] = p.Title
	out["price"] = p.Price
	out["image"] = p.Image
	return out
}

// decodeFields fills the known fields and returns what is left over.
func (p *Product) decodeFields(data []byte) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	*p = Product{}
	known := []struct {
		key string
		dst any
	}{
		{"id", &p.ID},
		{"title", &p.Title},
		{"price", &p.Price},
		{"image", &p.Image},
	}
	for _, f := range known {
		v, ok := raw[f.key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			return nil, fmt.Errorf("field %q: %w", f.key, err)
		}
		delete(raw, f.key)
	}
	return raw, nil
}

func (p Product) clone() Product {
	if p.Extra == nil {
		return p
	}
	extra := make(map[string]json.RawMessage, len(p.Extra))
	for k, v := range p.Extra {
		extra[k] = v
	}
	p.Extra = extra
	return p
}

func nonEmpty(m map[string]json.RawMessage) map[string]json.RawMessage {
	if len(m) == 0 {
		return nil
	}
	return m
}
