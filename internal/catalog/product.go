package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ID identifies a product. New ids are UUID strings; integer ids written by
// older deployments keep their numeric JSON form.
type ID struct {
	value   string
	numeric bool
}

func StringID(s string) ID { return ID{value: s} }

func IntID(n int64) ID { return ID{value: strconv.FormatInt(n, 10), numeric: true} }

func (id ID) String() string { return id.value }
func (id ID) IsZero() bool   { return id.value == "" }

func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ID{}
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID{value: s}
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return errors.New("id must be a string or a number")
		}
		*id = ID{value: n.String(), numeric: true}
	}
	return nil
}

// Price holds the JSON literal as persisted so that a number stays a number
// and a numeric string stays a string across load and save.
type Price struct {
	raw    string
	quoted bool
}

func NewPrice(d decimal.Decimal) Price { return Price{raw: d.String()} }

// ParsePrice accepts the textual form used by form posts.
func ParsePrice(s string) Price {
	s = strings.TrimSpace(s)
	if s == "" {
		return Price{}
	}
	return Price{raw: s, quoted: true}
}

func (p Price) IsZero() bool { return p.raw == "" }

func (p Price) Decimal() (decimal.Decimal, error) {
	if p.IsZero() {
		return decimal.Zero, errors.New("price is empty")
	}
	return decimal.NewFromString(strings.TrimSpace(p.raw))
}

func (p Price) String() string { return p.raw }

// normalized returns the price as a JSON number. The caller must have
// validated it.
func (p Price) normalized() Price {
	d, err := p.Decimal()
	if err != nil {
		return p
	}
	return NewPrice(d)
}

func (p Price) validate() error {
	d, err := p.Decimal()
	if err != nil {
		return err
	}
	if d.IsNegative() {
		return errors.New("price is negative")
	}
	return nil
}

func (p Price) MarshalJSON() ([]byte, error) {
	if p.IsZero() {
		return []byte("null"), nil
	}
	if p.quoted {
		return json.Marshal(p.raw)
	}
	return []byte(p.raw), nil
}

func (p *Price) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*p = Price{}
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = Price{raw: s, quoted: true}
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return errors.New("price must be a number or a numeric string")
		}
		*p = Price{raw: n.String()}
	}
	return nil
}

type Product struct {
	ID          ID      `json:"id"`
	Name        string  `json:"name"`
	Price       Price   `json:"price"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Image       *string `json:"image"`

	// Extra holds keys this service does not know. They are written back
	// after the known fields, sorted by name.
	Extra map[string]json.RawMessage `json:"-"`
}

type productFields Product

var productKeys = []string{"id", "name", "price", "description", "category", "image"}

func (p Product) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(productFields(p)); err != nil {
		return nil, err
	}
	out := bytes.TrimRight(buf.Bytes(), "\n")
	if len(p.Extra) == 0 {
		return out, nil
	}

	keys := make([]string, 0, len(p.Extra))
	for k := range p.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out = out[:len(out)-1]
	for _, k := range keys {
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		out = append(out, ',')
		out = append(out, name...)
		out = append(out, ':')
		out = append(out, p.Extra[k]...)
	}
	return append(out, '}'), nil
}

func (p *Product) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}

	var f productFields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	// Known fields match case-insensitively on decode, so their variants are
	// not extras.
	for k := range all {
		for _, known := range productKeys {
			if strings.EqualFold(k, known) {
				delete(all, k)
				break
			}
		}
	}

	f.Extra = nil
	if len(all) > 0 {
		f.Extra = all
	}
	*p = Product(f)
	return nil
}

// Input carries the client-supplied fields of a create or update request.
type Input struct {
	Name        string `json:"name"`
	Price       Price  `json:"price"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

func (in Input) trimmed() Input {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	return in
}

func indexOf(products []Product, id string) int {
	for i := range products {
		if products[i].ID.String() == id {
			return i
		}
	}
	return -1
}
