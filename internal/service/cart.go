package service

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// CartDelimiter separates product ids in the string form of a cart
const CartDelimiter = ","

// Number holds a JSON scalar that may arrive either as a number or as a
// numeric string. Parsing is deferred so that bad values become validation
// errors instead of decode errors.
type Number struct {
	raw string
	set bool
}

// NewNumber wraps a textual value, e.g. a multipart form field
func NewNumber(s string) Number {
	return Number{raw: strings.TrimSpace(s), set: true}
}

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		*n = Number{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = NewNumber(s)
		return nil
	}
	*n = Number{raw: string(b), set: true}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.set {
		return []byte("null"), nil
	}
	return json.Marshal(n.raw)
}

// IsSet reports whether a value was supplied
func (n Number) IsSet() bool {
	return n.set && n.raw != ""
}

// PositiveInt64 parses the value as an integer greater than zero
func (n Number) PositiveInt64() (int64, bool) {
	if !n.IsSet() {
		return 0, false
	}
	v, err := strconv.ParseInt(n.raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// NonNegativeDecimal parses the value as a decimal >= 0
func (n Number) NonNegativeDecimal() (decimal.Decimal, bool) {
	if !n.IsSet() {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(n.raw)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// CartLine is one entry of the structured cart form
type CartLine struct {
	ProductID Number `json:"product_id"`
	Quantity  Number `json:"quantity"`

	malformed bool
}

// Line builds a structured cart entry
func Line(productID int64, quantity int) CartLine {
	return CartLine{
		ProductID: NewNumber(strconv.FormatInt(productID, 10)),
		Quantity:  NewNumber(strconv.Itoa(quantity)),
	}
}

type cartShape int

const (
	cartAbsent cartShape = iota
	cartList
	cartDelimited
	cartMalformed
)

// CartInput is the caller's cart before normalization: either a list of
// {product_id, quantity} entries or a delimited string of product ids where
// repetition encodes quantity.
type CartInput struct {
	shape     cartShape
	lines     []CartLine
	delimited string
	field     string
}

// ListCart builds a structured cart
func ListCart(lines ...CartLine) CartInput {
	if lines == nil {
		lines = []CartLine{}
	}
	return CartInput{shape: cartList, lines: lines}
}

// DelimitedCart builds a cart from a string such as "3,3,5"
func DelimitedCart(s string) CartInput {
	return CartInput{shape: cartDelimited, delimited: s}
}

// Named records the request field the cart came from, used in error reports
func (c CartInput) Named(field string) CartInput {
	c.field = field
	return c
}

// IsSet reports whether any cart shape was supplied, even an empty one
func (c CartInput) IsSet() bool {
	return c.shape != cartAbsent
}

func (c *CartInput) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*c = CartInput{}
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = DelimitedCart(s)
	case b[0] == '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		lines := make([]CartLine, len(raw))
		for i, r := range raw {
			if err := json.Unmarshal(r, &lines[i]); err != nil || bytes.TrimSpace(r)[0] != '{' {
				lines[i] = CartLine{malformed: true}
			}
		}
		*c = ListCart(lines...)
	default:
		*c = CartInput{shape: cartMalformed}
	}
	return nil
}

// Cart maps product id to the total quantity ordered
type Cart map[int64]int

// ProductIDs returns the cart's product ids in ascending order
func (c Cart) ProductIDs() []int64 {
	ids := make([]int64, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Units returns the total number of units in the cart
func (c Cart) Units() int {
	total := 0
	for _, q := range c {
		total += q
	}
	return total
}

// NormalizeCart merges a cart of either shape into product id -> quantity.
// Duplicate product ids are summed.
func NormalizeCart(in CartInput) (Cart, error) {
	field := in.field
	if field == "" {
		field = "cart"
	}

	switch in.shape {
	case cartList:
		return normalizeLines(field, in.lines)
	case cartDelimited:
		return normalizeDelimited(in.delimited)
	case cartMalformed:
		return nil, newPurchaseError(ErrInvalidCartEntry, field)
	default:
		return nil, newPurchaseError(ErrMissingCart)
	}
}

func normalizeLines(field string, lines []CartLine) (Cart, error) {
	if len(lines) == 0 {
		return nil, newPurchaseError(ErrMissingCart)
	}

	cart := make(Cart, len(lines))
	var invalid []string
	for i, line := range lines {
		productID, okID := line.ProductID.PositiveInt64()
		quantity, okQty := line.Quantity.PositiveInt64()
		if line.malformed || !okID || !okQty || int64(cart[productID])+quantity > maxLineQuantity {
			invalid = append(invalid, field+"["+strconv.Itoa(i)+"]")
			continue
		}
		cart[productID] += int(quantity)
	}

	if len(invalid) > 0 {
		return nil, newPurchaseError(ErrInvalidCartEntry, invalid...)
	}
	return cart, nil
}

func normalizeDelimited(s string) (Cart, error) {
	if strings.Trim(s, CartDelimiter+" \t\r\n") == "" {
		return nil, newPurchaseError(ErrMissingCart)
	}

	tokens := strings.Split(s, CartDelimiter)
	cart := make(Cart, len(tokens))
	var invalid []string
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		productID, err := strconv.ParseInt(token, 10, 64)
		if err != nil || productID <= 0 {
			invalid = append(invalid, strconv.Quote(token))
			continue
		}
		cart[productID]++
	}

	if len(invalid) > 0 {
		return nil, newPurchaseError(ErrInvalidCartEntry, invalid...)
	}
	return cart, nil
}

// quantities are stored in an INTEGER column
const maxLineQuantity = 1<<31 - 1
