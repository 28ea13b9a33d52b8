package service

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDelimitedCart(t *testing.T) {
	for _, s := range []string{"3,5,3", "5,3,3", " 3 , 5,3 "} {
		cart, err := NormalizeCart(DelimitedCart(s))
		require.NoError(t, err, s)
		assert.Equal(t, Cart{3: 2, 5: 1}, cart, s)
	}
}

func TestNormalizeListCartMatchesDelimited(t *testing.T) {
	list, err := NormalizeCart(ListCart(Line(3, 1), Line(5, 1), Line(3, 1)))
	require.NoError(t, err)

	delimited, err := NormalizeCart(DelimitedCart("3,5,3"))
	require.NoError(t, err)

	assert.Equal(t, delimited, list)
}

func TestNormalizeListCartSumsQuantities(t *testing.T) {
	cart, err := NormalizeCart(ListCart(Line(7, 2), Line(2, 1), Line(7, 3)))
	require.NoError(t, err)
	assert.Equal(t, Cart{2: 1, 7: 5}, cart)
	assert.Equal(t, []int64{2, 7}, cart.ProductIDs())
	assert.Equal(t, 6, cart.Units())
}

func TestNormalizeCartInvalidToken(t *testing.T) {
	_, err := NormalizeCart(DelimitedCart("3,x,5"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCartEntry))

	var perr *PurchaseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, []string{`"x"`}, perr.Fields)
}

func TestNormalizeCartEmptyTokenInsideList(t *testing.T) {
	_, err := NormalizeCart(DelimitedCart("3,,5"))
	assert.True(t, errors.Is(err, ErrInvalidCartEntry))
}

func TestNormalizeCartMissing(t *testing.T) {
	cases := map[string]CartInput{
		"absent":      {},
		"empty list":  ListCart(),
		"empty":       DelimitedCart(""),
		"commas only": DelimitedCart(", ,,"),
	}
	for name, in := range cases {
		_, err := NormalizeCart(in)
		assert.True(t, errors.Is(err, ErrMissingCart), name)
	}
}

func TestNormalizeCartRejectsBadLines(t *testing.T) {
	_, err := NormalizeCart(ListCart(Line(1, 1), Line(2, 0), Line(-4, 1)))
	require.Error(t, err)

	var perr *PurchaseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, ErrInvalidCartEntry, perr.Kind)
	assert.Equal(t, []string{"cart[1]", "cart[2]"}, perr.Fields)
}

func TestNormalizeCartQuantityOverflow(t *testing.T) {
	_, err := NormalizeCart(ListCart(Line(1, maxLineQuantity), Line(1, 1)))
	assert.True(t, errors.Is(err, ErrInvalidCartEntry))
}

func TestCartInputUnmarshal(t *testing.T) {
	var req struct {
		Cart CartInput `json:"cart"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"cart":"1,2,1"}`), &req))
	cart, err := NormalizeCart(req.Cart)
	require.NoError(t, err)
	assert.Equal(t, Cart{1: 2, 2: 1}, cart)

	require.NoError(t, json.Unmarshal([]byte(`{"cart":[{"product_id":"4","quantity":2},{"product_id":9,"quantity":"1"}]}`), &req))
	cart, err = NormalizeCart(req.Cart)
	require.NoError(t, err)
	assert.Equal(t, Cart{4: 2, 9: 1}, cart)
}

func TestCartInputUnmarshalMalformed(t *testing.T) {
	var req struct {
		Cart CartInput `json:"cart"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"cart":42}`), &req))
	assert.True(t, req.Cart.IsSet())
	_, err := NormalizeCart(req.Cart)
	assert.True(t, errors.Is(err, ErrInvalidCartEntry))

	require.NoError(t, json.Unmarshal([]byte(`{"cart":[{"product_id":1,"quantity":1}, 7]}`), &req))
	_, err = NormalizeCart(req.Cart)
	var perr *PurchaseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, []string{"cart[1]"}, perr.Fields)

	require.NoError(t, json.Unmarshal([]byte(`{"cart":null}`), &req))
	assert.False(t, req.Cart.IsSet())
}

func TestNumber(t *testing.T) {
	var n Number
	require.NoError(t, json.Unmarshal([]byte(`12`), &n))
	v, ok := n.PositiveInt64()
	assert.True(t, ok)
	assert.Equal(t, int64(12), v)

	require.NoError(t, json.Unmarshal([]byte(`"29.97"`), &n))
	d, ok := n.NonNegativeDecimal()
	assert.True(t, ok)
	assert.True(t, d.Equal(decimal.RequireFromString("29.97")))

	require.NoError(t, json.Unmarshal([]byte(`"abc"`), &n))
	_, ok = n.NonNegativeDecimal()
	assert.False(t, ok)

	require.NoError(t, json.Unmarshal([]byte(`-1`), &n))
	_, ok = n.PositiveInt64()
	assert.False(t, ok)

	require.NoError(t, json.Unmarshal([]byte(`null`), &n))
	assert.False(t, n.IsSet())
	assert.False(t, NewNumber("  ").IsSet())
}

func TestNormalizeCartReportsSourceField(t *testing.T) {
	_, err := NormalizeCart(ListCart(Line(1, 1), Line(2, 0)).Named("products"))
	var perr *PurchaseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, []string{"products[1]"}, perr.Fields)

	_, err = NormalizeCart(CartInput{shape: cartMalformed}.Named("products"))
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, []string{"products"}, perr.Fields)
}
