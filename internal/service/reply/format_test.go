package reply

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zhouzirui/z-pharmacy/backend/internal/model/catalog"
)

func TestMoney(t *testing.T) {
	cases := map[int64]string{
		0:      "$0.00",
		5:      "$0.05",
		650:    "$6.50",
		1300:   "$13.00",
		123456: "$1234.56",
		-250:   "-$2.50",
	}
	for cents, want := range cases {
		assert.Equal(t, want, Money(cents), "cents=%d", cents)
	}
}

func TestAddedFormat(t *testing.T) {
	got := Added{Name: "Panadol Extra", Quantity: 2, PriceCents: 650, LineCents: 1300, CartCents: 1300}.String()
	assert.Equal(t, "Added 2 x Panadol Extra to your cart.\nItem Price: $6.50\nLine Total: $13.00\nCurrent Cart Total: $13.00", got)
}

func TestCartEmpty(t *testing.T) {
	assert.Equal(t, EmptyCart, Cart(nil))
}

func TestCartLines(t *testing.T) {
	lines := []catalog.CartLine{
		{Product: catalog.Product{Name: "Aspirin 300mg", PriceCents: 400}, Quantity: 3},
		{Product: catalog.Product{Name: "Vitamin C", PriceCents: 999}, Quantity: 1},
	}
	got := Cart(lines)
	assert.Contains(t, got, "- 3 x Aspirin 300mg @ $4.00 = $12.00")
	assert.Contains(t, got, "Cart Total: $21.99")
	assert.Equal(t, got, Cart(lines))
}

func TestCheckout(t *testing.T) {
	assert.Contains(t, Checkout(0), EmptyCart)
	assert.Contains(t, Checkout(1999), "$19.99")
}

func TestSearchResultsCapsAtFive(t *testing.T) {
	var products []catalog.Product
	for _, name := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		products = append(products, catalog.Product{Name: name, PriceCents: 100})
	}
	got := SearchResults(products)
	assert.Contains(t, got, "5. E")
	assert.NotContains(t, got, "F:")
	assert.True(t, strings.HasSuffix(got, "?"))
}

func TestSearchResultsSingle(t *testing.T) {
	got := SearchResults([]catalog.Product{{Name: "Ibuprofen 200mg", PriceCents: 850, Description: "Painkiller."}})
	assert.Contains(t, got, "I found Ibuprofen 200mg ($8.50)")
	assert.Contains(t, got, "add it to your cart")
}

func TestChooseMentionsPendingQuantity(t *testing.T) {
	products := []catalog.Product{{Name: "A"}, {Name: "B"}}
	assert.True(t, strings.HasPrefix(Choose(products, 3), "Sure, 3 of which one?"))
	assert.True(t, strings.HasPrefix(Choose(products, 1), "Which one do you mean?"))
}
