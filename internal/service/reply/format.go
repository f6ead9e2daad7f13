// Package reply renders assistant outcomes as chat text. Functions here format only; every
// decision has already been made by the caller.
package reply

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/z-pharmacy/backend/internal/model/catalog"
)

// MaxSearchResults caps how many products a search reply lists.
const MaxSearchResults = 5

const (
	Greeting      = "Hello! I am your Pharmacy Assistant. How can I help you regarding medicines today?"
	Identity      = "I am your Pharmacy Assistant. I can find medicines, manage your cart and answer general health questions."
	Thanks        = "You're welcome! Let me know if you need anything else."
	EmptyMessage  = "Please enter a question about medicines or health."
	Fallback      = "I am not sure how to help with that. Try asking for a medicine by name, a symptom, or say 'cart' to see your cart."
	StoreFailure  = "Sorry, I could not reach the store right now. Please try again in a moment."
	HealthOffline = "The health information service is offline right now. Please ask a pharmacist or try again later."
	EmptyCart     = "Your cart is empty."
	Incomplete    = "Could you tell me what you need the medicine for? For example 'medicine for headache'."
	NothingToAdd  = "I am not sure which medicine to add. Please search for it first or name it, e.g. 'add 2 aspirin'."
	NotInCart     = "I couldn't find that item in your cart."
	CartCleared   = "I have cleared your cart."
	NoQuantity    = "Nothing to update yet. Add an item first, then tell me the quantity you want."
)

// Money renders cents as dollars with two decimals.
func Money(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// Added describes a completed add-to-cart.
type Added struct {
	Name       string
	Quantity   int
	PriceCents int64
	LineCents  int64
	CartCents  int64
}

func (a Added) String() string {
	return fmt.Sprintf("Added %d x %s to your cart.\nItem Price: %s\nLine Total: %s\nCurrent Cart Total: %s",
		a.Quantity, a.Name, Money(a.PriceCents), Money(a.LineCents), Money(a.CartCents))
}

// BulkAdded lists every item of an "add all" request.
func BulkAdded(items []Added, cartCents int64) string {
	var b strings.Builder
	b.WriteString("Added the following items to your cart:\n")
	for _, item := range items {
		fmt.Fprintf(&b, "- %d x %s (%s)\n", item.Quantity, item.Name, Money(item.LineCents))
	}
	fmt.Fprintf(&b, "Current Cart Total: %s", Money(cartCents))
	return b.String()
}

// Cart lists lines with per-line totals and the grand total.
func Cart(lines []catalog.CartLine) string {
	if len(lines) == 0 {
		return EmptyCart
	}
	var b strings.Builder
	b.WriteString("Here is your cart:\n")
	for _, line := range lines {
		fmt.Fprintf(&b, "- %d x %s @ %s = %s\n",
			line.Quantity, line.Product.Name, Money(line.Product.PriceCents), Money(line.TotalCents()))
	}
	fmt.Fprintf(&b, "Cart Total: %s", Money(catalog.CartTotal(lines)))
	return b.String()
}

// Checkout is the payment prompt. A zero total means the cart is empty.
func Checkout(totalCents int64) string {
	if totalCents <= 0 {
		return EmptyCart + " Add some items before checking out."
	}
	return fmt.Sprintf("Your total is %s. Please proceed to payment to place your order.", Money(totalCents))
}

// SearchResults lists up to MaxSearchResults products and invites an add.
func SearchResults(products []catalog.Product) string {
	if len(products) == 0 {
		return "I couldn't find any specific medicines matching your query. Please check the spelling or browse our catalog."
	}
	shown := products
	if len(shown) > MaxSearchResults {
		shown = shown[:MaxSearchResults]
	}
	if len(shown) == 1 {
		p := shown[0]
		return fmt.Sprintf("I found %s (%s). %s\nWould you like to add it to your cart?",
			p.Name, Money(p.PriceCents), strings.TrimSpace(p.Description))
	}
	var b strings.Builder
	b.WriteString("I found these medicines:\n")
	for i, p := range shown {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, p.Name, Money(p.PriceCents))
	}
	b.WriteString("Which one would you like to add to your cart?")
	return b.String()
}

// Choose asks the user to pick among candidates.
func Choose(products []catalog.Product, quantity int) string {
	var b strings.Builder
	if quantity > 1 {
		fmt.Fprintf(&b, "Sure, %d of which one?\n", quantity)
	} else {
		b.WriteString("Which one do you mean?\n")
	}
	for i, p := range products {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, p.Name, Money(p.PriceCents))
	}
	b.WriteString("Please reply with the name or the number of the option.")
	return b.String()
}

// Removed confirms a deleted line.
func Removed(name string, cartCents int64) string {
	return fmt.Sprintf("Removed %s from your cart.\nCurrent Cart Total: %s", name, Money(cartCents))
}

// Decremented confirms a partial removal.
func Decremented(name string, removed, remaining int, cartCents int64) string {
	return fmt.Sprintf("Removed %d x %s. You now have %d in your cart.\nCurrent Cart Total: %s",
		removed, name, remaining, Money(cartCents))
}

// QuantityUpdated confirms a set-quantity.
func QuantityUpdated(name string, quantity int, lineCents, cartCents int64) string {
	return fmt.Sprintf("Updated %s quantity to %d.\nLine Total: %s\nCurrent Cart Total: %s",
		name, quantity, Money(lineCents), Money(cartCents))
}

// AlreadyInCart answers a confirmation that has nothing left to confirm.
func AlreadyInCart(name string, quantity int) string {
	return fmt.Sprintf("%s is already in your cart (quantity %d). Say 'make it 3' to change the quantity or search for something else.",
		name, quantity)
}

// NotFound reports that nothing matched.
func NotFound(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return "I couldn't find that medicine. Please check the spelling or try another name."
	}
	return fmt.Sprintf("I couldn't find any medicine matching %q. Please check the spelling or try another name.", query)
}

// StoreHours renders the configured opening hours.
func StoreHours(hours string) string {
	return "Store Hours: " + strings.TrimSpace(hours)
}
