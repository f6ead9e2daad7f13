package assistant

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/zhouzirui/z-pharmacy/backend/internal/model/catalog"
	"github.com/zhouzirui/z-pharmacy/backend/internal/service/reply"
	"github.com/zhouzirui/z-pharmacy/backend/internal/service/resolver"
)

// rule is one row of the pharmacy decision table. Rules are tried in order and the first
// whose match reports true handles the turn.
type rule struct {
	name   string
	match  func(t *turn) bool
	handle func(t *turn) (Reply, error)
}

func (e *Engine) ruleTable() []rule {
	return []rule{
		{name: "checkout", match: isCheckout, handle: e.checkout},
		{name: "store_info", match: isStoreInfo, handle: e.storeInfo},
		{name: "view_cart", match: isViewCart, handle: e.viewCart},
		{name: "bulk_add", match: isBulkAdd, handle: e.bulkAdd},
		{name: "cart_mutation", match: isCartMutation, handle: e.cartMutation},
		{name: "quantity_update", match: isQuantityUpdate, handle: e.quantityUpdate},
		{name: "confirmation", match: isConfirmation, handle: e.confirm},
		{name: "ambiguity", match: isAmbiguity, handle: e.disambiguate},
		{name: "search", match: isSearch, handle: e.search},
		{name: "repeat_confirmation", match: isRepeatConfirmation, handle: e.repeatConfirmation},
	}
}

var (
	checkoutWords  = []string{"checkout", "check out", "pay", "place order", "place my order", "place the order"}
	hoursWords     = []string{"hours", "opening hours", "opening times", "closing time"}
	openCloseWords = []string{"open", "opening", "close", "closing", "closed"}
	hoursContext   = []string{
		"when", "what time", "today", "tonight", "tomorrow", "now", "still", "store", "shop",
		"pharmacy", "are you", "weekend", "saturday", "sunday", "holiday", "late",
	}
	viewVerbs     = []string{"show", "view", "see", "check", "display", "list", "what's in", "whats in", "what is in", "look at"}
	cartOnly      = []string{"cart", "my cart", "the cart", "view cart", "show cart"}
	mutationWords = []string{"add", "remove", "delete", "cancel", "clear", "empty", "take out", "take off"}
	removeWords   = []string{"remove", "delete", "cancel", "take out", "take off"}
	allWords      = []string{"all", "everything", "both"}
	updateWords   = []string{"make it", "make that", "change to", "change it to", "change that to", "update to", "update it to", "actually", "sorry", "instead"}
	confirmWords  = []string{
		"yes", "yeah", "yep", "yup", "sure", "ok", "okay", "go ahead", "take", "want", "please",
		"that one", "this one", "sounds good", "perfect", "add it", "buy it", "get it",
	}
	searchWords = []string{
		"have", "do you have", "price", "cost", "how much", "buy", "purchase", "order", "stock",
		"available", "need", "want", "looking", "looking for", "find", "search", "sell", "get",
		"something for", "anything for", "medicine for", "what about",
	}

	incompleteQuery = regexp.MustCompile(`\bfor\s*[?.!]*\s*$`)
)

const maxConfirmationWords = 15

func isCheckout(t *turn) bool { return t.has(checkoutWords...) }

// isStoreInfo needs "hours", or open/close with some time or store context, so that
// "something for an open wound" stays a search.
func isStoreInfo(t *turn) bool {
	if t.has(hoursWords...) {
		return true
	}
	return t.has(openCloseWords...) && t.has(hoursContext...)
}

func isViewCart(t *turn) bool {
	if t.has(mutationWords...) {
		return false
	}
	if t.has("cart") && t.has(viewVerbs...) {
		return true
	}
	trimmed := strings.Join(t.words(), " ")
	for _, phrase := range cartOnly {
		if trimmed == phrase {
			return true
		}
	}
	return false
}

func isBulkAdd(t *turn) bool { return t.has("add") && t.has(allWords...) }

func isCartMutation(t *turn) bool { return t.has(mutationWords...) }

func isQuantityUpdate(t *turn) bool {
	if !t.has(updateWords...) || t.has("add", "remove", "delete") {
		return false
	}
	_, explicit, _ := parseQuantity(t.text)
	return explicit
}

func isConfirmationText(t *turn) bool {
	return len(t.words()) < maxConfirmationWords && t.has(confirmWords...)
}

func isConfirmation(t *turn) bool {
	return len(t.state.LastSearch) > 0 && isConfirmationText(t)
}

func isAmbiguity(t *turn) bool {
	return len(t.state.LastSearch) > 1 && !t.has(searchWords...)
}

func isSearch(t *turn) bool {
	if t.has(searchWords...) {
		return true
	}
	return len(t.words()) <= 4 && len(resolver.Terms(t.text)) > 0
}

func isRepeatConfirmation(t *turn) bool {
	return len(t.state.LastSearch) == 0 && t.state.LastAdded != nil && isConfirmationText(t)
}

func (e *Engine) checkout(t *turn) (Reply, error) {
	lines, err := e.store.GetLines(t.ctx, t.owner)
	if err != nil {
		return Reply{}, fmt.Errorf("get cart lines: %w", err)
	}
	return Reply{Text: reply.Checkout(catalog.CartTotal(lines))}, nil
}

func (e *Engine) storeInfo(*turn) (Reply, error) {
	return Reply{Text: reply.StoreHours(e.storeHours)}, nil
}

func (e *Engine) viewCart(t *turn) (Reply, error) {
	lines, err := e.store.GetLines(t.ctx, t.owner)
	if err != nil {
		return Reply{}, fmt.Errorf("get cart lines: %w", err)
	}
	return Reply{Text: reply.Cart(lines)}, nil
}

func (e *Engine) bulkAdd(t *turn) (Reply, error) {
	products, err := e.finder.Find(t.ctx, t.text)
	if err != nil {
		return Reply{}, err
	}
	products = resolver.DropFixtures(products)
	if len(products) == 0 {
		products = t.state.LastSearch
	}
	if len(products) == 0 {
		return Reply{Text: reply.NothingToAdd}, nil
	}

	quantity := e.bulk.Quantity(t.state.PendingQuantity)
	lines, err := e.store.GetLines(t.ctx, t.owner)
	if err != nil {
		return Reply{}, fmt.Errorf("get cart lines: %w", err)
	}

	items := make([]reply.Added, 0, len(products))
	for _, p := range products {
		current := 0
		if line, ok := lineFor(lines, p.ID); ok {
			current = line.Quantity
		}
		if err := e.store.UpsertLine(t.ctx, t.owner, p, current+quantity); err != nil {
			return Reply{}, fmt.Errorf("upsert cart line: %w", err)
		}
		items = append(items, reply.Added{
			Name:       p.Name,
			Quantity:   quantity,
			PriceCents: p.PriceCents,
			LineCents:  p.PriceCents * int64(quantity),
		})
	}

	lines, err = e.store.GetLines(t.ctx, t.owner)
	if err != nil {
		return Reply{}, fmt.Errorf("get cart lines: %w", err)
	}
	t.state.Added(products[len(products)-1])
	return Reply{
		Text:     reply.BulkAdded(items, catalog.CartTotal(lines)),
		Products: append([]catalog.Product(nil), products...),
	}, nil
}

func (e *Engine) cartMutation(t *turn) (Reply, error) {
	if t.has("clear", "empty") || (t.has(removeWords...) && t.has(allWords...)) {
		if err := e.store.DeleteAllLines(t.ctx, t.owner); err != nil {
			return Reply{}, fmt.Errorf("delete cart lines: %w", err)
		}
		t.state.Clear()
		return Reply{Text: reply.CartCleared}, nil
	}

	quantity, explicit, _ := parseQuantity(t.text)
	if t.has("add") {
		return e.addFromText(t, quantity, explicit)
	}
	return e.remove(t, quantity, explicit)
}

func (e *Engine) addFromText(t *turn, quantity int, explicit bool) (Reply, error) {
	product, ok, err := e.finder.Longest(t.ctx, t.text)
	if err != nil {
		return Reply{}, err
	}
	if !ok {
		if len(t.state.LastSearch) > 0 {
			return e.confirm(t)
		}
		if terms := resolver.Terms(t.text); len(terms) > 0 {
			return Reply{Text: reply.NotFound(strings.Join(terms, " "))}, nil
		}
		return Reply{Text: reply.NothingToAdd}, nil
	}
	if !explicit {
		quantity = 1
	}
	return e.addProduct(t, product, quantity)
}

// addProduct increments the owner's line for product and reports the new totals.
func (e *Engine) addProduct(t *turn, product catalog.Product, quantity int) (Reply, error) {
	if quantity < 1 {
		quantity = 1
	}
	lines, err := e.store.GetLines(t.ctx, t.owner)
	if err != nil {
		return Reply{}, fmt.Errorf("get cart lines: %w", err)
	}
	total := quantity
	if line, ok := lineFor(lines, product.ID); ok {
		total += line.Quantity
	}
	if err := e.store.UpsertLine(t.ctx, t.owner, product, total); err != nil {
		return Reply{}, fmt.Errorf("upsert cart line: %w", err)
	}

	lines, err = e.store.GetLines(t.ctx, t.owner)
	if err != nil {
		return Reply{}, fmt.Errorf("get cart lines: %w", err)
	}
	t.state.Added(product)
	return Reply{
		Text: reply.Added{
			Name:       product.Name,
			Quantity:   quantity,
			PriceCents: product.PriceCents,
			LineCents:  product.PriceCents * int64(total),
			CartCents:  catalog.CartTotal(lines),
		}.String(),
		Products: []catalog.Product{product},
	}, nil
}

func (e *Engine) remove(t *turn, quantity int, explicit bool) (Reply, error) {
	lines, err := e.store.GetLines(t.ctx, t.owner)
	if err != nil {
		return Reply{}, fmt.Errorf("get cart lines: %w", err)
	}
	product, ok, err := e.removalTarget(t, lines)
	if err != nil {
		return Reply{}, err
	}
	if !ok {
		return Reply{Text: reply.NotInCart}, nil
	}
	line, ok := lineFor(lines, product.ID)
	if !ok {
		return Reply{Text: reply.NotInCart}, nil
	}

	if explicit && quantity < line.Quantity {
		remaining := line.Quantity - quantity
		if err := e.store.UpsertLine(t.ctx, t.owner, line.Product, remaining); err != nil {
			return Reply{}, fmt.Errorf("upsert cart line: %w", err)
		}
		lines, err = e.store.GetLines(t.ctx, t.owner)
		if err != nil {
			return Reply{}, fmt.Errorf("get cart lines: %w", err)
		}
		return Reply{Text: reply.Decremented(line.Product.Name, quantity, remaining, catalog.CartTotal(lines))}, nil
	}

	if err := e.store.DeleteLine(t.ctx, t.owner, line.Product.ID); err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			// Removed by another session of the same owner since GetLines.
			return Reply{Text: reply.NotInCart}, nil
		}
		return Reply{}, fmt.Errorf("delete cart line: %w", err)
	}
	if t.state.LastAdded != nil && t.state.LastAdded.ID == line.Product.ID {
		t.state.LastAdded = nil
	}
	lines, err = e.store.GetLines(t.ctx, t.owner)
	if err != nil {
		return Reply{}, fmt.Errorf("get cart lines: %w", err)
	}
	return Reply{Text: reply.Removed(line.Product.Name, catalog.CartTotal(lines))}, nil
}

// removalTarget prefers full names of lines already in the cart, longest first, then the
// resolved product that is in the cart, then any resolved product. Only when nothing
// resolves does it fall back to the last added item.
func (e *Engine) removalTarget(t *turn, lines []catalog.CartLine) (catalog.Product, bool, error) {
	byLength := append([]catalog.CartLine(nil), lines...)
	sort.SliceStable(byLength, func(i, j int) bool {
		return len(byLength[i].Product.Name) > len(byLength[j].Product.Name)
	})
	for _, line := range byLength {
		name := strings.ToLower(line.Product.Name)
		if name != "" && strings.Contains(t.text, name) {
			return line.Product, true, nil
		}
	}

	found, err := e.finder.Find(t.ctx, t.text)
	if err != nil {
		return catalog.Product{}, false, err
	}
	for _, p := range found {
		if _, ok := lineFor(lines, p.ID); ok {
			return p, true, nil
		}
	}
	if len(found) > 0 {
		return found[0], true, nil
	}
	if t.state.LastAdded != nil {
		return *t.state.LastAdded, true, nil
	}
	return catalog.Product{}, false, nil
}

func (e *Engine) quantityUpdate(t *turn) (Reply, error) {
	quantity, _, _ := parseQuantity(t.text)
	switch candidates := t.state.LastSearch; {
	case len(candidates) > 1:
		t.state.PendingQuantity = quantity
		return Reply{Text: reply.Choose(candidates, quantity), Products: append([]catalog.Product(nil), candidates...)}, nil
	case len(candidates) == 1:
		return e.addProduct(t, candidates[0], quantity)
	}

	lines, err := e.store.GetLines(t.ctx, t.owner)
	if err != nil {
		return Reply{}, fmt.Errorf("get cart lines: %w", err)
	}
	var target *catalog.CartLine
	if t.state.LastAdded != nil {
		if line, ok := lineFor(lines, t.state.LastAdded.ID); ok {
			target = &line
		}
	}
	if target == nil && len(lines) > 0 {
		// Session memory was lost: fall back to the newest line.
		line := lines[len(lines)-1]
		target = &line
	}
	if target == nil {
		return Reply{Text: reply.NoQuantity}, nil
	}

	if err := e.store.UpsertLine(t.ctx, t.owner, target.Product, quantity); err != nil {
		return Reply{}, fmt.Errorf("upsert cart line: %w", err)
	}
	lines, err = e.store.GetLines(t.ctx, t.owner)
	if err != nil {
		return Reply{}, fmt.Errorf("get cart lines: %w", err)
	}
	product := target.Product
	t.state.LastAdded = &product
	return Reply{
		Text:     reply.QuantityUpdated(product.Name, quantity, product.PriceCents*int64(quantity), catalog.CartTotal(lines)),
		Products: []catalog.Product{product},
	}, nil
}

func (e *Engine) confirm(t *turn) (Reply, error) {
	candidates := t.state.LastSearch

	mentioned, err := e.finder.Find(t.ctx, t.text)
	if err != nil {
		return Reply{}, err
	}
	mentioned = resolver.DropFixtures(mentioned)
	if len(mentioned) > 0 && !anyIn(mentioned, candidates) {
		return e.search(t)
	}

	product := candidates[0]
	if len(candidates) > 1 {
		idx, ok := selectCandidate(t.text, candidates)
		if !ok {
			idx, ok = uniqueMention(mentioned, candidates)
		}
		if !ok {
			return Reply{
				Text:     reply.Choose(candidates, t.state.PendingQuantity),
				Products: append([]catalog.Product(nil), candidates...),
			}, nil
		}
		product = candidates[idx]
	}
	return e.addProduct(t, product, confirmationQuantity(t.text, t.state.PendingQuantity))
}

func (e *Engine) disambiguate(t *turn) (Reply, error) {
	candidates := t.state.LastSearch
	if idx, ok := selectCandidate(t.text, candidates); ok {
		return e.addProduct(t, candidates[idx], t.state.PendingQuantity)
	}

	mentioned, err := e.finder.Find(t.ctx, t.text)
	if err != nil {
		return Reply{}, err
	}
	mentioned = resolver.DropFixtures(mentioned)
	if len(mentioned) > 0 && !anyIn(mentioned, candidates) {
		return e.search(t)
	}
	return Reply{
		Text:     reply.Choose(candidates, t.state.PendingQuantity),
		Products: append([]catalog.Product(nil), candidates...),
	}, nil
}

func (e *Engine) search(t *turn) (Reply, error) {
	t.state.NewSearch(nil, 1)
	if incompleteQuery.MatchString(t.text) {
		return Reply{Text: reply.Incomplete, Branch: "search"}, nil
	}

	found, err := e.finder.Find(t.ctx, t.text)
	if err != nil {
		return Reply{}, err
	}
	found = resolver.DropFixtures(found)
	if len(found) == 0 {
		return Reply{Text: reply.NotFound(strings.Join(resolver.Terms(t.text), " ")), Branch: "search"}, nil
	}
	if len(found) > reply.MaxSearchResults {
		found = found[:reply.MaxSearchResults]
	}

	pending := 1
	if quantity, explicit, _ := parseQuantity(t.text); explicit {
		pending = quantity
	}
	t.state.NewSearch(found, pending)
	return Reply{
		Text:     reply.SearchResults(found),
		Branch:   "search",
		Products: append([]catalog.Product(nil), found...),
	}, nil
}

// repeatConfirmation answers a "yes" that has nothing pending. It never writes.
func (e *Engine) repeatConfirmation(t *turn) (Reply, error) {
	lines, err := e.store.GetLines(t.ctx, t.owner)
	if err != nil {
		return Reply{}, fmt.Errorf("get cart lines: %w", err)
	}
	line, ok := lineFor(lines, t.state.LastAdded.ID)
	if !ok {
		return Reply{Text: reply.NothingToAdd}, nil
	}
	return Reply{Text: reply.AlreadyInCart(line.Product.Name, line.Quantity)}, nil
}

func lineFor(lines []catalog.CartLine, productID string) (catalog.CartLine, bool) {
	for _, line := range lines {
		if line.Product.ID == productID {
			return line, true
		}
	}
	return catalog.CartLine{}, false
}

func anyIn(products, candidates []catalog.Product) bool {
	for _, p := range products {
		for _, c := range candidates {
			if p.ID == c.ID {
				return true
			}
		}
	}
	return false
}

// uniqueMention picks the single candidate that entity resolution also named.
func uniqueMention(mentioned, candidates []catalog.Product) (int, bool) {
	match := -1
	for i, c := range candidates {
		for _, p := range mentioned {
			if p.ID != c.ID {
				continue
			}
			if match != -1 {
				return 0, false
			}
			match = i
			break
		}
	}
	return match, match != -1
}
