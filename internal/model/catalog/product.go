package catalog

import (
	"fmt"
	"time"
)

// Product is a catalog entry as exposed by the storefront inventory.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PriceCents  int64  `json:"priceCents"`
	Category    string `json:"category,omitempty"`
}

// OwnerKind tells which identity a cart belongs to.
type OwnerKind string

const (
	OwnerUser      OwnerKind = "user"
	OwnerSession   OwnerKind = "session"
	OwnerAnonymous OwnerKind = "anonymous"
)

// Owner scopes cart lines: the authenticated user, else the session, else a shared bucket.
type Owner struct {
	Kind OwnerKind `json:"kind"`
	ID   string    `json:"id,omitempty"`
}

// ResolveOwner picks the cart owner for a request.
func ResolveOwner(userID, sessionID string) Owner {
	switch {
	case userID != "":
		return Owner{Kind: OwnerUser, ID: userID}
	case sessionID != "":
		return Owner{Kind: OwnerSession, ID: sessionID}
	default:
		return Owner{Kind: OwnerAnonymous}
	}
}

// Key returns a stable string form usable as a storage key.
func (o Owner) Key() string {
	if o.Kind == OwnerAnonymous || o.Kind == "" {
		return string(OwnerAnonymous)
	}
	return fmt.Sprintf("%s:%s", o.Kind, o.ID)
}

// CartLine is one product in an owner's cart.
type CartLine struct {
	ID        string    `json:"id"`
	Owner     Owner     `json:"owner"`
	Product   Product   `json:"product"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
}

// TotalCents is the line price.
func (l CartLine) TotalCents() int64 {
	return l.Product.PriceCents * int64(l.Quantity)
}

// CartTotal sums the given lines.
func CartTotal(lines []CartLine) int64 {
	var total int64
	for _, line := range lines {
		total += line.TotalCents()
	}
	return total
}

// Seed provides the demo catalog used by the in-memory store and the seed command.
func Seed() []Product {
	return []Product{
		{
			ID:          "med-001",
			Name:        "Panadol Extra",
			Description: "Paracetamol with caffeine for fast relief of headache, toothache and fever.",
			PriceCents:  650,
			Category:    "Painkiller",
		},
		{
			ID:          "med-002",
			Name:        "Paracetamol 500mg",
			Description: "Relieves mild to moderate pain and reduces fever.",
			PriceCents:  500,
			Category:    "Painkiller",
		},
		{
			ID:          "med-003",
			Name:        "Ibuprofen 200mg",
			Description: "Anti-inflammatory painkiller for headache, back pain and period pain.",
			PriceCents:  850,
			Category:    "Painkiller",
		},
		{
			ID:          "med-004",
			Name:        "Aspirin 300mg",
			Description: "Pain relief and fever reduction. Not suitable for children under 16.",
			PriceCents:  400,
			Category:    "Painkiller",
		},
		{
			ID:          "med-005",
			Name:        "Cetirizine 10mg",
			Description: "Non-drowsy antihistamine for hay fever and allergy symptoms.",
			PriceCents:  725,
			Category:    "Personal Care",
		},
		{
			ID:          "med-006",
			Name:        "Amoxicillin 500mg",
			Description: "Penicillin antibiotic for bacterial infections. Prescription required.",
			PriceCents:  1200,
			Category:    "Antibiotics",
		},
		{
			ID:          "med-007",
			Name:        "Vitamin C 1000mg",
			Description: "Immune support supplement.",
			PriceCents:  999,
			Category:    "Vitamins",
		},
		{
			ID:          "med-008",
			Name:        "Strepsils Lozenges",
			Description: "Soothing relief for sore throat.",
			PriceCents:  575,
			Category:    "Personal Care",
		},
		{
			ID:          "med-009",
			Name:        "Otrivin Nasal Spray",
			Description: "Decongestant for a blocked nose.",
			PriceCents:  899,
			Category:    "Personal Care",
		},
	}
}
