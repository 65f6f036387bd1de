package domain

// Address is a saved delivery address owned by the identity provider side of
// the shop. Only consumed here, never mutated.
type Address struct {
	ID         string `json:"id"`
	Street     string `json:"street"`
	Number     string `json:"number"`
	Floor      string `json:"floor,omitempty"`
	Apartment  string `json:"apartment,omitempty"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
}
