package domain

type DeliveryType string

const (
	DeliveryTypeShip   DeliveryType = "ship"
	DeliveryTypePickup DeliveryType = "pickup"
	DeliveryTypeNone   DeliveryType = ""
)

const (
	StepCart     = 1
	StepPersonal = 2
	StepDelivery = 3
	StepPayment  = 4

	FirstStep = StepCart
	LastStep  = StepPayment
)

// CheckoutSession is the persisted state of one buyer's progress through the
// four checkout steps. IsCreatingOrder is process-local and is excluded from
// the persisted snapshot.
type CheckoutSession struct {
	OwnerID           string        `json:"owner_id"`
	CurrentStep       int           `json:"current_step"`
	CompletedSteps    map[int]bool  `json:"completed_steps"`
	PersonalData      *PersonalData `json:"personal_data"`
	ShippingData      *ShippingData `json:"shipping_data"`
	DeliveryType      DeliveryType  `json:"delivery_type"`
	PaymentMethod     string        `json:"payment_method"`
	ShippingCost      *float64      `json:"shipping_cost"`
	SelectedAddressID string        `json:"selected_address_id"`
	IsGuest           bool          `json:"is_guest"`
	IsCreatingOrder   bool          `json:"-"`
}

// NewCheckoutSession returns the initial session state: step 1, nothing
// completed, no captured data.
func NewCheckoutSession(ownerID string) *CheckoutSession {
	return &CheckoutSession{
		OwnerID:        ownerID,
		CurrentStep:    FirstStep,
		CompletedSteps: make(map[int]bool),
	}
}

func (s *CheckoutSession) StepCompleted(step int) bool {
	return s.CompletedSteps != nil && s.CompletedSteps[step]
}

// ResolvedShippingCost collapses an unresolved quote to 0 for payload
// assembly. The nil / 0 distinction matters everywhere else: nil means the
// quote failed or was never requested, 0 means pickup.
func (s *CheckoutSession) ResolvedShippingCost() float64 {
	if s.ShippingCost == nil {
		return 0
	}
	return *s.ShippingCost
}

type PersonalData struct {
	FirstName      string   `json:"first_name"`
	LastName       string   `json:"last_name"`
	Email          string   `json:"email"`
	Phone          string   `json:"phone"`
	DocumentType   string   `json:"document_type"`
	DocumentNumber string   `json:"document_number"`
	BillingAddress *Address `json:"billing_address,omitempty"`
}

type ShippingData struct {
	Street     string `json:"street"`
	Number     string `json:"number"`
	Floor      string `json:"floor,omitempty"`
	Apartment  string `json:"apartment,omitempty"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
}
