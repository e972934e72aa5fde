package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/createproresume/resume-service/core/service"
	"github.com/shopspring/decimal"
)

// Status is the fulfillment side of an order's lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// PaymentStatus tracks what the payment gateway reported for an order.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

var (
	ErrNotFound    = errors.New("order not found")
	ErrNotOwner    = errors.New("order does not belong to this customer")
	ErrNotReady    = errors.New("files are not yet available for download")
	ErrFileMissing = errors.New("requested file is not available")
)

// TransitionError reports an illegal lifecycle move. The order is left
// untouched.
type TransitionError struct {
	From Status
	To   Status
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

// transitions is the set of legal forward moves. Skipping in_progress is
// allowed, the admin may complete a pending order in one step. Completed
// and cancelled are terminal.
var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

func (s Status) CanTransition(to Status) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// paymentTransitions: failure is only reachable before the money arrived,
// refunds only after.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:  {PaymentPaid, PaymentFailed},
	PaymentPaid:     {PaymentRefunded},
	PaymentFailed:   {},
	PaymentRefunded: {},
}

func (p PaymentStatus) CanTransition(to PaymentStatus) bool {
	for _, t := range paymentTransitions[p] {
		if t == to {
			return true
		}
	}
	return false
}

// Order is the central entity: one customer buying one tier of one
// service, moving through the lifecycle from creation to fulfillment.
type Order struct {
	ID                  string          `json:"id" db:"order_id"`
	FirstName           string          `json:"firstName" db:"first_name"`
	LastName            string          `json:"lastName" db:"last_name"`
	Email               string          `json:"email" db:"email"`
	Phone               string          `json:"phone" db:"phone"`
	ServiceID           string          `json:"serviceId" db:"service_id"`
	Tier                service.Tier    `json:"tier" db:"tier"`
	TotalAmount         decimal.Decimal `json:"totalAmount" db:"total_amount"`
	Status              Status          `json:"status" db:"status"`
	PaymentStatus       PaymentStatus   `json:"paymentStatus" db:"payment_status"`
	CheckoutSessionID   string          `json:"-" db:"checkout_session_id"`
	TargetPosition      string          `json:"targetPosition" db:"target_position"`
	Industry            string          `json:"industry" db:"industry"`
	SpecialRequirements string          `json:"specialRequirements" db:"special_requirements"`
	UploadedResume      string          `json:"uploadedResume" db:"uploaded_resume"`
	UploadedCover       string          `json:"uploadedCover" db:"uploaded_cover"`
	UploadedJobDesc     string          `json:"uploadedJobDesc" db:"uploaded_job_desc"`
	CompletedResume     string          `json:"completedResume" db:"completed_resume"`
	CompletedCover      string          `json:"completedCover" db:"completed_cover"`
	ReferralCode        string          `json:"referralCode" db:"referral_code"`
	ReferralDiscount    decimal.Decimal `json:"referralDiscount" db:"referral_discount"`
	CompletedAt         *time.Time      `json:"completedAt" db:"completed_at"`
	CreatedAt           time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time       `json:"updatedAt" db:"updated_at"`
}

func (o Order) FullName() string {
	return o.FirstName + " " + o.LastName
}

// OrderNew is the multipart order form, minus the file parts.
type OrderNew struct {
	FirstName           string `validate:"required"`
	LastName            string `validate:"required"`
	Email               string `validate:"required,email"`
	Phone               string
	ServiceID           string `validate:"required,uuid4"`
	Tier                string `validate:"required"`
	TargetPosition      string
	Industry            string
	SpecialRequirements string
	ReferralCode        string
	Gateway             string `validate:"omitempty,oneof=stripe paypal"`
}

// Tracking is one append-only audit entry of an order's history. Entries
// are never mutated after insertion.
type Tracking struct {
	ID          string    `json:"id" db:"tracking_id"`
	OrderID     string    `json:"orderId" db:"order_id"`
	Status      Status    `json:"status" db:"status"`
	Description string    `json:"description" db:"description"`
	CreatedBy   string    `json:"createdBy" db:"created_by"`
	Notified    bool      `json:"notified" db:"notified"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// centFactor converts a dollar amount into the integer cents the
// gateways expect.
var centFactor = decimal.NewFromInt(100)

// deliveryDays is the promised turnaround per tier.
var deliveryDays = map[service.Tier]int{
	service.TierBasic:    5,
	service.TierStandard: 3,
	service.TierPremium:  2,
}

func EstimatedDelivery(tier service.Tier, from time.Time) time.Time {
	days, ok := deliveryDays[tier]
	if !ok {
		days = 5
	}
	return from.AddDate(0, 0, days)
}
