package domain

// BorrowerRecord is one row per borrower phone number in the record store.
// It is an immutable snapshot: callers fetch it fresh per use and never cache
// it across calls.
type BorrowerRecord struct {
	Phone     string `gorm:"column:phone;primaryKey" json:"phone_no"`
	FirstName string `gorm:"column:first_name" json:"first_name"`
	LastName  string `gorm:"column:last_name" json:"last_name"`
	Gender    string `gorm:"column:gender" json:"gender"`

	IncomeINR        float64 `gorm:"column:income_inr" json:"income_in_inr"`
	CreditScore      int     `gorm:"column:credit_score" json:"credit_score"`
	LoanType         string  `gorm:"column:loan_type" json:"loan_type"`
	LoanAmount       float64 `gorm:"column:loan_amount" json:"loan_amount"`
	InterestRate     float64 `gorm:"column:interest_rate" json:"interest_rate"`
	ProcessingFee    float64 `gorm:"column:processing_fee" json:"process_fee"`
	Installment      float64 `gorm:"column:installment" json:"installment"`
	CurrentBalance   float64 `gorm:"column:current_balance" json:"balance_to_pay"`
	MinimumDue       float64 `gorm:"column:minimum_due" json:"minimum_due_amount"`
	LateFees         float64 `gorm:"column:late_fees" json:"late_fees"`
	EMIEligible      bool    `gorm:"column:emi_eligible" json:"emi_eligible"`
	RepaymentMode    string  `gorm:"column:repayment_mode" json:"payment_mode"`
	RepaymentStart   string  `gorm:"column:repayment_start_date" json:"start_date"`
	RepaymentTenure  int     `gorm:"column:repayment_tenure" json:"tenure"`
	DisbursalDate    string  `gorm:"column:disbursal_date" json:"disbursal_date"`
	LastPaymentDate  string  `gorm:"column:last_payment_date" json:"last_date"`
	NextDueDate      string  `gorm:"column:next_due_date" json:"due_date"`
	PendingDays      int     `gorm:"column:pending_days" json:"pending_days"`
	LatePaymentCount int     `gorm:"column:late_payment_count" json:"late_payment"`
}

func (BorrowerRecord) TableName() string {
	return "borrowers"
}

// FullName returns the borrower's display name used as the SIP participant
// identity and the transcript speaker label.
func (b BorrowerRecord) FullName() string {
	return b.FirstName + " " + b.LastName
}

// DispatchMetadata is the ephemeral bundle attached to an agent dispatch. It
// seeds the call session's chat context and is discarded afterwards; it is
// never persisted as its own record.
type DispatchMetadata struct {
	Phone            string  `json:"phone"` // E.164 with +91 prefix
	FirstName        string  `json:"first_name"`
	LastName         string  `json:"last_name"`
	CurrentBalance   float64 `json:"balance_to_pay"`
	RepaymentStart   string  `json:"start_date"`
	LastPaymentDate  string  `json:"last_date"`
	Installment      float64 `json:"installment"`
	MessagingSummary string  `json:"whatsapp_summary"`
	CallSummary      string  `json:"call_summary"`
}
