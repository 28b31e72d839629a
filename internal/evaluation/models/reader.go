package models

// Reader is the read-only view of a record that rules evaluate against.
// Rules receive a Reader so they cannot mutate the record.
type Reader interface {
	RequestedAmount() float64
	Parameters() Parameters
	Profile() ApplicantProfile
	Bureau() CreditBureau
	Banking() BankingHistory
}

// Predicate is a named boolean check over a record.
type Predicate interface {
	Name() string
	Description() string
	Evaluate(r Reader) bool
}

var _ Reader = (*Record)(nil)
