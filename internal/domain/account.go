package domain

// AccountID identifies one of the two hedged accounts.
type AccountID int

const (
	AccountA AccountID = iota
	AccountB
)

// AllAccounts lists both accounts in a stable order.
var AllAccounts = [...]AccountID{AccountA, AccountB}

// String returns the short account label.
func (a AccountID) String() string {
	switch a {
	case AccountA:
		return "A"
	case AccountB:
		return "B"
	default:
		return "?"
	}
}

// PerAccount holds exactly one value per account, indexed by AccountID.
type PerAccount[T any] [2]T

// NewPerAccount builds a PerAccount from the A and B values.
func NewPerAccount[T any](a, b T) PerAccount[T] {
	return PerAccount[T]{a, b}
}

// Get returns the value for the account.
func (p PerAccount[T]) Get(id AccountID) T {
	return p[id]
}

// Set replaces the value for the account.
func (p *PerAccount[T]) Set(id AccountID, v T) {
	p[id] = v
}

// A returns the value of account A.
func (p PerAccount[T]) A() T { return p[AccountA] }

// B returns the value of account B.
func (p PerAccount[T]) B() T { return p[AccountB] }
