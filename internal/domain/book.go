package domain

type Book struct {
	ID             int64
	Title          string
	Author         string
	Price          float64
	Semester       int
	Description    string
	AvailableStock int
}

// Purchase is the outcome of a successful stock decrement.
type Purchase struct {
	BookID         int64
	Title          string
	Quantity       int
	RemainingStock int
}
