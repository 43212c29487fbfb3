package store

// CartItem is one line of a user's cart.
type CartItem struct {
	UserID    string
	ProductID string
	SizeID    string
	Quantity  int
	UpdatedTs int64
}

type FindCartItem struct {
	UserID string
}
