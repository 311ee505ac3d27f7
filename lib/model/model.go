package model

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Order states
const (
	OrderPending   = "pending"
	OrderCompleted = "completed"
	OrderCancelled = "cancelled"
)

// Product is a catalog entry, stored in the products collection.
type Product struct {
	ID          string  `json:"id" yaml:"id"`
	Title       string  `json:"title" yaml:"title"`
	Description string  `json:"description" yaml:"description"`
	Price       float64 `json:"price" yaml:"price"`
	Category    string  `json:"category" yaml:"category"`
	InStock     bool    `json:"inStock" yaml:"inStock"`
	CreatedAt   string  `json:"createdAt,omitempty" yaml:"-"`
	UpdatedAt   string  `json:"updatedAt,omitempty" yaml:"-"`
}

// User is a registered account, stored in the users collection.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	Role         string `json:"role"`
	CreatedAt    string `json:"createdAt,omitempty"`
}

// IsAdmin reports whether the user has the admin role
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CartItem is one line of a cart or order
type CartItem struct {
	ProductID string  `json:"productId"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// Cart holds the items a user is about to buy. There is one cart per user.
type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Items     []CartItem `json:"items"`
	CreatedAt string     `json:"createdAt,omitempty"`
	UpdatedAt string     `json:"updatedAt,omitempty"`
}

// CustomerInfo is the shipping address of an order
type CustomerInfo struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// PaymentDetails records a successful payment. It never contains the full card number.
type PaymentDetails struct {
	TransactionID string  `json:"transactionId"`
	Last4         string  `json:"last4"`
	Amount        float64 `json:"amount"`
	ProcessedAt   string  `json:"processedAt"`
}

// Order is a checked out snapshot of cart items.
type Order struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	Items          []CartItem      `json:"items"`
	Subtotal       float64         `json:"subtotal"`
	Tax            float64         `json:"tax"`
	Shipping       float64         `json:"shipping"`
	TotalAmount    float64         `json:"totalAmount"`
	Status         string          `json:"status"`
	CustomerInfo   CustomerInfo    `json:"customerInfo"`
	PaymentDetails *PaymentDetails `json:"paymentDetails,omitempty"`
	CreatedAt      string          `json:"createdAt,omitempty"`
	UpdatedAt      string          `json:"updatedAt,omitempty"`
	CompletedAt    string          `json:"completedAt,omitempty"`
	CancelledAt    string          `json:"cancelledAt,omitempty"`
}

// ActivityRecord is one entry of the per user activity log
type ActivityRecord struct {
	ID        string         `json:"id"`
	Username  string         `json:"username"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details"`
	Timestamp string         `json:"timestamp"`
	CreatedAt string         `json:"createdAt,omitempty"`
}

// Session binds an opaque token to a user until ExpiresAt.
type Session struct {
	ID        string `json:"id"`
	Token     string `json:"token"`
	UserID    string `json:"userId"`
	CreatedAt string `json:"createdAt"`
	ExpiresAt string `json:"expiresAt"`
}

// Requester identifies the caller of an operation that checks ownership.
type Requester struct {
	UserID   string
	Username string
	Role     string
}

// IsAdmin reports whether the requester may bypass ownership checks
func (r Requester) IsAdmin() bool {
	return r.Role == RoleAdmin
}

// RequesterOf returns the requester for a user
func RequesterOf(u User) Requester {
	return Requester{UserID: u.ID, Username: u.Username, Role: u.Role}
}
