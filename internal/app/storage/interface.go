//go:generate mockgen -source=./interface.go -destination=./mock/storage.go -package=storagemock
package storage

import (
	"context"
	"database/sql"
	"github.com/google/uuid"
	"rawlink/internal/app/model"
)

type UserRepository interface {
	// Create a new model.User together with its profile and wallet account
	Create(ctx context.Context, m *model.User) (*model.User, error)
	// Read instance of model.User
	Read(ctx context.Context, id uuid.UUID) (*model.User, error)
	// ReadByEmailAndPassword instance of model.User, verifying the password hash
	ReadByEmailAndPassword(ctx context.Context, email string, password string) (*model.User, error)
}

type ProfileRepository interface {
	// ReadByUserID instance of model.Profile
	ReadByUserID(ctx context.Context, userID uuid.UUID) (*model.Profile, error)
	// Update instance of model.Profile
	Update(ctx context.Context, m *model.Profile) (*model.Profile, error)
}

type AccountRepository interface {
	// Read instance of model.Account
	Read(ctx context.Context, id uuid.UUID) (*model.Account, error)
	// ReadByUserID instance of model.Account
	ReadByUserID(ctx context.Context, userID uuid.UUID) (*model.Account, error)
	// ReadEscrow returns the system escrow account
	ReadEscrow(ctx context.Context) (*model.Account, error)
	// Disable soft-disables the account; its history is kept forever
	Disable(ctx context.Context, id uuid.UUID) error
}

// Ledger is the store of record for money. Every write keeps the
// transactions table and the denormalized account balance consistent
// inside a single database transaction, serialized on the account rows.
// Only the ledger service calls the write methods.
type Ledger interface {
	// GetBalance of the account, committed entries only
	GetBalance(ctx context.Context, accountID uuid.UUID) (int64, error)
	// Append a single committed entry (credit or debit)
	Append(ctx context.Context, entry *model.Transaction) (*model.Transaction, error)
	// AppendPair appends a linked transfer pair, both sides or neither
	AppendPair(ctx context.Context, debit, credit *model.Transaction) ([]*model.Transaction, error)
	// TxAppendPair appends a transfer pair within the caller's transaction
	TxAppendPair(ctx context.Context, tx *sql.Tx, debit, credit *model.Transaction) ([]*model.Transaction, error)
	// AppendPending records an entry with no balance effect yet
	AppendPending(ctx context.Context, entry *model.Transaction) (*model.Transaction, error)
	// CommitPending applies a pending entry to the balance and commits it
	CommitPending(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	// VoidPending finalizes a pending entry as reversed, never applied
	VoidPending(ctx context.Context, id uuid.UUID) error
	// Reverse appends a committed compensating entry linked to the original
	Reverse(ctx context.Context, originalID uuid.UUID, idempotencyKey string) (*model.Transaction, error)
	// TxReverse reverses an entry within the caller's transaction
	TxReverse(ctx context.Context, tx *sql.Tx, originalID uuid.UUID, idempotencyKey string) (*model.Transaction, error)
	// ReadByIdempotencyKey instance of model.Transaction
	ReadByIdempotencyKey(ctx context.Context, key string) (*model.Transaction, error)
	// AllByAccountID returns entries of the account, newest first
	AllByAccountID(ctx context.Context, accountID uuid.UUID) ([]*model.Transaction, error)
	// WithdrawnSum is the committed withdrawal total for the account
	WithdrawnSum(ctx context.Context, accountID uuid.UUID) (int64, error)
	// PendingByReason returns pending entries for the deposit syncer
	PendingByReason(ctx context.Context, reason string) ([]*model.Transaction, error)
}

type ListingFilter struct {
	Category string
	Location string
}

type ListingRepository interface {
	// Create a new model.Listing
	Create(ctx context.Context, m *model.Listing) (*model.Listing, error)
	// Read instance of model.Listing
	Read(ctx context.Context, id uuid.UUID) (*model.Listing, error)
	// Update instance of model.Listing
	Update(ctx context.Context, m *model.Listing) (*model.Listing, error)
	// Delete instance of model.Listing; orders keep their title copy
	Delete(ctx context.Context, id uuid.UUID) error
	// AllAvailable returns available listings matching the filter
	AllAvailable(ctx context.Context, f ListingFilter) ([]*model.Listing, error)
	// AllByVendorID returns all listings of the vendor
	AllByVendorID(ctx context.Context, vendorID uuid.UUID) ([]*model.Listing, error)
	// TxReadForUpdate locks the listing row within the tx
	TxReadForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*model.Listing, error)
	// TxUpdateQuantity adjusts remaining quantity and status within the tx
	TxUpdateQuantity(ctx context.Context, tx *sql.Tx, m *model.Listing) error
}

type OrderRepository interface {
	// TxCreate a new model.Order within the tx
	TxCreate(ctx context.Context, tx *sql.Tx, m *model.Order) (*model.Order, error)
	// Read instance of model.Order
	Read(ctx context.Context, id uuid.UUID) (*model.Order, error)
	// TxReadForUpdate locks the order row within the tx
	TxReadForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*model.Order, error)
	// TxUpdateStatus writes the new order status within the tx
	TxUpdateStatus(ctx context.Context, tx *sql.Tx, m *model.Order) error
	// TxAppendEvent records a transition within the tx
	TxAppendEvent(ctx context.Context, tx *sql.Tx, e *model.OrderEvent) error
	// AllByUserID returns orders where the user is buyer or vendor
	AllByUserID(ctx context.Context, userID uuid.UUID) ([]*model.Order, error)
	// Events returns the transition history, oldest first
	Events(ctx context.Context, orderID uuid.UUID) ([]*model.OrderEvent, error)
}

type MessageRepository interface {
	// Create a new model.Message
	Create(ctx context.Context, m *model.Message) (*model.Message, error)
	// AllByUserID returns messages sent or received by the user
	AllByUserID(ctx context.Context, userID uuid.UUID) ([]*model.Message, error)
	// Conversation returns the pairwise history, oldest first
	Conversation(ctx context.Context, a, b uuid.UUID) ([]*model.Message, error)
}
