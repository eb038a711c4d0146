package interfaces

import (
	"context"
	"errors"

	"github.com/esarmiem/navegantes-payment-e-learning/internal/models"
)

var (
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrDuplicateReference = errors.New("payment reference already exists")
	// ErrVersionConflict is returned when a compare-and-set update finds
	// the record at a different version than expected.
	ErrVersionConflict = errors.New("customer version conflict")
)

// CustomerRepository defines the contract for customer record access
type CustomerRepository interface {
	InitDB(ctx context.Context) error
	Create(ctx context.Context, customer *models.Customer) error
	GetByID(ctx context.Context, id string) (*models.Customer, error)
	GetByReference(ctx context.Context, reference string) (*models.Customer, error)
	// CompareAndSetStatus writes the provider transaction id and status and
	// bumps the version, only if the stored version equals expectedVersion.
	CompareAndSetStatus(ctx context.Context, id string, expectedVersion int64, transactionID string, status models.TransactionStatus) error
}
