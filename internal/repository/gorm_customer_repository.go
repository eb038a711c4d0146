package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/esarmiem/navegantes-payment-e-learning/internal/interfaces"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/models"
)

// GormCustomerRepository stores customers through GORM. It backs local
// development on SQLite and the repository tests.
type GormCustomerRepository struct {
	db *gorm.DB
}

func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// OpenSQLite opens a SQLite database at dsn, e.g. "file:navegantes.db".
func OpenSQLite(dsn string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
}

func (r *GormCustomerRepository) InitDB(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&models.Customer{})
}

func (r *GormCustomerRepository) Create(ctx context.Context, c *models.Customer) error {
	if c.Status == "" {
		c.Status = models.StatusPending
	}
	err := r.db.WithContext(ctx).Create(c).Error
	if err != nil && isUniqueViolation(err) {
		return interfaces.ErrDuplicateReference
	}
	return err
}

func (r *GormCustomerRepository) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *GormCustomerRepository) GetByReference(ctx context.Context, reference string) (*models.Customer, error) {
	return r.first(ctx, "reference = ?", reference)
}

func (r *GormCustomerRepository) CompareAndSetStatus(ctx context.Context, id string, expectedVersion int64, transactionID string, status models.TransactionStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]any{
			"transaction_id": transactionID,
			"status":         status,
			"version":        gorm.Expr("version + 1"),
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return interfaces.ErrVersionConflict
	}
	return nil
}

func (r *GormCustomerRepository) first(ctx context.Context, query string, arg any) (*models.Customer, error) {
	var c models.Customer
	err := r.db.WithContext(ctx).Where(query, arg).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, interfaces.ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
