package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/esarmiem/navegantes-payment-e-learning/internal/interfaces"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/models"
)

const uniqueViolation = "23505"

const customerColumns = `id, first_names, last_names, identification, email, phone, birth_date,
	address, city, plan, amount_in_cents, reference, transaction_id, status, version,
	created_at, updated_at`

type CustomerRepository struct {
	db *sql.DB
}

func NewCustomerRepository(db *sql.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) InitDB(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS customers (
			id VARCHAR(64) PRIMARY KEY,
			first_names VARCHAR(255) NOT NULL,
			last_names VARCHAR(255) NOT NULL,
			identification VARCHAR(64) NOT NULL,
			email VARCHAR(255) NOT NULL,
			phone VARCHAR(64) NOT NULL,
			birth_date VARCHAR(32),
			address VARCHAR(255),
			city VARCHAR(128),
			plan VARCHAR(32) NOT NULL,
			amount_in_cents BIGINT NOT NULL,
			reference VARCHAR(128) NOT NULL UNIQUE,
			transaction_id VARCHAR(128),
			status VARCHAR(50) NOT NULL DEFAULT 'pending',
			version BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_customers_transaction_id ON customers(transaction_id)`,
		`CREATE INDEX IF NOT EXISTS idx_customers_status ON customers(status)`,
	}

	for _, query := range queries {
		if _, err := r.db.ExecContext(ctx, query); err != nil {
			return err
		}
	}

	return nil
}

func (r *CustomerRepository) Create(ctx context.Context, c *models.Customer) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = models.StatusPending
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, c.ID, c.FirstNames, c.LastNames, c.Identification, c.Email, c.Phone, c.BirthDate,
		c.Address, c.City, c.Plan, c.AmountInCents, c.Reference, c.TransactionID, c.Status, c.Version,
		c.CreatedAt, c.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return interfaces.ErrDuplicateReference
	}
	return err
}

func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	return scanCustomer(row)
}

func (r *CustomerRepository) GetByReference(ctx context.Context, reference string) (*models.Customer, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE reference = $1`, reference)
	return scanCustomer(row)
}

func (r *CustomerRepository) CompareAndSetStatus(ctx context.Context, id string, expectedVersion int64, transactionID string, status models.TransactionStatus) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE customers
		SET transaction_id = $1, status = $2, version = version + 1, updated_at = NOW()
		WHERE id = $3 AND version = $4
	`, transactionID, status, id, expectedVersion)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return interfaces.ErrVersionConflict
	}
	return nil
}

func scanCustomer(row *sql.Row) (*models.Customer, error) {
	var c models.Customer
	err := row.Scan(&c.ID, &c.FirstNames, &c.LastNames, &c.Identification, &c.Email, &c.Phone,
		&c.BirthDate, &c.Address, &c.City, &c.Plan, &c.AmountInCents, &c.Reference,
		&c.TransactionID, &c.Status, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
