package reconcile

import (
	"context"
	"sync"

	"github.com/esarmiem/navegantes-payment-e-learning/internal/events"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/interfaces"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/models"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/notify"
)

// memoryRepo implements interfaces.CustomerRepository in memory.
type memoryRepo struct {
	mu       sync.Mutex
	byID     map[string]*models.Customer
	casCalls int
	// beforeCAS runs before each compare-and-set, outside the lock.
	beforeCAS func()
}

func newMemoryRepo(customers ...*models.Customer) *memoryRepo {
	r := &memoryRepo{byID: map[string]*models.Customer{}}
	for _, c := range customers {
		r.byID[c.ID] = c
	}
	return r
}

func (r *memoryRepo) InitDB(context.Context) error { return nil }

func (r *memoryRepo) Create(_ context.Context, c *models.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Reference == c.Reference {
			return interfaces.ErrDuplicateReference
		}
	}
	cp := *c
	r.byID[c.ID] = &cp
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id string) (*models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, interfaces.ErrCustomerNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memoryRepo) GetByReference(_ context.Context, reference string) (*models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.byID {
		if c.Reference == reference {
			cp := *c
			return &cp, nil
		}
	}
	return nil, interfaces.ErrCustomerNotFound
}

func (r *memoryRepo) CompareAndSetStatus(_ context.Context, id string, expectedVersion int64, txID string, status models.TransactionStatus) error {
	if r.beforeCAS != nil {
		r.beforeCAS()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.casCalls++
	c, ok := r.byID[id]
	if !ok || c.Version != expectedVersion {
		return interfaces.ErrVersionConflict
	}
	tx := txID
	c.TransactionID = &tx
	c.Status = status
	c.Version++
	return nil
}

func (r *memoryRepo) get(id string) models.Customer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.byID[id]
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Activation
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, a notify.Activation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, a)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.TransactionUpdated
}

func (p *recordingPublisher) PublishTransactionUpdated(_ context.Context, ev events.TransactionUpdated) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}
