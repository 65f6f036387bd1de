package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/maxshopweb/checkout/internal/domain"
)

// Engine owns the line-item collection and the pricing arithmetic. All
// mutations load the snapshot, rebuild the affected line from the product's
// current pricing, recompute the summary from scratch and persist the result.
// Mutations for one owner are serialized on a per-owner lock, matching the
// single-writer model the rest of the pipeline assumes.
type Engine struct {
	repo Repository

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEngine(repo Repository) *Engine {
	return &Engine{
		repo:  repo,
		locks: make(map[string]*sync.Mutex),
	}
}

func (e *Engine) ownerLock(ownerID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[ownerID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[ownerID] = l
	}
	return l
}

// GetCart loads the persisted snapshot and re-prices every line from its
// embedded product snapshot before returning. Persisted unit prices are
// never trusted verbatim; a catalog price change must not survive a reload.
func (e *Engine) GetCart(ctx context.Context, ownerID string) (*domain.Cart, domain.CartSummary, error) {
	c, err := e.load(ctx, ownerID)
	if err != nil {
		return nil, domain.CartSummary{}, err
	}
	return c, Summarize(c.Lines, 0), nil
}

// AddItem merges into an existing line for the same product or appends a new
// one. A merge re-prices the whole line from the product's current pricing.
// Quantities below 1 are coerced to 1.
func (e *Engine) AddItem(ctx context.Context, ownerID string, product domain.Product, qty int) (*domain.Cart, domain.CartSummary, error) {
	if qty < 1 {
		qty = 1
	}

	lock := e.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	c, err := e.load(ctx, ownerID)
	if err != nil {
		return nil, domain.CartSummary{}, err
	}

	merged := false
	for i := range c.Lines {
		if c.Lines[i].ProductID == product.ID {
			c.Lines[i] = PriceLine(product, c.Lines[i].Quantity+qty)
			merged = true
			break
		}
	}
	if !merged {
		c.Lines = append(c.Lines, PriceLine(product, qty))
	}

	return e.save(ctx, c)
}

// UpdateQuantity re-prices the line at the new quantity. A quantity of 0 or
// less delegates to RemoveItem.
func (e *Engine) UpdateQuantity(ctx context.Context, ownerID string, productID int64, qty int) (*domain.Cart, domain.CartSummary, error) {
	if qty <= 0 {
		return e.RemoveItem(ctx, ownerID, productID)
	}

	lock := e.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	c, err := e.load(ctx, ownerID)
	if err != nil {
		return nil, domain.CartSummary{}, err
	}

	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines[i] = PriceLine(c.Lines[i].Product, qty)
			return e.save(ctx, c)
		}
	}

	// Unknown product: nothing to update, current state is the answer.
	return c, Summarize(c.Lines, 0), nil
}

func (e *Engine) RemoveItem(ctx context.Context, ownerID string, productID int64) (*domain.Cart, domain.CartSummary, error) {
	lock := e.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	c, err := e.load(ctx, ownerID)
	if err != nil {
		return nil, domain.CartSummary{}, err
	}

	kept := c.Lines[:0]
	for _, l := range c.Lines {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	c.Lines = kept

	return e.save(ctx, c)
}

func (e *Engine) ClearCart(ctx context.Context, ownerID string) error {
	lock := e.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	err := e.repo.DeleteCart(ctx, ownerID)
	if err != nil && !errors.Is(err, ErrCartNotFound) {
		log.WithError(err).WithField("owner_id", ownerID).Error("clear cart failed")
		return err
	}
	return nil
}

func (e *Engine) load(ctx context.Context, ownerID string) (*domain.Cart, error) {
	c, err := e.repo.GetCart(ctx, ownerID)
	if errors.Is(err, ErrCartNotFound) {
		return &domain.Cart{
			OwnerID:   ownerID,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	// Rehydration: rebuild every line from its product snapshot.
	for i := range c.Lines {
		c.Lines[i] = PriceLine(c.Lines[i].Product, c.Lines[i].Quantity)
	}
	return c, nil
}

func (e *Engine) save(ctx context.Context, c *domain.Cart) (*domain.Cart, domain.CartSummary, error) {
	if err := e.repo.UpsertCart(ctx, c); err != nil {
		log.WithError(err).WithField("owner_id", c.OwnerID).Error("persist cart failed")
		return nil, domain.CartSummary{}, err
	}
	return c, Summarize(c.Lines, 0), nil
}
