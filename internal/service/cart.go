package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"cart-service/internal/config"
	"cart-service/internal/entity"
	"cart-service/internal/events"
	"cart-service/internal/repository"
	"cart-service/internal/session"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

const DefaultInstance = "default"

// Well-known extra cost names.
const (
	CostShipping    = "shipping"
	CostTransaction = "transaction"
)

const instancePrefix = "cart."

// StoredCartRepository is what the cart needs from the relational store.
type StoredCartRepository interface {
	Upsert(ctx context.Context, stored *repository.StoredCart) error
	Find(ctx context.Context, identifier, instance string) (*repository.StoredCart, error)
	Exists(ctx context.Context, identifier, instance string) (bool, error)
	Delete(ctx context.Context, identifier, instance string) (int64, error)
}

// Cart is the aggregate over one instance's content. Content lives in the
// session store under "cart."+instance; the extra-cost ledger is in-memory
// only and never persisted.
//
// The persistence operations (Store, Restore, Merge, Delete) are each a
// single read-then-write against the relational store with no locking:
// concurrent callers acting on the same (identifier, instance) can race.
// That is an accepted limitation of the protocol.
type Cart struct {
	instance string
	sessions session.Store
	repo     StoredCartRepository
	events   events.Dispatcher
	models   *ModelRegistry
	cfg      config.Config

	// extraCosts and liveModels are in-memory only: extra costs are never
	// part of the persisted snapshot, and retained live models cannot
	// survive serialization through the session store. mu guards both,
	// since HTTP handlers touch the same cart from concurrent goroutines.
	mu         sync.Mutex
	extraCosts map[string]float64
	liveModels map[string]any
	createdAt  time.Time
	updatedAt  time.Time
}

// NewCart creates a cart bound to the default instance.
func NewCart(sessions session.Store, repo StoredCartRepository, dispatcher events.Dispatcher, models *ModelRegistry, cfg config.Config) *Cart {
	if models == nil {
		models = NewModelRegistry()
	}

	c := &Cart{
		sessions:   sessions,
		repo:       repo,
		events:     dispatcher,
		models:     models,
		cfg:        cfg,
		extraCosts: make(map[string]float64),
		liveModels: make(map[string]any),
	}
	c.setInstance(DefaultInstance)
	return c
}

func (c *Cart) setInstance(name string) {
	if name == "" {
		name = DefaultInstance
	}
	c.instance = instancePrefix + name
}

// Instance returns a cart bound to the given instance name, sharing the same
// backing stores. The returned cart starts with its own extra-cost ledger.
func (c *Cart) Instance(name string) *Cart {
	clone := &Cart{
		sessions:   c.sessions,
		repo:       c.repo,
		events:     c.events,
		models:     c.models,
		cfg:        c.cfg,
		extraCosts: make(map[string]float64),
		liveModels: make(map[string]any),
		createdAt:  c.createdAt,
		updatedAt:  c.updatedAt,
	}
	clone.setInstance(name)
	return clone
}

// CurrentInstance returns the instance name this cart is bound to.
func (c *Cart) CurrentInstance() string {
	return strings.TrimPrefix(c.instance, instancePrefix)
}

// CreatedAt returns the created_at of the last restored snapshot.
func (c *Cart) CreatedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createdAt
}

// UpdatedAt returns the updated_at of the last restored snapshot.
func (c *Cart) UpdatedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updatedAt
}

// Format renders a monetary value using the configured number format. It is
// presentation-only and never feeds back into stored values.
func (c *Cart) Format(value float64) string {
	return c.cfg.Format.Format(value)
}

// Add adds an item from explicit attributes. When an item with the same
// identity (id, options, price, tax rate) already exists, the quantities are
// combined instead of inserting a duplicate row.
func (c *Cart) Add(ctx context.Context, id, name string, qty, price float64, options entity.ItemOptions) (*entity.CartItem, error) {
	item, err := entity.NewCartItem(id, name, price, options, c.cfg.TaxRate)
	if err != nil {
		return nil, err
	}
	item.SetQuantity(qty)

	return c.addCartItem(ctx, item, true)
}

// AddBuyable adds an item described by an external buyable and associates
// the buyable as the item's live model. A zero qty defaults to 1.
func (c *Cart) AddBuyable(ctx context.Context, b entity.Buyable, qty float64, options entity.ItemOptions) (*entity.CartItem, error) {
	item, err := entity.NewCartItemFromBuyable(b, options, c.cfg.TaxRate)
	if err != nil {
		return nil, err
	}
	if qty != 0 {
		item.SetQuantity(qty)
	}

	return c.addCartItem(ctx, item, true)
}

// AddRecord adds an item from the flat record form.
func (c *Cart) AddRecord(ctx context.Context, rec entity.ItemRecord) (*entity.CartItem, error) {
	item, err := entity.NewCartItemFromRecord(rec, c.cfg.TaxRate)
	if err != nil {
		return nil, err
	}

	return c.addCartItem(ctx, item, true)
}

// AddBatch adds a sequence of records and returns the resulting items in the
// same order.
func (c *Cart) AddBatch(ctx context.Context, recs []entity.ItemRecord) ([]*entity.CartItem, error) {
	items := make([]*entity.CartItem, 0, len(recs))
	for _, rec := range recs {
		item, err := c.AddRecord(ctx, rec)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *Cart) addCartItem(ctx context.Context, item *entity.CartItem, dispatchEvent bool) (*entity.CartItem, error) {
	content, err := c.getContent(ctx)
	if err != nil {
		return nil, err
	}

	if existing := content.Get(item.RowID()); existing != nil {
		item.SetQuantity(item.Qty() + existing.Qty())
	}
	content.Put(item)

	if err := c.putContent(ctx, content); err != nil {
		return nil, err
	}
	if dispatchEvent {
		if err := c.events.Dispatch(ctx, events.Added, item); err != nil {
			logger.Error().Err(err).Msg("Error dispatching cart.added")
			return nil, err
		}
	}

	return item, nil
}

// Update applies the patch to the item with the given rowId. When the patch
// changes the item's identity, the row is re-keyed and merged with any
// existing identical-identity row. A resulting quantity of zero or below
// removes the item; the returned item is nil in that case.
func (c *Cart) Update(ctx context.Context, rowID string, patch entity.ItemPatch) (*entity.CartItem, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	content, err := c.getContent(ctx)
	if err != nil {
		return nil, err
	}
	item := content.Get(rowID)
	if item == nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrInvalidRowID, rowID)
	}

	switch {
	case patch.Buyable != nil:
		item.UpdateFromBuyable(patch.Buyable)
	case patch.Record != nil:
		if err := item.UpdateFromRecord(*patch.Record); err != nil {
			return nil, err
		}
	default:
		item.SetQuantity(*patch.Qty)
	}

	return c.rekey(ctx, content, rowID, item)
}

// SetTax replaces the item's tax rate. The tax rate is part of the identity
// tuple, so this can trigger the same re-key and merge as Update.
func (c *Cart) SetTax(ctx context.Context, rowID string, taxRate float64) (*entity.CartItem, error) {
	content, err := c.getContent(ctx)
	if err != nil {
		return nil, err
	}
	item := content.Get(rowID)
	if item == nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrInvalidRowID, rowID)
	}

	item.SetTaxRate(taxRate)

	return c.rekey(ctx, content, rowID, item)
}

// rekey moves the item under its recomputed rowId, combining quantities with
// an existing identical-identity row, and drops the item entirely when its
// quantity has reached zero or below.
func (c *Cart) rekey(ctx context.Context, content *entity.Content, oldRowID string, item *entity.CartItem) (*entity.CartItem, error) {
	if oldRowID != item.RowID() {
		content.Pull(oldRowID)
		if existing := content.Get(item.RowID()); existing != nil {
			item.SetQuantity(existing.Qty() + item.Qty())
		}
	}

	if item.Qty() <= 0 {
		content.Pull(item.RowID())
		if err := c.putContent(ctx, content); err != nil {
			return nil, err
		}
		if err := c.events.Dispatch(ctx, events.Removed, item); err != nil {
			return nil, err
		}
		return nil, nil
	}

	content.Put(item)
	if err := c.putContent(ctx, content); err != nil {
		return nil, err
	}
	if err := c.events.Dispatch(ctx, events.Updated, item); err != nil {
		return nil, err
	}

	return item, nil
}

// Remove deletes the item with the given rowId.
func (c *Cart) Remove(ctx context.Context, rowID string) error {
	content, err := c.getContent(ctx)
	if err != nil {
		return err
	}
	item := content.Pull(rowID)
	if item == nil {
		return fmt.Errorf("%w: %s", entity.ErrInvalidRowID, rowID)
	}

	if err := c.putContent(ctx, content); err != nil {
		return err
	}

	return c.events.Dispatch(ctx, events.Removed, item)
}

// Get returns the item with the given rowId.
func (c *Cart) Get(ctx context.Context, rowID string) (*entity.CartItem, error) {
	content, err := c.getContent(ctx)
	if err != nil {
		return nil, err
	}
	item := content.Get(rowID)
	if item == nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrInvalidRowID, rowID)
	}

	return item, nil
}

// Search returns every item satisfying the predicate.
func (c *Cart) Search(ctx context.Context, pred func(item *entity.CartItem, rowID string) bool) ([]*entity.CartItem, error) {
	content, err := c.getContent(ctx)
	if err != nil {
		return nil, err
	}

	var found []*entity.CartItem
	for _, item := range content.Items() {
		if pred(item, item.RowID()) {
			found = append(found, item)
		}
	}
	return found, nil
}

// Associate links the item with an external model. A string is a type tag
// and must be registered in the model registry; any other value is retained
// on the item for immediate re-access.
func (c *Cart) Associate(ctx context.Context, rowID string, model any) error {
	if model == nil {
		return fmt.Errorf("%w: please supply a model to associate", entity.ErrInvalidArgument)
	}
	if tag, ok := model.(string); ok && !c.models.Known(tag) {
		return fmt.Errorf("%w: %s", entity.ErrUnknownModel, tag)
	}

	content, err := c.getContent(ctx)
	if err != nil {
		return err
	}
	item := content.Get(rowID)
	if item == nil {
		return fmt.Errorf("%w: %s", entity.ErrInvalidRowID, rowID)
	}

	if err := item.Associate(model); err != nil {
		return err
	}
	if _, isTag := model.(string); !isTag {
		c.mu.Lock()
		c.liveModels[item.RowID()] = model
		c.mu.Unlock()
	}
	content.Put(item)

	return c.putContent(ctx, content)
}

// Model returns the live model associated with the item, fetching it through
// the registered lookup when the item carries only a type tag.
func (c *Cart) Model(ctx context.Context, rowID string) (any, error) {
	item, err := c.Get(ctx, rowID)
	if err != nil {
		return nil, err
	}
	if m := item.Model(); m != nil {
		return m, nil
	}
	c.mu.Lock()
	m, ok := c.liveModels[rowID]
	c.mu.Unlock()
	if ok {
		return m, nil
	}
	if item.ModelTag() == "" {
		return nil, nil
	}

	return c.models.Resolve(ctx, item.ModelTag(), item.ID())
}

// AddCost adds an extra cost onto the cart. Repeated calls with the same
// name accumulate.
func (c *Cart) AddCost(name string, price float64) {
	c.mu.Lock()
	c.extraCosts[name] += price
	c.mu.Unlock()
}

// GetCost returns the accumulated extra cost for name, or 0 when unknown.
func (c *Cart) GetCost(name string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.extraCosts[name]
}

// Count returns the sum of quantities across all items.
func (c *Cart) Count(ctx context.Context) (float64, error) {
	content, err := c.getContent(ctx)
	if err != nil {
		return 0, err
	}

	var count float64
	for _, item := range content.Items() {
		count += item.Qty()
	}
	return count, nil
}

// Subtotal returns the price of all items without tax.
func (c *Cart) Subtotal(ctx context.Context) (float64, error) {
	content, err := c.getContent(ctx)
	if err != nil {
		return 0, err
	}

	var subtotal float64
	for _, item := range content.Items() {
		subtotal += item.Subtotal()
	}
	return subtotal, nil
}

// Tax returns the total tax of all items.
func (c *Cart) Tax(ctx context.Context) (float64, error) {
	content, err := c.getContent(ctx)
	if err != nil {
		return 0, err
	}

	var tax float64
	for _, item := range content.Items() {
		tax += item.TaxTotal()
	}
	return tax, nil
}

// Total returns the price of all items including tax, plus the accumulated
// extra costs.
func (c *Cart) Total(ctx context.Context) (float64, error) {
	content, err := c.getContent(ctx)
	if err != nil {
		return 0, err
	}

	var total float64
	for _, item := range content.Items() {
		total += item.Total()
	}
	c.mu.Lock()
	for _, cost := range c.extraCosts {
		total += cost
	}
	c.mu.Unlock()
	return total, nil
}

// Content returns the current content of this instance.
func (c *Cart) Content(ctx context.Context) (*entity.Content, error) {
	return c.getContent(ctx)
}

// Destroy clears this instance's session content. Extra costs and stored
// snapshots are untouched.
func (c *Cart) Destroy(ctx context.Context) error {
	return c.sessions.Remove(ctx, c.instance)
}

// Store persists the current content under the given identifier. An empty
// cart is never persisted: storing it deletes any existing snapshot instead.
func (c *Cart) Store(ctx context.Context, identifier string) error {
	content, err := c.getContent(ctx)
	if err != nil {
		return err
	}
	if content.IsEmpty() {
		_, err := c.Delete(ctx, identifier)
		return err
	}

	data, err := json.Marshal(content)
	if err != nil {
		return err
	}

	// updated_at is always refreshed; the upsert leaves created_at alone
	// when a row already exists.
	now := time.Now()
	createdAt := c.CreatedAt()
	if createdAt.IsZero() {
		createdAt = now
	}

	err = c.repo.Upsert(ctx, &repository.StoredCart{
		Identifier: identifier,
		Instance:   c.CurrentInstance(),
		Content:    data,
		CreatedAt:  createdAt,
		UpdatedAt:  now,
	})
	if err != nil {
		logger.Error().Err(err).Msgf("Error storing cart %s", identifier)
		return err
	}

	return c.events.Dispatch(ctx, events.Stored, c.persistencePayload(identifier))
}

// Restore merges the stored snapshot for the given identifier into the
// current content, overwriting by rowId, and consumes the stored row. It is
// a no-op when no snapshot exists.
func (c *Cart) Restore(ctx context.Context, identifier string) error {
	stored, err := c.repo.Find(ctx, identifier, c.CurrentInstance())
	if err != nil {
		logger.Error().Err(err).Msgf("Error finding stored cart %s", identifier)
		return err
	}
	if stored == nil {
		return nil
	}

	storedContent := entity.NewContent()
	if err := json.Unmarshal(stored.Content, storedContent); err != nil {
		return err
	}

	content, err := c.getContent(ctx)
	if err != nil {
		return err
	}
	for _, item := range storedContent.Items() {
		content.Put(item)
	}

	if err := c.putContent(ctx, content); err != nil {
		return err
	}
	if err := c.events.Dispatch(ctx, events.Restored, c.persistencePayload(identifier)); err != nil {
		return err
	}

	c.mu.Lock()
	c.createdAt = stored.CreatedAt
	c.updatedAt = stored.UpdatedAt
	c.mu.Unlock()

	_, err = c.repo.Delete(ctx, identifier, c.CurrentInstance())
	return err
}

// Merge adds every item of the stored snapshot through the normal add path,
// so quantities combine with existing identical-identity items. The stored
// row is kept. When keepTax is false, merged items take the configured
// default tax rate before their identity is recomputed. dispatchAdd controls
// the per-item added events; instance, when non-empty, merges into that
// instance instead of the current one. It reports whether a snapshot was
// found.
func (c *Cart) Merge(ctx context.Context, identifier string, keepTax, dispatchAdd bool, instance string) (bool, error) {
	target := c
	if instance != "" {
		target = c.Instance(instance)
	}

	stored, err := c.repo.Find(ctx, identifier, target.CurrentInstance())
	if err != nil {
		logger.Error().Err(err).Msgf("Error finding stored cart %s", identifier)
		return false, err
	}
	if stored == nil {
		return false, nil
	}

	storedContent := entity.NewContent()
	if err := json.Unmarshal(stored.Content, storedContent); err != nil {
		return false, err
	}

	for _, item := range storedContent.Items() {
		if !keepTax {
			item.SetTaxRate(c.cfg.TaxRate)
		}
		if _, err := target.addCartItem(ctx, item, dispatchAdd); err != nil {
			return false, err
		}
	}

	if err := c.events.Dispatch(ctx, events.Merged, target.persistencePayload(identifier)); err != nil {
		return false, err
	}

	return true, nil
}

// Delete removes the stored snapshot for the given identifier and reports
// whether a row was actually removed.
func (c *Cart) Delete(ctx context.Context, identifier string) (bool, error) {
	rows, err := c.repo.Delete(ctx, identifier, c.CurrentInstance())
	if err != nil {
		logger.Error().Err(err).Msgf("Error deleting stored cart %s", identifier)
		return false, err
	}
	return rows > 0, nil
}

func (c *Cart) persistencePayload(identifier string) map[string]string {
	return map[string]string{
		"identifier": identifier,
		"instance":   c.CurrentInstance(),
	}
}

func (c *Cart) getContent(ctx context.Context) (*entity.Content, error) {
	content, err := c.sessions.Get(ctx, c.instance)
	if err != nil {
		return nil, err
	}
	if content == nil {
		content = entity.NewContent()
	}
	return content, nil
}

func (c *Cart) putContent(ctx context.Context, content *entity.Content) error {
	return c.sessions.Put(ctx, c.instance, content)
}
