package entity

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

// Buyable describes an external sellable entity that can be placed in the
// cart. The options of the prospective item are passed in so implementations
// can vary identifier, description or price per option combination.
type Buyable interface {
	BuyableIdentifier(options ItemOptions) string
	BuyableDescription(options ItemOptions) string
	BuyablePrice(options ItemOptions) float64
}

// ItemRecord is the flat attribute form accepted when adding or patching a
// cart item. On add, ID, Name and Price are required. On patch, every nil or
// zero field keeps the current value.
type ItemRecord struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Qty     *float64    `json:"qty,omitempty"`
	Price   *float64    `json:"price,omitempty"`
	Options ItemOptions `json:"options,omitempty"`
	TaxRate *float64    `json:"taxRate,omitempty"`
	Class   string      `json:"class,omitempty"`
}

// ItemPatch is the tagged update variant accepted by Cart.Update: exactly one
// of the fields must be set.
type ItemPatch struct {
	Qty     *float64
	Record  *ItemRecord
	Buyable Buyable
}

// Validate checks that exactly one patch variant is set.
func (p ItemPatch) Validate() error {
	n := 0
	if p.Qty != nil {
		n++
	}
	if p.Record != nil {
		n++
	}
	if p.Buyable != nil {
		n++
	}
	if n != 1 {
		return fmt.Errorf("%w: update requires exactly one of qty, record or buyable", ErrInvalidArgument)
	}
	return nil
}

// CartItem is one priced line item of a cart. Its identity inputs (id,
// options, price, tax rate) are unexported so the rowId can never go stale:
// every mutation path recomputes it.
type CartItem struct {
	rowID    string
	id       string
	name     string
	qty      float64
	price    float64
	options  ItemOptions
	taxRate  float64
	modelTag string
	model    any
}

// NewCartItem creates an item from explicit attributes. The tax rate is the
// caller's configured default and can be overridden afterwards.
func NewCartItem(id, name string, price float64, options ItemOptions, taxRate float64) (*CartItem, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: please supply a valid identifier", ErrInvalidArgument)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: please supply a valid name", ErrInvalidArgument)
	}

	item := &CartItem{
		id:      id,
		name:    name,
		qty:     1,
		price:   price,
		options: options.Clone(),
		taxRate: taxRate,
	}
	item.refreshRowID()
	return item, nil
}

// NewCartItemFromBuyable creates an item from an external buyable and keeps
// the buyable associated as the item's live model.
func NewCartItemFromBuyable(b Buyable, options ItemOptions, taxRate float64) (*CartItem, error) {
	item, err := NewCartItem(b.BuyableIdentifier(options), b.BuyableDescription(options), b.BuyablePrice(options), options, taxRate)
	if err != nil {
		return nil, err
	}
	if err := item.Associate(b); err != nil {
		return nil, err
	}
	return item, nil
}

// NewCartItemFromRecord creates an item from the flat record form. Qty
// defaults to 1 and the tax rate to defaultTaxRate when the record leaves
// them unset.
func NewCartItemFromRecord(rec ItemRecord, defaultTaxRate float64) (*CartItem, error) {
	if rec.Price == nil {
		return nil, fmt.Errorf("%w: please supply a valid price", ErrInvalidArgument)
	}

	item, err := NewCartItem(rec.ID, rec.Name, *rec.Price, rec.Options, defaultTaxRate)
	if err != nil {
		return nil, err
	}
	if rec.Qty != nil {
		item.qty = *rec.Qty
	}
	if rec.TaxRate != nil {
		item.taxRate = *rec.TaxRate
	}
	item.modelTag = rec.Class
	item.refreshRowID()
	return item, nil
}

// RowID returns the content hash identifying this item's merge-identity.
func (i *CartItem) RowID() string { return i.rowID }

func (i *CartItem) ID() string           { return i.id }
func (i *CartItem) Name() string         { return i.name }
func (i *CartItem) Qty() float64         { return i.qty }
func (i *CartItem) Price() float64       { return i.price }
func (i *CartItem) Options() ItemOptions { return i.options.Clone() }
func (i *CartItem) TaxRate() float64     { return i.taxRate }

// ModelTag returns the type tag of the associated model, if any.
func (i *CartItem) ModelTag() string { return i.modelTag }

// Model returns the retained live model, or nil when the item only carries a
// type tag.
func (i *CartItem) Model() any { return i.model }

// Tax is the tax amount for a single unit.
func (i *CartItem) Tax() float64 { return i.price * (i.taxRate / 100) }

// PriceTax is the unit price including tax.
func (i *CartItem) PriceTax() float64 { return i.price + i.Tax() }

// Subtotal is the price for the whole row without tax.
func (i *CartItem) Subtotal() float64 { return i.qty * i.price }

// Total is the price for the whole row including tax.
func (i *CartItem) Total() float64 { return i.qty * i.PriceTax() }

// TaxTotal is the tax amount for the whole row.
func (i *CartItem) TaxTotal() float64 { return i.Tax() * i.qty }

// SetQuantity replaces the quantity. Quantity is not part of the identity
// tuple, so the rowId stays unchanged.
func (i *CartItem) SetQuantity(qty float64) { i.qty = qty }

// SetTaxRate replaces the tax rate and recomputes the rowId, since the tax
// rate is part of the identity tuple.
func (i *CartItem) SetTaxRate(taxRate float64) {
	i.taxRate = taxRate
	i.refreshRowID()
}

// UpdateFromBuyable refreshes id, name and price from the given buyable and
// recomputes the rowId.
func (i *CartItem) UpdateFromBuyable(b Buyable) {
	i.id = b.BuyableIdentifier(i.options)
	i.name = b.BuyableDescription(i.options)
	i.price = b.BuyablePrice(i.options)
	i.refreshRowID()
}

// UpdateFromRecord applies the set fields of rec onto the item and recomputes
// the rowId.
func (i *CartItem) UpdateFromRecord(rec ItemRecord) error {
	if rec.ID != "" {
		i.id = rec.ID
	}
	if rec.Name != "" {
		i.name = rec.Name
	}
	if rec.Qty != nil {
		i.qty = *rec.Qty
	}
	if rec.Price != nil {
		i.price = *rec.Price
	}
	if rec.TaxRate != nil {
		i.taxRate = *rec.TaxRate
	}
	if rec.Options != nil {
		i.options = rec.Options.Clone()
	}
	if rec.Class != "" {
		i.modelTag = rec.Class
	}
	if i.id == "" || i.name == "" {
		return fmt.Errorf("%w: an item requires an identifier and a name", ErrInvalidArgument)
	}

	i.refreshRowID()
	return nil
}

// Associate links the item to an external model. A string is treated as a
// type tag; any other value is retained for immediate re-access and tagged
// with its type name. A nil model is rejected before anything is changed.
func (i *CartItem) Associate(model any) error {
	if model == nil {
		return fmt.Errorf("%w: please supply a model to associate", ErrInvalidArgument)
	}
	if tag, ok := model.(string); ok {
		i.modelTag = tag
		return nil
	}

	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	i.modelTag = t.Name()
	i.model = model
	return nil
}

func (i *CartItem) refreshRowID() {
	sum := md5.Sum([]byte(i.id + i.options.Canonical() +
		"|" + strconv.FormatFloat(i.price, 'f', -1, 64) +
		"|" + strconv.FormatFloat(i.taxRate, 'f', -1, 64)))
	i.rowID = hex.EncodeToString(sum[:])
}

// itemPayload is the wire shape of a cart item. The rowId, tax and subtotal
// fields are display-only: deserialization ignores them and rederives
// everything from the identity inputs.
type itemPayload struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Qty      float64     `json:"qty"`
	Price    float64     `json:"price"`
	Options  ItemOptions `json:"options"`
	TaxRate  float64     `json:"taxRate"`
	Class    string      `json:"class,omitempty"`
	RowID    string      `json:"rowId,omitempty"`
	Tax      float64     `json:"tax,omitempty"`
	Subtotal float64     `json:"subtotal,omitempty"`
}

func (i *CartItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(itemPayload{
		ID:       i.id,
		Name:     i.name,
		Qty:      i.qty,
		Price:    i.price,
		Options:  i.options,
		TaxRate:  i.taxRate,
		Class:    i.modelTag,
		RowID:    i.rowID,
		Tax:      i.Tax(),
		Subtotal: i.Subtotal(),
	})
}

func (i *CartItem) UnmarshalJSON(data []byte) error {
	var p itemPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.ID == "" || p.Name == "" {
		return fmt.Errorf("%w: serialized item misses identifier or name", ErrInvalidArgument)
	}

	i.id = p.ID
	i.name = p.Name
	i.qty = p.Qty
	i.price = p.Price
	i.options = p.Options
	i.taxRate = p.TaxRate
	i.modelTag = p.Class
	i.refreshRowID()
	return nil
}
