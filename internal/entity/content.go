package entity

import "encoding/json"

// Content is the rowId -> CartItem mapping of one cart instance. It keeps
// insertion order so stored snapshots serialize the items in the order they
// were added. Keys always match the item's current rowId: Put keys by
// CartItem.RowID(), so a stale key can never survive an identity change.
type Content struct {
	order []string
	items map[string]*CartItem
}

func NewContent() *Content {
	return &Content{items: make(map[string]*CartItem)}
}

// Has reports whether an item with the given rowId is present.
func (c *Content) Has(rowID string) bool {
	_, ok := c.items[rowID]
	return ok
}

// Get returns the item with the given rowId, or nil when absent.
func (c *Content) Get(rowID string) *CartItem {
	return c.items[rowID]
}

// Put inserts or replaces the item under its own current rowId.
func (c *Content) Put(item *CartItem) {
	rowID := item.RowID()
	if _, ok := c.items[rowID]; !ok {
		c.order = append(c.order, rowID)
	}
	c.items[rowID] = item
}

// Pull removes and returns the item with the given rowId, or nil when absent.
func (c *Content) Pull(rowID string) *CartItem {
	item, ok := c.items[rowID]
	if !ok {
		return nil
	}
	delete(c.items, rowID)
	for n, id := range c.order {
		if id == rowID {
			c.order = append(c.order[:n], c.order[n+1:]...)
			break
		}
	}
	return item
}

func (c *Content) Len() int { return len(c.items) }

func (c *Content) IsEmpty() bool { return len(c.items) == 0 }

// Items returns all items in insertion order.
func (c *Content) Items() []*CartItem {
	items := make([]*CartItem, 0, len(c.order))
	for _, rowID := range c.order {
		items = append(items, c.items[rowID])
	}
	return items
}

// RowIDs returns all rowIds in insertion order.
func (c *Content) RowIDs() []string {
	ids := make([]string, len(c.order))
	copy(ids, c.order)
	return ids
}

func (c *Content) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Items())
}

func (c *Content) UnmarshalJSON(data []byte) error {
	var items []*CartItem
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}

	c.order = nil
	c.items = make(map[string]*CartItem, len(items))
	for _, item := range items {
		c.Put(item)
	}
	return nil
}
