package board

import "fmt"

// Layer is the direction of a z-order change.
type Layer int

const (
	LayerFront Layer = iota
	LayerBack
)

// AddItem appends it on top of b. The author's item cap is enforced.
func (b Board) AddItem(it Item) (Board, error) {
	if b.MaxItemsPerUser > 0 && b.CountByAuthor(it.Author) >= b.MaxItemsPerUser {
		return b, ErrLimitReached
	}
	if it.Payload == nil {
		return b, fmt.Errorf("%w: item has no payload", ErrInvalidContent)
	}
	items := make([]Item, len(b.Items), len(b.Items)+1)
	copy(items, b.Items)
	return b.WithItems(append(items, it)), nil
}

// UpdateItem applies p to the item with id on behalf of user.
func (b Board) UpdateItem(user, id string, p Patch) (Board, error) {
	it, idx, ok := b.Find(id)
	if !ok {
		return b, ErrNotFound
	}
	if !b.CanEdit(user, it) {
		return b, ErrForbidden
	}
	next, err := p.Apply(it)
	if err != nil {
		return b, err
	}
	out := b.Clone()
	out.Items[idx] = next
	return out, nil
}

// DeleteItem removes the item with id on behalf of user.
func (b Board) DeleteItem(user, id string) (Board, error) {
	it, _, ok := b.Find(id)
	if !ok {
		return b, ErrNotFound
	}
	if !b.CanEdit(user, it) {
		return b, ErrForbidden
	}
	out, _ := b.DeleteItems(user, []string{id})
	return out, nil
}

// DeleteItems removes every listed item user may edit and reports how many
// went. Items the user may not edit stay in place.
func (b Board) DeleteItems(user string, ids []string) (Board, int) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	items := make([]Item, 0, len(b.Items))
	removed := 0
	for _, it := range b.Items {
		if drop[it.ID] && b.CanEdit(user, it) {
			removed++
			continue
		}
		items = append(items, it)
	}
	if removed == 0 {
		return b, 0
	}
	return b.WithItems(items), removed
}

// ReorderItem moves the item with id to the top or bottom of paint order.
func (b Board) ReorderItem(user, id string, layer Layer) (Board, error) {
	it, idx, ok := b.Find(id)
	if !ok {
		return b, ErrNotFound
	}
	if !b.CanEdit(user, it) {
		return b, ErrForbidden
	}
	rest := make([]Item, 0, len(b.Items))
	rest = append(rest, b.Items[:idx]...)
	rest = append(rest, b.Items[idx+1:]...)
	items := make([]Item, 0, len(b.Items))
	if layer == LayerFront {
		items = append(append(items, rest...), it)
	} else {
		items = append(append(items, it), rest...)
	}
	return b.WithItems(items), nil
}

// SetFields applies s to the board's scalar fields. Only the host may.
func (b Board) SetFields(user string, s Settings) (Board, error) {
	if !b.IsHost(user) {
		return b, ErrForbidden
	}
	out := b.Clone()
	if s.Topic != nil {
		out.Topic = *s.Topic
	}
	if s.BackgroundImage != nil {
		out.BackgroundImage = *s.BackgroundImage
	}
	if s.BackgroundColor != nil {
		out.BackgroundColor = *s.BackgroundColor
	}
	if s.BackgroundSize != nil {
		switch *s.BackgroundSize {
		case BackgroundCover, BackgroundContain, BackgroundAuto:
			out.BackgroundSize = *s.BackgroundSize
		default:
			return b, fmt.Errorf("unknown background size %q", *s.BackgroundSize)
		}
	}
	if s.MaxItemsPerUser != nil {
		if *s.MaxItemsPerUser < 0 {
			return b, fmt.Errorf("negative item limit %d", *s.MaxItemsPerUser)
		}
		out.MaxItemsPerUser = *s.MaxItemsPerUser
	}
	if s.IsPublic != nil {
		out.IsPublic = *s.IsPublic
	}
	return out, nil
}
