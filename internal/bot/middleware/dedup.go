package middleware

import "sync"

// Dedup отсеивает повторно доставленные апдейты по update_id.
// Telegram при обрыве long-poll может прислать апдейт ещё раз; кэш помнит
// последние size идентификаторов и вытесняет самые старые по FIFO.
type Dedup struct {
	mu    sync.Mutex
	seen  map[int]struct{}
	order []int
	size  int
}

func NewDedup(size int) *Dedup {
	if size < 1 {
		size = 1
	}
	return &Dedup{
		seen: make(map[int]struct{}, size),
		size: size,
	}
}

// Seen отмечает updateID как обработанный и возвращает true, если он
// уже встречался.
func (d *Dedup) Seen(updateID int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[updateID]; ok {
		return true
	}

	d.seen[updateID] = struct{}{}
	d.order = append(d.order, updateID)
	if len(d.order) > d.size {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.seen, oldest)
	}
	return false
}
