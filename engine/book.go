package engine

import "sort"

// level is one price level: a FIFO queue of resting orders sharing a price.
// Orders append at the tail and match from the head, so traversal order is
// arrival order.
type level struct {
	price    int64
	queue    []*Order
	totalQty int64
}

func (l *level) append(o *Order) {
	l.queue = append(l.queue, o)
	l.totalQty += o.Remaining
}

func (l *level) head() *Order {
	return l.queue[0]
}

func (l *level) popHead() {
	l.queue[0] = nil
	l.queue = l.queue[1:]
}

// bookSide holds one side's levels sorted best-first: bids descending,
// asks ascending. Level lookup is a binary search; appends to an existing
// level are O(1).
type bookSide struct {
	side   Side
	levels []*level
}

// search returns the index where price belongs in best-first order, and
// whether a level at exactly that price exists.
func (bs *bookSide) search(price int64) (int, bool) {
	i := sort.Search(len(bs.levels), func(i int) bool {
		if bs.side == Buy {
			return bs.levels[i].price <= price
		}
		return bs.levels[i].price >= price
	})
	if i < len(bs.levels) && bs.levels[i].price == price {
		return i, true
	}
	return i, false
}

func (bs *bookSide) getOrCreate(price int64) *level {
	i, ok := bs.search(price)
	if ok {
		return bs.levels[i]
	}
	l := &level{price: price}
	bs.levels = append(bs.levels, nil)
	copy(bs.levels[i+1:], bs.levels[i:])
	bs.levels[i] = l
	return l
}

func (bs *bookSide) removeLevelAt(i int) {
	copy(bs.levels[i:], bs.levels[i+1:])
	bs.levels[len(bs.levels)-1] = nil
	bs.levels = bs.levels[:len(bs.levels)-1]
}

// best returns the side's best level, nil when the side is empty.
func (bs *bookSide) best() *level {
	if len(bs.levels) == 0 {
		return nil
	}
	return bs.levels[0]
}

type orderKey struct {
	clientID uint64
	clOrdID  uint64
}

// Book is the price-time-priority store for a single instrument. It is owned
// and mutated exclusively by the engine goroutine; everything outside sees
// only event values derived from it.
type Book struct {
	bids  bookSide
	asks  bookSide
	index map[orderKey]*Order
}

// NewBook creates an empty book.
func NewBook() *Book {
	return &Book{
		bids:  bookSide{side: Buy},
		asks:  bookSide{side: Sell},
		index: make(map[orderKey]*Order),
	}
}

func (b *Book) sideOf(s Side) *bookSide {
	if s == Buy {
		return &b.bids
	}
	return &b.asks
}

// Insert appends o at the tail of its price level, creating the level if
// absent, and records it in the cancel index.
func (b *Book) Insert(o *Order) {
	b.sideOf(o.Side).getOrCreate(o.Price).append(o)
	b.index[orderKey{o.ClientID, o.ClOrdID}] = o
}

// Best returns the best resting price on a side: highest bid or lowest ask.
func (b *Book) Best(s Side) (int64, bool) {
	l := b.sideOf(s).best()
	if l == nil {
		return 0, false
	}
	return l.price, true
}

// bestLevel exposes the best level's head order and aggregate quantity to
// the matching loop. It returns nil when the side is empty.
func (b *Book) bestLevel(s Side) *level {
	return b.sideOf(s).best()
}

// Remove locates a resting order by its composite key, unlinks it from its
// level without disturbing the FIFO order of the rest, and drops empty
// levels. A miss returns (nil, false); that is a valid outcome rather than
// an error, since the order may have filled or been cancelled already.
func (b *Book) Remove(clientID, clOrdID uint64) (*Order, bool) {
	key := orderKey{clientID, clOrdID}
	o, ok := b.index[key]
	if !ok {
		return nil, false
	}
	delete(b.index, key)

	bs := b.sideOf(o.Side)
	i, ok := bs.search(o.Price)
	if !ok {
		return nil, false
	}
	l := bs.levels[i]
	for j, resting := range l.queue {
		if resting == o {
			copy(l.queue[j:], l.queue[j+1:])
			l.queue[len(l.queue)-1] = nil
			l.queue = l.queue[:len(l.queue)-1]
			l.totalQty -= o.Remaining
			break
		}
	}
	if len(l.queue) == 0 {
		bs.removeLevelAt(i)
	}
	return o, true
}

// ReduceHead decrements the best level's head order by qty. A head that
// reaches zero remaining is removed from the level and the index; an emptied
// level is removed from the side. It returns the level's new aggregate
// quantity (zero when the level is gone). Reducing an empty side is a no-op
// that returns zero.
func (b *Book) ReduceHead(s Side, qty int64) int64 {
	bs := b.sideOf(s)
	l := bs.best()
	if l == nil {
		return 0
	}
	head := l.head()
	head.Remaining -= qty
	l.totalQty -= qty
	if head.Remaining == 0 {
		delete(b.index, orderKey{head.ClientID, head.ClOrdID})
		l.popHead()
		if len(l.queue) == 0 {
			bs.removeLevelAt(0)
			return 0
		}
	}
	return l.totalQty
}

// LevelQty reports the aggregate resting quantity at a price, zero when no
// such level exists.
func (b *Book) LevelQty(s Side, price int64) int64 {
	bs := b.sideOf(s)
	if i, ok := bs.search(price); ok {
		return bs.levels[i].totalQty
	}
	return 0
}

// Depth reports the number of price levels on a side.
func (b *Book) Depth(s Side) int {
	return len(b.sideOf(s).levels)
}

// Walk visits every resting order on a side in priority order: best price
// first, FIFO within a level. The visitor must not mutate the book.
func (b *Book) Walk(s Side, visit func(o *Order)) {
	for _, l := range b.sideOf(s).levels {
		for _, o := range l.queue {
			visit(o)
		}
	}
}
