package arena

// LAList ("linked array list") is a doubly-linked chain of fixed-capacity
// pages holding items of type T, with O(1) append and forward/reverse
// iteration. It backs the instruction stream of a Block and the block
// sequence of a Function: both need stable append-only growth, in-order
// forward walks (emission, printing) and in-order reverse walks (the
// backend's backwards emission pass, dead-parameter pruning).
type LAList[T any] struct {
	first, last *laPage[T]
	len         int
}

type laPage[T any] struct {
	items      [pageSize]T
	len        int
	prev, next *laPage[T]
}

// NewLAList constructs an empty list.
func NewLAList[T any]() *LAList[T] {
	return &LAList[T]{}
}

// Len returns the number of items appended to the list.
func (l *LAList[T]) Len() int { return l.len }

// Append adds a zero-valued T to the end of the list and returns a pointer to
// it so the caller can fill in its fields in place.
func (l *LAList[T]) Append() *T {
	if l.last == nil || l.last.len == pageSize {
		p := &laPage[T]{prev: l.last}
		if l.last != nil {
			l.last.next = p
		} else {
			l.first = p
		}
		l.last = p
	}
	v := &l.last.items[l.last.len]
	l.last.len++
	l.len++
	return v
}

// Iterator walks an LAList in one direction.
type Iterator[T any] struct {
	page    *laPage[T]
	index   int
	reverse bool
}

// Forward returns an iterator that walks the list from first to last item.
func (l *LAList[T]) Forward() *Iterator[T] {
	return &Iterator[T]{page: l.first, index: 0}
}

// Reverse returns an iterator that walks the list from last to first item.
func (l *LAList[T]) Reverse() *Iterator[T] {
	it := &Iterator[T]{reverse: true}
	if l.last != nil {
		it.page = l.last
		it.index = l.last.len - 1
	} else {
		it.index = -1
	}
	return it
}

// Next returns the next item in iteration order, or nil once the iterator is
// exhausted.
func (it *Iterator[T]) Next() *T {
	if it.page == nil || it.index < 0 || it.index >= it.page.len {
		return nil
	}
	v := &it.page.items[it.index]
	if it.reverse {
		it.index--
		if it.index < 0 && it.page.prev != nil {
			it.page = it.page.prev
			it.index = it.page.len - 1
		}
	} else {
		it.index++
		if it.index >= it.page.len && it.page.next != nil {
			it.page = it.page.next
			it.index = 0
		}
	}
	return v
}
