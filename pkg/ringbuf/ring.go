package ringbuf

// Ring keeps the last Len() pushed values. Index 0 is the most recent push.
type Ring[T any] struct {
	Data   []T
	Head   int
	Filled int
}

func New[T any](size int) *Ring[T] {
	if size < 1 {
		size = 1
	}
	return &Ring[T]{
		Data: make([]T, size),
		Head: 0,
	}
}

func (r *Ring[T]) PushFront(v T) *Ring[T] {
	r.Head = r.Head - 1
	if r.Head < 0 {
		r.Head = len(r.Data) - 1
	}
	r.Data[r.Head] = v
	if r.Filled < len(r.Data) {
		r.Filled++
	}
	return r
}

func (r *Ring[T]) GetN(i int) T {
	return r.Data[r.index(i)]
}

func (r *Ring[T]) SetN(i int, val T) {
	r.Data[r.index(i)] = val
}

func (r *Ring[T]) index(i int) int {
	idx := (r.Head + i) % len(r.Data)
	if idx < 0 {
		idx += len(r.Data)
	}
	return idx
}

func (r *Ring[T]) Len() int {
	return len(r.Data)
}

// Count is the number of slots holding pushed values.
func (r *Ring[T]) Count() int {
	return r.Filled
}

// Recent walks pushed values newest first until fn returns false.
func (r *Ring[T]) Recent(fn func(T) bool) {
	for i := 0; i < r.Filled; i++ {
		if !fn(r.GetN(i)) {
			return
		}
	}
}

// Snapshot returns pushed values oldest first.
func (r *Ring[T]) Snapshot() []T {
	out := make([]T, r.Filled)
	for i := 0; i < r.Filled; i++ {
		out[r.Filled-1-i] = r.GetN(i)
	}
	return out
}
