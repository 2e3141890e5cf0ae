package batchsim

// table keeps records in insertion order so list responses are stable.
// It is not locked; the owning Simulator guards it.
type table[T any] struct {
	order []string
	items map[string]*T
}

func newTable[T any]() *table[T] {
	return &table[T]{items: make(map[string]*T)}
}

func (t *table[T]) get(id string) (*T, bool) {
	v, ok := t.items[id]
	return v, ok
}

// put stores item under id; it returns false if id is taken.
func (t *table[T]) put(id string, item *T) bool {
	if _, ok := t.items[id]; ok {
		return false
	}
	t.items[id] = item
	t.order = append(t.order, id)
	return true
}

func (t *table[T]) delete(id string) bool {
	if _, ok := t.items[id]; !ok {
		return false
	}
	delete(t.items, id)
	for i, k := range t.order {
		if k == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

func (t *table[T]) list() []*T {
	out := make([]*T, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.items[id])
	}
	return out
}

func (t *table[T]) len() int { return len(t.order) }
