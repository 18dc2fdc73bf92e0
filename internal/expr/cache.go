package expr

import (
	"container/list"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/roach88/linx/internal/value"
)

// DefaultCapacity is the number of expressions a Cache keeps by default.
const DefaultCapacity = 1024

// Cache interns expressions and memoizes their compiled evaluators.
//
// A Cache belongs to one engine instance. A lookup table maps a structural
// key to the expression so the same inline text with the same captured
// values resolves to the same *Expression. Callables have no usable
// identity (closures over different variables share a code pointer), so
// expressions holding a bare func are never shared; a *Lambda is identified
// by its pointer.
//
// Captured values are part of the key, so a query run with a fresh value
// each time interns a fresh expression. The cache keeps the most recently
// used expressions up to its capacity and forgets the rest. A forgotten
// expression still evaluates; its evaluator is just no longer memoized.
//
// Evaluation is single-threaded, but a Cache may be shared by independent
// pipelines, so access is guarded.
type Cache struct {
	mu       sync.Mutex
	capacity int
	last     ID
	recent   *list.List // of *entry, most recently used first
	byID     map[ID]*list.Element
	index    map[string]*list.Element
}

type entry struct {
	key  string // empty for expressions that are never shared
	expr *Expression
	eval *Evaluator
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCapacity sets how many expressions the cache keeps. n <= 0 keeps
// every expression. Default: DefaultCapacity.
func WithCapacity(n int) CacheOption {
	return func(c *Cache) {
		c.capacity = n
	}
}

// NewCache creates an empty cache.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		capacity: DefaultCapacity,
		recent:   list.New(),
		byID:     make(map[ID]*list.Element),
		index:    make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Build normalizes src (an *Inline, *Lambda, Go callable, *Expression or
// constant) against the row variables visible at its point of use.
func (c *Cache) Build(src any, visible []string) (*Expression, error) {
	if e, ok := src.(*Expression); ok {
		return e, nil
	}
	key, ok := identity("row", src, visible)
	if ok {
		if e := c.lookup(key); e != nil {
			return e, nil
		}
	}
	e, err := build(src, visible)
	if err != nil {
		return nil, err
	}
	return c.intern(key, ok, e), nil
}

// Lambda normalizes src for positional use on bare elements: arrow text
// such as "n => n % 2", a Go callable, a *Lambda, or a constant.
func (c *Cache) Lambda(src any) (*Expression, error) {
	if e, ok := src.(*Expression); ok {
		return e, nil
	}
	key, ok := identity("lambda", src, nil)
	if ok {
		if e := c.lookup(key); e != nil {
			return e, nil
		}
	}
	e, err := buildLambda(src)
	if err != nil {
		return nil, err
	}
	return c.intern(key, ok, e), nil
}

// Get returns the expression with the given id while the cache holds it.
func (c *Cache) Get(id ID) (*Expression, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	return el.Value.(*entry).expr, true
}

// Len returns the number of expressions the cache holds.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recent.Len()
}

// Compile returns the evaluator for e, compiling it on first use.
func (c *Cache) Compile(e *Expression) (*Evaluator, error) {
	c.mu.Lock()
	if ent := c.resident(e); ent != nil && ent.eval != nil {
		c.mu.Unlock()
		return ent.eval, nil
	}
	c.mu.Unlock()

	ev, err := compile(e)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ent := c.resident(e)
	if ent == nil {
		return ev, nil
	}
	if ent.eval == nil {
		ent.eval = ev
	}
	return ent.eval, nil
}

// resident returns the entry holding e, or nil once e has been evicted.
// Callers hold mu.
func (c *Cache) resident(e *Expression) *entry {
	el, ok := c.byID[e.ID]
	if !ok {
		return nil
	}
	ent := el.Value.(*entry)
	if ent.expr != e {
		return nil
	}
	return ent
}

func (c *Cache) lookup(key string) *Expression {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		c.recent.MoveToFront(el)
		return el.Value.(*entry).expr
	}
	return nil
}

func (c *Cache) intern(key string, shared bool, e *Expression) *Expression {
	c.mu.Lock()
	defer c.mu.Unlock()
	if shared {
		if el, ok := c.index[key]; ok {
			c.recent.MoveToFront(el)
			return el.Value.(*entry).expr
		}
	} else {
		key = ""
	}
	c.last++
	e.ID = c.last
	e.cache = c
	el := c.recent.PushFront(&entry{key: key, expr: e})
	c.byID[e.ID] = el
	if shared {
		c.index[key] = el
	}
	c.evict()
	return e
}

// evict drops the least recently used expressions beyond capacity.
// Callers hold mu.
func (c *Cache) evict() {
	if c.capacity <= 0 {
		return
	}
	for c.recent.Len() > c.capacity {
		el := c.recent.Back()
		ent := el.Value.(*entry)
		c.recent.Remove(el)
		delete(c.byID, ent.expr.ID)
		if ent.key != "" {
			delete(c.index, ent.key)
		}
	}
}

// identity builds the lookup key for src, or reports false when src has no
// stable identity.
func identity(mode string, src any, visible []string) (string, bool) {
	var sb strings.Builder
	sb.WriteString(mode)
	sb.WriteByte('|')
	sb.WriteString(strings.Join(visible, ","))
	sb.WriteByte('|')
	switch s := src.(type) {
	case *Inline:
		sb.WriteString(strings.Join(s.Strings, "\x00"))
		for _, a := range s.Args {
			id, ok := argIdentity(a)
			if !ok {
				return "", false
			}
			sb.WriteByte('|')
			sb.WriteString(id)
		}
		return sb.String(), true
	case *Lambda:
		fmt.Fprintf(&sb, "lambda:%p", s)
		return sb.String(), true
	case string:
		if mode == "lambda" {
			sb.WriteString("text:")
			sb.WriteString(s)
			return sb.String(), true
		}
	}
	id, ok := argIdentity(src)
	if !ok {
		return "", false
	}
	sb.WriteString("const:")
	sb.WriteString(id)
	return sb.String(), true
}

func argIdentity(a any) (string, bool) {
	switch x := a.(type) {
	case nil, bool, string, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprintf("%T:%s", a, value.Key(value.Normalize(x))), true
	case *Lambda:
		return fmt.Sprintf("lambda:%p", x), true
	}
	rv := reflect.ValueOf(a)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan:
		return fmt.Sprintf("%T:%x", a, rv.Pointer()), true
	case reflect.Slice:
		return fmt.Sprintf("%T:%x:%d", a, rv.Pointer(), rv.Len()), true
	}
	return "", false
}
