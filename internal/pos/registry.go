package pos

import (
	"sync"

	"github.com/feliperosa/pos-cart-engine/internal/cart"
)

type terminalCart struct {
	mu   sync.Mutex
	cart *cart.Cart
}

// Registry holds one cart per terminal. Each terminal's mutations are
// serialized: a mutation runs to completion before the next is accepted, so
// the cart itself never sees concurrent access.
type Registry struct {
	mu    sync.Mutex
	carts map[string]*terminalCart
}

func NewRegistry() *Registry {
	return &Registry{carts: make(map[string]*terminalCart)}
}

// With runs fn against the terminal's cart while holding that terminal's
// lock, creating an empty cart on first use.
func (r *Registry) With(terminal string, fn func(c *cart.Cart) error) error {
	r.mu.Lock()
	tc, ok := r.carts[terminal]
	if !ok {
		tc = &terminalCart{cart: cart.New()}
		r.carts[terminal] = tc
	}
	r.mu.Unlock()

	tc.mu.Lock()
	defer tc.mu.Unlock()
	return fn(tc.cart)
}
