package ethrpc

import (
	"sort"
	"sync"
)

// Hub раздаёт уведомления accountsChanged/chainChanged подписчикам.
//
// Уведомления доставляются по одному и в порядке поступления (emitMu);
// список подписчиков защищён отдельным mu, поэтому отписка из обработчика
// или параллельно с доставкой не блокируется.
type Hub struct {
	emitMu sync.Mutex

	mu       sync.Mutex
	next     uint64
	accounts map[uint64]func([]string)
	chains   map[uint64]func(string)
}

func NewHub() *Hub {
	return &Hub{
		accounts: make(map[uint64]func([]string)),
		chains:   make(map[uint64]func(string)),
	}
}

// OnAccountsChanged подписывает fn; возвращает идемпотентную отписку.
func (h *Hub) OnAccountsChanged(fn func(accounts []string)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	h.accounts[id] = fn

	return h.unsubscribe(func() { delete(h.accounts, id) })
}

// OnChainChanged подписывает fn; возвращает идемпотентную отписку.
func (h *Hub) OnChainChanged(fn func(chainID string)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	h.chains[id] = fn

	return h.unsubscribe(func() { delete(h.chains, id) })
}

func (h *Hub) unsubscribe(del func()) func() {
	var once sync.Once

	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			del()
		})
	}
}

// Subscribers возвращает число активных подписок (accounts, chain).
func (h *Hub) Subscribers() (accounts, chains int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.accounts), len(h.chains)
}

// EmitAccountsChanged доставляет уведомление всем подписчикам в порядке подписки.
func (h *Hub) EmitAccountsChanged(accounts []string) {
	h.emitMu.Lock()
	defer h.emitMu.Unlock()

	h.mu.Lock()
	fns := ordered(h.accounts)
	h.mu.Unlock()

	for _, fn := range fns {
		fn(append([]string(nil), accounts...))
	}
}

// EmitChainChanged доставляет уведомление всем подписчикам в порядке подписки.
func (h *Hub) EmitChainChanged(chainID string) {
	h.emitMu.Lock()
	defer h.emitMu.Unlock()

	h.mu.Lock()
	fns := ordered(h.chains)
	h.mu.Unlock()

	for _, fn := range fns {
		fn(chainID)
	}
}

func ordered[F any](m map[uint64]F) []F {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]F, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}

	return out
}
