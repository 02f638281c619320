package interpreter

import (
	"sync"
	"sync/atomic"
	"time"
)

// Conversation is one live interpreter and its bookkeeping
type Conversation struct {
	*Interpreter
	CreatedAt    time.Time
	lastActivity atomic.Int64
}

// LastActivity returns when the conversation was last used
func (c *Conversation) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

func (c *Conversation) touch(now time.Time) {
	c.lastActivity.Store(now.UnixNano())
}

// Manager owns one interpreter per conversation id
type Manager struct {
	deps          Deps
	conversations map[string]*Conversation
	mu            sync.RWMutex // protects conversations
	closed        bool
	now           func() time.Time
}

// NewManager creates a manager whose interpreters share deps
func NewManager(deps Deps) *Manager {
	deps.defaults()
	return &Manager{
		deps:          deps,
		conversations: make(map[string]*Conversation),
		now:           time.Now,
	}
}

// Get returns the interpreter for a conversation, starting it on first use
func (m *Manager) Get(conversationID string) (*Conversation, error) {
	m.mu.RLock()
	if conv, ok := m.conversations[conversationID]; ok {
		m.mu.RUnlock()
		conv.touch(m.now())
		return conv, nil
	}
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// another request may have started it while we waited for the lock
	if conv, ok := m.conversations[conversationID]; ok {
		conv.touch(m.now())
		return conv, nil
	}
	if m.closed {
		return nil, ErrClosed
	}

	conv := &Conversation{Interpreter: New(conversationID, m.deps), CreatedAt: m.now()}
	conv.touch(conv.CreatedAt)
	m.conversations[conversationID] = conv
	return conv, nil
}

// Lookup returns an existing conversation without starting one
func (m *Manager) Lookup(conversationID string) (*Conversation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conv, ok := m.conversations[conversationID]
	return conv, ok
}

// Len returns the number of live conversations
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conversations)
}

// CloseConversation drains and removes one conversation
func (m *Manager) CloseConversation(conversationID string) {
	m.mu.Lock()
	conv, ok := m.conversations[conversationID]
	delete(m.conversations, conversationID)
	m.mu.Unlock()
	if ok {
		conv.Close()
	}
}

// EvictIdle closes conversations unused for longer than idle and returns
// how many were evicted.
func (m *Manager) EvictIdle(idle time.Duration) int {
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	var stale []*Conversation
	for id, conv := range m.conversations {
		if conv.LastActivity().Before(cutoff) {
			stale = append(stale, conv)
			delete(m.conversations, id)
		}
	}
	m.mu.Unlock()

	closeAll(stale)
	return len(stale)
}

// Close drains every conversation. Get fails afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	all := make([]*Conversation, 0, len(m.conversations))
	for _, conv := range m.conversations {
		all = append(all, conv)
	}
	m.conversations = make(map[string]*Conversation)
	m.mu.Unlock()

	closeAll(all)
}

func closeAll(convs []*Conversation) {
	var wg sync.WaitGroup
	for _, conv := range convs {
		wg.Add(1)
		go func(c *Conversation) {
			defer wg.Done()
			c.Close()
		}(conv)
	}
	wg.Wait()
}
