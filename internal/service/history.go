package service

import (
	"sync"

	"finsight/internal/domain"
)

// History is a bounded chat log. Appending past the limit drops the oldest turns.
type History struct {
	mu       sync.Mutex
	limit    int
	messages []domain.Message
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 20
	}
	return &History{limit: limit}
}

func (h *History) Append(msgs ...domain.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msgs...)
	if over := len(h.messages) - h.limit; over > 0 {
		h.messages = append([]domain.Message(nil), h.messages[over:]...)
	}
}

// Recent returns a copy of the last n messages (all of them if n <= 0).
func (h *History) Recent(n int) []domain.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	start := 0
	if n > 0 && n < len(h.messages) {
		start = len(h.messages) - n
	}
	return append([]domain.Message(nil), h.messages[start:]...)
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
}
