package scheduling

import "sync"

// Queue — in-memory очередь подключённых и свободных peer'ов.
//
// Очередь не персистится: состав восстанавливается переподключениями
// worker'ов. Все операции O(n) по длине очереди — приемлемо для
// типичных размеров пула.
//
// Мутирует очередь только пакет scheduling (single-writer discipline
// под мьютексом).
type Queue struct {
	mu    sync.Mutex
	peers []string
}

// NewQueue создаёт пустую очередь.
func NewQueue() *Queue {
	return &Queue{}
}

// AddPeer добавляет peer в хвост очереди.
// Повторное добавление — ErrAlreadyQueued.
func (q *Queue) AddPeer(peer string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.index(peer) >= 0 {
		return ErrAlreadyQueued
	}
	q.peers = append(q.peers, peer)
	return nil
}

// DequeuePeer убирает peer с его позиции и ставит в хвост
// (явная round-robin ротация). Отсутствующий peer просто добавляется.
func (q *Queue) DequeuePeer(peer string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i := q.index(peer); i >= 0 {
		q.peers = append(q.peers[:i], q.peers[i+1:]...)
	}
	q.peers = append(q.peers, peer)
}

// RemovePeer убирает peer из очереди. Идемпотентна.
func (q *Queue) RemovePeer(peer string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i := q.index(peer); i >= 0 {
		q.peers = append(q.peers[:i], q.peers[i+1:]...)
	}
}

// Contains проверяет, стоит ли peer в очереди.
func (q *Queue) Contains(peer string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.index(peer) >= 0
}

// Snapshot возвращает копию очереди в текущем порядке.
func (q *Queue) Snapshot() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]string, len(q.peers))
	copy(out, q.peers)
	return out
}

// Len возвращает длину очереди.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.peers)
}

// index возвращает позицию peer'а или -1. Вызывается под мьютексом.
func (q *Queue) index(peer string) int {
	for i, p := range q.peers {
		if p == peer {
			return i
		}
	}
	return -1
}
