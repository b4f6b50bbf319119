package session

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store holds sessions in an LRU with sliding TTL. The oldest idle
// session is evicted once maxSize is exceeded.
type Store struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	seeds   Seeds
	items   map[string]*list.Element
	lru     *list.List

	stopJanitor chan struct{}
	janitorDone chan struct{}
	stopOnce    sync.Once
}

type entry struct {
	sess      *Session
	expiresAt time.Time
}

// NewStore creates a store. Non-positive maxSize or ttl fall back to
// 1000 sessions and 24h.
func NewStore(maxSize int, ttl time.Duration, seeds Seeds) *Store {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{
		maxSize: maxSize,
		ttl:     ttl,
		seeds:   seeds,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// ValidID reports whether id looks like something Create could have issued.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Get returns a live session and extends its expiry.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[id]
	if !ok {
		return nil, false
	}
	e := elem.Value.(*entry)
	now := time.Now()
	if now.After(e.expiresAt) {
		s.removeElement(elem)
		return nil, false
	}
	e.expiresAt = now.Add(s.ttl)
	s.lru.MoveToFront(elem)
	return e.sess, true
}

// Create starts a fresh seeded session under a new random ID.
func (s *Store) Create() *Session {
	sess := newSession(uuid.NewString(), s.seeds)
	s.put(sess)
	return sess
}

// GetOrCreate returns the session for id, or a new one when id is unknown,
// expired or malformed. created is true in the latter case.
func (s *Store) GetOrCreate(id string) (sess *Session, created bool) {
	if id != "" && ValidID(id) {
		if sess, ok := s.Get(id); ok {
			return sess, false
		}
	}
	return s.Create(), true
}

// Reset replaces the session under id with a freshly seeded one, keeping the ID.
func (s *Store) Reset(id string) *Session {
	sess := newSession(id, s.seeds)
	s.put(sess)
	return sess
}

// Delete drops a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if elem, ok := s.items[id]; ok {
		s.removeElement(elem)
	}
}

func (s *Store) put(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &entry{sess: sess, expiresAt: time.Now().Add(s.ttl)}
	if elem, ok := s.items[sess.ID]; ok {
		elem.Value = e
		s.lru.MoveToFront(elem)
		return
	}
	s.items[sess.ID] = s.lru.PushFront(e)
	if s.lru.Len() > s.maxSize {
		if oldest := s.lru.Back(); oldest != nil {
			s.removeElement(oldest)
		}
	}
}

func (s *Store) removeElement(elem *list.Element) {
	delete(s.items, elem.Value.(*entry).sess.ID)
	s.lru.Remove(elem)
}

// CleanExpired removes expired sessions and returns how many were dropped.
func (s *Store) CleanExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var expired []*list.Element
	for elem := s.lru.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*entry).expiresAt) {
			expired = append(expired, elem)
		}
	}
	for _, elem := range expired {
		s.removeElement(elem)
	}
	return len(expired)
}

// Size returns the number of sessions held, expired or not.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// StartJanitor runs CleanExpired every interval until Stop is called.
// onClean, when set, receives the number of sessions removed on each pass.
func (s *Store) StartJanitor(interval time.Duration, onClean func(removed int)) {
	s.stopJanitor = make(chan struct{})
	s.janitorDone = make(chan struct{})
	go func() {
		defer close(s.janitorDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n := s.CleanExpired()
				if onClean != nil && n > 0 {
					onClean(n)
				}
			case <-s.stopJanitor:
				return
			}
		}
	}()
}

// Stop halts the janitor and waits for it to exit. Safe to call more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		if s.stopJanitor == nil {
			return
		}
		close(s.stopJanitor)
		<-s.janitorDone
	})
}
