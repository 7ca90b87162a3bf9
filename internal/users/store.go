package users

import (
	"sync"
	"time"

	"github.com/alfagnish/users-api/internal/apperr"
)

// ErrMsgDuplicateEmail is the message carried by DuplicateEmail errors.
const ErrMsgDuplicateEmail = "El email ya está registrado"

// User is a single user record.
type User struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Age       float64   `json:"age"`
	CreatedAt Timestamp `json:"createdAt"`
}

// Fields are the caller-supplied attributes of a new user.
type Fields struct {
	Name  string
	Email string
	Age   float64
}

// Patch holds a partial update; nil fields are left untouched.
type Patch struct {
	Name  *string
	Email *string
	Age   *float64
}

// Store is a thread-safe, in-memory user collection kept in insertion
// order. All public methods are safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	users  []*User
	nextID int
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store whose first id is 1.
func NewStore(opts ...Option) *Store {
	s := &Store{nextID: 1, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed is the data a seeded store starts with.
var Seed = []Fields{
	{Name: "Juan Pérez", Email: "juan@email.com", Age: 25},
	{Name: "María García", Email: "maria@email.com", Age: 30},
	{Name: "Carlos López", Email: "carlos@email.com", Age: 28},
}

// NewSeededStore creates a store holding the Seed records with ids 1..3.
func NewSeededStore(opts ...Option) *Store {
	s := NewStore(opts...)
	for _, f := range Seed {
		s.insert(f)
	}
	return s
}

// FindAll returns copies of all users in insertion order.
func (s *Store) FindAll() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out
}

// FindByID returns the user with the given id.
func (s *Store) FindByID(id int) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return *s.users[i], true
	}
	return User{}, false
}

// Create appends a new user. It fails with a DuplicateEmail error when
// another user already has the same email.
func (s *Store) Create(f Fields) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emailTaken(f.Email, 0) {
		return User{}, apperr.DuplicateEmail(ErrMsgDuplicateEmail)
	}
	return *s.insert(f), nil
}

// Update overwrites the non-nil fields of p on the user with the given id.
// The bool result is false when no such user exists. An email already used
// by a different user is rejected and leaves the record unchanged.
func (s *Store) Update(id int, p Patch) (User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return User{}, false, nil
	}
	if p.Email != nil && s.emailTaken(*p.Email, id) {
		return User{}, true, apperr.DuplicateEmail(ErrMsgDuplicateEmail)
	}

	u := s.users[i]
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Age != nil {
		u.Age = *p.Age
	}
	return *u, true, nil
}

// Delete removes the user with the given id and reports whether one was removed.
func (s *Store) Delete(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.users = append(s.users[:i], s.users[i+1:]...)
	return true
}

// Len returns the number of stored users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// insert requires s.mu held for writing (or exclusive access during seeding).
func (s *Store) insert(f Fields) *User {
	u := &User{
		ID:        s.nextID,
		Name:      f.Name,
		Email:     f.Email,
		Age:       f.Age,
		CreatedAt: Timestamp(s.now()),
	}
	s.nextID++
	s.users = append(s.users, u)
	return u
}

func (s *Store) indexOf(id int) int {
	for i, u := range s.users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

// emailTaken reports whether a user other than exceptID uses email.
func (s *Store) emailTaken(email string, exceptID int) bool {
	for _, u := range s.users {
		if u.Email == email && u.ID != exceptID {
			return true
		}
	}
	return false
}
