package auth

import "sync"

// MockStore is an in-memory auth store for testing.
type MockStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

func NewMockStore() *MockStore {
	return &MockStore{tokens: make(map[string]string)}
}

func (m *MockStore) SetToken(account string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[normalizeAccount(account)] = token
	return nil
}

func (m *MockStore) GetToken(account string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[normalizeAccount(account)]
	if !ok {
		return "", ErrTokenNotFound
	}
	return token, nil
}

func (m *MockStore) DeleteToken(account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := normalizeAccount(account)
	if _, ok := m.tokens[key]; !ok {
		return ErrTokenNotFound
	}
	delete(m.tokens, key)
	return nil
}
