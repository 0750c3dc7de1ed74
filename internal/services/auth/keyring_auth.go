package auth

import (
	"errors"

	"github.com/zalando/go-keyring"
)

type KeyringStore struct {
	serviceName string
}

func NewKeyringStore(serviceName string) *KeyringStore {
	if serviceName == "" {
		serviceName = ServiceName
	}
	return &KeyringStore{serviceName: serviceName}
}

func (k *KeyringStore) SetToken(account string, token string) error {
	return keyring.Set(k.serviceName, normalizeAccount(account), token)
}

func (k *KeyringStore) GetToken(account string) (string, error) {
	token, err := keyring.Get(k.serviceName, normalizeAccount(account))
	if err == nil {
		return token, nil
	}
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrTokenNotFound
	}
	return "", err
}

func (k *KeyringStore) DeleteToken(account string) error {
	err := keyring.Delete(k.serviceName, normalizeAccount(account))
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrTokenNotFound
	}
	return err
}
