// Package credentials persists LLM provider credentials in the OS keychain.
package credentials

import (
	"errors"

	"github.com/zalando/go-keyring"

	"github.com/lectern-ai/page-reader/internal/domain"
)

// ServiceName is the keychain namespace all entries are stored under.
const ServiceName = "page_reader"

// Update describes a credential write. Nil model fields leave the stored
// value untouched; an explicitly empty string clears it.
type Update struct {
	Provider     string
	APIKey       string
	ExpertModel  *string
	ParsingModel *string
}

// Store reads and writes credentials in the OS keychain. Validation is the
// caller's job.
type Store struct {
	service string
}

// NewStore creates a keychain-backed credential store.
func NewStore() *Store {
	return &Store{service: ServiceName}
}

// Set stores the provider and any non-empty values. An empty string clears
// the corresponding entry instead of storing it.
func (s *Store) Set(u Update) error {
	if err := s.setSecret("provider", u.Provider); err != nil {
		return err
	}
	if err := s.setSecret(u.Provider+"_api_key", u.APIKey); err != nil {
		return err
	}
	if u.ExpertModel != nil {
		if err := s.setSecret(u.Provider+"_expert_model", *u.ExpertModel); err != nil {
			return err
		}
	}
	if u.ParsingModel != nil {
		if err := s.setSecret(u.Provider+"_parsing_model", *u.ParsingModel); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the stored credentials. When no provider was ever stored the
// result is all-empty and no error is returned.
func (s *Store) Get() (domain.Credentials, error) {
	provider, err := s.getSecret("provider")
	if err != nil {
		return domain.Credentials{}, err
	}
	if provider == "" {
		return domain.Credentials{}, nil
	}

	apiKey, err := s.getSecret(provider + "_api_key")
	if err != nil {
		return domain.Credentials{}, err
	}
	expertModel, err := s.getSecret(provider + "_expert_model")
	if err != nil {
		return domain.Credentials{}, err
	}
	parsingModel, err := s.getSecret(provider + "_parsing_model")
	if err != nil {
		return domain.Credentials{}, err
	}

	return domain.Credentials{
		Provider:     provider,
		APIKey:       apiKey,
		ExpertModel:  expertModel,
		ParsingModel: parsingModel,
	}, nil
}

func (s *Store) setSecret(name, value string) error {
	if value == "" {
		return s.deleteSecret(name)
	}
	if err := keyring.Set(s.service, name, value); err != nil {
		return domain.IOError("failed to store secret "+name, err)
	}
	return nil
}

// deleteSecret removes an entry; a missing entry is a no-op.
func (s *Store) deleteSecret(name string) error {
	err := keyring.Delete(s.service, name)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return domain.IOError("failed to delete secret "+name, err)
	}
	return nil
}

func (s *Store) getSecret(name string) (string, error) {
	value, err := keyring.Get(s.service, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", domain.IOError("failed to read secret "+name, err)
	}
	return value, nil
}
