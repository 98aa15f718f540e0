package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Profiles() Profiles
	KeyValues() *KeyValueStore
	Activity() *ActivityStore
}

type mngr struct {
	db        *bun.DB
	profiles  Profiles
	keyValues *KeyValueStore
	activity  *ActivityStore
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:        db,
		profiles:  NewProfilesRepository(db),
		keyValues: NewKeyValueStore(db),
		activity:  NewActivityStore(db),
	}
}

func (m mngr) Validate() error {
	if m.profiles == nil {
		return errors.New("repository profiles should be initialized")
	}

	if m.keyValues == nil {
		return errors.New("repository keyValues should be initialized")
	}

	if m.activity == nil {
		return errors.New("repository activity should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Profiles() Profiles {
	return m.profiles
}

func (m mngr) KeyValues() *KeyValueStore {
	return m.keyValues
}

func (m mngr) Activity() *ActivityStore {
	return m.activity
}
