// Package storage is the key/value persistence layer shared by every service.
// Each collection (users, bookings, leads, ...) lives as one JSON document
// under a namespaced key, and services only ever see the Store interface.
package storage

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"gear-rental/shared/cache"
	"gear-rental/shared/config"
	"gear-rental/shared/database"
)

var ErrNotFound = errors.New("storage: key not found")

// Store persists JSON documents under string keys.
type Store interface {
	// Load decodes the document stored at key into dest. It returns
	// ErrNotFound when nothing is stored there.
	Load(ctx context.Context, key string, dest interface{}) error

	// Save replaces the document stored at key.
	Save(ctx context.Context, key string, value interface{}) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Update runs a read-modify-write cycle on key without interleaving with
	// other Updates of the same key. dest is filled with the current document
	// (left at its zero value when absent), fn mutates it, and dest is saved
	// back unless fn returns an error.
	Update(ctx context.Context, key string, dest interface{}, fn func() error) error
}

// Collection keys. Kept identical across backends so data can be moved
// between them.
const (
	KeyUsers           = "users"
	KeyCredentials     = "credentials"
	KeyBookings        = "bookings"
	KeyLeads           = "leads"
	KeyAdminProducts   = "admin_products"
	KeyAdminTombstones = "admin_tombstones"
)

// Keys namespaces collection keys with a deployment prefix.
type Keys struct {
	Prefix string
}

func (k Keys) For(collection string) string {
	if k.Prefix == "" {
		return collection
	}
	return k.Prefix + ":" + collection
}

// Open returns the backend named by cfg.Storage.Driver. The redis and postgres
// drivers expect cache.Initialize / database.Initialize to have run.
func Open(cfg *config.Config) (Store, error) {
	switch strings.ToLower(cfg.Storage.Driver) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		if cache.Client == nil {
			return nil, errors.New("storage: redis driver selected but redis is not initialized")
		}
		return NewRedisStore(cache.Client), nil
	case "postgres":
		if database.GetDB() == nil {
			return nil, errors.New("storage: postgres driver selected but database is not initialized")
		}
		return NewPostgresStore(database.GetDB()), nil
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Storage.Driver)
	}
}

// resetDest zeroes the value dest points to, so a retried Update does not
// see state left behind by an aborted attempt.
func resetDest(dest interface{}) {
	v := reflect.ValueOf(dest)
	if v.Kind() == reflect.Ptr && !v.IsNil() {
		v.Elem().Set(reflect.Zero(v.Elem().Type()))
	}
}
