// Package store holds the persistence contracts for the control plane and
// their Postgres (gorm) and in-memory implementations. Orchestrators depend
// only on the interfaces; absence is reported as ErrNotFound, never as a
// nil result.
package store

import (
	"context"
	"errors"

	"dply/internal/model"
)

var (
	// ErrNotFound is returned by lookups when no matching row exists.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned by Create when a uniqueness constraint
	// (environment name, username) is violated.
	ErrDuplicate = errors.New("record already exists")
)

// Environments persists environment rows.
type Environments interface {
	Create(ctx context.Context, env *model.Environment) error
	Save(ctx context.Context, env *model.Environment) error
	FindByID(ctx context.Context, id uint) (*model.Environment, error)
	FindByName(ctx context.Context, name string) (*model.Environment, error)
	FindAll(ctx context.Context) ([]model.Environment, error)
	Delete(ctx context.Context, id uint) error
}

// EnvironmentUsers persists user-to-environment role bindings.
type EnvironmentUsers interface {
	Create(ctx context.Context, binding *model.EnvironmentUser) error
	FindByUserID(ctx context.Context, userID uint) ([]model.EnvironmentUser, error)
}

// Teams persists team rows.
type Teams interface {
	Create(ctx context.Context, team *model.Team) error
	Save(ctx context.Context, team *model.Team) error
	FindByID(ctx context.Context, id uint) (*model.Team, error)
	FindByEnvironmentID(ctx context.Context, envID uint) ([]model.Team, error)
}

// Users persists user accounts.
type Users interface {
	Create(ctx context.Context, user *model.User) error
	FindByUsername(ctx context.Context, username string) (*model.User, error)
}

// Store bundles all repositories behind one handle.
type Store struct {
	Environments     Environments
	EnvironmentUsers EnvironmentUsers
	Teams            Teams
	Users            Users
}
