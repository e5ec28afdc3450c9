package schema

import (
	"context"

	"github.com/missyorm/missy/query"
	"github.com/missyorm/missy/types"
)

// Driver is the contract every storage backend implements. Drivers are
// trusted in-process collaborators: they receive the normalized query forms
// and never need to understand joins — relation resolution happens above
// them.
//
// Existence conditions are reported through the schema error kinds: Insert
// fails with ErrEntityExists when a primary key is already present; Update
// and Remove fail with ErrEntityNotFound when one is absent; UpdateQuery
// without upsert fails with ErrEntityNotFound on zero matches.
type Driver interface {
	// Name identifies the backend for diagnostics.
	Name() string

	// BindSchema is called exactly once, when the schema is constructed.
	BindSchema(ctx context.Context, s *Schema) error

	// Connect establishes connectivity; Disconnect releases it.
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	// Connected reports current connectivity.
	Connected() bool

	// Client exposes the backend-native handle (nil if there is none).
	Client() any

	FindOne(ctx context.Context, m *Model, c *query.Criteria, p *query.Projection, s *query.Sort, o query.Options) (types.Entity, error)
	Find(ctx context.Context, m *Model, c *query.Criteria, p *query.Projection, s *query.Sort, o query.Options) ([]types.Entity, error)
	Count(ctx context.Context, m *Model, c *query.Criteria, o query.Options) (int64, error)

	Insert(ctx context.Context, m *Model, entities []types.Entity, o query.Options) ([]types.Entity, error)
	Update(ctx context.Context, m *Model, entities []types.Entity, o query.Options) ([]types.Entity, error)
	Save(ctx context.Context, m *Model, entities []types.Entity, o query.Options) ([]types.Entity, error)
	Remove(ctx context.Context, m *Model, entities []types.Entity, o query.Options) ([]types.Entity, error)

	UpdateQuery(ctx context.Context, m *Model, c *query.Criteria, u *query.Update, o query.Options) ([]types.Entity, error)
	RemoveQuery(ctx context.Context, m *Model, c *query.Criteria, o query.Options) ([]types.Entity, error)
}
