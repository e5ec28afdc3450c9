package schema

import (
	"github.com/missyorm/missy/query"
	"github.com/missyorm/missy/types"
)

// Hook extension points of the model pipeline. Each before/after pair fires
// exactly once per verb invocation; Import and Export wrap the entity
// conversion stages.
const (
	HookBeforeImport = "beforeImport"
	HookAfterImport  = "afterImport"
	HookBeforeExport = "beforeExport"
	HookAfterExport  = "afterExport"

	HookBeforeFindOne = "beforeFindOne"
	HookAfterFindOne  = "afterFindOne"
	HookBeforeFind    = "beforeFind"
	HookAfterFind     = "afterFind"
	HookBeforeCount   = "beforeCount"
	HookAfterCount    = "afterCount"

	HookBeforeInsert = "beforeInsert"
	HookAfterInsert  = "afterInsert"
	HookBeforeUpdate = "beforeUpdate"
	HookAfterUpdate  = "afterUpdate"
	HookBeforeSave   = "beforeSave"
	HookAfterSave    = "afterSave"
	HookBeforeRemove = "beforeRemove"
	HookAfterRemove  = "afterRemove"

	HookBeforeUpdateQuery = "beforeUpdateQuery"
	HookAfterUpdateQuery  = "afterUpdateQuery"
	HookBeforeRemoveQuery = "beforeRemoveQuery"
	HookAfterRemoveQuery  = "afterRemoveQuery"
)

// Context is the normalized request state threaded through one verb
// invocation: criteria, projection, sort, update and options, built fresh
// per call and discarded when the call completes.
type Context struct {
	Model      *Model
	Criteria   *query.Criteria
	Projection *query.Projection
	Sort       *query.Sort
	Update     *query.Update
	Options    query.Options
}

// Event is what hook handlers receive: the entities at the current pipeline
// stage (nil for before-hooks of read verbs) and the call context. Handlers
// may mutate the entities in place.
type Event struct {
	Entities []types.Entity
	Context  *Context
}

// newReadContext normalizes the loose criteria/projection/sort inputs of a
// read verb.
func (m *Model) newReadContext(cond, fields, sortSpec any, o query.Options) (*Context, error) {
	criteria, err := query.NewCriteria(m, cond)
	if err != nil {
		return nil, err
	}
	projection, err := query.NewProjection(fields)
	if err != nil {
		return nil, err
	}
	srt, err := query.NewSort(sortSpec)
	if err != nil {
		return nil, err
	}
	return &Context{
		Model:      m,
		Criteria:   criteria,
		Projection: projection,
		Sort:       srt,
		Options:    o.Normalize(),
	}, nil
}
