package database

import (
	"github.com/huandu/go-sqlbuilder"
)

func NewInsertBuilder(flavor sqlbuilder.Flavor) *sqlbuilder.InsertBuilder {
	return flavor.NewInsertBuilder()
}

func NewUpdateBuilder(flavor sqlbuilder.Flavor) *sqlbuilder.UpdateBuilder {
	return flavor.NewUpdateBuilder()
}

func NewSelectBuilder(flavor sqlbuilder.Flavor) *sqlbuilder.SelectBuilder {
	return flavor.NewSelectBuilder()
}

func NewDeleteBuilder(flavor sqlbuilder.Flavor) *sqlbuilder.DeleteBuilder {
	return flavor.NewDeleteBuilder()
}

// NewStruct returns a struct mapper keyed on `db` tags for flavor.
func NewStruct(v any, flavor sqlbuilder.Flavor) *sqlbuilder.Struct {
	return sqlbuilder.NewStruct(v).For(flavor)
}
