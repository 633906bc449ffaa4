// Package db declares narrow slices of borp.DbMap's capability surface, so
// a helper can depend on one of them instead of the concrete ORM type and a
// test can substitute a fake executor. store/database.go asserts that
// borp's DbMap and Transaction satisfy them; SQLStore's methods use
// *borp.DbMap directly.
package db

import (
	"database/sql"

	"github.com/letsencrypt/borp"
)

// By convention, any function that takes a OneSelector, Selector, Inserter,
// Execer, or SelectExecer as an argument expects that a context has already
// been applied to the relevant DbMap or Transaction object.

// OneSelector is anything that provides a SelectOne function.
type OneSelector interface {
	SelectOne(interface{}, string, ...interface{}) error
}

// Selector is anything that provides a Select function.
type Selector interface {
	Select(interface{}, string, ...interface{}) ([]interface{}, error)
}

// Inserter is anything that provides an Insert function.
type Inserter interface {
	Insert(list ...interface{}) error
}

// Execer is anything that provides an Exec function.
type Execer interface {
	Exec(string, ...interface{}) (sql.Result, error)
}

// SelectExecer offers a subset of borp's SqlExecutor methods: Select and Exec.
type SelectExecer interface {
	Selector
	Execer
}

// DatabaseMap offers the full combination of OneSelector, Inserter,
// SelectExecer, and a Begin function for creating a Transaction.
type DatabaseMap interface {
	OneSelector
	Inserter
	SelectExecer
	Begin() (*borp.Transaction, error)
}

// Transaction offers the OneSelector, Inserter, and SelectExecer interfaces
// plus Update, Commit, and Rollback.
type Transaction interface {
	OneSelector
	Inserter
	SelectExecer
	Update(...interface{}) (int64, error)
	Commit() error
	Rollback() error
}
