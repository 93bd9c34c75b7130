package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes a function inside a database transaction,
// passing the underlying transaction handle via the Tx argument.
//
// Repositories accept the same Tx so the success-path writes of a send
// (counter increment + log append) commit or roll back together. The
// concrete Tx type is infra-defined (pgx.Tx for Postgres); repositories
// must gracefully accept nil for the non-transactional path.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
