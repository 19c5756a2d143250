package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle. Its concrete type is infra-defined
// (pgx.Tx for Postgres). Repositories accept a nil Tx and then run on the pool.
type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside one database transaction and hands the
// tx handle to it.
//
// USAGE
// tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx Tx) error {
// // call repositories with the same ctx and tx
// if err := transcripts.Replace(ctx, tx, t); err != nil {
// return err
// }
// return videos.Complete(ctx, tx, id, token)
// })
//
// A non-nil error from fn rolls the transaction back.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
