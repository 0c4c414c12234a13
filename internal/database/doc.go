// Copyright (c) Parley Authors.
// Licensed under the MIT License.

/*
Package database manages the gorm connection pool behind the transcript
catalog: pool limits, liveness probing, friendly stats and transaction
helpers with bounded retry for transient failures.

PoolManager is dialector-agnostic. The catalog opens it over the pure-Go
sqlite driver with SingleConnConfig, which serializes statements through
one connection so concurrent rebuild workers never fight over the file
lock; the tests drive the same manager through sqlmock.
*/
package database
