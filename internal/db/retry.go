package db

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Operation is a function that performs an action and returns an error if it fails.
type Operation func() error

// RetryableFunc decides whether a failed attempt should be retried.
type RetryableFunc func(err error) bool

const DefaultMaxRetries = 3

// Try executes an insert operation, retrying when the failure is a duplicate
// key error on the _id index. Random SixIDs can collide; the operation is
// expected to generate a fresh ID on each attempt. Duplicate key errors on
// application-level unique indexes are not retried: regenerating an ID will
// never resolve those.
func Try(op Operation) error {
	return WithRetries(op, DefaultMaxRetries, func(err error) bool {
		return IsDuplicateKeyOnIndex(err, "_id_")
	})
}

// WithRetries executes an operation up to 1+maxRetries times, retrying with a
// small incremental backoff while retryable reports true.
func WithRetries(op Operation, maxRetries int, retryable RetryableFunc) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if attempt == maxRetries || !retryable(err) {
			break
		}
		time.Sleep(time.Duration(50*(attempt+1)) * time.Millisecond)
	}
	return err
}

// IsMongoDuplicateKeyError checks if an error from MongoDB is a duplicate key
// error (code 11000) in either a write or bulk write exception.
func IsMongoDuplicateKeyError(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	return false
}

// IsDuplicateKeyOnIndex reports whether err is a duplicate key error raised by
// the named index. Mongo does not expose the index in a structured field, so
// this falls back to matching the index name in the server message.
func IsDuplicateKeyOnIndex(err error, indexName string) bool {
	if !IsMongoDuplicateKeyError(err) {
		return false
	}
	return strings.Contains(err.Error(), indexName)
}
