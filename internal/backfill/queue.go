// Package backfill fills in the missing description slot of a listing after
// it has been created. Jobs are persisted in BadgerDB keyed by listing id, so
// a restart resumes them instead of dropping them.
package backfill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const jobPrefix = "backfill:job:"

// Job is one pending translation for a listing.
type Job struct {
	ListingID  string    `json:"listing_id"`
	Text       string    `json:"text"`
	Source     string    `json:"source"` // "es" or "en"
	Target     string    `json:"target"`
	Attempts   int       `json:"attempts"`
	Failures   int       `json:"failures"` // consecutive
	EnqueuedAt time.Time `json:"enqueued_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func jobKey(listingID string) []byte {
	return []byte(jobPrefix + listingID)
}

// Queue is the durable job store.
type Queue struct {
	db       *badger.DB
	inMemory bool
}

// OpenQueue opens the queue at path. An empty path selects an in-memory store
// whose jobs do not survive a restart.
func OpenQueue(path string) (*Queue, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(badgerLogger{l: log.With().Str("component", "badgerdb").Logger()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger queue at %q: %w", path, err)
	}
	return &Queue{db: db, inMemory: path == ""}, nil
}

// Close releases the underlying store.
func (q *Queue) Close() error { return q.db.Close() }

// Put stores or replaces the job for j.ListingID.
func (q *Queue) Put(j Job) error {
	b, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return q.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(jobKey(j.ListingID), b))
	})
}

// Get returns the job for listingID. ok is false when no job is stored.
func (q *Queue) Get(listingID string) (j Job, ok bool, err error) {
	err = q.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(jobKey(listingID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		ok = true
		return item.Value(func(val []byte) error { return json.Unmarshal(val, &j) })
	})
	return j, ok, err
}

// Delete removes the job for listingID. Deleting a missing job is not an error.
func (q *Queue) Delete(listingID string) error {
	return q.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(jobKey(listingID))
	})
}

// List returns every stored job.
func (q *Queue) List() ([]Job, error) {
	var jobs []Job
	err := q.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(jobPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var j Job
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &j) }); err != nil {
				return fmt.Errorf("decode job %s: %w", item.Key(), err)
			}
			jobs = append(jobs, j)
		}
		return nil
	})
	return jobs, err
}

// RunGC reclaims value-log space every interval until ctx is done. It is a
// no-op for in-memory queues.
func (q *Queue) RunGC(ctx context.Context, interval time.Duration) {
	if q.inMemory || interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			err := q.db.RunValueLogGC(0.7)
			switch {
			case err == nil:
				log.Debug().Msg("badger value log gc completed")
			case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrRejected):
			default:
				log.Warn().Err(err).Msg("badger value log gc failed")
			}
		}
	}
}

// badgerLogger adapts zerolog to badger.Logger.
type badgerLogger struct {
	l zerolog.Logger
}

func (b badgerLogger) Errorf(f string, v ...interface{})   { b.l.Error().Msgf(f, v...) }
func (b badgerLogger) Warningf(f string, v ...interface{}) { b.l.Warn().Msgf(f, v...) }
func (b badgerLogger) Infof(f string, v ...interface{})    { b.l.Debug().Msgf(f, v...) }
func (b badgerLogger) Debugf(f string, v ...interface{})   { b.l.Trace().Msgf(f, v...) }
