// Package badgerdb stores moderation records in an embedded Badger database, for single
// node deployments and the CLI.
package badgerdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"docverify/internal/moderation"
	id "docverify/pkg/domain"
	"docverify/pkg/platform/sentinel"
)

// Keys:
//
//	mod:sub:{submission_id}                      -> JSON record
//	mod:user:{user_id}:{created_unix_nano}:{sid} -> submission_id
const (
	submissionPrefix = "mod:sub:"
	userPrefix       = "mod:user:"
)

type Store struct {
	db *badger.DB
}

// Open opens (or creates) a database at path.
func Open(path string) (*badger.DB, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return db, nil
}

func New(db *badger.DB) *Store {
	return &Store{db: db}
}

func submissionKey(sid id.SubmissionID) []byte {
	return []byte(submissionPrefix + sid.String())
}

func userKey(r moderation.Record) []byte {
	return fmt.Appendf(nil, "%s%s:%019d:%s", userPrefix, r.UserID, r.CreatedAt.UnixNano(), r.SubmissionID)
}

func (s *Store) Append(_ context.Context, record moderation.Record) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal moderation record: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		key := submissionKey(record.SubmissionID)
		_, err := txn.Get(key)
		switch {
		case err == nil:
			return sentinel.ErrConflict
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		if err := txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set(userKey(record), []byte(record.SubmissionID.String()))
	})
	switch {
	case err == nil, errors.Is(err, sentinel.ErrConflict):
		return err
	case errors.Is(err, badger.ErrConflict):
		// a concurrent transaction touched the same key; the retry will see it
		return errors.Join(fmt.Errorf("append moderation record: %w", err), sentinel.ErrUnavailable)
	default:
		return fmt.Errorf("append moderation record: %w", err)
	}
}

func (s *Store) FindBySubmission(_ context.Context, submissionID id.SubmissionID) (*moderation.Record, error) {
	var record moderation.Record
	err := s.db.View(func(txn *badger.Txn) error {
		return getRecord(txn, submissionKey(submissionID), &record)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find moderation record: %w", err)
	}
	return &record, nil
}

// ListByUser returns the user's records oldest first.
func (s *Store) ListByUser(_ context.Context, userID id.UserID) ([]moderation.Record, error) {
	var records []moderation.Record
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(userPrefix + userID.String() + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			sid, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var record moderation.Record
			if err := getRecord(txn, []byte(submissionPrefix+string(sid)), &record); err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list moderation records: %w", err)
	}
	return records, nil
}

func getRecord(txn *badger.Txn, key []byte, record *moderation.Record) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, record)
	})
}
