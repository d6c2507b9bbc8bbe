// Package ratings persists message ratings on the client in a BoltDB file.
package ratings

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/AyeshaKanwal90/ChatAI/internal/domain"
)

var bucketRatings = []byte("ratings")

// BoltStore keeps one nested bucket per conversation, keyed by message id.
type BoltStore struct {
	db *bolt.DB
}

// DefaultPath returns the ratings file under the user's config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "chatai", "ratings.bolt")
}

// Open opens or creates the ratings file at path.
func Open(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRatings)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Load returns the ratings recorded for a conversation.
func (s *BoltStore) Load(conversationID string) (map[string]domain.Rating, error) {
	out := map[string]domain.Rating{}
	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketRatings)
		if root == nil {
			return nil
		}
		b := root.Bucket([]byte(conversationID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			r := domain.Rating(v)
			if r == domain.RatingUnset || !r.Valid() {
				// Skip malformed
				return nil
			}
			out[string(k)] = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Save records a rating. Saving the unset rating removes it.
func (s *BoltStore) Save(conversationID, messageID string, rating domain.Rating) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(bucketRatings)
		if err != nil {
			return err
		}
		b, err := root.CreateBucketIfNotExists([]byte(conversationID))
		if err != nil {
			return err
		}
		if rating == domain.RatingUnset {
			return b.Delete([]byte(messageID))
		}
		return b.Put([]byte(messageID), []byte(rating))
	})
}

// DeleteConversation drops every rating of a conversation.
func (s *BoltStore) DeleteConversation(conversationID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketRatings)
		if root == nil {
			return nil
		}
		err := root.DeleteBucket([]byte(conversationID))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

// Clear drops all ratings.
func (s *BoltStore) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketRatings) != nil {
			if err := tx.DeleteBucket(bucketRatings); err != nil {
				return err
			}
		}
		_, err := tx.CreateBucket(bucketRatings)
		return err
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
