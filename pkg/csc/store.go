package csc

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	bucket    = "fiberspectrograph"
	configKey = "csc_config"
)

// Store persists the CSC configuration in a bbolt database.
type Store struct {
	db *bolt.DB
}

// NewStore creates a store and seeds the default configuration if none
// is present.
func NewStore(db *bolt.DB) (*Store, error) {
	st := Store{db: db}

	if _, err := st.GetConfig(); err != nil {
		log.Info("Seeding default CSC config")
		if err := st.SetConfig(defaultConfig); err != nil {
			return nil, err
		}
	}
	return &st, nil
}

// SetConfig saves the configuration as a json string in the database.
func (s *Store) SetConfig(cfg Config) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}

		value, _ := json.Marshal(cfg)
		return b.Put([]byte(configKey), value)
	})
}

// GetConfig retrieves the configuration from the database.
func (s *Store) GetConfig() (Config, error) {
	var cfg Config

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}

		value := b.Get([]byte(configKey))
		if value == nil {
			return fmt.Errorf("key config not found")
		}

		return json.Unmarshal(value, &cfg)
	})

	return cfg, err
}
