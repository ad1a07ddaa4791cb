// Package store хранит пользовательские настройки и конфигурацию кольца в BadgerDB,
// чтобы они переживали перезапуск сервиса
package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"ring-haptics-service/internal/cue"
	"ring-haptics-service/internal/models"
)

var (
	preferencesKey = []byte("prefs/cue")
	configKey      = []byte("config/device")
)

// ErrNotFound запись еще не сохранялась
var ErrNotFound = errors.New("store: not found")

// Store бинарные блобы настроек. Формат совпадает с упаковкой на кольце
type Store struct {
	db  *badger.DB
	log *zap.Logger
}

// badgerLogger направляет журнал badger в zap
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}

// Open открывает базу по пути. Пустой путь открывает базу в памяти
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("store")

	opts := badger.DefaultOptions(path).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{log.WithOptions(zap.IncreaseLevel(zap.WarnLevel)).Sugar()})
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	log.Info("Store opened", zap.String("path", path), zap.Bool("in_memory", path == ""))
	return &Store{db: db, log: log}, nil
}

func (s *Store) put(key []byte, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *Store) get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

// SavePreferences сохраняет настройки подсказок
func (s *Store) SavePreferences(p cue.Preferences) error {
	b, err := p.MarshalBinary()
	if err != nil {
		return err
	}
	return s.put(preferencesKey, b)
}

// LoadPreferences читает настройки подсказок или ErrNotFound
func (s *Store) LoadPreferences() (cue.Preferences, error) {
	var p cue.Preferences
	b, err := s.get(preferencesKey)
	if err != nil {
		return p, err
	}
	if err := p.UnmarshalBinary(b); err != nil {
		return p, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return p, nil
}

// SaveConfig сохраняет конфигурацию устройства
func (s *Store) SaveConfig(c models.Config) error {
	b, err := c.MarshalBinary()
	if err != nil {
		return err
	}
	return s.put(configKey, b)
}

// LoadConfig читает конфигурацию или ErrNotFound
func (s *Store) LoadConfig() (models.Config, error) {
	var c models.Config
	b, err := s.get(configKey)
	if err != nil {
		return c, err
	}
	if err := c.UnmarshalBinary(b); err != nil {
		return c, fmt.Errorf("failed to decode config: %w", err)
	}
	return c, nil
}

// Ping проверяет, что база открыта
func (s *Store) Ping() error {
	if s.db.IsClosed() {
		return errors.New("store: closed")
	}
	return nil
}

// Close закрывает базу
func (s *Store) Close() error {
	return s.db.Close()
}
