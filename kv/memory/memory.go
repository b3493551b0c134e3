package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/pkg/errors"
)

// ErrClosed возвращается при обращении к закрытому хранилищу
var ErrClosed = errors.New("memory store is closed")

// Store хранит хеши в памяти процесса. Используется в тестах и для локального запуска
type Store struct {
	mx     sync.RWMutex
	hashes map[string]map[string]string
	closed bool
}

// NewStore создаёт пустой Store
func NewStore() *Store {
	return &Store{hashes: make(map[string]map[string]string)}
}

// HGetAll возвращает копию хеша; для отсутствующего ключа пустую map
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := make(map[string]string, len(s.hashes[key]))
	maps.Copy(result, s.hashes[key])
	return result, nil
}

// HReplace заменяет содержимое хеша
func (s *Store) HReplace(ctx context.Context, key string, values map[string]string) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(values) == 0 {
		delete(s.hashes, key)
		return nil
	}
	s.hashes[key] = maps.Clone(values)
	return nil
}

// Delete удаляет ключи
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.closed {
		return ErrClosed
	}
	for _, key := range keys {
		delete(s.hashes, key)
	}
	return nil
}

// Exists возвращает количество существующих ключей
func (s *Store) Exists(ctx context.Context, keys ...string) (int64, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}

	var count int64
	for _, key := range keys {
		if _, ok := s.hashes[key]; ok {
			count++
		}
	}
	return count, nil
}

// Ping проверяет, что хранилище не закрыто
func (s *Store) Ping(ctx context.Context) error {
	s.mx.RLock()
	defer s.mx.RUnlock()

	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close закрывает хранилище
func (s *Store) Close() error {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.closed = true
	return nil
}
