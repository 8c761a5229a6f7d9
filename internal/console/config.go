package console

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/EgorLis/ethrpc/internal/rpclient"
)

// Settings — содержимое conf/ethrpc.json.
type Settings struct {
	RPC        rpclient.Config   `json:"rpc"`
	Aliases    map[string]string `json:"aliases"` // @name в параметрах заменяется значением
	WatchEvery rpclient.Duration `json:"watch_every"`
}

// Store — файл настроек; команды консоли меняют его и сразу сохраняют.
type Store struct {
	mu   sync.Mutex
	path string
	data Settings
}

// OpenStore — читает настройки; если файла нет, создаёт его с настройками
// по умолчанию.
func OpenStore(path string) (*Store, error) {
	s := &Store{
		path: path,
		data: Settings{
			RPC:        rpclient.DefaultConfig(),
			Aliases:    map[string]string{},
			WatchEvery: rpclient.Duration{Duration: 12 * time.Second},
		},
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, s.saveLocked() // создаём пустой
		}
		return nil, err
	}
	if err := json.Unmarshal(b, &s.data); err != nil {
		return nil, err
	}
	if s.data.Aliases == nil {
		s.data.Aliases = map[string]string{}
	}
	return s, nil
}

func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(&s.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o644)
}

// Settings — копия текущих настроек.
func (s *Store) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.data
	out.Aliases = make(map[string]string, len(s.data.Aliases))
	for k, v := range s.data.Aliases {
		out.Aliases[k] = v
	}
	return out
}

func (s *Store) Alias(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data.Aliases[name]
	return v, ok
}

func (s *Store) SetAlias(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Aliases[name] = value
	return s.saveLocked()
}

func (s *Store) DeleteAlias(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data.Aliases, name)
	return s.saveLocked()
}
