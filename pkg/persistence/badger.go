package persistence

import (
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// BadgerService 基于 Badger 的持久化服务。
// 与 JSONFileService 实现同一个 Service 接口，适合高频写入快照的场景
// （每次风控状态变更都会写一次）。
type BadgerService struct {
	db *badger.DB
}

// OpenBadger 打开 Badger 数据库
func OpenBadger(dir string) (*BadgerService, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "打开 badger 失败: dir=%s", dir)
	}
	return &BadgerService{db: db}, nil
}

// Close 关闭数据库
func (s *BadgerService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewStore 创建新的存储
func (s *BadgerService) NewStore(prefix, id, tag string) Store {
	return &badgerStore{
		db:  s.db,
		key: []byte(fmt.Sprintf("%s:%s:%s", prefix, id, tag)),
	}
}

type badgerStore struct {
	db  *badger.DB
	key []byte
}

// Save 保存数据（JSON 序列化后写入单个 key）
func (s *badgerStore) Save(data interface{}) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key, b)
	})
}

// Load 加载数据
func (s *badgerStore) Load(data interface{}) error {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotExists
		}
		return err
	}
	if len(raw) == 0 {
		return ErrNotExists
	}
	return json.Unmarshal(raw, data)
}
