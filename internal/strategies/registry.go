package strategies

import (
	"fmt"
	"sort"
	"sync"
)

// Registry 策略注册表
type Registry struct {
	strategies map[string]Strategy
	mu         sync.RWMutex
}

// NewRegistry 创建新的策略注册表
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// Register 注册策略。注册前会执行 Defaults/Validate（如果策略实现了对应接口）。
func (r *Registry) Register(strategy Strategy) error {
	if defaulter, ok := strategy.(StrategyDefaulter); ok {
		if err := defaulter.Defaults(); err != nil {
			return fmt.Errorf("策略 %s 默认值设置失败: %w", strategy.ID(), err)
		}
	}
	if validator, ok := strategy.(StrategyValidator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("策略 %s 配置校验失败: %w", strategy.ID(), err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := strategy.ID()
	if _, exists := r.strategies[id]; exists {
		return fmt.Errorf("策略 %s 已存在", id)
	}

	r.strategies[id] = strategy
	return nil
}

// Get 获取策略
func (r *Registry) Get(id string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	strategy, exists := r.strategies[id]
	if !exists {
		return nil, fmt.Errorf("策略 %s 不存在", id)
	}

	return strategy, nil
}

// List 列出所有策略 ID（按字典序，保证遍历顺序确定）
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.strategies))
	for id := range r.strategies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GetAll 获取所有策略（按 ID 字典序）
func (r *Registry) GetAll() []Strategy {
	all := make([]Strategy, 0)
	for _, id := range r.List() {
		r.mu.RLock()
		s := r.strategies[id]
		r.mu.RUnlock()
		all = append(all, s)
	}
	return all
}
