package llm

import (
	"fmt"
	"sort"
	"sync"
)

// ProviderRegistry 按标识管理多个 Provider 实例，并发安全。
// 除增删查外还维护一个默认 Provider，供不关心厂商差异的调用方使用。
// 注册中心只持有实例，不负责构造与配置（见 llm/factory）。
type ProviderRegistry struct {
	mu          sync.RWMutex
	providers   map[string]Provider
	defaultName string
}

// NewProviderRegistry 创建空的注册中心。
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{providers: make(map[string]Provider)}
}

// Register 以 name 为键注册 Provider，重复注册时覆盖旧实例。
// 覆盖不影响已设置的默认名，调用方换新实例后默认指向新实例。
func (r *ProviderRegistry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Unregister 移除指定 Provider；若它恰为默认，默认一并清除。
func (r *ProviderRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, name)
	if r.defaultName == name {
		r.defaultName = ""
	}
}

// Get 按名称取 Provider。
func (r *ProviderRegistry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// SetDefault 把已注册的 Provider 设为默认，未注册的名称返回错误。
func (r *ProviderRegistry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("cannot set default: provider %q is not registered", name)
	}
	r.defaultName = name
	return nil
}

// Default 返回默认 Provider。
// 未设置默认或默认已被注销时返回错误。
func (r *ProviderRegistry) Default() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.defaultName == "" {
		return nil, fmt.Errorf("no default provider designated")
	}
	p, ok := r.providers[r.defaultName]
	if !ok {
		return nil, fmt.Errorf("default provider %q is no longer registered", r.defaultName)
	}
	return p, nil
}

// List 返回全部已注册名称，按字典序。
func (r *ProviderRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNames(func(Provider) bool { return true })
}

// Available 返回必需配置已就绪的名称（见 Provider.IsAvailable），按字典序。
// 注册但未配置 API Key 的厂商不在其中。
func (r *ProviderRegistry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNames(Provider.IsAvailable)
}

// Len 返回已注册的 Provider 数量。
func (r *ProviderRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// sortedNames 在持有读锁的前提下按条件收集名称。
func (r *ProviderRegistry) sortedNames(keep func(Provider) bool) []string {
	names := make([]string, 0, len(r.providers))
	for name, p := range r.providers {
		if keep(p) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
