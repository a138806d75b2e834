package segment

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Registry 维护“模型名 → 已加载模型”的映射。模型按需加载，成功后常驻直到 Close；
// 加载失败不会被缓存，下一次请求会重试。
type Registry struct {
	mu      sync.Mutex
	loaders map[string]Loader
	entries map[string]*entry
	closed  bool
}

type entry struct {
	mu    sync.Mutex
	model Model
}

func NewRegistry() *Registry {
	return &Registry{
		loaders: make(map[string]Loader),
		entries: make(map[string]*entry),
	}
}

// Register 注册模型加载器，同名覆盖
func (r *Registry) Register(name string, loader Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[name] = loader
}

// Names 返回已注册的模型名
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.loaders))
	for name := range r.loaders {
		names = append(names, name)
	}
	return names
}

// Get 返回已加载的模型，首次调用时加载。同一模型的并发首次调用只会触发一次加载。
func (r *Registry) Get(ctx context.Context, name string) (Model, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	loader, ok := r.loaders[name]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	e, ok := r.entries[name]
	if !ok {
		e = &entry{}
		r.entries[name] = e
	}
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.model != nil {
		return e.model, nil
	}

	model, err := loader(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoadFailed, name, err)
	}
	if model == nil {
		return nil, fmt.Errorf("%w: %s: loader returned nil", ErrModelLoadFailed, name)
	}

	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		_ = model.Close()
		return nil, ErrRegistryClosed
	}

	e.model = model
	return model, nil
}

// Loaded 判断模型是否已加载
func (r *Registry) Loaded(name string) bool {
	r.mu.Lock()
	e, ok := r.entries[name]
	r.mu.Unlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model != nil
}

// Close 释放所有已加载模型，只在进程退出时调用
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	var errs []error
	for name, e := range entries {
		e.mu.Lock()
		if e.model != nil {
			if err := e.model.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", name, err))
			}
			e.model = nil
		}
		e.mu.Unlock()
	}
	return errors.Join(errs...)
}

// staticModel 把任意 Generator 包装成无需加载、无需释放的模型
type staticModel struct {
	Generator
	name string
}

func (m staticModel) Name() string { return m.name }
func (m staticModel) Close() error { return nil }

// Static 返回一个直接使用 gen 的 Loader
func Static(name string, gen Generator) Loader {
	return func(context.Context) (Model, error) {
		return staticModel{Generator: gen, name: name}, nil
	}
}
