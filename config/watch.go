package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher 监听配置文件变化并回调最新策略参数。
// 带冷却时间，避免编辑器多次写入触发连续重载。
type Watcher struct {
	path     string
	cooldown time.Duration

	watcher    *fsnotify.Watcher
	mu         sync.Mutex
	lastReload time.Time
	stopChan   chan struct{}
	doneChan   chan struct{}
}

// NewWatcher 创建配置监听器。
func NewWatcher(path string, cooldown time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if cooldown <= 0 {
		cooldown = 5 * time.Second
	}
	return &Watcher{
		path:     path,
		cooldown: cooldown,
		watcher:  fw,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start 开始监听；onUpdate 在配置变化且通过校验后收到新配置。
func (w *Watcher) Start(ctx context.Context, onUpdate func(AppConfig)) error {
	if err := w.watcher.Add(w.path); err != nil {
		return fmt.Errorf("watch config file: %w", err)
	}
	go w.run(ctx, onUpdate)
	return nil
}

// Stop 停止监听并关闭底层 watcher。
func (w *Watcher) Stop() error {
	select {
	case <-w.stopChan:
	default:
		close(w.stopChan)
	}
	select {
	case <-w.doneChan:
	case <-time.After(time.Second):
	}
	return w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context, onUpdate func(AppConfig)) {
	defer close(w.doneChan)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create {
				w.handleChange(onUpdate)
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// 监听错误不终止循环
		}
	}
}

func (w *Watcher) handleChange(onUpdate func(AppConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if time.Since(w.lastReload) < w.cooldown {
		return
	}
	cfg, err := LoadWithEnvOverrides(w.path)
	if err != nil {
		return // 坏配置不应用，保留上一份
	}
	w.lastReload = time.Now()
	if onUpdate != nil {
		onUpdate(cfg)
	}
}
