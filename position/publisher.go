package position

import "sync"

// Publisher 一个轻量的持仓快照分发器。发布非阻塞：
// 订阅者来不及消费时丢弃本次快照，绝不拖慢引擎。
type Publisher struct {
	mu   sync.Mutex
	subs []chan []Snapshot
}

func NewPublisher() *Publisher {
	return &Publisher{subs: make([]chan []Snapshot, 0)}
}

// Subscribe 注册一个快照订阅者。
func (p *Publisher) Subscribe() <-chan []Snapshot {
	ch := make(chan []Snapshot, 1)
	p.mu.Lock()
	p.subs = append(p.subs, ch)
	p.mu.Unlock()
	return ch
}

// Publish 向所有订阅者分发一批快照。
func (p *Publisher) Publish(snaps []Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- snaps:
		default:
		}
	}
}
