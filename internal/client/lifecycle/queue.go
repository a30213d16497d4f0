// Package lifecycle は認証状態の遷移に伴う副作用と画面遷移を制御する。
package lifecycle

import (
	"context"
	"log/slog"
	"sync"
)

// Task はTaskQueueで実行される処理。
type Task func(ctx context.Context)

// TaskQueue は単一のワーカーgoroutineでタスクを投入順に実行するキュー。
// セッション変化のコールバック内から処理を積み、コールバックが戻った後に実行するために使う。
// 容量の上限は無く、Enqueueはブロックしない。
type TaskQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	tasks   []Task
	pending int
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTaskQueue はTaskQueueを生成し、ワーカーを起動する。
func NewTaskQueue() *TaskQueue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &TaskQueue{ctx: ctx, cancel: cancel, done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Enqueue はタスクを末尾に積む。Close後はfalseを返し、タスクは実行されない。
func (q *TaskQueue) Enqueue(t Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.tasks = append(q.tasks, t)
	q.pending++
	q.cond.Broadcast()
	return true
}

// Drain は積まれたタスクが全て完了するまで待つ。タスク内から呼んではならない。
func (q *TaskQueue) Drain() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.pending > 0 {
		q.cond.Wait()
	}
}

// Close は新規の受付を止め、残りのタスクを実行し終えてからワーカーを停止する。
func (q *TaskQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()

	<-q.done
	q.cancel()
}

func (q *TaskQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return
		}
		t := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		q.exec(t)

		q.mu.Lock()
		q.pending--
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

func (q *TaskQueue) exec(t Task) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("task panicked", slog.Any("panic", rec))
		}
	}()
	t(q.ctx)
}
