package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"audiotube/internal/logging"
)

const (
	defaultChatIdle = 10 * time.Minute
	chatQueueSize   = 32
)

// HandleFunc processes one classified event.
type HandleFunc func(ctx context.Context, ev Event)

type chatWorker struct {
	events  chan Event
	pending int
}

// Router runs one goroutine per active chat. Events of a chat are handled in
// arrival order; different chats proceed independently. A chat worker exits
// after sitting idle for the configured period.
type Router struct {
	handle HandleFunc
	idle   time.Duration
	logger *slog.Logger

	mu    sync.Mutex
	chats map[int64]*chatWorker
	wg    sync.WaitGroup
}

// NewRouter builds a Router. A non-positive idle uses ten minutes.
func NewRouter(handle HandleFunc, idle time.Duration, logger *slog.Logger) *Router {
	if idle <= 0 {
		idle = defaultChatIdle
	}
	return &Router{
		handle: handle,
		idle:   idle,
		logger: logging.NewComponentLogger(logger, "router"),
		chats:  make(map[int64]*chatWorker),
	}
}

// Route queues ev on its chat's worker, starting one if needed. It blocks
// only while that chat's queue is full.
func (r *Router) Route(ctx context.Context, ev Event) {
	r.mu.Lock()
	w, ok := r.chats[ev.ChatID]
	if !ok {
		w = &chatWorker{events: make(chan Event, chatQueueSize)}
		r.chats[ev.ChatID] = w
		r.wg.Add(1)
		go r.run(ctx, ev.ChatID, w)
	}
	w.pending++
	r.mu.Unlock()

	select {
	case w.events <- ev:
	case <-ctx.Done():
		r.mu.Lock()
		w.pending--
		r.mu.Unlock()
	}
}

// Active reports how many chat workers are running.
func (r *Router) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chats)
}

// Wait blocks until every chat worker has exited.
func (r *Router) Wait() {
	r.wg.Wait()
}

func (r *Router) run(ctx context.Context, chatID int64, w *chatWorker) {
	defer r.wg.Done()
	timer := time.NewTimer(r.idle)
	defer timer.Stop()

	for {
		select {
		case ev := <-w.events:
			r.handle(ctx, ev)
			r.mu.Lock()
			w.pending--
			r.mu.Unlock()
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(r.idle)
		case <-timer.C:
			r.mu.Lock()
			if w.pending == 0 {
				delete(r.chats, chatID)
				r.mu.Unlock()
				r.logger.Debug("chat worker idle; exiting", logging.ChatID(chatID))
				return
			}
			r.mu.Unlock()
			timer.Reset(r.idle)
		case <-ctx.Done():
			r.mu.Lock()
			delete(r.chats, chatID)
			r.mu.Unlock()
			return
		}
	}
}
