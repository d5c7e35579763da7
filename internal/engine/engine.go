package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"stagehand/internal/kit"
	"stagehand/internal/storage"
	"stagehand/internal/tasks"
)

// ledgerModule is the settings-store key the processed-message ledger is
// persisted under.
const ledgerModule = "ledger"

// Config tunes the engine. Zero values fall back to defaults.
type Config struct {
	// CooldownWindow is the wall-clock guard against duplicate firing when
	// the host delivers two events in quick succession for one message.
	CooldownWindow time.Duration
	// TransitionWindow inhibits evaluation right after a chat switch.
	TransitionWindow time.Duration
	// SettleDelay keeps re-entrancy flags set after a dispatch returns.
	SettleDelay time.Duration
	// PersistDebounce coalesces ledger writes on rapid message streams.
	PersistDebounce time.Duration
	CooldownMax     int
	LedgerMax       int
}

func (c Config) withDefaults() Config {
	if c.CooldownWindow <= 0 {
		c.CooldownWindow = 5 * time.Second
	}
	if c.TransitionWindow <= 0 {
		c.TransitionWindow = 2 * time.Second
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = time.Second
	}
	if c.PersistDebounce <= 0 {
		c.PersistDebounce = time.Second
	}
	if c.CooldownMax <= 0 {
		c.CooldownMax = 100
	}
	if c.LedgerMax <= 0 {
		c.LedgerMax = 200
	}
	return c
}

// Deps are the external collaborators the engine consumes.
type Deps struct {
	Repo        *tasks.Repository
	Store       storage.Store
	Transcripts kit.Transcripts
	Executor    kit.CommandExecutor
}

// Engine is the trigger engine service. Create with New, attach to a bus
// with Start, release with Stop.
type Engine struct {
	cfg   Config
	log   *slog.Logger
	repo  *tasks.Repository
	store storage.Store
	chats kit.Transcripts
	disp  *dispatcher

	mu              sync.Mutex
	chatID          string
	chatJustChanged bool
	isNewChat       bool
	lastTurnCount   int
	transitionTimer *time.Timer
	cooldowns       *cooldownTracker
	led             *ledger
	ledgerTimer     *time.Timer

	runMu   sync.Mutex
	running bool
	unsub   func()
	done    chan struct{}
}

func New(cfg Config, deps Deps, log *slog.Logger) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:       cfg,
		log:       log,
		repo:      deps.Repo,
		store:     deps.Store,
		chats:     deps.Transcripts,
		disp:      newDispatcher(deps.Executor, cfg.SettleDelay, log),
		cooldowns: newCooldownTracker(),
		led:       newLedger(cfg.LedgerMax),
	}
}

// Start restores the ledger and begins consuming events from the bus.
func (e *Engine) Start(ctx context.Context, bus *kit.Bus) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.running {
		return nil
	}

	if err := e.loadLedger(ctx); err != nil {
		// Losing the ledger only risks replayed evaluations, which the
		// cooldown guard absorbs. Start anyway.
		e.log.Warn("ledger restore failed", slog.String("err", err.Error()))
	}

	events, unsub := bus.Subscribe(64)
	e.unsub = unsub
	e.done = make(chan struct{})
	e.running = true

	go func() {
		defer close(e.done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				e.HandleEvent(ctx, ev)
			}
		}
	}()

	e.log.Info("trigger engine started",
		slog.Duration("cooldown", e.cfg.CooldownWindow),
		slog.Int("ledger_max", e.cfg.LedgerMax))
	return nil
}

// Stop detaches from the bus and flushes pending state.
func (e *Engine) Stop(ctx context.Context) {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if !e.running {
		return
	}
	e.running = false
	if e.unsub != nil {
		e.unsub()
		e.unsub = nil
	}
	select {
	case <-e.done:
	case <-ctx.Done():
	}

	e.mu.Lock()
	if e.ledgerTimer != nil {
		e.ledgerTimer.Stop()
		e.ledgerTimer = nil
	}
	if e.transitionTimer != nil {
		e.transitionTimer.Stop()
		e.transitionTimer = nil
	}
	e.mu.Unlock()

	e.persistLedger(ctx)
	e.repo.Flush(ctx)
	e.log.Info("trigger engine stopped")
}

// HandleEvent is the single entry point for chat activity events. Safe to
// call directly (the bus loop does) and idempotent per message key.
func (e *Engine) HandleEvent(ctx context.Context, ev kit.Event) {
	switch ev.Kind {
	case kit.EventMessageReceived:
		e.handleMessageReceived(ctx, ev.ChatID, ev.MessageIndex)
	case kit.EventUserMessageRendered:
		e.handleUserMessageRendered(ctx, ev.ChatID)
	case kit.EventChatChanged:
		e.handleChatChanged(ctx, ev.ChatID, ev.CharacterID)
	case kit.EventMessageDeleted:
		e.handleMessageDeleted(ev.ChatID)
	case kit.EventMessageSwiped:
		e.handleMessageSwiped(ev.ChatID, ev.MessageIndex)
	case kit.EventCharacterDeleted:
		e.handleCharacterDeleted(ctx, ev.CharacterID)
	}
}

func (e *Engine) handleMessageReceived(ctx context.Context, chatID string, index int) {
	if e.disp.busy() {
		e.log.Debug("message during dispatch ignored", slog.String("chat", chatID), slog.Int("index", index))
		return
	}
	if !e.adoptOrMatchChat(chatID) {
		return
	}

	key := messageKey(chatID, index)
	e.mu.Lock()
	if e.led.seen(key) {
		e.mu.Unlock()
		return
	}
	e.led.record(key)
	e.schedulePersistLocked()
	transitioning := e.chatJustChanged
	e.mu.Unlock()

	if transitioning {
		// The first evaluation after a chat switch is suppressed; the key
		// is still recorded so history does not re-trigger later.
		return
	}
	e.evaluate(ctx, tasks.TimingAfterAI)
}

func (e *Engine) handleUserMessageRendered(ctx context.Context, chatID string) {
	if e.disp.busy() {
		e.log.Debug("user message during dispatch ignored", slog.String("chat", chatID))
		return
	}
	if !e.adoptOrMatchChat(chatID) {
		return
	}

	key := userKey(chatID, floorCount(e.chats.Messages(chatID), tasks.FloorUser))
	e.mu.Lock()
	if e.led.seen(key) {
		e.mu.Unlock()
		return
	}
	e.led.record(key)
	e.schedulePersistLocked()
	transitioning := e.chatJustChanged
	e.mu.Unlock()

	if transitioning {
		return
	}
	e.evaluate(ctx, tasks.TimingBeforeUser)
}

func (e *Engine) handleChatChanged(ctx context.Context, chatID, characterID string) {
	msgs := e.chats.Messages(chatID)

	e.mu.Lock()
	prev := e.chatID
	e.chatID = chatID
	e.chatJustChanged = true
	e.isNewChat = prev != chatID && len(msgs) <= 1
	e.lastTurnCount = 0
	e.cooldowns.clear()
	e.led.pruneChat(chatID, len(msgs), floorCount(msgs, tasks.FloorUser))
	e.schedulePersistLocked()
	if e.transitionTimer != nil {
		e.transitionTimer.Stop()
	}
	e.transitionTimer = time.AfterFunc(e.cfg.TransitionWindow, e.endTransition)
	e.mu.Unlock()

	e.disp.reset()

	if characterID != "" {
		if err := e.repo.SetCharacter(ctx, characterID); err != nil {
			e.log.Warn("character task scope load failed",
				slog.String("character", characterID), slog.String("err", err.Error()))
		}
	}
	e.log.Info("chat changed", slog.String("chat", chatID), slog.Bool("new_chat", e.IsNewChat()))
}

func (e *Engine) handleMessageDeleted(chatID string) {
	e.mu.Lock()
	if chatID == "" {
		chatID = e.chatID
	}
	msgs := e.chats.Messages(chatID)
	e.led.pruneChat(chatID, len(msgs), floorCount(msgs, tasks.FloorUser))
	e.schedulePersistLocked()
	e.mu.Unlock()
}

func (e *Engine) handleMessageSwiped(chatID string, index int) {
	e.mu.Lock()
	if chatID == "" {
		chatID = e.chatID
	}
	// The regenerated message re-renders under the same index; let it be
	// evaluated again.
	e.led.drop(messageKey(chatID, index))
	e.schedulePersistLocked()
	e.mu.Unlock()
}

func (e *Engine) handleCharacterDeleted(ctx context.Context, characterID string) {
	if characterID == "" {
		return
	}
	if err := e.repo.DropCharacter(ctx, characterID); err != nil {
		e.log.Warn("character scope delete failed",
			slog.String("character", characterID), slog.String("err", err.Error()))
	}
}

func (e *Engine) endTransition() {
	e.mu.Lock()
	e.chatJustChanged = false
	e.isNewChat = false
	e.transitionTimer = nil
	e.mu.Unlock()
}

// adoptOrMatchChat binds the engine to the first chat it sees and ignores
// events for chats other than the active one (the host announces switches
// via chat-changed).
func (e *Engine) adoptOrMatchChat(chatID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.chatID == "" {
		e.chatID = chatID
		return true
	}
	if e.chatID != chatID {
		e.log.Debug("event for inactive chat ignored", slog.String("chat", chatID))
		return false
	}
	return true
}

// IsNewChat reports whether the active chat was freshly created at the
// last switch.
func (e *Engine) IsNewChat() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isNewChat
}

// Sweep is the janitor entry point: lazy cooldown eviction plus cap
// enforcement on both the cooldown maps and the ledger.
func (e *Engine) Sweep(now time.Time) {
	e.mu.Lock()
	before := e.led.size()
	e.cooldowns.sweep(now, e.cfg.CooldownWindow, e.cfg.CooldownMax)
	e.led.enforceCap()
	changed := e.led.size() != before
	if changed {
		e.schedulePersistLocked()
	}
	e.mu.Unlock()
}

func (e *Engine) schedulePersistLocked() {
	if e.ledgerTimer != nil {
		e.ledgerTimer.Stop()
	}
	e.ledgerTimer = time.AfterFunc(e.cfg.PersistDebounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		e.persistLedger(ctx)
	})
}

func (e *Engine) persistLedger(ctx context.Context) {
	e.mu.Lock()
	keys := e.led.snapshot()
	e.mu.Unlock()

	b, err := json.Marshal(keys)
	if err != nil {
		return
	}
	if err := e.store.PutModule(ctx, ledgerModule, b); err != nil {
		// Best-effort; replays are idempotent.
		e.log.Warn("ledger persist failed", slog.String("err", err.Error()))
	}
}

func (e *Engine) loadLedger(ctx context.Context) error {
	b, ok, err := e.store.GetModule(ctx, ledgerModule)
	if err != nil || !ok {
		return err
	}
	var keys []string
	if err := json.Unmarshal(b, &keys); err != nil {
		return err
	}
	e.mu.Lock()
	e.led.restore(keys)
	e.mu.Unlock()
	return nil
}
