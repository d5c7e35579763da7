// Package telegram adapts a Telegram chat to the engine's host surface: it
// turns bot updates into chat activity events, maintains the live
// transcript per chat, executes task command strings by posting them into
// the conversation, and exposes the textual command routes.
package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"stagehand/internal/kit"
)

type Config struct {
	Token string
	// AssistantUserIDs lists senders whose messages count as assistant
	// entries. The bot's own sends always do.
	AssistantUserIDs []int64
	PollTimeout      time.Duration
}

// CommandSurface is the engine's textual command API, wired in by the app.
type CommandSurface interface {
	ExecuteTaskByName(ctx context.Context, name string) string
	SetTaskInterval(ctx context.Context, name, rawInterval string) string
}

type Adapter struct {
	cfg Config
	log *slog.Logger

	bot *tele.Bot
	bus *kit.Bus

	cmds CommandSurface

	mu          sync.Mutex
	activeChat  string
	transcripts map[string][]kit.Message

	runMu     sync.Mutex
	running   bool
	runCancel context.CancelFunc
	runWG     sync.WaitGroup
}

func New(cfg Config, bus *kit.Bus, log *slog.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{
		cfg:         cfg,
		log:         log,
		bot:         b,
		bus:         bus,
		transcripts: map[string][]kit.Message{},
	}, nil
}

// SetCommandSurface wires the engine's command API. Must be called before
// Start so the /xbqte and /xbset routes can answer.
func (a *Adapter) SetCommandSurface(c CommandSurface) { a.cmds = c }

// Messages implements kit.Transcripts.
func (a *Adapter) Messages(chatID string) []kit.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]kit.Message(nil), a.transcripts[chatID]...)
}

// ActiveChat returns the chat the adapter currently follows.
func (a *Adapter) ActiveChat() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activeChat
}

// Execute implements kit.CommandExecutor: the opaque command string is
// posted verbatim into the active chat, where the host side (other bots,
// the user) interprets it.
func (a *Adapter) Execute(ctx context.Context, command string) (string, error) {
	a.mu.Lock()
	chatID := a.activeChat
	a.mu.Unlock()
	if chatID == "" {
		return "", errors.New("no active chat")
	}
	if err := a.Send(ctx, kit.ChatTarget{ChatID: chatID}, command); err != nil {
		return "", err
	}
	return "ok", nil
}

// Send implements kit.Sender.
func (a *Adapter) Send(_ context.Context, to kit.ChatTarget, text string) error {
	id, err := strconv.ParseInt(to.ChatID, 10, 64)
	if err != nil {
		return err
	}
	if _, err := a.bot.Send(tele.ChatID(id), text); err != nil {
		return err
	}
	// The bot's own message is part of the transcript and is announced
	// like any other assistant message; the engine's re-entrancy flags
	// decide whether it may trigger.
	a.recordAndAnnounce(to.ChatID, kit.Message{Text: text})
	return nil
}

func (a *Adapter) Start(ctx context.Context) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	rctx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel
	a.runMu.Unlock()

	a.bot.Handle("/xbqte", func(c tele.Context) error {
		if a.cmds == nil {
			return c.Reply("Error: command surface not ready")
		}
		args := c.Args()
		if len(args) < 1 {
			return c.Reply("Usage: /xbqte <taskName>")
		}
		return c.Reply(a.cmds.ExecuteTaskByName(rctx, strings.Join(args, " ")))
	})

	a.bot.Handle("/xbset", func(c tele.Context) error {
		if a.cmds == nil {
			return c.Reply("Error: command surface not ready")
		}
		args := c.Args()
		if len(args) < 2 {
			return c.Reply("Usage: /xbset <taskName> <interval>")
		}
		name := strings.Join(args[:len(args)-1], " ")
		return c.Reply(a.cmds.SetTaskInterval(rctx, name, args[len(args)-1]))
	})

	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil {
			return nil
		}
		chatID := strconv.FormatInt(m.Chat.ID, 10)
		msg := kit.Message{
			IsUser: !a.isAssistant(m.Sender.ID),
			Text:   m.Text,
		}
		a.recordAndAnnounce(chatID, msg)
		return nil
	})

	a.runWG.Add(1)
	go func() {
		defer a.runWG.Done()
		go func() {
			<-rctx.Done()
			a.bot.Stop()
		}()
		a.log.Info("polling started")
		a.bot.Start()
		a.log.Info("polling stopped")
	}()
	return nil
}

func (a *Adapter) Stop() {
	a.runMu.Lock()
	cancel := a.runCancel
	a.runCancel = nil
	a.running = false
	a.runMu.Unlock()
	if cancel != nil {
		cancel()
	}
	a.runWG.Wait()
}

func (a *Adapter) isAssistant(senderID int64) bool {
	if a.bot.Me != nil && senderID == a.bot.Me.ID {
		return true
	}
	for _, id := range a.cfg.AssistantUserIDs {
		if id == senderID {
			return true
		}
	}
	return false
}

// recordAndAnnounce appends to the transcript and publishes the matching
// chat events. A message from a chat other than the active one announces a
// chat switch first; the engine resets its baselines on that event.
func (a *Adapter) recordAndAnnounce(chatID string, msg kit.Message) {
	a.mu.Lock()
	switched := a.activeChat != chatID
	a.activeChat = chatID
	a.transcripts[chatID] = append(a.transcripts[chatID], msg)
	index := len(a.transcripts[chatID]) - 1
	a.mu.Unlock()

	if switched {
		a.bus.Publish(kit.Event{Kind: kit.EventChatChanged, ChatID: chatID})
	}
	if msg.IsUser {
		a.bus.Publish(kit.Event{Kind: kit.EventUserMessageRendered, ChatID: chatID})
	} else {
		a.bus.Publish(kit.Event{Kind: kit.EventMessageReceived, ChatID: chatID, MessageIndex: index})
	}
}
