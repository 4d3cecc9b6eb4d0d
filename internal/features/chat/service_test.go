package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iamamir.ir/mystery-bot/internal/common"
	"iamamir.ir/mystery-bot/internal/config"
	"iamamir.ir/mystery-bot/internal/features/users"
	"iamamir.ir/mystery-bot/internal/llm"
)

func TestTranscript(t *testing.T) {
	chats := []*Chat{
		{ID: 1, IsSystem: true, Text: "инструкция собеседника"},
		{ID: 2, IsSystem: false, Text: "سلام"},
		{ID: 3, IsSystem: true, Text: `{"COMMAND": "CHAT", "TEXT": "سلام!"}`},
		{ID: 4, IsSystem: false, Text: "یه داستان جدید شروع کن"},
	}

	messages := transcript(chats)
	require.Len(t, messages, 4)

	assert.Equal(t, llm.RoleSystem, messages[0].Role)
	assert.Equal(t, llm.RoleUser, messages[1].Role)
	assert.Equal(t, llm.RoleAssistant, messages[2].Role)
	assert.Equal(t, llm.RoleUser, messages[3].Role)

	t.Run("пустая сессия", func(t *testing.T) {
		assert.Empty(t, transcript(nil))
	})
}

const validChatJSON = `{"COMMAND": "CHAT", "TEXT": "باشه، تعریف می‌کنم"}`

// fakeStore хранит сессии и реплики в памяти; неподменённые методы
// Store падают на вложенном nil-интерфейсе.
type fakeStore struct {
	Store

	active      *Session
	history     map[int64][]*Chat
	countChats  func() (int, error)
	nextID      int64
	deactivated []int64
	seeded      []int64
	turns       []int64
}

func (f *fakeStore) ActiveSession(context.Context, int64) (*Session, error) {
	return f.active, nil
}

func (f *fakeStore) CreateSession(_ context.Context, userID int64) (*Session, error) {
	f.nextID++
	f.active = &Session{ID: f.nextID, UserID: userID, Active: true}
	return f.active, nil
}

func (f *fakeStore) DeactivateSessions(context.Context, int64) (int64, error) {
	f.active = nil
	return 0, nil
}

func (f *fakeStore) DeactivateSession(_ context.Context, sessionID int64) error {
	f.deactivated = append(f.deactivated, sessionID)
	f.active = nil
	return nil
}

func (f *fakeStore) InsertChat(_ context.Context, sessionID int64, text string, isSystem bool) error {
	if isSystem {
		f.seeded = append(f.seeded, sessionID)
	}
	f.insert(sessionID, &Chat{SessionID: sessionID, Text: text, IsSystem: isSystem})
	return nil
}

func (f *fakeStore) InsertTurnChats(_ context.Context, sessionID int64, userText, rawOutput string) error {
	f.turns = append(f.turns, sessionID)
	f.insert(sessionID, &Chat{SessionID: sessionID, Text: userText})
	f.insert(sessionID, &Chat{SessionID: sessionID, Text: rawOutput, IsSystem: true})
	return nil
}

func (f *fakeStore) ChatsHistory(_ context.Context, sessionID int64) ([]*Chat, error) {
	return f.history[sessionID], nil
}

func (f *fakeStore) CountUserChatsSince(context.Context, int64, time.Time) (int, error) {
	return f.countChats()
}

func (f *fakeStore) insert(sessionID int64, c *Chat) {
	if f.history == nil {
		f.history = make(map[int64][]*Chat)
	}
	f.history[sessionID] = append(f.history[sessionID], c)
}

type fakeBiller struct{ debits []float64 }

func (f *fakeBiller) Debit(_ context.Context, _ int64, cost float64) error {
	f.debits = append(f.debits, cost)
	return nil
}

type fakeGenerator struct {
	results []llm.Result
	models  []string
}

func (f *fakeGenerator) Generate(_ context.Context, model string, _ []llm.Message) (llm.Result, error) {
	call := len(f.models)
	f.models = append(f.models, model)
	var result llm.Result
	if call < len(f.results) {
		result = f.results[call]
	} else if len(f.results) > 0 {
		result = f.results[len(f.results)-1]
	}
	return result, nil
}

func newChatService(store *fakeStore, gen llm.Generator, cfg *config.Config) *Service {
	return &Service{
		repo:  store,
		users: &fakeBiller{},
		gen:   gen,
		policy: llm.GenerationPolicy{
			MaxAttempts:   3,
			PrimaryModel:  "primary",
			FallbackModel: "fallback",
		},
		cfg: cfg,
	}
}

func TestChatSessionRotation(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{ChatMaxMessages: 3}
	user := &users.User{UserID: 7, Charge: 1}

	gen := &fakeGenerator{results: []llm.Result{{Text: validChatJSON, InputTokens: 10, OutputTokens: 5}}}
	store := &fakeStore{active: &Session{ID: 1, UserID: 7, Active: true}, nextID: 1}
	store.insert(1, &Chat{SessionID: 1, Text: "инструкция", IsSystem: true})
	store.insert(1, &Chat{SessionID: 1, Text: "سلام"})
	store.insert(1, &Chat{SessionID: 1, Text: validChatJSON, IsSystem: true})
	s := newChatService(store, gen, cfg)

	// Транскрипт перерос окно: сессия закрывается, но текущая
	// реплика ещё уходит в неё
	parsed, err := s.Chat(ctx, user, "ادامه بده")
	require.NoError(t, err)
	require.NotNil(t, parsed)
	assert.Equal(t, llm.CommandChat, parsed.Command)
	assert.Equal(t, []int64{1}, store.deactivated)
	assert.Equal(t, []int64{1}, store.turns)

	// Следующая реплика открывает свежую сессию с системной инструкцией
	parsed, err = s.Chat(ctx, user, "سلام دوباره")
	require.NoError(t, err)
	require.NotNil(t, parsed)
	assert.Equal(t, []int64{2}, store.seeded)
	assert.Equal(t, []int64{1, 2}, store.turns)
	// Свежая сессия в окно укладывается — закрытий не прибавилось
	assert.Equal(t, []int64{1}, store.deactivated)
}

func TestChatDailyLimit(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{ChatMaxMessages: 20, ChatDailyLimit: 5}
	gen := &fakeGenerator{results: []llm.Result{{Text: validChatJSON}}}

	t.Run("в минусе и лимит исчерпан", func(t *testing.T) {
		store := &fakeStore{countChats: func() (int, error) { return 5, nil }}
		s := newChatService(store, gen, cfg)

		parsed, err := s.Chat(ctx, &users.User{UserID: 7, Charge: -0.01}, "سلام")
		assert.Nil(t, parsed)
		assert.ErrorIs(t, err, common.ErrDailyChatLimit)
		assert.Empty(t, store.seeded)
	})

	t.Run("в минусе, но под лимитом", func(t *testing.T) {
		store := &fakeStore{countChats: func() (int, error) { return 4, nil }}
		s := newChatService(store, gen, cfg)

		parsed, err := s.Chat(ctx, &users.User{UserID: 7, Charge: -0.01}, "سلام")
		require.NoError(t, err)
		require.NotNil(t, parsed)
		assert.Len(t, store.seeded, 1)
	})

	t.Run("нулевой баланс не считается", func(t *testing.T) {
		store := &fakeStore{countChats: func() (int, error) {
			t.Fatal("счётчик реплик не должен вызываться при неотрицательном балансе")
			return 0, nil
		}}
		s := newChatService(store, gen, cfg)

		parsed, err := s.Chat(ctx, &users.User{UserID: 7, Charge: 0}, "سلام")
		require.NoError(t, err)
		require.NotNil(t, parsed)
	})

	t.Run("лимит проверяется только на старте сессии", func(t *testing.T) {
		store := &fakeStore{active: &Session{ID: 3, UserID: 7, Active: true}, countChats: func() (int, error) {
			t.Fatal("внутри живой сессии дневной лимит не проверяется")
			return 0, nil
		}}
		store.insert(3, &Chat{SessionID: 3, Text: "инструкция", IsSystem: true})
		s := newChatService(store, gen, cfg)

		parsed, err := s.Chat(ctx, &users.User{UserID: 7, Charge: -5}, "سلام")
		require.NoError(t, err)
		require.NotNil(t, parsed)
	})
}
