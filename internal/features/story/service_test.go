package story

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iamamir.ir/mystery-bot/internal/common"
	"iamamir.ir/mystery-bot/internal/config"
	"iamamir.ir/mystery-bot/internal/features/users"
	"iamamir.ir/mystery-bot/internal/llm"
)

const validStoryJSON = `{"title": "t", "story": "s", "options": {"1": "a", "2": "b", "3": "c"}, "is_end": false}`

// fakeGenerator отдаёт заранее заданные ответы и запоминает,
// какая модель использовалась на каждой попытке.
type fakeGenerator struct {
	results []llm.Result
	errs    []error
	models  []string
}

func (f *fakeGenerator) Generate(_ context.Context, model string, _ []llm.Message) (llm.Result, error) {
	call := len(f.models)
	f.models = append(f.models, model)
	var err error
	if call < len(f.errs) {
		err = f.errs[call]
	}
	var result llm.Result
	if call < len(f.results) {
		result = f.results[call]
	}
	return result, err
}

func newTestService(gen llm.Generator) *Service {
	return &Service{
		gen: gen,
		policy: llm.GenerationPolicy{
			MaxAttempts:   3,
			PrimaryModel:  "primary",
			FallbackModel: "fallback",
		},
	}
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("успех с первой попытки", func(t *testing.T) {
		gen := &fakeGenerator{
			results: []llm.Result{{Text: validStoryJSON, InputTokens: 100, OutputTokens: 50}},
		}
		s := newTestService(gen)

		parsed, spent, err := s.generate(ctx, nil)
		require.NoError(t, err)
		require.NotNil(t, parsed)
		assert.Equal(t, []string{"primary"}, gen.models)
		assert.Equal(t, 100, spent.InputTokens)
		assert.Equal(t, 50, spent.OutputTokens)
	})

	t.Run("брак структуры — повтор, последняя попытка на запасной модели", func(t *testing.T) {
		gen := &fakeGenerator{
			results: []llm.Result{
				{Text: "не JSON", InputTokens: 10, OutputTokens: 1},
				{Text: "{\"title\": \"без остальных ключей\"}", InputTokens: 10, OutputTokens: 2},
				{Text: validStoryJSON, InputTokens: 10, OutputTokens: 3},
			},
		}
		s := newTestService(gen)

		parsed, spent, err := s.generate(ctx, nil)
		require.NoError(t, err)
		require.NotNil(t, parsed)
		assert.Equal(t, []string{"primary", "primary", "fallback"}, gen.models)

		// Токены бракованных попыток тоже потрачены
		assert.Equal(t, 30, spent.InputTokens)
		assert.Equal(t, 6, spent.OutputTokens)
	})

	t.Run("все попытки бракованные", func(t *testing.T) {
		gen := &fakeGenerator{
			results: []llm.Result{{Text: "x"}, {Text: "y"}, {Text: "z"}},
		}
		s := newTestService(gen)

		parsed, _, err := s.generate(ctx, nil)
		assert.Nil(t, parsed)
		assert.ErrorIs(t, err, common.ErrFailedToGenerateStory)
		assert.Len(t, gen.models, 3)
	})

	t.Run("транспортный сбой обрывает цикл сразу", func(t *testing.T) {
		transport := errors.New("request failed after retries")
		gen := &fakeGenerator{errs: []error{transport}}
		s := newTestService(gen)

		parsed, _, err := s.generate(ctx, nil)
		assert.Nil(t, parsed)
		assert.ErrorIs(t, err, common.ErrFailedToGenerateStory)
		// Клиент уже исчерпал транспортные повторы — вторую попытку не делаем
		assert.Len(t, gen.models, 1)
	})
}

func TestRateStoryValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestService(nil)

	t.Run("оценка вне диапазона", func(t *testing.T) {
		for _, rate := range []int{0, 6, -1, 100} {
			err := s.RateStory(ctx, &Story{ID: 1}, rate)
			assert.ErrorIs(t, err, common.ErrInvalidRate, rate)
		}
	})

	t.Run("повторная оценка", func(t *testing.T) {
		existing := 4
		err := s.RateStory(ctx, &Story{ID: 1, Rate: &existing}, 5)
		assert.ErrorIs(t, err, common.ErrStoryAlreadyRated)
	})
}

// fakeStore реализует Store только в нужной тесту части;
// вызов неподменённого метода падает на вложенном nil-интерфейсе.
type fakeStore struct {
	Store

	calls      []string
	countSince func() (int, error)
	history    []*Section
	section    *Section
	storyEnded bool
	endedIDs   []int64
}

func (f *fakeStore) CountSince(context.Context, int64, time.Time) (int, error) {
	f.calls = append(f.calls, "count_since")
	return f.countSince()
}

func (f *fakeStore) DeactivateActive(context.Context, int64) (int64, error) {
	f.calls = append(f.calls, "deactivate_active")
	return 0, nil
}

func (f *fakeStore) CreateStory(_ context.Context, userID int64) (*Story, error) {
	f.calls = append(f.calls, "create_story")
	return &Story{ID: 1, UserID: userID}, nil
}

func (f *fakeStore) MarkSectionUsed(context.Context, int64) error {
	f.calls = append(f.calls, "mark_used")
	return nil
}

func (f *fakeStore) SectionsHistory(context.Context, int64) ([]*Section, error) {
	f.calls = append(f.calls, "history")
	return f.history, nil
}

func (f *fakeStore) InsertTurnSections(_ context.Context, storyID int64, choiceText, rawOutput string) (*Section, error) {
	f.calls = append(f.calls, "insert_turn")
	return &Section{ID: 100, StoryID: storyID, Text: rawOutput, IsSystem: true}, nil
}

func (f *fakeStore) MarkEnded(_ context.Context, storyID int64) error {
	f.endedIDs = append(f.endedIDs, storyID)
	return nil
}

func (f *fakeStore) SectionWithStoryEnd(context.Context, int64) (*Section, bool, error) {
	return f.section, f.storyEnded, nil
}

type fakeBiller struct{ debits []float64 }

func (f *fakeBiller) Debit(_ context.Context, _ int64, cost float64) error {
	f.debits = append(f.debits, cost)
	return nil
}

func TestCreateStoryDailyLimit(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{StoryDailyLimit: 2}

	t.Run("неотрицательный баланс не считается", func(t *testing.T) {
		store := &fakeStore{countSince: func() (int, error) {
			t.Fatal("счётчик историй не должен вызываться при неотрицательном балансе")
			return 0, nil
		}}
		s := &Service{repo: store, cfg: cfg}

		st, err := s.CreateStory(ctx, &users.User{UserID: 7, Charge: 0})
		require.NoError(t, err)
		require.NotNil(t, st)
		// Прежние активные истории закрываются до создания новой
		assert.Equal(t, []string{"deactivate_active", "create_story"}, store.calls)
	})

	t.Run("в минусе и лимит исчерпан", func(t *testing.T) {
		store := &fakeStore{countSince: func() (int, error) { return 2, nil }}
		s := &Service{repo: store, cfg: cfg}

		st, err := s.CreateStory(ctx, &users.User{UserID: 7, Charge: -0.01})
		assert.Nil(t, st)
		assert.ErrorIs(t, err, common.ErrDailyStoryLimit)
		// До хранилища дело не дошло — ни закрытия прежних, ни создания
		assert.Equal(t, []string{"count_since"}, store.calls)
	})

	t.Run("в минусе, но под лимитом", func(t *testing.T) {
		store := &fakeStore{countSince: func() (int, error) { return 1, nil }}
		s := &Service{repo: store, cfg: cfg}

		st, err := s.CreateStory(ctx, &users.User{UserID: 7, Charge: -0.01})
		require.NoError(t, err)
		require.NotNil(t, st)
		assert.Equal(t, []string{"count_since", "deactivate_active", "create_story"}, store.calls)
	})
}

func TestCreateSection(t *testing.T) {
	ctx := context.Background()
	endJSON := `{"title": "t", "story": "финал", "options": {}, "is_end": true}`

	newService := func(store *fakeStore, gen llm.Generator) (*Service, *fakeBiller) {
		biller := &fakeBiller{}
		return &Service{
			repo:  store,
			users: biller,
			gen:   gen,
			policy: llm.GenerationPolicy{
				MaxAttempts:   3,
				PrimaryModel:  "primary",
				FallbackModel: "fallback",
			},
			cfg: &config.Config{},
		}, biller
	}

	t.Run("окно повтора закрывается до генерации", func(t *testing.T) {
		gen := &fakeGenerator{results: []llm.Result{{Text: validStoryJSON, InputTokens: 10, OutputTokens: 5}}}
		store := &fakeStore{}
		s, biller := newService(store, gen)

		next, parsed, err := s.CreateSection(ctx, &users.User{UserID: 7}, &Story{ID: 1}, &Section{ID: 42, StoryID: 1}, 2)
		require.NoError(t, err)
		require.NotNil(t, next)
		require.NotNil(t, parsed)
		assert.Equal(t, []string{"mark_used", "history", "insert_turn"}, store.calls)
		assert.Empty(t, store.endedIDs)
		require.Len(t, biller.debits, 1)
	})

	t.Run("секция остаётся потраченной при сбое генерации", func(t *testing.T) {
		gen := &fakeGenerator{errs: []error{errors.New("request failed after retries")}}
		store := &fakeStore{}
		s, _ := newService(store, gen)

		_, _, err := s.CreateSection(ctx, &users.User{UserID: 7}, &Story{ID: 1}, &Section{ID: 42, StoryID: 1}, 1)
		assert.ErrorIs(t, err, common.ErrFailedToGenerateStory)
		assert.Equal(t, []string{"mark_used", "history"}, store.calls)
	})

	t.Run("финальный виток помечает историю завершённой", func(t *testing.T) {
		gen := &fakeGenerator{results: []llm.Result{{Text: endJSON}}}
		store := &fakeStore{}
		s, _ := newService(store, gen)

		_, parsed, err := s.CreateSection(ctx, &users.User{UserID: 7}, &Story{ID: 5}, &Section{ID: 42, StoryID: 5}, 3)
		require.NoError(t, err)
		assert.True(t, parsed.IsEnd)
		assert.Equal(t, []int64{5}, store.endedIDs)
	})
}

func TestGetUnusedSectionGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("живая секция проходит", func(t *testing.T) {
		store := &fakeStore{section: &Section{ID: 1, StoryID: 1}}
		s := &Service{repo: store}

		section, err := s.GetUnusedSection(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, section)
		assert.Equal(t, int64(1), section.ID)
	})

	t.Run("потраченная секция отклоняется", func(t *testing.T) {
		store := &fakeStore{section: &Section{ID: 1, StoryID: 1, Used: true}}
		s := &Service{repo: store}

		section, err := s.GetUnusedSection(ctx, 1)
		require.NoError(t, err)
		assert.Nil(t, section)
	})

	t.Run("секция завершённой истории отклоняется", func(t *testing.T) {
		store := &fakeStore{section: &Section{ID: 1, StoryID: 1}, storyEnded: true}
		s := &Service{repo: store}

		section, err := s.GetUnusedSection(ctx, 1)
		require.NoError(t, err)
		assert.Nil(t, section)
	})

	t.Run("секции нет", func(t *testing.T) {
		s := &Service{repo: &fakeStore{}}

		section, err := s.GetUnusedSection(ctx, 1)
		require.NoError(t, err)
		assert.Nil(t, section)
	})
}
