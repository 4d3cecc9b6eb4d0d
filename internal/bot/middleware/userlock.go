package middleware

import "sync"

// UserLock сериализует обработку запросов одного пользователя.
// Генерация хода занимает секунды; второй параллельный запрос того же
// пользователя не ставится в очередь, а сразу отбрасывается (TryAcquire
// возвращает false), чтобы не плодить дубликаты ходов.
type UserLock struct {
	mu   sync.Mutex
	busy map[int64]struct{}
}

func NewUserLock() *UserLock {
	return &UserLock{busy: make(map[int64]struct{})}
}

// TryAcquire пытается захватить замок пользователя без ожидания.
func (l *UserLock) TryAcquire(userID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.busy[userID]; ok {
		return false
	}
	l.busy[userID] = struct{}{}
	return true
}

// Release освобождает замок. Вызывается через defer, в том числе на пути
// восстановления после паники.
func (l *UserLock) Release(userID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.busy, userID)
}
