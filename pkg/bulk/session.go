package bulk

import (
	"context"
	"errors"
)

// Session - пакетная работа: Begin очищает остатки прошлых запусков,
// Close загружает накопленное и удаляет область выгрузки.
//
//	s, err := loader.Begin(ctx)
//	if err != nil {
//		return err
//	}
//	defer s.Close(ctx)
type Session struct {
	loader *Loader
	opts   []CallOption
	closed bool
}

// Begin очищает области загрузки и выгрузки и открывает сессию.
// opts применяются к Execute при закрытии.
func (l *Loader) Begin(ctx context.Context, opts ...CallOption) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.Reset()
	return &Session{loader: l, opts: opts}, nil
}

// Loader возвращает Loader сессии
func (s *Session) Loader() *Loader {
	return s.loader
}

// Close выполняет Execute и удаляет область выгрузки.
// Повторный вызов ничего не делает.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	defer s.loader.down.paths.Clear(s.loader.down.Root())
	return s.loader.Execute(ctx, s.opts...)
}

// WithSession выполняет fn внутри сессии и закрывает ее на любом выходе,
// включая панику. Ошибки fn и Close объединяются.
func WithSession(ctx context.Context, l *Loader, fn func(ctx context.Context, l *Loader) error, opts ...CallOption) (err error) {
	s, err := l.Begin(ctx, opts...)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.Close(ctx))
	}()

	return fn(ctx, l)
}
