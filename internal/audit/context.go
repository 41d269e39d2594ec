package audit

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// Meta — сведения о запросе, попадающие в событие аудита.
type Meta struct {
	RequestID  string
	RemoteAddr string
}

// Тип для ключа в контексте (избегаем коллизий)
type ctxKey int

const metaKey ctxKey = 1

func WithMeta(ctx context.Context, m Meta) context.Context {
	return context.WithValue(ctx, metaKey, m)
}

func MetaFrom(ctx context.Context) Meta {
	m, _ := ctx.Value(metaKey).(Meta)
	return m
}

// Middleware кладет request id (chi RequestID) и адрес клиента (после RealIP) в контекст.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithMeta(r.Context(), Meta{
			RequestID:  middleware.GetReqID(r.Context()),
			RemoteAddr: r.RemoteAddr,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
