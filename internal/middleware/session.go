package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// SessionCookie 保存每个客户端的会话键。
const SessionCookie = "spark_session"

type sessionKeyCtx struct{}

// Session 确保每个请求都带有会话键，首次访问时签发新的 Cookie。
func Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ""
		if c, err := r.Cookie(SessionCookie); err == nil {
			key = c.Value
		}
		if key == "" {
			key = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    key,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(WithSessionKey(r.Context(), key)))
	})
}

// WithSessionKey 将会话键写入 ctx。
func WithSessionKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, sessionKeyCtx{}, key)
}

// SessionKey 返回 Session 写入的会话键，没有时返回 ""。
func SessionKey(ctx context.Context) string {
	key, _ := ctx.Value(sessionKeyCtx{}).(string)
	return key
}
