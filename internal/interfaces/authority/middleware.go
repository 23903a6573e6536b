package authority

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/jhoicas/magazzino-sync/pkg/jwt"
)

type contextKey string

const (
	clientIDKey contextKey = "client_id"
	roleKey     contextKey = "role"
)

// authenticate valida el token del cliente. El canal WebSocket también acepta ?token=
// porque no todos los clientes pueden fijar cabeceras en el handshake.
func (r *Router) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r.secret == "" {
			ctx := context.WithValue(req.Context(), clientIDKey, "anonymous")
			ctx = context.WithValue(ctx, roleKey, "admin")
			next.ServeHTTP(w, req.WithContext(ctx))
			return
		}
		token := bearerToken(req)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "MISSING_TOKEN", "token requerido")
			return
		}
		clientID, role, err := jwt.Parse(r.secret, token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "token inválido o expirado")
			return
		}
		ctx := context.WithValue(req.Context(), clientIDKey, clientID)
		ctx = context.WithValue(ctx, roleKey, role)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func bearerToken(req *http.Request) string {
	if h := req.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return req.URL.Query().Get("token")
}

func requireRole(roles ...string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			role, _ := req.Context().Value(roleKey).(string)
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, req)
					return
				}
			}
			respondError(w, http.StatusForbidden, "FORBIDDEN", "rol sin permiso para esta operación")
		})
	}
}

func clientIDFrom(ctx context.Context) string {
	s, _ := ctx.Value(clientIDKey).(string)
	return s
}
