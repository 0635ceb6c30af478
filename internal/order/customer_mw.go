package order

import (
	"context"
	"net/http"
	"strings"

	"CellarSociety/pkg/kit"
)

type ctxKey string

const customerKey ctxKey = "customer"

func CustomerFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(customerKey).(string)
	return id, ok && id != ""
}

// RequireCustomerHeader trusts the X-Customer-ID header placed on the
// request by the session middleware upstream and makes it available to
// handlers via context.
func RequireCustomerHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Customer-ID"))
		if id == "" {
			kit.WriteError(w, r, http.StatusUnauthorized, "no customer", nil)
			return
		}

		ctx := context.WithValue(r.Context(), customerKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
