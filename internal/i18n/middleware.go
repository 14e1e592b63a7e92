package i18n

import "net/http"

// Middleware injects a localizer negotiated from Accept-Language into every request context.
func (c *Catalog) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag := c.Match(r.Header.Get("Accept-Language"))
		ctx := WithLocalizer(r.Context(), c.Localizer(tag.String()))
		w.Header().Set("Content-Language", tag.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
