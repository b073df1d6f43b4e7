package interceptors

import (
	"context"
	"net"
	"net/http"

	"github.com/webitel/im-signaling-service/internal/domain/model"
)

type contextKey string

const (
	// MetadataContextKey is the key used to store/retrieve ConnectMetadata from context
	MetadataContextKey contextKey = "connect_metadata"
)

// NewMetadataInterceptor captures client details before any transport handler runs.
// Mount it after middleware.RealIP so proxies are resolved.
func NewMetadataInterceptor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := model.ConnectMetadata{
			RemoteIP:  remoteIP(r.RemoteAddr),
			UserAgent: r.UserAgent(),
		}

		// [ENRICHMENT] Inject the metadata into the context for downstream handlers
		ctx := context.WithValue(r.Context(), MetadataContextKey, meta)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetConnectMetadata is a helper to extract the client details from context safely.
func GetConnectMetadata(ctx context.Context) (model.ConnectMetadata, bool) {
	meta, ok := ctx.Value(MetadataContextKey).(model.ConnectMetadata)
	return meta, ok
}

func remoteIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
