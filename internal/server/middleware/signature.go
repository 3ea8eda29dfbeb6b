package middleware

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/winzzers/internal/crypto"
)

const maxSignedBody = 1 << 20

// Signature returns middleware that verifies HMAC request signatures made by
// crypto.RequestSigner. The body is buffered and handed on unchanged. A nil
// signer disables the check.
func Signature(signer *crypto.RequestSigner, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if signer == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBody+1))
			if err != nil {
				writeError(w, http.StatusBadRequest, "unreadable body")
				return
			}
			if len(body) > maxSignedBody {
				writeError(w, http.StatusRequestEntityTooLarge, "body too large")
				return
			}

			err = signer.Verify(r.Method, r.URL.Path, body,
				r.Header.Get(crypto.HeaderTimestamp), r.Header.Get(crypto.HeaderSignature))
			if err != nil {
				logger.WarnContext(r.Context(), "signature rejected",
					slog.String("path", r.URL.Path),
					slog.String("request_id", RequestID(r.Context())),
					slog.String("error", err.Error()),
				)
				msg := "invalid signature"
				if errors.Is(err, crypto.ErrMissingSignature) {
					msg = "missing signature"
				} else if errors.Is(err, crypto.ErrStaleSignature) {
					msg = "stale signature"
				}
				writeUnauthorized(w, msg)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}
