package tls

import (
	"net/http"
)

// ClientIdentity returns the common name of the verified client
// certificate of r, or "" for plain HTTP and unverified connections.
func ClientIdentity(r *http.Request) string {
	if r.TLS == nil || len(r.TLS.VerifiedChains) == 0 || len(r.TLS.VerifiedChains[0]) == 0 {
		return ""
	}
	return r.TLS.VerifiedChains[0][0].Subject.CommonName
}
