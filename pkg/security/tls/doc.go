// Package tls serves the admin API over HTTPS.
//
// A CertificateReloader polls the configured certificate and key files and
// swaps in a renewed pair without restarting the server. NewServerConfig
// builds the tls.Config around it, enforcing TLS 1.2 or newer and, when a
// client CA file is set, requiring verified client certificates.
// ClientIdentity exposes the verified certificate's common name so it can
// be recorded as the acting user.
package tls
