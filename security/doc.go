// Package security holds TLS settings for filterkit listeners.
//
// The admin server serves HTTPS when a certificate is configured and
// requires client certificates when a client CA is set:
//
//	admin:
//	  tls:
//	    cert_file: /etc/filterkit/tls/server.pem
//	    key_file: /etc/filterkit/tls/server-key.pem
//	    client_ca_file: /etc/filterkit/tls/ca.pem
package security
