// Copyright 2026 Chefops Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package chefapi

import (
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
)

// chefVersion is the protocol version reported in the X-Chef-Version
// header. Servers gate some endpoints on it being recent enough.
const chefVersion = "14.15.6"

// Authenticator signs requests with the Chef mixlib authentication
// protocol (algorithm sha1, protocol version 1.0): a canonical request
// digest is encrypted with the client's RSA private key and carried in
// the X-Ops-Authorization-N headers.
type Authenticator struct {
	clientName string
	key        *rsa.PrivateKey
	clock      clock.Clock
}

// NewAuthenticator creates an Authenticator for the named API client from
// a PEM-encoded RSA private key.
func NewAuthenticator(clientName string, pemKey []byte, clk clock.Clock) (*Authenticator, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.NotValidf("client key: no PEM data")
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		// Newer knife configs write PKCS#8 wrapped keys.
		parsed, perr := x509.ParsePKCS8PrivateKey(block.Bytes)
		if perr != nil {
			return nil, errors.Annotate(err, "parsing client key")
		}
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.NotValidf("client key: not an RSA key")
		}
		key = rsaKey
	}
	return &Authenticator{
		clientName: clientName,
		key:        key,
		clock:      clk,
	}, nil
}

// NewAuthenticatorFromFile creates an Authenticator from a key file on
// disk, typically the client.pem referenced by the tool configuration.
func NewAuthenticatorFromFile(clientName, keyPath string, clk clock.Clock) (*Authenticator, error) {
	pemKey, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, errors.Annotatef(err, "reading client key %q", keyPath)
	}
	auth, err := NewAuthenticator(clientName, pemKey, clk)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return auth, nil
}

// SignRequest adds the X-Ops-* authentication headers to req.
func (a *Authenticator) SignRequest(req *http.Request) error {
	body, err := requestBody(req)
	if err != nil {
		return errors.Trace(err)
	}

	timestamp := a.clock.Now().UTC().Format(time.RFC3339)
	contentHash := hashString(body)

	canonical := strings.Join([]string{
		"Method:" + req.Method,
		"Hashed Path:" + hashString(req.URL.Path),
		"X-Ops-Content-Hash:" + contentHash,
		"X-Ops-Timestamp:" + timestamp,
		"X-Ops-UserId:" + a.clientName,
	}, "\n")

	signature, err := a.sign([]byte(canonical))
	if err != nil {
		return errors.Annotate(err, "signing canonical request")
	}

	req.Header.Set("X-Ops-Sign", "algorithm=sha1;version=1.0")
	req.Header.Set("X-Ops-Userid", a.clientName)
	req.Header.Set("X-Ops-Timestamp", timestamp)
	req.Header.Set("X-Ops-Content-Hash", contentHash)
	req.Header.Set("X-Chef-Version", chefVersion)
	for i, line := range splitLines(base64.StdEncoding.EncodeToString(signature), 60) {
		req.Header.Set(fmt.Sprintf("X-Ops-Authorization-%d", i+1), line)
	}
	return nil
}

// sign encrypts the message with the private key as mandated by protocol
// version 1.0. This is RSA PKCS#1 v1.5 over the raw message, not over a
// hash, which Go expresses as SignPKCS1v15 with an unset hash function.
func (a *Authenticator) sign(message []byte) ([]byte, error) {
	return rsa.SignPKCS1v15(nil, a.key, 0, message)
}

func requestBody(req *http.Request) (string, error) {
	if req.Body == nil {
		return "", nil
	}
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return "", errors.Trace(err)
	}
	_ = req.Body.Close()
	req.Body = io.NopCloser(strings.NewReader(string(data)))
	return string(data), nil
}

func hashString(s string) string {
	sum := sha1.Sum([]byte(s))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func splitLines(s string, width int) []string {
	var lines []string
	for len(s) > width {
		lines = append(lines, s[:width])
		s = s[width:]
	}
	if len(s) > 0 {
		lines = append(lines, s)
	}
	return lines
}
