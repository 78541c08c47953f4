package certs

import (
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// LoadFromACMEStore reads the certificate of domain from a traefik acme.json
// file. Certificate and key are stored base64 encoded PEM data.
func LoadFromACMEStore(file, domain string) (tls.Certificate, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return tls.Certificate{}, err
	}
	certData, keyData, err := acmeEntry(string(data), domain)
	if err != nil {
		return tls.Certificate{}, err
	}
	certPEM, err := base64.StdEncoding.DecodeString(certData)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("certificate of %s: %w", domain, err)
	}
	keyPEM, err := base64.StdEncoding.DecodeString(keyData)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("key of %s: %w", domain, err)
	}
	return tls.X509KeyPair(certPEM, keyPEM)
}

// acmeEntry looks up the entry of domain in any resolver of the store.
func acmeEntry(jsonData, domain string) (cert, key string, err error) {
	obj, err := oj.ParseString(jsonData)
	if err != nil {
		return "", "", err
	}
	x, err := jp.ParseString(fmt.Sprintf(`$..Certificates[?(@.domain.main == %q)]`, domain))
	if err != nil {
		return "", "", err
	}
	res := x.Get(obj)
	if len(res) == 0 {
		return "", "", fmt.Errorf("domain %s not found", domain)
	}
	entry, ok := res[0].(map[string]any)
	if !ok {
		return "", "", fmt.Errorf("unexpected entry for domain %s", domain)
	}
	cert, _ = entry["certificate"].(string)
	key, _ = entry["key"].(string)
	if cert == "" || key == "" {
		return "", "", fmt.Errorf("incomplete entry for domain %s", domain)
	}
	return cert, key, nil
}
