// Package certs provides server certificates that are reloaded when the
// underlying files change.
package certs

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/mpapenbr/f1-race-predictor/log"
)

var ErrNoCertificate = errors.New("no certificate configured")

type (
	Option   func(*Provider)
	Provider struct {
		certFile     string
		keyFile      string
		caFile       string
		acmeFile     string
		acmeDomain   string
		l            *log.Logger
		mu           sync.RWMutex
		cert         *tls.Certificate
		reloadNotify func()
	}
)

// WithKeyPair loads the certificate from PEM encoded files.
func WithKeyPair(certFile, keyFile string) Option {
	return func(p *Provider) {
		p.certFile = certFile
		p.keyFile = keyFile
	}
}

// WithClientCA enables verification of client certificates if presented.
func WithClientCA(caFile string) Option {
	return func(p *Provider) {
		p.caFile = caFile
	}
}

// WithACMEStore loads the certificate for domain from a traefik acme.json file.
// It takes precedence over WithKeyPair.
func WithACMEStore(file, domain string) Option {
	return func(p *Provider) {
		p.acmeFile = file
		p.acmeDomain = domain
	}
}

func WithLogger(l *log.Logger) Option {
	return func(p *Provider) {
		p.l = l
	}
}

// NewProvider loads the configured certificate. It returns ErrNoCertificate
// if neither a key pair nor an acme store is configured.
func NewProvider(opts ...Option) (*Provider, error) {
	ret := &Provider{l: log.Default().Named("certs")}
	for _, opt := range opts {
		opt(ret)
	}
	if !ret.useACME() && (ret.certFile == "" || ret.keyFile == "") {
		return nil, ErrNoCertificate
	}
	if err := ret.load(); err != nil {
		return nil, err
	}
	return ret, nil
}

// TLSConfig returns a server config that always serves the latest certificate.
func (p *Provider) TLSConfig() (*tls.Config, error) {
	ret := &tls.Config{
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			return p.Certificate(), nil
		},
		MinVersion: tls.VersionTLS13,
	}
	if p.caFile != "" {
		caCert, err := os.ReadFile(p.caFile)
		if err != nil {
			return nil, fmt.Errorf("read client ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("no certificates found in %s", p.caFile)
		}
		ret.ClientCAs = pool
		ret.ClientAuth = tls.VerifyClientCertIfGiven
	}
	return ret, nil
}

func (p *Provider) Certificate() *tls.Certificate {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cert
}

// Watch reloads the certificate on file changes until ctx is done.
// A failed reload keeps the previous certificate.
//
//nolint:cyclop // event loop
func (p *Provider) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	files := p.files()
	for _, f := range files {
		if err := watcher.Add(filepath.Dir(f)); err != nil {
			return fmt.Errorf("watch %s: %w", f, err)
		}
	}
	for {
		select {
		case <-ctx.Done():
			p.l.Info("context done, stopping cert reload")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !slices.Contains(files, filepath.Clean(event.Name)) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Chmod) {

				continue
			}
			p.l.Info("cert file changed, reloading cert", log.String("file", event.Name))
			if err := p.load(); err != nil {
				p.l.Error("could not reload cert", log.ErrorField(err))
				continue
			}
			if p.reloadNotify != nil {
				p.reloadNotify()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.l.Error("watcher error", log.ErrorField(err))
		}
	}
}

func (p *Provider) useACME() bool {
	return p.acmeFile != "" && p.acmeDomain != ""
}

func (p *Provider) files() []string {
	var ret []string
	add := func(f string) {
		if abs, err := filepath.Abs(f); err == nil {
			ret = append(ret, abs)
		}
	}
	if p.useACME() {
		add(p.acmeFile)
	} else {
		add(p.certFile)
		add(p.keyFile)
	}
	return ret
}

func (p *Provider) load() error {
	var cert tls.Certificate
	var err error
	if p.useACME() {
		p.l.Debug("loading cert from acme store",
			log.String("file", p.acmeFile), log.String("domain", p.acmeDomain))
		cert, err = LoadFromACMEStore(p.acmeFile, p.acmeDomain)
	} else {
		p.l.Debug("loading cert",
			log.String("cert", p.certFile), log.String("key", p.keyFile))
		cert, err = tls.LoadX509KeyPair(p.certFile, p.keyFile)
	}
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cert = &cert
	return nil
}
