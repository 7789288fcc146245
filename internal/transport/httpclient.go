package transport

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

type options struct {
	insecureTLS bool
}

type Option func(*options)

// WithInsecureTLS отключает проверку сертификата. Нужна для GigaChat,
// если корневой сертификат Минцифры не установлен в системе.
func WithInsecureTLS(insecure bool) Option {
	return func(o *options) {
		o.insecureTLS = insecure
	}
}

// NewHTTPClient возвращает http.Client с таймаутом и пулом соединений,
// безопасным для параллельных запросов.
func NewHTTPClient(timeout time.Duration, opts ...Option) *http.Client {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if o.insecureTLS {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via GIGACHAT_VERIFY_SSL=false
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: tr,
	}
}
