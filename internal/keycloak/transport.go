package keycloak

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"
)

// NewHTTPClient создаёт HTTP-клиент для Keycloak с таймаутом.
// caCertPath: опциональный CA-сертификат, добавляется к системному пулу.
func NewHTTPClient(caCertPath string, timeout time.Duration) (*http.Client, error) {
	if caCertPath == "" {
		return &http.Client{Timeout: timeout}, nil
	}

	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("файл %s не содержит PEM-сертификатов", caCertPath)
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs:    caCertPool,
				MinVersion: tls.VersionTLS12,
			},
		},
	}, nil
}
