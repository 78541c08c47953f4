package utils

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"time"

	"github.com/mpapenbr/f1-race-predictor/log"
)

func WaitForTCP(ctx context.Context, addr string, timeout time.Duration) error {
	timeoutReached := time.Now().Add(timeout)
	start := time.Now()
	log.Debug("wait for tcp connection",
		log.String("addr", addr),
		log.String("timeout", timeout.String()))
	var d net.Dialer
	for time.Now().Before(timeoutReached) {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			log.Debug("tcp connection successful",
				log.String("addr", addr),
				log.String("duration", time.Since(start).String()))
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return fmt.Errorf("%s could not be reached after %v", addr, timeout)
}

func WaitForHTTPResponse(ctx context.Context, url string, timeout time.Duration) error {
	timeoutReached := time.Now().Add(timeout)
	start := time.Now()
	log.Debug("wait for http request",
		log.String("url", url),
		log.String("timeout", timeout.String()))
	cli := &http.Client{Timeout: time.Second}
	for time.Now().Before(timeoutReached) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return err
		}
		if resp, err := cli.Do(req); err == nil {
			resp.Body.Close()
			log.Debug("http request successful",
				log.String("url", url),
				log.String("duration", time.Since(start).String()))
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return fmt.Errorf("%s could not be reached after %v", url, timeout)
}

// ExtractFromNatsURL returns host:port of a nats url.
// The default port 4222 is used if the url has none.
func ExtractFromNatsURL(url string) string {
	param := resolveRegex(
		"^(?P<proto>nats|tls)://(.*@)?(?P<addr>(?P<host>[^:/]*?)(:(?P<port>\\d+))?)/?$", url)
	if len(param) == 0 {
		return ""
	}
	if port := param["port"]; port != "" {
		return param["addr"]
	}
	return fmt.Sprintf("%s:4222", param["addr"])
}

func resolveRegex(regEx, url string) (paramsMap map[string]string) {
	compRegEx := regexp.MustCompile(regEx)
	match := compRegEx.FindStringSubmatch(url)
	if match == nil {
		return nil
	}
	paramsMap = make(map[string]string)
	for i, name := range compRegEx.SubexpNames() {
		if i > 0 && name != "" {
			paramsMap[name] = match[i]
		}
	}
	return paramsMap
}
