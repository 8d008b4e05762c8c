// Package fetch implements the remote source: a strictly sequential,
// rate-limited HTTP client built on a colly collector.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aluiziolira/bookcrawl/config"
	"github.com/aluiziolira/bookcrawl/metrics"
	"github.com/gocolly/colly/v2"
	"golang.org/x/net/html/charset"
)

const (
	ctxResponse = "response"
	ctxStatus   = "status"
	ctxStart    = "start"
)

// Payload is a fetched binary resource.
type Payload struct {
	URL         string
	Body        []byte
	ContentType string
}

// MediaType splits the payload content type into type and subtype, both
// lower-cased. Unparseable content types yield empty strings.
func (p *Payload) MediaType() (string, string) {
	if p == nil || p.ContentType == "" {
		return "", ""
	}
	mediaType, _, err := mime.ParseMediaType(p.ContentType)
	if err != nil {
		return "", ""
	}
	typ, subtype, ok := strings.Cut(strings.ToLower(mediaType), "/")
	if !ok {
		return typ, ""
	}
	return typ, subtype
}

// Source fetches pages one at a time through a synchronous colly collector.
// It is not safe for concurrent use.
type Source struct {
	collector *colly.Collector
	metrics   *metrics.Metrics
}

// NewSource builds a Source configured from cfg. The collector only visits
// the base URL's host and waits cfg.Delay between consecutive requests.
func NewSource(cfg *config.Config, m *metrics.Metrics) (*Source, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	s := &Source{
		collector: collector,
		metrics:   m,
	}
	s.configureHandlers()
	return s, nil
}

// WithTransport swaps the HTTP transport, mainly for tests.
func (s *Source) WithTransport(rt http.RoundTripper) {
	s.collector.WithTransport(rt)
}

func (s *Source) configureHandlers() {
	s.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put(ctxStart, time.Now())
	})

	s.collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(ctxResponse, r)
		s.observe(r.Ctx)
	})

	s.collector.OnError(func(r *colly.Response, err error) {
		if r == nil || r.Ctx == nil {
			return
		}
		r.Ctx.Put(ctxStatus, r.StatusCode)
		s.observe(r.Ctx)
	})
}

func (s *Source) observe(ctx *colly.Context) {
	if start, ok := ctx.GetAny(ctxStart).(time.Time); ok {
		s.metrics.ObserveDuration(time.Since(start))
	}
}

// FetchText fetches rawURL and returns its body decoded to UTF-8.
func (s *Source) FetchText(ctx context.Context, rawURL string) (string, error) {
	resp, err := s.get(ctx, rawURL, metrics.KindText)
	if err != nil {
		return "", err
	}
	body, err := decodeUTF8(resp.Body, resp.Headers.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return body, nil
}

// FetchBinary fetches rawURL and returns the raw body with its content type.
func (s *Source) FetchBinary(ctx context.Context, rawURL string) (*Payload, error) {
	resp, err := s.get(ctx, rawURL, metrics.KindBinary)
	if err != nil {
		return nil, err
	}
	return &Payload{
		URL:         resp.Request.URL.String(),
		Body:        resp.Body,
		ContentType: resp.Headers.Get("Content-Type"),
	}, nil
}

func (s *Source) get(ctx context.Context, rawURL, kind string) (*colly.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.metrics.IncRequest(kind)
	slog.Debug("fetch", slog.String("url", rawURL), slog.String("kind", kind))

	reqCtx := colly.NewContext()
	err := s.collector.Request(http.MethodGet, rawURL, nil, reqCtx, nil)
	if err != nil {
		status, _ := reqCtx.GetAny(ctxStatus).(int)
		classified := Classify(err, status)
		s.metrics.IncError(ErrorTypeLabel(classified))
		return nil, fmt.Errorf("fetch %s: %w", rawURL, classified)
	}

	resp, ok := reqCtx.GetAny(ctxResponse).(*colly.Response)
	if !ok || resp == nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, errors.New("no response received"))
	}
	return resp, nil
}

// decodeUTF8 returns body as a string, converting it from the encoding
// declared by the content type or the document when it is not valid UTF-8.
func decodeUTF8(body []byte, contentType string) (string, error) {
	if utf8.Valid(body) {
		return string(body), nil
	}
	enc, _, _ := charset.DetermineEncoding(body, contentType)
	decoded, err := io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(body)))
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
