// Package tlesource реализует абстрактную возможность TleSource
// (см. SPEC_FULL.md §9) и конкретный HTTP-адаптер для Celestrak.
package tlesource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/nstitov/orbitrak/internal/tle"
)

// Source — абстрактная возможность получения актуального TLE по NORAD ID.
// Конкретные реализации (Celestrak, файловый источник, фейк для тестов)
// реализуют только этот интерфейс; остальная часть сервиса от них не зависит.
type Source interface {
	FetchLatest(ctx context.Context, noradID int) (*tle.TLE, error)
}

// Ошибки Celestrak-адаптера.
var (
	ErrNotFound    = errors.New("tlesource: satellite not found")
	ErrRateLimited = errors.New("tlesource: rate limited (429)")
	ErrServerError = errors.New("tlesource: server error")
)

const (
	// CelestrakBaseURL — базовый URL публичного Celestrak GP API.
	CelestrakBaseURL = "https://celestrak.org/NORAD/elements/gp.php"

	// DefaultRateLimit — минимальный интервал между запросами (рекомендация Celestrak).
	DefaultRateLimit = 2 * time.Second

	// DefaultTimeout — таймаут HTTP запроса.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries — число повторных попыток при временных ошибках.
	DefaultMaxRetries = 3
)

// CelestrakSource — HTTP-клиент, реализующий Source поверх Celestrak.
type CelestrakSource struct {
	httpClient  *http.Client
	baseURL     string
	rateLimit   time.Duration
	maxRetries  int
	lastRequest time.Time
	mu          sync.Mutex
}

// Option настраивает CelestrakSource.
type Option func(*CelestrakSource)

// WithHTTPClient задаёт кастомный HTTP клиент.
func WithHTTPClient(c *http.Client) Option {
	return func(s *CelestrakSource) { s.httpClient = c }
}

// WithRateLimit задаёт минимальный интервал между запросами.
func WithRateLimit(d time.Duration) Option {
	return func(s *CelestrakSource) { s.rateLimit = d }
}

// WithMaxRetries задаёт число повторных попыток.
func WithMaxRetries(n int) Option {
	return func(s *CelestrakSource) { s.maxRetries = n }
}

// WithBaseURL задаёт базовый URL (используется в тестах вместо celestrak.org).
func WithBaseURL(url string) Option {
	return func(s *CelestrakSource) { s.baseURL = url }
}

// NewCelestrakSource создаёт новый клиент Celestrak с настройками по умолчанию.
func NewCelestrakSource(opts ...Option) *CelestrakSource {
	s := &CelestrakSource{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    CelestrakBaseURL,
		rateLimit:  DefaultRateLimit,
		maxRetries: DefaultMaxRetries,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// FetchLatest загружает актуальный TLE по NORAD ID.
func (s *CelestrakSource) FetchLatest(ctx context.Context, noradID int) (*tle.TLE, error) {
	url := fmt.Sprintf("%s?CATNR=%d&FORMAT=TLE", s.baseURL, noradID)

	data, err := s.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching NORAD ID %d: %w", noradID, err)
	}

	parsed, err := tle.ParseString(data)
	if err != nil {
		return nil, fmt.Errorf("parsing TLE for NORAD ID %d: %w", noradID, err)
	}

	return parsed, nil
}

func (s *CelestrakSource) fetch(ctx context.Context, url string) (string, error) {
	s.waitForRateLimit()

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		data, err := s.doRequest(ctx, url)
		if err == nil {
			return data, nil
		}

		lastErr = err
		if errors.Is(err, ErrNotFound) {
			return "", err
		}
	}

	return "", fmt.Errorf("after %d retries: %w", s.maxRetries, lastErr)
}

func (s *CelestrakSource) waitForRateLimit() {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := time.Since(s.lastRequest)
	if elapsed < s.rateLimit {
		time.Sleep(s.rateLimit - elapsed)
	}
	s.lastRequest = time.Now()
}

func (s *CelestrakSource) doRequest(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", "orbitrak/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", ErrNotFound
	case http.StatusTooManyRequests:
		return "", ErrRateLimited
	default:
		if resp.StatusCode >= 500 {
			return "", fmt.Errorf("%w: %d", ErrServerError, resp.StatusCode)
		}
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if string(body) == "No GP data found" {
		return "", ErrNotFound
	}

	return string(body), nil
}
