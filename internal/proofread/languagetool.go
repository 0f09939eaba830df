package proofread

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

// Match is one issue reported by a grammar service. Offset and Length are
// byte positions in the checked text.
type Match struct {
	Message      string
	Offset       int
	Length       int
	Replacements []string
	RuleID       string
}

// GrammarChecker checks text against a remote grammar service.
type GrammarChecker interface {
	Check(ctx context.Context, text string) ([]Match, error)
}

const (
	DefaultLanguageToolURL = "https://api.languagetool.org/v2/check"
	DefaultLanguage        = "en-AU"

	// DefaultSpacing keeps the public endpoint under its free-tier limit.
	DefaultSpacing = 1500 * time.Millisecond
)

// LanguageTool is a client for the LanguageTool HTTP check endpoint.
type LanguageTool struct {
	url         string
	language    string
	httpClient  *http.Client
	logger      zerolog.Logger
	limiter     *rate.Limiter
	backoffBase time.Duration
	attempts    int
}

// LanguageToolOption configures the LanguageTool client.
type LanguageToolOption func(*LanguageTool)

func WithURL(u string) LanguageToolOption {
	return func(l *LanguageTool) {
		if u != "" {
			l.url = u
		}
	}
}

func WithLanguage(lang string) LanguageToolOption {
	return func(l *LanguageTool) {
		if lang != "" {
			l.language = lang
		}
	}
}

func WithHTTPClient(c *http.Client) LanguageToolOption {
	return func(l *LanguageTool) {
		l.httpClient = c
	}
}

func WithLogger(logger zerolog.Logger) LanguageToolOption {
	return func(l *LanguageTool) {
		l.logger = logger
	}
}

// WithSpacing sets the minimum gap between requests.
func WithSpacing(d time.Duration) LanguageToolOption {
	return func(l *LanguageTool) {
		if d > 0 {
			l.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithRetryBase sets the first retry delay; the second is double.
func WithRetryBase(d time.Duration) LanguageToolOption {
	return func(l *LanguageTool) {
		if d > 0 {
			l.backoffBase = d
		}
	}
}

// NewLanguageTool returns a client for the public endpoint unless
// overridden.
func NewLanguageTool(opts ...LanguageToolOption) *LanguageTool {
	l := &LanguageTool{
		url:         DefaultLanguageToolURL,
		language:    DefaultLanguage,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      zerolog.Nop(),
		limiter:     rate.NewLimiter(rate.Every(DefaultSpacing), 1),
		backoffBase: 2 * time.Second,
		attempts:    3,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type checkResponse struct {
	Matches []struct {
		Message      string `json:"message"`
		Offset       int    `json:"offset"`
		Length       int    `json:"length"`
		Replacements []struct {
			Value string `json:"value"`
		} `json:"replacements"`
		Rule struct {
			ID string `json:"id"`
		} `json:"rule"`
	} `json:"matches"`
}

// retryableStatus are the responses worth another attempt.
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
}

// Check posts text and converts the service's UTF-16 offsets to byte
// offsets into text.
func (l *LanguageTool) Check(ctx context.Context, text string) ([]Match, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("language", l.language)
	body := form.Encode()

	var raw []byte
	backoff := retry.WithMaxRetries(uint64(l.attempts-1), retry.NewExponential(l.backoffBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := l.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, strings.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		resp, err := l.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			statusErr := fmt.Errorf("languagetool: http status %d", resp.StatusCode)
			if retryableStatus[resp.StatusCode] {
				l.logger.Warn().Int("status", resp.StatusCode).Msg("grammar service busy, retrying")
				return retry.RetryableError(statusErr)
			}
			return statusErr
		}
		raw = data
		return nil
	})
	if err != nil {
		return nil, err
	}

	var parsed checkResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("languagetool: decode response: %w", err)
	}

	index := utf16Index(text)
	matches := make([]Match, 0, len(parsed.Matches))
	for _, m := range parsed.Matches {
		start, end, ok := byteSpan(index, m.Offset, m.Length)
		if !ok {
			l.logger.Warn().Int("offset", m.Offset).Int("length", m.Length).Msg("grammar match out of range, skipped")
			continue
		}
		out := Match{
			Message: m.Message,
			Offset:  start,
			Length:  end - start,
			RuleID:  m.Rule.ID,
		}
		for _, r := range m.Replacements {
			out.Replacements = append(out.Replacements, r.Value)
		}
		matches = append(matches, out)
	}
	return matches, nil
}

// utf16Index maps each UTF-16 code unit position to its byte offset in s.
// The final entry is len(s).
func utf16Index(s string) []int {
	index := make([]int, 0, len(s)+1)
	for i, r := range s {
		index = append(index, i)
		if r >= 0x10000 && utf8.ValidRune(r) {
			index = append(index, i)
		}
	}
	return append(index, len(s))
}

func byteSpan(index []int, offset, length int) (int, int, bool) {
	if offset < 0 || length < 0 || offset+length >= len(index) {
		return 0, 0, false
	}
	return index[offset], index[offset+length], true
}
