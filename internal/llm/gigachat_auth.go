package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"estimator/internal/apperr"
	"estimator/internal/retry"
)

// gigaChatTokenSource получает и кэширует access token GigaChat.
// Протокол похож на client credentials, но нестандартный: Basic-ключ уже
// закодирован, нужен заголовок RqUID, срок жизни приходит в expires_at (мс).
type gigaChatTokenSource struct {
	authURL     string
	credentials string
	scope       string
	client      *http.Client
	now         func() time.Time

	mu    sync.Mutex
	token *oauth2.Token
	group singleflight.Group
}

const tokenFetchTimeout = 30 * time.Second

var _ oauth2.TokenSource = (*gigaChatTokenSource)(nil)

func newGigaChatTokenSource(authURL, credentials, scope string, client *http.Client) *gigaChatTokenSource {
	credentials = strings.TrimSpace(credentials)
	credentials = strings.TrimPrefix(credentials, "Basic ")
	return &gigaChatTokenSource{
		authURL:     authURL,
		credentials: credentials,
		scope:       scope,
		client:      client,
		now:         time.Now,
	}
}

// Token реализует oauth2.TokenSource.
func (s *gigaChatTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), tokenFetchTimeout)
	defer cancel()
	return s.TokenContext(ctx)
}

// TokenContext возвращает действующий токен, при необходимости запрашивая новый.
// Одновременные запросы ждут один и тот же обмен; отменённый ctx прекращает
// ожидание, не прерывая обмен для остальных.
func (s *gigaChatTokenSource) TokenContext(ctx context.Context) (*oauth2.Token, error) {
	if tok := s.cached(); tok != nil {
		return tok, nil
	}

	ch := s.group.DoChan("token", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tokenFetchTimeout)
		defer cancel()
		tok, err := s.fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.token = tok
		s.mu.Unlock()
		return tok, nil
	})

	select {
	case <-ctx.Done():
		return nil, apperr.FromTransport("gigachat.auth", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*oauth2.Token), nil
	}
}

func (s *gigaChatTokenSource) cached() *oauth2.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token.Valid() {
		return s.token
	}
	return nil
}

// Invalidate сбрасывает кэш, например после 401 от API.
func (s *gigaChatTokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = nil
}

type gigaChatTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

func (s *gigaChatTokenSource) fetch(ctx context.Context) (*oauth2.Token, error) {
	const op = "gigachat.auth"

	form := url.Values{"scope": {s.scope}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+s.credentials)
	req.Header.Set("RqUID", uuid.NewString())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperr.FromTransport(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperr.FromTransport(op, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode == http.StatusBadRequest {
		// На неверный scope или ключ OAuth-сервер GigaChat отвечает 400.
		return nil, apperr.FromStatus(op, http.StatusUnauthorized, string(body), 0)
	}
	if resp.StatusCode >= 300 {
		retryAfter, _ := retry.ParseRetryAfter(resp.Header, s.now())
		return nil, apperr.FromStatus(op, resp.StatusCode, string(body), retryAfter)
	}

	var parsed gigaChatTokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.AccessToken == "" {
		return nil, &apperr.Error{Kind: apperr.KindProviderAuth, Op: op, Message: "malformed token response", Err: err}
	}

	tok := &oauth2.Token{
		AccessToken: parsed.AccessToken,
		TokenType:   "Bearer",
	}
	if parsed.ExpiresAt > 0 {
		tok.Expiry = time.UnixMilli(parsed.ExpiresAt)
	} else {
		tok.Expiry = s.now().Add(25 * time.Minute)
	}
	return tok, nil
}
