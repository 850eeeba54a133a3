package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultTokenFile is where an authorized user token is kept when
// GOOGLE_OAUTH_TOKEN_FILE is unset.
const DefaultTokenFile = "token.json"

// ErrNoOAuthClient means neither GOOGLE_OAUTH_CLIENT_JSON nor
// GOOGLE_OAUTH_CLIENT_FILE is set.
var ErrNoOAuthClient = errors.New("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")

// OAuthConfigFromEnv builds the OAuth client for a user-owned spreadsheet.
func OAuthConfigFromEnv() (*oauth2.Config, error) {
	var b []byte
	switch {
	case strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_JSON")) != "":
		b = []byte(os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"))
	case strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_FILE")) != "":
		data, err := os.ReadFile(strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_FILE")))
		if err != nil {
			return nil, fmt.Errorf("read oauth client file: %w", err)
		}
		b = data
	default:
		return nil, ErrNoOAuthClient
	}
	cfg, err := googleoauth.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return cfg, nil
}

// TokenFile returns GOOGLE_OAUTH_TOKEN_FILE or the default.
func TokenFile() string {
	if f := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_TOKEN_FILE")); f != "" {
		return f
	}
	return DefaultTokenFile
}

func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode token %s: %w", path, err)
	}
	return &tok, nil
}

// SaveToken writes the token readable by the owner only.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		f.Close()
		return fmt.Errorf("write token: %w", err)
	}
	return f.Close()
}

// userTokenSource returns a refreshing token source when an OAuth client and
// a saved token are both available. ok is false when the OAuth path is not
// configured at all.
func userTokenSource(ctx context.Context) (ts oauth2.TokenSource, ok bool, err error) {
	cfg, err := OAuthConfigFromEnv()
	if errors.Is(err, ErrNoOAuthClient) {
		return nil, false, nil
	}
	if err != nil {
		return nil, true, err
	}
	tok, err := LoadToken(TokenFile())
	if err != nil {
		return nil, true, fmt.Errorf("load oauth token (run gastos-oauth first): %w", err)
	}
	return cfg.TokenSource(ctx, tok), true, nil
}
