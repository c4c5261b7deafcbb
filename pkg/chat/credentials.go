package chat

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/oauth2"
)

// CredentialStore persists the chat source's opaque cached credential
// across restarts. internal/config.Store backs this via ChatConfig.Credential
// in the composition root.
type CredentialStore interface {
	LoadCredential() (string, error)
	SaveCredential(string) error
}

// Credentials holds a live platform session's cookie-equivalent fields.
// Its validity is modeled as an oauth2.Token so the existing expiry/refresh
// machinery in golang.org/x/oauth2 can be reused instead of hand-rolling
// an expiry check, even though the live platform issues cookies rather
// than OAuth tokens — Token.Expiry and Token.Valid() care only about the
// expiry timestamp, which applies equally well here.
type Credentials struct {
	SESSDATA string `json:"sessdata"`
	BiliJCT  string `json:"bili_jct"`
	Buvid3   string `json:"buvid3"`
	UID      int64  `json:"uid"`
	Expiry   time.Time
}

func (c Credentials) token() *oauth2.Token {
	return &oauth2.Token{AccessToken: c.SESSDATA, Expiry: c.Expiry}
}

// ErrNoCredentials is returned by LoadCredentials when the store has never
// held a cached credential, signaling the caller should fall back to
// QRLogin.
var ErrNoCredentials = errors.New("chat: no cached credentials")

// LoadCredentials reads and decodes the store's cached credential.
func LoadCredentials(store CredentialStore) (Credentials, error) {
	raw, err := store.LoadCredential()
	if err != nil {
		return Credentials{}, err
	}
	if raw == "" {
		return Credentials{}, ErrNoCredentials
	}
	var c Credentials
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Credentials{}, err
	}
	return c, nil
}

// SaveCredentials encodes and persists c.
func SaveCredentials(store CredentialStore, c Credentials) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return store.SaveCredential(string(raw))
}

// QRLogin performs an interactive login when no cached credential is
// valid: display shows the caller (CLI, log line, or a bound websocket) a
// login URL/QR payload, and poll is invoked on an interval until it
// reports either a completed login or a terminal failure. This mirrors
// the original's qr-code fallback without assuming any particular
// rendering surface.
type QRLogin struct {
	// Display renders a login URL (or QR payload) to the operator.
	Display func(url string)
	// Poll checks the login session once; ok is true once the operator has
	// scanned and confirmed, err is non-nil only on a terminal failure
	// (expired session, rejected).
	Poll func(ctx context.Context) (creds Credentials, ok bool, err error)
	// Interval between polls.
	Interval time.Duration
}

// Run drives the QR login flow to completion or ctx cancellation.
func (q QRLogin) Run(ctx context.Context, loginURL string) (Credentials, error) {
	if q.Display != nil {
		q.Display(loginURL)
	}
	interval := q.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Credentials{}, ctx.Err()
		case <-ticker.C:
			creds, ok, err := q.Poll(ctx)
			if err != nil {
				return Credentials{}, err
			}
			if ok {
				return creds, nil
			}
		}
	}
}

// validOrRefresh returns creds unchanged if not near expiry, otherwise
// calls refresh. "Near expiry" mirrors oauth2.Token's own early-expiry
// margin via Token.Valid(), which treats a token within its expiryDelta
// window of expiring as already invalid.
func validOrRefresh(ctx context.Context, creds Credentials, refresh func(ctx context.Context, stale Credentials) (Credentials, error)) (Credentials, error) {
	if creds.Expiry.IsZero() || creds.token().Valid() {
		return creds, nil
	}
	return refresh(ctx, creds)
}
