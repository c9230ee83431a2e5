// Package session manages the shopper session identifier that ties a client
// to its server-side cart.
package session

import (
	"context"
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-storefront/internal/kv"
)

// Key is the storage key of the session identifier.
const Key = "ecommerce-session-id"

const (
	prefix       = "session_"
	suffixLength = 9
	alphabet     = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Load returns the stored session identifier, generating and persisting a
// new one on first use.
func Load(ctx context.Context, store kv.Store) (string, error) {
	id, err := store.Get(ctx, Key)
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		return "", errors.Wrap(err, "read session")
	}

	id, err = New(time.Now())
	if err != nil {
		return "", err
	}
	if err := store.Set(ctx, Key, id); err != nil {
		return "", errors.Wrap(err, "persist session")
	}
	return id, nil
}

// Clear forgets the stored session. The next Load starts a new one.
func Clear(ctx context.Context, store kv.Store) error {
	if err := store.Delete(ctx, Key); err != nil {
		return errors.Wrap(err, "clear session")
	}
	return nil
}

// New generates an identifier of the form session_<unix-ms>_<9 base36 chars>.
func New(now time.Time) (string, error) {
	var b strings.Builder
	b.Grow(len(prefix) + 14 + suffixLength)
	b.WriteString(prefix)
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	b.WriteByte('_')

	radix := big.NewInt(int64(len(alphabet)))
	for range suffixLength {
		n, err := rand.Int(rand.Reader, radix)
		if err != nil {
			return "", errors.Wrap(err, "generate session id")
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}

// Valid reports whether id has the shape produced by New.
func Valid(id string) bool {
	rest, ok := strings.CutPrefix(id, prefix)
	if !ok {
		return false
	}
	ms, suffix, ok := strings.Cut(rest, "_")
	if !ok || len(suffix) != suffixLength {
		return false
	}
	if _, err := strconv.ParseInt(ms, 10, 64); err != nil {
		return false
	}
	for i := 0; i < len(suffix); i++ {
		if !strings.ContainsRune(alphabet, rune(suffix[i])) {
			return false
		}
	}
	return true
}
