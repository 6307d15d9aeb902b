package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// Session is the server-side state behind a session cookie.
type Session struct {
	ID        string
	UserID    string
	FID       int64
	Trust     Trust
	CreatedAt int64
}

func (s *Session) Identity() *Identity {
	return &Identity{UserID: s.UserID, FID: s.FID, Trust: s.Trust}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func CreateSession(ctx context.Context, rdb *redis.Client, s Session, ttl time.Duration) error {
	key := sessionKey(s.ID)
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"user_id", s.UserID,
			"fid", s.FID,
			"trust", string(s.Trust),
			"created_at", s.CreatedAt,
		)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

// GetSession returns nil, nil for unknown or expired sessions.
func GetSession(ctx context.Context, rdb *redis.Client, id string) (*Session, error) {
	vals, err := rdb.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 || vals["user_id"] == "" {
		return nil, nil
	}
	fid, _ := strconv.ParseInt(vals["fid"], 10, 64)
	createdAt, _ := strconv.ParseInt(vals["created_at"], 10, 64)
	return &Session{
		ID:        id,
		UserID:    vals["user_id"],
		FID:       fid,
		Trust:     Trust(vals["trust"]),
		CreatedAt: createdAt,
	}, nil
}

func DeleteSession(ctx context.Context, rdb *redis.Client, id string) error {
	return rdb.Del(ctx, sessionKey(id)).Err()
}

// ── Cookie signing ──────────────────────────────────────────────────────────

func signValue(value string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignCookie returns "<value>.<hex hmac>".
func SignCookie(value string, secret []byte) string {
	return value + "." + signValue(value, secret)
}

// VerifyCookie returns the value of a cookie produced by SignCookie.
func VerifyCookie(cookie string, secret []byte) (string, bool) {
	i := strings.LastIndexByte(cookie, '.')
	if i <= 0 || i == len(cookie)-1 {
		return "", false
	}
	value, sig := cookie[:i], cookie[i+1:]
	if !hmac.Equal([]byte(sig), []byte(signValue(value, secret))) {
		return "", false
	}
	return value, true
}
