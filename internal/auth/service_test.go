package auth

import (
	"context"
	"database/sql"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"admitchat/internal/config"
	"admitchat/internal/redis"
	"admitchat/internal/storage"
)

func TestAuthIssueValidateRevoke(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	insertUser(t, db, "u-1")

	svc := NewService(db, nil, "admin-1", time.Hour)
	token, err := svc.IssueToken(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	if token == "" {
		t.Fatalf("expected token")
	}
	userID, err := svc.ValidateToken(context.Background(), token)
	if err != nil || userID != "u-1" {
		t.Fatalf("ValidateToken failed: id=%s err=%v", userID, err)
	}
	if err := svc.RevokeToken(context.Background(), token); err != nil {
		t.Fatalf("RevokeToken error: %v", err)
	}
	if _, err := svc.ValidateToken(context.Background(), token); err == nil {
		t.Fatalf("expected error after revoke")
	}

	token2, err := svc.IssueToken(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	if err := svc.RevokeUserTokens(context.Background(), "u-1"); err != nil {
		t.Fatalf("RevokeUserTokens error: %v", err)
	}
	if _, err := svc.ValidateToken(context.Background(), token2); err == nil {
		t.Fatalf("expected error after revoke all")
	}
}

func TestAuthValidateExpiredToken(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	insertUser(t, db, "u-2")

	svc := NewService(db, nil, "admin-1", 10*time.Millisecond)
	token, err := svc.IssueToken(context.Background(), "u-2")
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := svc.ValidateToken(context.Background(), token); err == nil {
		t.Fatalf("expected expiration error")
	}
	// ensure token removed
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM user_tokens WHERE token = ?`, token).Scan(&count); err != nil {
		t.Fatalf("query tokens: %v", err)
	}
	if count != 0 {
		t.Fatalf("expired token not purged")
	}
}

func TestTokenCleanerPurgesExpiredRows(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	insertUser(t, db, "u-4")

	shortLived := NewService(db, nil, "admin-1", 10*time.Millisecond)
	expired, err := shortLived.IssueToken(context.Background(), "u-4")
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	longLived := NewService(db, nil, "admin-1", time.Hour)
	live, err := longLived.IssueToken(context.Background(), "u-4")
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if err := longLived.cleanupExpiredTokens(context.Background()); err != nil {
		t.Fatalf("cleanupExpiredTokens: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM user_tokens WHERE token = ?`, expired).Scan(&count); err != nil {
		t.Fatalf("query tokens: %v", err)
	}
	if count != 0 {
		t.Fatalf("expired token not swept")
	}
	if _, err := longLived.ValidateToken(context.Background(), live); err != nil {
		t.Fatalf("live token must survive sweep: %v", err)
	}
}

func TestResolveIdentityAdminFlag(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	insertUser(t, db, "admin-1")
	insertUser(t, db, "u-3")

	svc := NewService(db, nil, "admin-1", time.Hour)
	ctx := context.Background()

	adminToken, err := svc.IssueToken(ctx, "admin-1")
	if err != nil {
		t.Fatalf("IssueToken admin: %v", err)
	}
	userToken, err := svc.IssueToken(ctx, "u-3")
	if err != nil {
		t.Fatalf("IssueToken user: %v", err)
	}

	ident, err := svc.ResolveIdentity(ctx, adminToken)
	if err != nil {
		t.Fatalf("ResolveIdentity admin: %v", err)
	}
	if ident.ID != "admin-1" || !ident.Admin {
		t.Fatalf("expected admin identity, got %+v", ident)
	}

	ident, err = svc.ResolveIdentity(ctx, userToken)
	if err != nil {
		t.Fatalf("ResolveIdentity user: %v", err)
	}
	if ident.ID != "u-3" || ident.Admin {
		t.Fatalf("expected non-admin identity, got %+v", ident)
	}

	if _, err := svc.ResolveIdentity(ctx, "bogus"); err == nil {
		t.Fatalf("expected error for unknown token")
	}
}

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	ok, err := ComparePassword("s3cret-pass", hash)
	if err != nil || !ok {
		t.Fatalf("expected match: ok=%v err=%v", ok, err)
	}
	ok, err = ComparePassword("wrong-pass", hash)
	if err != nil {
		t.Fatalf("ComparePassword: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
	if _, err := ComparePassword("anything", "not-a-hash"); err == nil {
		t.Fatalf("expected error for malformed hash")
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {
				DSN: ":memory:",
			},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}

func insertUser(t *testing.T, db *sql.DB, id string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, '', ?)`,
		id, "user "+id, id+"@example.edu", time.Now().UTC())
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
}

func TestAuthTokenCacheUsesRedis(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	insertUser(t, db, "u-10")

	cacheClient, cleanup := newRedisCacheClient(t)
	defer cleanup()

	svc := NewService(db, cacheClient, "admin-1", time.Hour)
	ctx := context.Background()

	token, err := svc.IssueToken(ctx, "u-10")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	raw := cacheClient.Raw()
	if raw == nil {
		t.Fatalf("redis raw client nil")
	}
	key := redisTokenPrefix + token
	got, err := raw.Get(ctx, key).Result()
	if err != nil {
		t.Fatalf("get redis token: %v", err)
	}
	if got != "u-10" {
		t.Fatalf("expected user u-10 in rdb, got %s", got)
	}

	_, _ = db.Exec(`DELETE FROM user_tokens WHERE token = ?`, token)
	userID, err := svc.ValidateToken(ctx, token)
	if err != nil || userID != "u-10" {
		t.Fatalf("ValidateToken via rdb failed: id=%s err=%v", userID, err)
	}

	if err := svc.RevokeToken(ctx, token); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if _, err := raw.Get(ctx, key).Result(); err == nil {
		t.Fatalf("expected redis key deleted")
	}
	if _, err := svc.ValidateToken(ctx, token); err == nil {
		t.Fatalf("expected error after revoke and rdb delete")
	}
}

func newRedisCacheClient(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed auth tests")
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("atoi port: %v", err)
	}
	db := 0
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			db = parsed
		}
	}
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Host: host,
			Port: port,
			DB:   db,
		},
	}
	client, err := redis.NewRedisClient(cfg)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if raw := client.Raw(); raw != nil {
		if err := raw.FlushDB(ctx).Err(); err != nil {
			t.Fatalf("flush db: %v", err)
		}
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup
}
