// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Token
	AccessSecret  string        // アクセストークンの署名シークレット
	RefreshSecret string        // リフレッシュトークンの署名シークレット
	HashSecret    string        // リフレッシュトークンのHMACダイジェスト用シークレット
	AccessTTL     time.Duration // アクセストークンの有効期間
	RefreshTTL    time.Duration // リフレッシュトークンの有効期間

	// Rate Limit
	RateLimitGeneral int // API全般のレート（req/min/user）
	RateLimitAuth    int // 認証エンドポイントのレート（req/15min/IP）

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.AccessSecret = os.Getenv("JWT_SECRET")
	if cfg.AccessSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	cfg.RefreshSecret = os.Getenv("REFRESH_SECRET")
	if cfg.RefreshSecret == "" {
		missing = append(missing, "REFRESH_SECRET")
	}

	cfg.HashSecret = os.Getenv("REFRESH_TOKEN_HASH_SECRET")
	if cfg.HashSecret == "" {
		missing = append(missing, "REFRESH_TOKEN_HASH_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.AccessTTL = getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute)
	cfg.RefreshTTL = getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
