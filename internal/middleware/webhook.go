package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/esarmiem/navegantes-payment-e-learning/internal/signature"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/telemetry"
)

const (
	RawBodyKey      = "raw_body"
	SignatureHeader = "x-signature"

	maxWebhookBody = 1 << 20
)

// RawBody reads the request body once, keeps the exact bytes in the gin
// context for signature checks and restores the body for later readers.
func RawBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Set(RawBodyKey, body)
		c.Next()
	}
}

// GetRawBody returns the bytes stored by RawBody, or nil.
func GetRawBody(c *gin.Context) []byte {
	raw, ok := c.Get(RawBodyKey)
	if !ok {
		return nil
	}
	b, _ := raw.([]byte)
	return b
}

// WebhookSignature rejects deliveries whose x-signature does not match the
// HMAC of the raw body. With no secret or no header the check is skipped
// and logged.
func WebhookSignature(verifier *signature.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawBody := GetRawBody(c)
		provided := c.GetHeader(SignatureHeader)

		switch verifier.Check(rawBody, provided) {
		case signature.Invalid:
			telemetry.WebhookDeliveries.WithLabelValues("bad_signature").Inc()
			telemetry.Logger.Warn("Webhook signature mismatch", zap.String("client_ip", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
			return
		case signature.Skipped:
			telemetry.Logger.Warn("Webhook signature verification skipped",
				zap.Bool("secret_configured", verifier.Configured()),
				zap.Bool("header_present", provided != ""),
			)
		}
		c.Next()
	}
}

// ReplayGuard remembers delivery keys for a while.
type ReplayGuard interface {
	// MarkSeen returns true the first time key is seen within ttl.
	MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type RedisReplayGuard struct {
	client *redis.Client
}

func NewRedisReplayGuard(client *redis.Client) *RedisReplayGuard {
	return &RedisReplayGuard{client: client}
}

func (g *RedisReplayGuard) MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return g.client.SetNX(ctx, fmt.Sprintf("webhook:%s", key), time.Now().Unix(), ttl).Result()
}

// WebhookReplay acknowledges a byte-identical redelivery without processing
// it again. If the guard is unavailable the delivery is processed normally.
func WebhookReplay(guard ReplayGuard, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if guard == nil {
			c.Next()
			return
		}

		sum := sha256.Sum256(GetRawBody(c))
		key := hex.EncodeToString(sum[:])

		first, err := guard.MarkSeen(c.Request.Context(), key, ttl)
		if err != nil {
			telemetry.Logger.Warn("Webhook replay guard unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !first {
			telemetry.WebhookDeliveries.WithLabelValues("duplicate").Inc()
			telemetry.Logger.Info("Duplicate webhook delivery acknowledged", zap.String("body_sha256", key))
			c.AbortWithStatusJSON(http.StatusOK, gin.H{"success": true, "duplicate": true})
			return
		}
		c.Next()
	}
}
