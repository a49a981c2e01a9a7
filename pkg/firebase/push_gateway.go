package firebase

import (
	"context"
	"fmt"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/anonto42/safecircle/backend/internal/models"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// MaxBatchSize is the most messages FCM accepts in one SendEach call.
const MaxBatchSize = 500

// Provider error codes reported for rejected pushes.
const (
	CodeUnregistered     = "unregistered"
	CodeInvalidArgument  = "invalid-argument"
	CodeSenderIDMismatch = "sender-id-mismatch"
	CodeQuotaExceeded    = "quota-exceeded"
	CodeUnavailable      = "unavailable"
	CodeInternal         = "internal"
	CodeThirdPartyAuth   = "third-party-auth-error"
	CodeUnknown          = "unknown"
)

const (
	defaultChannelID      = "panic_channel"
	defaultBreakerTimeout = 30 * time.Second
)

// MessageSender is the part of *messaging.Client the gateway uses.
type MessageSender interface {
	SendEach(ctx context.Context, messages []*messaging.Message) (*messaging.BatchResponse, error)
}

type PushGatewayConfig struct {
	ChannelID        string
	BatchSize        int
	FailureThreshold uint32
	OpenTimeout      time.Duration
	OnStateChange    func(name string, from, to gobreaker.State)
}

// PushGateway sends push batches through FCM behind a circuit breaker.
type PushGateway struct {
	sender  MessageSender
	cfg     PushGatewayConfig
	breaker *gobreaker.CircuitBreaker[*messaging.BatchResponse]
	logger  *zap.Logger
}

func NewPushGateway(sender MessageSender, cfg PushGatewayConfig, logger *zap.Logger) *PushGateway {
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.ChannelID == "" {
		cfg.ChannelID = defaultChannelID
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaultBreakerTimeout
	}
	logger = logger.Named("push")

	settings := gobreaker.Settings{
		Name:        "fcm",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("push gateway breaker state changed",
				zap.String("breaker", name), zap.Stringer("from", from), zap.Stringer("to", to))
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
	}

	return &PushGateway{
		sender:  sender,
		cfg:     cfg,
		breaker: gobreaker.NewCircuitBreaker[*messaging.BatchResponse](settings),
		logger:  logger,
	}
}

// SendBatch sends messages in chunks of at most BatchSize and returns one result
// per message, in order. It fails as a whole only when nothing could be handed to
// FCM; a chunk lost after earlier chunks went out is reported as rejected.
func (g *PushGateway) SendBatch(ctx context.Context, messages []models.PushMessage) ([]models.PushResult, error) {
	results := make([]models.PushResult, 0, len(messages))
	for start := 0; start < len(messages); start += g.cfg.BatchSize {
		chunk := messages[start:min(start+g.cfg.BatchSize, len(messages))]

		resp, err := g.breaker.Execute(func() (*messaging.BatchResponse, error) {
			resp, err := g.sender.SendEach(ctx, g.toFCM(chunk))
			if err != nil {
				return nil, err
			}
			if resp == nil || len(resp.Responses) != len(chunk) {
				return nil, fmt.Errorf("fcm answered %d of %d messages", responseCount(resp), len(chunk))
			}
			return resp, nil
		})
		if err != nil {
			if start == 0 {
				return nil, fmt.Errorf("send push batch: %w", err)
			}
			g.logger.Error("push chunk failed after earlier chunks were sent",
				zap.Int("offset", start), zap.Int("size", len(chunk)), zap.Error(err))
			for range chunk {
				results = append(results, models.PushResult{ProviderErrorCode: CodeUnavailable})
			}
			continue
		}

		for _, r := range resp.Responses {
			results = append(results, toResult(r))
		}
	}
	return results, nil
}

func (g *PushGateway) toFCM(chunk []models.PushMessage) []*messaging.Message {
	out := make([]*messaging.Message, len(chunk))
	for i, m := range chunk {
		out[i] = &messaging.Message{
			Token: m.Token,
			Notification: &messaging.Notification{
				Title: m.Title,
				Body:  m.Body,
			},
			Data: m.Data,
			Android: &messaging.AndroidConfig{
				Priority: "high",
				Notification: &messaging.AndroidNotification{
					ChannelID: g.cfg.ChannelID,
					Sound:     "default",
				},
			},
			APNS: &messaging.APNSConfig{
				Headers: map[string]string{"apns-priority": "10"},
				Payload: &messaging.APNSPayload{Aps: &messaging.Aps{Sound: "default"}},
			},
		}
	}
	return out
}

func toResult(r *messaging.SendResponse) models.PushResult {
	if r != nil && r.Success {
		return models.PushResult{Accepted: true}
	}
	var err error
	if r != nil {
		err = r.Error
	}
	return models.PushResult{ProviderErrorCode: ProviderCode(err)}
}

// ProviderCode classifies an FCM send error.
func ProviderCode(err error) string {
	switch {
	case err == nil:
		return CodeUnknown
	case messaging.IsUnregistered(err):
		return CodeUnregistered
	case messaging.IsInvalidArgument(err):
		return CodeInvalidArgument
	case messaging.IsSenderIDMismatch(err):
		return CodeSenderIDMismatch
	case messaging.IsQuotaExceeded(err):
		return CodeQuotaExceeded
	case messaging.IsUnavailable(err):
		return CodeUnavailable
	case messaging.IsInternal(err):
		return CodeInternal
	case messaging.IsThirdPartyAuthError(err):
		return CodeThirdPartyAuth
	default:
		return CodeUnknown
	}
}

func responseCount(resp *messaging.BatchResponse) int {
	if resp == nil {
		return 0
	}
	return len(resp.Responses)
}
