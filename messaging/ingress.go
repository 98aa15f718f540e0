package messaging

import (
	"errors"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-authgate"
	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/time/rate"
)

// Delivery modes accepted by the ingress.
const (
	ModeDeliver = "deliver"
	ModeOpen    = "open"
)

// SendRequest is the ingress payload for a push message.
type SendRequest struct {
	Mode         string                 `json:"mode"`
	MessageID    string                 `json:"message_id"`
	Data         map[string]string      `json:"data"`
	Notification *authgate.Notification `json:"notification"`
}

// Validate checks the request carries something to show or route.
func (r SendRequest) Validate() error {
	var dataRules []validation.Rule
	if r.Notification == nil {
		dataRules = append(dataRules, validation.Required.Error("data is required when no notification is present"))
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Mode, validation.In(ModeDeliver, ModeOpen)),
		validation.Field(&r.Data, dataRules...),
	)
}

func (r SendRequest) message() *authgate.RemoteMessage {
	return &authgate.RemoteMessage{
		MessageID:    r.MessageID,
		From:         "ingress",
		Data:         r.Data,
		Notification: r.Notification,
	}
}

// IngressConfig tunes the ingress routes.
type IngressConfig struct {
	// Limit caps accepted sends per second across all callers. Zero disables
	// rate limiting.
	Limit rate.Limit
	Burst int
}

// DefaultIngressConfig allows 5 sends per second with a burst of 10.
func DefaultIngressConfig() IngressConfig {
	return IngressConfig{Limit: rate.Limit(5), Burst: 10}
}

// Ingress exposes a Hub over HTTP so tooling can push messages to a running
// app.
type Ingress struct {
	hub     *Hub
	limiter *rate.Limiter
	logger  authgate.Logger
}

// NewIngress creates the ingress for hub.
func NewIngress(hub *Hub, cfg IngressConfig) *Ingress {
	in := &Ingress{hub: hub, logger: hub.logger}
	if cfg.Limit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		in.limiter = rate.NewLimiter(cfg.Limit, burst)
	}
	return in
}

// Register mounts the ingress routes on router.
func (in *Ingress) Register(router fiber.Router) {
	router.Post("/messages", in.limit, in.Send)
	router.Get("/token", in.Token)
	router.Get("/status", in.Status)
}

func (in *Ingress) limit(c *fiber.Ctx) error {
	if in.limiter == nil || in.limiter.Allow() {
		return c.Next()
	}
	retry := 1
	if limit := in.limiter.Limit(); limit > 0 && limit < 1 {
		retry = int(1/float64(limit)) + 1
	}
	c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retry))
	in.logger.Warn("push ingress rate limit exceeded", "ip", c.IP())
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"code":    "rate_limit_exceeded",
		"message": "too many push messages, retry later",
	})
}

// Send delivers or opens one message.
func (in *Ingress) Send(c *fiber.Ctx) error {
	var req SendRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":    "invalid_payload",
			"message": err.Error(),
		})
	}
	if req.Mode == "" {
		req.Mode = ModeDeliver
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":    "validation_failed",
			"message": err.Error(),
		})
	}

	msg := req.message()
	var err error
	switch req.Mode {
	case ModeOpen:
		err = in.hub.Open(c.UserContext(), msg)
	default:
		err = in.hub.Deliver(c.UserContext(), msg)
	}
	if err != nil {
		in.logger.Error("push ingress delivery failed", "message_id", msg.MessageID, "error", err)
		status := fiber.StatusInternalServerError
		var rich *goerrors.Error
		if errors.As(err, &rich) && rich.Code >= 400 && rich.Code < 600 {
			status = rich.Code
		}
		return c.Status(status).JSON(fiber.Map{
			"code":       "delivery_failed",
			"message":    err.Error(),
			"message_id": msg.MessageID,
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message_id": msg.MessageID,
		"sent_at":    msg.SentAt.Format(time.RFC3339),
	})
}

// Token returns the current device token.
func (in *Ingress) Token(c *fiber.Ctx) error {
	token, err := in.hub.GetToken(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"code":    "token_unavailable",
			"message": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"token": token})
}

// Status reports the hub permission and lifecycle state.
func (in *Ingress) Status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"permission": in.hub.Permission().String(),
		"registered": in.hub.Registered(),
		"foreground": in.hub.Foreground(),
	})
}
