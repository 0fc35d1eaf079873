package payment

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	errors "github.com/voltmart/payments/internal"
	"github.com/voltmart/payments/internal/core/datamodel/order"
)

// StepUpChallenge is everything the browser needs to run the device-data
// collection and authentication round trip, plus the signed return token
// that lets the application resume the right order when control comes back.
type StepUpChallenge struct {
	AccessToken   string `json:"access_token"`
	DeviceDataURL string `json:"device_data_url"`
	ChallengeURL  string `json:"challenge_url"`
	ReturnURL     string `json:"return_url"`
	ReturnToken   string `json:"return_token"`
}

type returnClaims struct {
	OrderID string `json:"order_id"`
	Step    string `json:"step"`
	jwt.RegisteredClaims
}

// StepUpRedirector hands control to the user's browser for the step-up
// challenge and validates the return leg. The server holds no resources
// while the browser round trip runs; only the persisted step context
// survives the interval.
type StepUpRedirector struct {
	returnURL   string
	tokenSecret []byte
	tokenTTL    time.Duration
	logger      *slog.Logger
}

func NewStepUpRedirector(returnURL, tokenSecret string, tokenTTL time.Duration, logger *slog.Logger) *StepUpRedirector {
	return &StepUpRedirector{
		returnURL:   returnURL,
		tokenSecret: []byte(tokenSecret),
		tokenTTL:    tokenTTL,
		logger:      logger,
	}
}

// BuildChallenge assembles the redirect hand-off from the step context the
// gateway echoed back during step 3.
func (s *StepUpRedirector) BuildChallenge(p *order.OrderPayment) (*StepUpChallenge, error) {
	ctx := p.StepContext
	if ctx.AccessToken == "" || ctx.DeviceDataURL == "" {
		return nil, fmt.Errorf("order %s has no step-up context", p.OrderID)
	}

	token, err := s.mintReturnToken(p.OrderID)
	if err != nil {
		return nil, fmt.Errorf("mint return token: %w", err)
	}

	returnURL, err := url.Parse(s.returnURL)
	if err != nil {
		return nil, fmt.Errorf("parse return url: %w", err)
	}
	q := returnURL.Query()
	q.Set("token", token)
	returnURL.RawQuery = q.Encode()

	return &StepUpChallenge{
		AccessToken:   ctx.AccessToken,
		DeviceDataURL: ctx.DeviceDataURL,
		ChallengeURL:  ctx.ChallengeURL,
		ReturnURL:     returnURL.String(),
		ReturnToken:   token,
	}, nil
}

func (s *StepUpRedirector) mintReturnToken(orderID string) (string, error) {
	now := time.Now()
	claims := returnClaims{
		OrderID: orderID,
		Step:    order.StepFinalConfirm,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   orderID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.tokenSecret)
}

// VerifyReturnToken checks the signed token the browser carried back and
// returns the order it belongs to. A forged or expired token cannot resume
// a confirmation.
func (s *StepUpRedirector) VerifyReturnToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &returnClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.tokenSecret, nil
	})
	if err != nil {
		s.logger.Warn("step-up return token rejected", "error", err)
		return "", errors.ErrInvalidReturnToken.WithCause(err)
	}

	claims, ok := parsed.Claims.(*returnClaims)
	if !ok || claims.OrderID == "" || claims.Step != order.StepFinalConfirm {
		return "", errors.ErrInvalidReturnToken
	}

	return claims.OrderID, nil
}
