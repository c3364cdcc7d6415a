package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/twilio/twilio-go"
	twilioClient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	lookups "github.com/twilio/twilio-go/rest/lookups/v2"
	verify "github.com/twilio/twilio-go/rest/verify/v2"

	"github.com/you/eventhub/domain"
	"github.com/you/eventhub/internal/phone"
)

// ErrNotConfigured is returned when a send is attempted without credentials.
var ErrNotConfigured = errors.New("sms provider is not configured")

const verificationApproved = "approved"

// twilioAPI is the slice of the Twilio REST client the provider uses.
type twilioAPI interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
	CreateVerification(serviceSid string, params *verify.CreateVerificationParams) (*verify.VerifyV2Verification, error)
	CreateVerificationCheck(serviceSid string, params *verify.CreateVerificationCheckParams) (*verify.VerifyV2VerificationCheck, error)
	FetchPhoneNumber(phoneNumber string, params *lookups.FetchPhoneNumberParams) (*lookups.LookupsV2PhoneNumber, error)
}

type restAPI struct {
	client *twilio.RestClient
}

func (r restAPI) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	return r.client.Api.CreateMessage(params)
}

func (r restAPI) CreateVerification(sid string, params *verify.CreateVerificationParams) (*verify.VerifyV2Verification, error) {
	return r.client.VerifyV2.CreateVerification(sid, params)
}

func (r restAPI) CreateVerificationCheck(sid string, params *verify.CreateVerificationCheckParams) (*verify.VerifyV2VerificationCheck, error) {
	return r.client.VerifyV2.CreateVerificationCheck(sid, params)
}

func (r restAPI) FetchPhoneNumber(number string, params *lookups.FetchPhoneNumberParams) (*lookups.LookupsV2PhoneNumber, error) {
	return r.client.LookupsV2.FetchPhoneNumber(number, params)
}

// TwilioSettings configures the Twilio provider
type TwilioSettings struct {
	AccountSID       string
	AuthToken        string
	FromNumber       string
	VerifyServiceSID string
	LookupEnabled    bool
	Timeout          time.Duration
}

// TwilioServiceImpl implements domain.SMSProvider
type TwilioServiceImpl struct {
	api        twilioAPI
	settings   TwilioSettings
	normalizer *phone.Normalizer
	log        zerolog.Logger
}

// NewTwilioService creates a new Twilio SMS provider. Every outbound call is
// bounded by settings.Timeout.
func NewTwilioService(settings TwilioSettings, normalizer *phone.Normalizer, log zerolog.Logger) *TwilioServiceImpl {
	var api twilioAPI
	if settings.AccountSID != "" && settings.AuthToken != "" {
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: settings.AccountSID,
			Password: settings.AuthToken,
		})
		if settings.Timeout > 0 {
			client.SetTimeout(settings.Timeout)
		}
		api = restAPI{client: client}
	}
	return newTwilioService(api, settings, normalizer, log)
}

func newTwilioService(api twilioAPI, settings TwilioSettings, normalizer *phone.Normalizer, log zerolog.Logger) *TwilioServiceImpl {
	return &TwilioServiceImpl{
		api:        api,
		settings:   settings,
		normalizer: normalizer,
		log:        log.With().Str("component", "twilio").Logger(),
	}
}

// SendOTP implements domain.SMSProvider. An empty code asks Twilio Verify to
// generate and track the code.
func (t *TwilioServiceImpl) SendOTP(ctx context.Context, to, code string) error {
	if t.api == nil {
		return fmt.Errorf("%w: %w", domain.ErrUpstream, ErrNotConfigured)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if code == "" {
		if t.settings.VerifyServiceSID == "" {
			return fmt.Errorf("%w: verify service sid is not set", domain.ErrUpstream)
		}
		params := &verify.CreateVerificationParams{}
		params.SetTo(to)
		params.SetChannel("sms")
		if _, err := t.api.CreateVerification(t.settings.VerifyServiceSID, params); err != nil {
			return fmt.Errorf("%w: failed to start verification: %w", domain.ErrUpstream, err)
		}
		t.log.Debug().Str("to", t.normalizer.Mask(to)).Msg("verification started")
		return nil
	}

	if t.settings.FromNumber == "" {
		return fmt.Errorf("%w: %w", domain.ErrUpstream, ErrNotConfigured)
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.settings.FromNumber)
	params.SetBody(fmt.Sprintf("Your EventHub verification code is %s. Do not share it with anyone.", code))

	if _, err := t.api.CreateMessage(params); err != nil {
		return fmt.Errorf("%w: failed to send SMS: %w", domain.ErrUpstream, err)
	}
	t.log.Debug().Str("to", t.normalizer.Mask(to)).Msg("sms sent")
	return nil
}

// VerifyOTPExternally implements domain.SMSProvider. A wrong, expired or
// already-approved code is a negative result, not an error.
func (t *TwilioServiceImpl) VerifyOTPExternally(ctx context.Context, to, code string) (bool, error) {
	if t.api == nil || t.settings.VerifyServiceSID == "" {
		return false, fmt.Errorf("%w: %w", domain.ErrUpstream, ErrNotConfigured)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	params := &verify.CreateVerificationCheckParams{}
	params.SetTo(to)
	params.SetCode(code)

	check, err := t.api.CreateVerificationCheck(t.settings.VerifyServiceSID, params)
	if err != nil {
		var restErr *twilioClient.TwilioRestError
		if errors.As(err, &restErr) && restErr.Status == http.StatusNotFound {
			return false, nil
		}
		return false, fmt.Errorf("%w: failed to check verification: %w", domain.ErrUpstream, err)
	}
	return check.Status != nil && *check.Status == verificationApproved, nil
}

// ValidatePhoneNumber implements domain.SMSProvider. The local libphonenumber
// check always runs; the Lookup API is consulted only when enabled, and its
// failure falls back to the local answer.
func (t *TwilioServiceImpl) ValidatePhoneNumber(ctx context.Context, number string) bool {
	local := t.normalizer.IsValid(number)
	if !local || !t.settings.LookupEnabled || t.api == nil || ctx.Err() != nil {
		return local
	}

	result, err := t.api.FetchPhoneNumber(t.normalizer.Normalize(number), &lookups.FetchPhoneNumberParams{})
	if err != nil {
		t.log.Warn().Err(err).Str("phone", t.normalizer.Mask(number)).Msg("phone lookup failed, using local validation")
		return local
	}
	return result.Valid != nil && *result.Valid
}

var _ domain.SMSProvider = (*TwilioServiceImpl)(nil)
