package notifications

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioClient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	lookups "github.com/twilio/twilio-go/rest/lookups/v2"
	verify "github.com/twilio/twilio-go/rest/verify/v2"

	"github.com/you/eventhub/domain"
	"github.com/you/eventhub/internal/phone"
)

type fakeTwilio struct {
	CreateMessageFunc           func(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
	CreateVerificationFunc      func(sid string, params *verify.CreateVerificationParams) (*verify.VerifyV2Verification, error)
	CreateVerificationCheckFunc func(sid string, params *verify.CreateVerificationCheckParams) (*verify.VerifyV2VerificationCheck, error)
	FetchPhoneNumberFunc        func(number string, params *lookups.FetchPhoneNumberParams) (*lookups.LookupsV2PhoneNumber, error)
}

func (f *fakeTwilio) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	return f.CreateMessageFunc(params)
}

func (f *fakeTwilio) CreateVerification(sid string, params *verify.CreateVerificationParams) (*verify.VerifyV2Verification, error) {
	return f.CreateVerificationFunc(sid, params)
}

func (f *fakeTwilio) CreateVerificationCheck(sid string, params *verify.CreateVerificationCheckParams) (*verify.VerifyV2VerificationCheck, error) {
	return f.CreateVerificationCheckFunc(sid, params)
}

func (f *fakeTwilio) FetchPhoneNumber(number string, params *lookups.FetchPhoneNumberParams) (*lookups.LookupsV2PhoneNumber, error) {
	return f.FetchPhoneNumberFunc(number, params)
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func newTestService(api twilioAPI, settings TwilioSettings) *TwilioServiceImpl {
	return newTwilioService(api, settings, phone.NewNormalizer("ID"), zerolog.Nop())
}

func TestTwilioService_SendOTP(t *testing.T) {
	ctx := context.Background()

	t.Run("self-managed code goes through messages", func(t *testing.T) {
		var sent *twilioApi.CreateMessageParams
		api := &fakeTwilio{
			CreateMessageFunc: func(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
				sent = params
				return &twilioApi.ApiV2010Message{}, nil
			},
		}
		svc := newTestService(api, TwilioSettings{FromNumber: "+15550001111"})

		require.NoError(t, svc.SendOTP(ctx, "+628123456789", "123456"))
		require.NotNil(t, sent)
		assert.Equal(t, "+628123456789", *sent.To)
		assert.Equal(t, "+15550001111", *sent.From)
		assert.Contains(t, *sent.Body, "123456")
	})

	t.Run("empty code starts a verify session", func(t *testing.T) {
		var gotSID, gotChannel string
		api := &fakeTwilio{
			CreateVerificationFunc: func(sid string, params *verify.CreateVerificationParams) (*verify.VerifyV2Verification, error) {
				gotSID, gotChannel = sid, *params.Channel
				return &verify.VerifyV2Verification{}, nil
			},
		}
		svc := newTestService(api, TwilioSettings{VerifyServiceSID: "VA123"})

		require.NoError(t, svc.SendOTP(ctx, "+628123456789", ""))
		assert.Equal(t, "VA123", gotSID)
		assert.Equal(t, "sms", gotChannel)
	})

	t.Run("provider failure is upstream", func(t *testing.T) {
		api := &fakeTwilio{
			CreateMessageFunc: func(*twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
				return nil, errors.New("connection reset")
			},
		}
		svc := newTestService(api, TwilioSettings{FromNumber: "+15550001111"})

		assert.ErrorIs(t, svc.SendOTP(ctx, "+628123456789", "123456"), domain.ErrUpstream)
	})

	t.Run("unconfigured client", func(t *testing.T) {
		svc := newTestService(nil, TwilioSettings{})

		err := svc.SendOTP(ctx, "+628123456789", "123456")
		assert.ErrorIs(t, err, domain.ErrUpstream)
		assert.ErrorIs(t, err, ErrNotConfigured)
	})
}

func TestTwilioService_VerifyOTPExternally(t *testing.T) {
	tests := []struct {
		name        string
		status      string
		err         error
		expected    bool
		expectedErr error
	}{
		{name: "approved", status: "approved", expected: true},
		{name: "pending means wrong code", status: "pending", expected: false},
		{name: "not found means expired", err: &twilioClient.TwilioRestError{Status: http.StatusNotFound}, expected: false},
		{name: "server error propagates", err: &twilioClient.TwilioRestError{Status: http.StatusInternalServerError}, expectedErr: domain.ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeTwilio{
				CreateVerificationCheckFunc: func(sid string, params *verify.CreateVerificationCheckParams) (*verify.VerifyV2VerificationCheck, error) {
					assert.Equal(t, "424242", *params.Code)
					if tt.err != nil {
						return nil, tt.err
					}
					return &verify.VerifyV2VerificationCheck{Status: strPtr(tt.status)}, nil
				},
			}
			svc := newTestService(api, TwilioSettings{VerifyServiceSID: "VA123"})

			ok, err := svc.VerifyOTPExternally(context.Background(), "+628123456789", "424242")
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}
}

func TestTwilioService_ValidatePhoneNumber(t *testing.T) {
	ctx := context.Background()

	t.Run("local check only", func(t *testing.T) {
		svc := newTestService(nil, TwilioSettings{})
		assert.True(t, svc.ValidatePhoneNumber(ctx, "0812-3456-789"))
		assert.False(t, svc.ValidatePhoneNumber(ctx, "12345"))
	})

	t.Run("lookup overrides a locally valid number", func(t *testing.T) {
		var looked string
		api := &fakeTwilio{
			FetchPhoneNumberFunc: func(number string, _ *lookups.FetchPhoneNumberParams) (*lookups.LookupsV2PhoneNumber, error) {
				looked = number
				return &lookups.LookupsV2PhoneNumber{Valid: boolPtr(false)}, nil
			},
		}
		svc := newTestService(api, TwilioSettings{LookupEnabled: true})

		assert.False(t, svc.ValidatePhoneNumber(ctx, "0812-3456-789"))
		assert.Equal(t, "+628123456789", looked)
	})

	t.Run("lookup failure falls back to local", func(t *testing.T) {
		api := &fakeTwilio{
			FetchPhoneNumberFunc: func(string, *lookups.FetchPhoneNumberParams) (*lookups.LookupsV2PhoneNumber, error) {
				return nil, errors.New("timeout")
			},
		}
		svc := newTestService(api, TwilioSettings{LookupEnabled: true})

		assert.True(t, svc.ValidatePhoneNumber(ctx, "+628123456789"))
	})
}
