package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78/webhook"

	"example.com/shipforward/services/forwarding/internal/domain"
)

const testSecret = "whsec_test"

func signed(t *testing.T, payload string) string {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return sp.Header
}

const completedEvent = `{
  "id": "evt_1",
  "object": "event",
  "api_version": "2020-08-27",
  "type": "checkout.session.completed",
  "data": {"object": {"id": "cs_1", "object": "checkout.session",
    "metadata": {"feeType": "Service", "orderId": "order-1", "hostId": "host-1"}}}
}`

func TestWebhookVerifier_Completed(t *testing.T) {
	v := NewWebhookVerifier(testSecret)

	got, err := v.Verify([]byte(completedEvent), signed(t, completedEvent))

	require.NoError(t, err)
	assert.Equal(t, "evt_1", got.EventID)
	assert.Equal(t, "cs_1", got.SessionID)

	md, err := domain.ParseCheckoutMetadata(got.Metadata)
	require.NoError(t, err)
	assert.Equal(t, domain.ServiceFeeMetadata{OrderID: "order-1", HostID: "host-1"}, md)
}

func TestWebhookVerifier_InvalidSignature(t *testing.T) {
	v := NewWebhookVerifier("whsec_other")

	_, err := v.Verify([]byte(completedEvent), signed(t, completedEvent))

	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestWebhookVerifier_IgnoredType(t *testing.T) {
	payload := `{"id":"evt_2","object":"event","type":"checkout.session.expired","data":{"object":{"id":"cs_2"}}}`
	v := NewWebhookVerifier(testSecret)

	_, err := v.Verify([]byte(payload), signed(t, payload))

	assert.ErrorIs(t, err, ErrIgnoredEvent)
}
