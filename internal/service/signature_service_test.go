package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHMACSignatureService_SignDeterministic(t *testing.T) {
	svc := NewHMACSignatureService()

	payload := []byte(`{"event_type":"PAYMENT.CAPTURE.COMPLETED"}`)
	sig1 := svc.Sign("secret", payload)
	sig2 := svc.Sign("secret", payload)

	assert.Equal(t, sig1, sig2)
	assert.Len(t, sig1, 64, "hex-encoded SHA-256 output")
}

func TestHMACSignatureService_Verify(t *testing.T) {
	svc := NewHMACSignatureService()
	payload := []byte("webhook body")

	sig := svc.Sign("secret", payload)

	assert.True(t, svc.Verify("secret", payload, sig))
	assert.False(t, svc.Verify("wrong-secret", payload, sig))
	assert.False(t, svc.Verify("secret", []byte("tampered body"), sig))
	assert.False(t, svc.Verify("secret", payload, "deadbeef"))
	assert.False(t, svc.Verify("secret", payload, ""))
}

func TestHMACSignatureService_DifferentSecrets(t *testing.T) {
	svc := NewHMACSignatureService()
	payload := []byte("same payload")

	assert.NotEqual(t, svc.Sign("secret-a", payload), svc.Sign("secret-b", payload))
}
