package crypto

import "testing"

func TestGenerateKeyPairWireWidths(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	if len(kp.PublicHex) != KeyLen {
		t.Errorf("public key hex len = %d, want %d", len(kp.PublicHex), KeyLen)
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	msg := []byte(`{"sender":"` + kp.PublicHex + `"}`)

	sig, err := Sign(msg, kp.Private)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(sig) != SigLen {
		t.Errorf("signature hex len = %d, want %d", len(sig), SigLen)
	}
	if !Verify(sig, msg, kp.PublicHex) {
		t.Error("Verify rejected a valid signature")
	}
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	kp, _ := GenerateKeyPair()
	msg := []byte("original")
	sig, _ := Sign(msg, kp.Private)

	if Verify(sig, []byte("tampered"), kp.PublicHex) {
		t.Error("Verify accepted a signature over a different message")
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	a, _ := GenerateKeyPair()
	b, _ := GenerateKeyPair()
	msg := []byte("payload")
	sig, _ := Sign(msg, a.Private)

	if Verify(sig, msg, b.PublicHex) {
		t.Error("Verify accepted a signature under the wrong public key")
	}
}

func TestVerifyRejectsMalformedInput(t *testing.T) {
	kp, _ := GenerateKeyPair()
	if Verify("not-hex", []byte("m"), kp.PublicHex) {
		t.Error("Verify should reject non-hex signatures")
	}
	if Verify("aa", []byte("m"), "also-not-hex") {
		t.Error("Verify should reject non-hex public keys")
	}
}

func TestRandomNonceLength(t *testing.T) {
	n, err := RandomNonce()
	if err != nil {
		t.Fatalf("RandomNonce: %v", err)
	}
	if len(n) != NonceLen {
		t.Errorf("nonce len = %d, want %d", len(n), NonceLen)
	}
}
