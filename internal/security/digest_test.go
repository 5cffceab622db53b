package security

import "testing"

func TestHashToken_Consistent(t *testing.T) {
	raw := "some-remember-token-123"
	hash1 := HashToken(raw)
	hash2 := HashToken(raw)

	if hash1 != hash2 {
		t.Errorf("HashToken not consistent: hash1 = %q, hash2 = %q", hash1, hash2)
	}
	if len(hash1) != 43 {
		t.Errorf("hash length = %d, want 43 (SHA-256 base64url)", len(hash1))
	}
}

func TestHashToken_DifferentInputs(t *testing.T) {
	if HashToken("token-1") == HashToken("token-2") {
		t.Error("HashToken produced same digest for different inputs")
	}
}

func TestTokenHashEqual_CorrectMatch(t *testing.T) {
	raw := "some-remember-token-456"
	stored := HashToken(raw)

	if !TokenHashEqual(raw, stored) {
		t.Error("TokenHashEqual should match correct token")
	}
}

func TestTokenHashEqual_RejectsIncorrect(t *testing.T) {
	stored := HashToken("correct-token")
	if TokenHashEqual("wrong-token", stored) {
		t.Error("TokenHashEqual should reject incorrect token")
	}
}

func TestNewSeriesAndToken_LengthAndUniqueness(t *testing.T) {
	series, err := NewSeries()
	if err != nil {
		t.Fatalf("NewSeries: %v", err)
	}
	if len(series) < 10 {
		t.Errorf("series length = %d, want at least 10", len(series))
	}

	token, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	if len(token) < 24 {
		t.Errorf("token length = %d, want at least 24", len(token))
	}

	token2, _ := NewToken()
	if token == token2 {
		t.Error("NewToken produced the same value twice")
	}
}
