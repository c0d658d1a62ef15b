package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rassdread/homecheff-app-sub014/pkg/config"
	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
)

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "homecheff",
		ExpirationMinutes: 30,
	}
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{UserID: userID, Role: enums.UserRoleDelivery})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.Role != enums.UserRoleDelivery {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.ID == "" {
		t.Fatalf("expected jti to be generated")
	}
	if claims.Issuer != "homecheff" {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
}

func TestMintRejectsUnknownRole(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "homecheff", ExpirationMinutes: 30}
	_, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRole("CHEF")})
	if err == nil || !strings.Contains(err.Error(), "invalid user role") {
		t.Fatalf("expected invalid role error, got %v", err)
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "homecheff", ExpirationMinutes: 30}
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleBuyer})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	other := cfg
	other.Issuer = "someone-else"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatalf("expected issuer mismatch to fail")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "homecheff", ExpirationMinutes: 1}
	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleAdmin})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestParseRunsClaimValidation(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "homecheff", ExpirationMinutes: 30}
	sign := func(claims AccessTokenClaims) string {
		t.Helper()
		claims.Issuer = cfg.Issuer
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
		signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return signed
	}

	cases := map[string]AccessTokenClaims{
		"unknown role": {UserID: uuid.New(), Role: enums.UserRole("CHEF"), RegisteredClaims: jwt.RegisteredClaims{ID: "s1"}},
		"no user":      {Role: enums.UserRoleBuyer, RegisteredClaims: jwt.RegisteredClaims{ID: "s1"}},
		"no session":   {UserID: uuid.New(), Role: enums.UserRoleBuyer},
	}
	for name, claims := range cases {
		if _, err := ParseAccessToken(cfg, sign(claims)); err == nil {
			t.Fatalf("%s: expected parse to fail", name)
		}
	}
}

func TestParseToleratesSmallClockSkew(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "homecheff", ExpirationMinutes: 30}
	// minted by a web app whose clock runs ten seconds ahead
	token, err := MintAccessToken(cfg, time.Now().Add(10*time.Second), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleSeller})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err != nil {
		t.Fatalf("expected skewed token to parse: %v", err)
	}
}

func TestParseRequiresExpiry(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "homecheff", ExpirationMinutes: 30}
	claims := AccessTokenClaims{
		UserID:           uuid.New(),
		Role:             enums.UserRoleBuyer,
		RegisteredClaims: jwt.RegisteredClaims{ID: "s1", Issuer: cfg.Issuer},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(cfg, signed); err == nil {
		t.Fatal("expected token without exp to fail")
	}
	if _, err := ParseAccessToken(config.JWTConfig{Secret: "secret"}, signed); err == nil {
		t.Fatal("expected missing issuer config to fail")
	}
}
