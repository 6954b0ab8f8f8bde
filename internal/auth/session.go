package auth

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Tokens are signed with an ed25519 pair held in memory. With no key paths
// configured a fresh pair is generated at startup, which invalidates tokens
// across restarts; persistent deployments point PRESINA_JWT_PRIVATE_KEY and
// PRESINA_JWT_PUBLIC_KEY at key files.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	tokenTTL time.Duration
)

const defaultTokenTTL = 72 * time.Hour

func parseTokenTTL() {
	raw := os.Getenv("TOKEN_EXPIRE_TIME")
	switch raw {
	case "", "never", "0":
		tokenTTL = 0
		if raw == "" {
			tokenTTL = defaultTokenTTL
		}
	default:
		d, err := time.ParseDuration(raw)
		if err != nil {
			fmt.Printf("failed to parse TOKEN_EXPIRE_TIME: %v\n", err)
			os.Exit(1)
		}
		tokenTTL = d
	}
}

// Init loads the signing keys from the configured paths, or generates an
// ephemeral pair when none are set.
func Init() error {
	privPath := os.Getenv("PRESINA_JWT_PRIVATE_KEY")
	pubPath := os.Getenv("PRESINA_JWT_PUBLIC_KEY")
	if privPath != "" && pubPath != "" {
		privData, err := os.ReadFile(privPath)
		if err != nil {
			return fmt.Errorf("reading private key: %w", err)
		}
		pubData, err := os.ReadFile(pubPath)
		if err != nil {
			return fmt.Errorf("reading public key: %w", err)
		}
		privateKey = ed25519.PrivateKey(privData)
		publicKey = ed25519.PublicKey(pubData)
		parseTokenTTL()
		return nil
	}

	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("generating ed25519 key pair: %w", err)
	}
	parseTokenTTL()
	return nil
}

// CreateJWT issues a signed token with "sub" = userID.
func CreateJWT(userID string) (string, error) {
	claims := jwt.MapClaims{"sub": userID}
	if tokenTTL > 0 {
		claims["exp"] = time.Now().Add(tokenTTL).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// AuthenticateJWT verifies a token and returns its "sub" claim.
func AuthenticateJWT(tokenString string) (string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return "", fmt.Errorf("invalid token")
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid jwt claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return "", fmt.Errorf("missing sub in jwt")
	}
	return sub, nil
}
