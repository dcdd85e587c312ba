package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/api/internal/models"
)

var (
	// ErrMissingCredential means no bearer token was presented.
	ErrMissingCredential = errors.New("missing credential")
	// ErrMalformedCredential means the token could not be parsed or its claims are unusable.
	ErrMalformedCredential = errors.New("malformed credential")
	// ErrExpiredOrInvalidCredential means the token failed signature or expiry checks.
	ErrExpiredOrInvalidCredential = errors.New("expired or invalid credential")
)

// Claims defines the structure of the JWT claims.
type Claims struct {
	UserID string      `json:"id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the authenticated actor behind a request.
type Identity struct {
	SubjectID primitive.ObjectID
	Role      models.Role
}

// IsAdmin reports whether the actor holds the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

// GenerateJWT creates a new JWT for a given user.
func GenerateJWT(userID primitive.ObjectID, role models.Role, secretKey string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID.Hex(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   userID.Hex(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return tokenString, nil
}

// Verifier turns bearer tokens into identities.
type Verifier struct {
	secretKey []byte
}

func NewVerifier(secretKey string) *Verifier {
	return &Verifier{secretKey: []byte(secretKey)}
}

// Verify checks the token signature and expiry and extracts the identity.
// A bare token or a full "Bearer <token>" header value are both accepted.
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	tokenString = stripBearer(tokenString)
	if tokenString == "" {
		return Identity{}, ErrMissingCredential
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return Identity{}, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrExpiredOrInvalidCredential, err)
	}
	if !token.Valid {
		return Identity{}, ErrExpiredOrInvalidCredential
	}

	subject := claims.UserID
	if subject == "" {
		subject = claims.Subject
	}
	subjectID, err := primitive.ObjectIDFromHex(subject)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: subject %q is not an object id", ErrMalformedCredential, subject)
	}
	if !claims.Role.Valid() {
		return Identity{}, fmt.Errorf("%w: unknown role %q", ErrMalformedCredential, claims.Role)
	}

	return Identity{SubjectID: subjectID, Role: claims.Role}, nil
}

// stripBearer removes a case-insensitive "Bearer" scheme and surrounding
// whitespace. A scheme with nothing after it leaves an empty string.
func stripBearer(header string) string {
	header = strings.TrimSpace(header)
	const scheme = "bearer"
	if len(header) >= len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) {
		rest := header[len(scheme):]
		if rest == "" || rest[0] == ' ' || rest[0] == '\t' {
			return strings.TrimSpace(rest)
		}
	}
	return header
}
