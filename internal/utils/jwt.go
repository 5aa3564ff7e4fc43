package utils // helper for minting holder access tokens

import (
    "time"

    "github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed HS256 JWT naming a holder, together with its
// expiry.  The admission API identifies holders purely by the token's
// subject; issuing tokens is otherwise outside the engine's scope.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// NewAccessToken signs a token whose subject is the holder id.  The
// claims are the standard sub, exp and iat.
func NewAccessToken(secret, holderID string, ttl time.Duration) (AccessToken, error) {
    exp := time.Now().UTC().Add(ttl)
    claims := jwt.MapClaims{
        "sub": holderID,
        "exp": exp.Unix(),
        "iat": time.Now().UTC().Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}
