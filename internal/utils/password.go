package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword bcrypt-hashes an account password at the configured cost.
// Only the hash is ever stored by the credential store.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches the stored bcrypt hash.
// Used by both login paths; callers fold a false result into the
// generic denial response.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
