package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

const defaultCodeLength = 6

// CodeGenerator produces the numeric codes sent by SMS.
type CodeGenerator interface {
	Generate() (string, error)
}

// DigitGenerator returns uniformly random codes of exactly Length digits; leading zeros are kept.
// Length must fit in an int64 (at most 18 digits); config caps it well below that.
type DigitGenerator struct {
	Length int
}

func (g DigitGenerator) Generate() (string, error) {
	n := g.Length
	if n <= 0 {
		n = defaultCodeLength
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	v, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", n, v.Int64()), nil
}

// FixedGenerator always returns Code. Enabled by OTP_DEV_MODE so flows can be exercised without SMS.
type FixedGenerator struct {
	Code string
}

func (g FixedGenerator) Generate() (string, error) {
	return g.Code, nil
}

// hashOTPHex returns SHA-256(phone:code:salt) as hex for storage
func hashOTPHex(phone, code, salt string) string {
	data := fmt.Sprintf("%s:%s:%s", phone, code, salt)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
