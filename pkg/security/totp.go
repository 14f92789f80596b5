package security

import (
	"bytes"
	"crypto/subtle"
	"encoding/base64"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod = 30
	totpSkew   = 1
	qrSize     = 200
)

type TOTP struct {
	Issuer string
}

type TOTPKey struct {
	Secret string
	URL    string
	// PNG of URL as a data URI, ready for an <img> tag
	QRCode string
}

func NewTOTP(issuer string) *TOTP {
	return &TOTP{Issuer: issuer}
}

// Generate creates a fresh shared secret for account.
func (t *TOTP) Generate(account string) (*TOTPKey, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.Issuer,
		AccountName: account,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}

	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	return &TOTPKey{
		Secret: key.Secret(),
		URL:    key.URL(),
		QRCode: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// Validate checks code against secret at now, accepting one step of clock skew
// either way.
func (t *TOTP) Validate(code, secret string, now time.Time) bool {
	_, ok := t.Match(code, secret, now)
	return ok
}

// Match is Validate that also returns the time step the code belongs to, so
// callers can refuse a code that was already used.
func (t *TOTP) Match(code, secret string, now time.Time) (int64, bool) {
	if len(code) != 6 {
		return 0, false
	}

	opts := totp.ValidateOpts{
		Period:    totpPeriod,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}

	current := now.Unix() / totpPeriod
	for step := current - totpSkew; step <= current+totpSkew; step++ {
		want, err := totp.GenerateCodeCustom(secret, time.Unix(step*totpPeriod, 0), opts)
		if err != nil {
			return 0, false
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return step, true
		}
	}
	return 0, false
}
