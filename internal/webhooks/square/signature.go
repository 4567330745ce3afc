package square

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
)

// SignatureHeader is the header Square uses for webhook signatures.
const SignatureHeader = "x-square-hmacsha256-signature"

// VerifySignature checks the HMAC-SHA256 signature Square computes over the
// notification URL concatenated with the raw request body.
func VerifySignature(secret, notificationURL string, body []byte, signature string) error {
	if signature == "" {
		return pkgerrors.New(pkgerrors.CodeMissingSignature, "webhook signature header missing")
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(notificationURL))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return pkgerrors.New(pkgerrors.CodeInvalidSignature, "webhook signature mismatch")
	}
	return nil
}
