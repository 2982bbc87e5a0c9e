package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/youmark/pkcs8"
)

// loadPrivateKey materializes the key-pair credential, if any. A path and
// inline PEM bytes are alternatives; inline bytes win when both are set.
func loadPrivateKey(in Inputs) (*rsa.PrivateKey, error) {
	pemBytes := in.PrivateKey
	if len(pemBytes) == 0 && in.PrivateKeyPath != "" {
		data, err := os.ReadFile(in.PrivateKeyPath)
		if err != nil {
			return nil, &Error{Reason: fmt.Sprintf("cannot read private key %s: %v", in.PrivateKeyPath, err)}
		}
		pemBytes = data
	}
	if len(pemBytes) == 0 {
		return nil, nil
	}
	return parsePrivateKey(pemBytes, in.PrivateKeyPassphrase)
}

func parsePrivateKey(pemBytes []byte, passphrase string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, &Error{Reason: "private key is not valid PEM"}
	}

	switch block.Type {
	case "ENCRYPTED PRIVATE KEY":
		if passphrase == "" {
			return nil, &Error{Reason: "private key is encrypted but no passphrase was provided"}
		}
		key, err := pkcs8.ParsePKCS8PrivateKeyRSA(block.Bytes, []byte(passphrase))
		if err != nil {
			return nil, &Error{Reason: fmt.Sprintf("cannot decrypt private key: %v", err)}
		}
		return key, nil

	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, &Error{Reason: fmt.Sprintf("cannot parse private key: %v", err)}
		}
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, &Error{Reason: fmt.Sprintf("private key is %T, want RSA", parsed)}
		}
		return rsaKey, nil

	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, &Error{Reason: fmt.Sprintf("cannot parse private key: %v", err)}
		}
		return key, nil

	default:
		return nil, &Error{Reason: fmt.Sprintf("unsupported private key PEM type %q", block.Type)}
	}
}
