package secure

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"

	"github.com/kartik4091/pdfsanitize/errs"
)

// EncryptionAlgorithm selects the field cipher.
type EncryptionAlgorithm int

const (
	// AlgorithmAESCBC encrypts with AES in CBC mode, PKCS#7 padding,
	// and a fresh random IV prepended to each ciphertext.
	AlgorithmAESCBC EncryptionAlgorithm = iota
	// AlgorithmRC4Drop encrypts with RC4, discarding the first 128
	// keystream bytes. Length-preserving.
	AlgorithmRC4Drop
)

func (a EncryptionAlgorithm) String() string {
	switch a {
	case AlgorithmAESCBC:
		return "aes-cbc"
	case AlgorithmRC4Drop:
		return "rc4-drop128"
	default:
		return "unknown"
	}
}

// SignatureAlgorithm selects how field signatures are produced.
type SignatureAlgorithm int

const (
	SignatureRSAPKCS1SHA256 SignatureAlgorithm = iota
	SignatureECDSAP256SHA256
)

func (a SignatureAlgorithm) String() string {
	switch a {
	case SignatureRSAPKCS1SHA256:
		return "rsa-pkcs1-sha256"
	case SignatureECDSAP256SHA256:
		return "ecdsa-p256-sha256"
	default:
		return "unknown"
	}
}

// minSaltLen and minIterations are floor values for key derivation.
// Weaker parameters are rejected outright.
const (
	minSaltLen    = 16
	minIterations = 10000
)

type encryptionSettings struct {
	algorithm EncryptionAlgorithm
	keyLength int // bits
	key       []byte
}

type signatureSettings struct {
	algorithm   SignatureAlgorithm
	signer      crypto.Signer
	certificate []byte
}

// deriveSettings validates parameters and derives the field key with
// PBKDF2-HMAC-SHA256. It returns an error without side effects, so a
// failed reconfiguration leaves the caller's previous settings intact.
// The supplied key material is never used directly; only its derived
// form is retained.
func deriveSettings(keyMaterial []byte, algorithm EncryptionAlgorithm, keyLength int, salt []byte, iterations int) (*encryptionSettings, error) {
	switch keyLength {
	case 128, 192, 256:
	default:
		return nil, errs.Configf("secure", "key length must be 128, 192 or 256 bits, got %d", keyLength)
	}
	if len(keyMaterial)*8 != keyLength {
		return nil, errs.Configf("secure", "supplied key material is %d bits, want %d", len(keyMaterial)*8, keyLength)
	}
	if len(salt) < minSaltLen {
		return nil, errs.Configf("secure", "salt must be at least %d bytes, got %d", minSaltLen, len(salt))
	}
	if iterations < minIterations {
		return nil, errs.Configf("secure", "iterations must be at least %d, got %d", minIterations, iterations)
	}
	key := pbkdf2.Key(keyMaterial, salt, iterations, keyLength/8, sha256.New)
	if len(key)*8 != keyLength {
		return nil, errs.Configf("secure", "derived key is %d bits, want %d", len(key)*8, keyLength)
	}
	return &encryptionSettings{
		algorithm: algorithm,
		keyLength: keyLength,
		key:       key,
	}, nil
}

// validateSigner checks the key type against the algorithm and runs a
// sign/verify round trip so a broken key fails at configuration time,
// not mid-document.
func validateSigner(signer crypto.Signer, algorithm SignatureAlgorithm) error {
	if signer == nil {
		return errs.Configf("secure", "signature key is nil")
	}
	digest := sha256.Sum256([]byte("signer self test"))
	sig, err := signer.Sign(rand.Reader, digest[:], crypto.SHA256)
	if err != nil {
		return errs.Cryptof("secure", "signer self test", err)
	}
	return verifySignature(signer.Public(), algorithm, digest[:], sig)
}

// verifySignature checks sig over digest against the key type the
// algorithm demands.
func verifySignature(public crypto.PublicKey, algorithm SignatureAlgorithm, digest, sig []byte) error {
	switch algorithm {
	case SignatureRSAPKCS1SHA256:
		pub, ok := public.(*rsa.PublicKey)
		if !ok {
			return errs.Configf("secure", "rsa algorithm requires an RSA key, got %T", public)
		}
		if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest, sig); err != nil {
			return errs.Cryptof("secure", "signature verify", err)
		}
	case SignatureECDSAP256SHA256:
		pub, ok := public.(*ecdsa.PublicKey)
		if !ok {
			return errs.Configf("secure", "ecdsa algorithm requires an ECDSA key, got %T", public)
		}
		if pub.Curve != elliptic.P256() {
			return errs.Configf("secure", "ecdsa key must use P-256, got %s", pub.Curve.Params().Name)
		}
		if !ecdsa.VerifyASN1(pub, digest, sig) {
			return errs.Cryptof("secure", "signature verify", errs.Configf("secure", "signature did not verify"))
		}
	default:
		return errs.Configf("secure", "unknown signature algorithm %d", algorithm)
	}
	return nil
}
