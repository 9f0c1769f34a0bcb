package secure

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/kartik4091/pdfsanitize/errs"
	"github.com/kartik4091/pdfsanitize/ir/raw"
)

var (
	testSalt = bytes.Repeat([]byte{0xA5}, 16)
	testKey  = bytes.Repeat([]byte{0x42}, 32) // 256 bits
)

func configuredHandler(t *testing.T, algorithm EncryptionAlgorithm) *Handler {
	t.Helper()
	h := New()
	if err := h.ConfigureEncryption(testKey, algorithm, 256, testSalt, 10000); err != nil {
		t.Fatalf("ConfigureEncryption failed: %v", err)
	}
	return h
}

func metadataDoc() *raw.Document {
	doc := raw.NewDocument()
	info := raw.Dict()
	info.Set(raw.NameLiteral("Title"), raw.Str([]byte("Quarterly Report")))
	info.Set(raw.NameLiteral("Author"), raw.Str([]byte("J. Smith")))
	info.Set(raw.NameLiteral("Producer"), raw.Str([]byte("Acrobat Distiller")))
	doc.Objects[raw.ObjectRef{Num: 2}] = info
	doc.SetInfo(raw.ObjectRef{Num: 2})

	xmpDict := raw.Dict()
	xmpDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Metadata"))
	xmpDict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("XML"))
	xmpDict.Set(raw.NameLiteral("Length"), raw.NumberInt(24))
	doc.Objects[raw.ObjectRef{Num: 5}] = raw.NewStream(xmpDict, []byte("<x:xmpmeta>data</x:xmpmeta>"))
	return doc
}

func TestAESEncryptionExpandsAndRoundTrips(t *testing.T) {
	h := configuredHandler(t, AlgorithmAESCBC)
	plaintext := []byte("test data") // 9 bytes

	ct, err := h.encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if len(ct) <= len(plaintext) {
		t.Errorf("AES-CBC output length %d should exceed input length %d", len(ct), len(plaintext))
	}
	pt, err := h.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Errorf("round trip mismatch: %q != %q", pt, plaintext)
	}

	// Fresh IV per call: identical plaintexts must not share ciphertext.
	ct2, err := h.encrypt(plaintext)
	if err != nil {
		t.Fatalf("second encrypt failed: %v", err)
	}
	if bytes.Equal(ct, ct2) {
		t.Error("two encryptions of the same plaintext produced identical output")
	}
}

func TestRC4EncryptionPreservesLength(t *testing.T) {
	h := configuredHandler(t, AlgorithmRC4Drop)
	plaintext := []byte("test data")

	ct, err := h.encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if len(ct) != len(plaintext) {
		t.Errorf("RC4 output length %d, want %d", len(ct), len(plaintext))
	}
	if bytes.Equal(ct, plaintext) {
		t.Error("ciphertext equals plaintext")
	}
	pt, err := h.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Errorf("round trip mismatch: %q != %q", pt, plaintext)
	}
}

func TestConfigureEncryptionValidation(t *testing.T) {
	h := New()
	cases := []struct {
		name       string
		key        []byte
		keyLength  int
		salt       []byte
		iterations int
	}{
		{"bad key length", testKey[:12], 100, testSalt, 10000},
		{"key bit-length mismatch", testKey[:16], 256, testSalt, 10000},
		{"short salt", testKey, 256, testSalt[:8], 10000},
		{"weak iterations", testKey, 256, testSalt, 1000},
	}
	for _, tc := range cases {
		err := h.ConfigureEncryption(tc.key, AlgorithmAESCBC, tc.keyLength, tc.salt, tc.iterations)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		var cerr *errs.ConfigurationError
		if !errors.As(err, &cerr) {
			t.Errorf("%s: expected ConfigurationError, got %T", tc.name, err)
		}
	}
}

func TestFailedReconfigurationKeepsPriorSettings(t *testing.T) {
	h := configuredHandler(t, AlgorithmAESCBC)
	prior := h.enc

	err := h.ConfigureEncryption(testKey, AlgorithmRC4Drop, 256, testSalt, 1000)
	if err == nil {
		t.Fatal("expected weak iteration count to fail")
	}
	if h.enc != prior {
		t.Error("failed reconfiguration must leave prior settings in place")
	}
	if _, err := h.encrypt([]byte("still works")); err != nil {
		t.Errorf("handler unusable after failed reconfiguration: %v", err)
	}
}

func TestProcessMetadataRequiresConfiguration(t *testing.T) {
	h := New()
	_, err := h.ProcessMetadata(context.Background(), metadataDoc())
	if err == nil {
		t.Fatal("expected error for unconfigured handler")
	}
	var cerr *errs.ConfigurationError
	if !errors.As(err, &cerr) {
		t.Errorf("expected ConfigurationError, got %T", err)
	}
}

func TestProcessMetadataEncryptsInfoAndXMP(t *testing.T) {
	h := configuredHandler(t, AlgorithmAESCBC)
	doc := metadataDoc()

	stats, err := h.ProcessMetadata(context.Background(), doc)
	if err != nil {
		t.Fatalf("ProcessMetadata failed: %v", err)
	}
	if stats.FieldsEncrypted != 4 { // 3 info strings + 1 XMP stream
		t.Errorf("fields encrypted = %d, want 4", stats.FieldsEncrypted)
	}

	info := doc.Objects[raw.ObjectRef{Num: 2}].(raw.Dictionary)
	title, _ := raw.DictString(info, "Title")
	if bytes.Equal(title, []byte("Quarterly Report")) {
		t.Error("Title still plaintext after processing")
	}
	pt, err := h.Decrypt(title)
	if err != nil || !bytes.Equal(pt, []byte("Quarterly Report")) {
		t.Errorf("Title did not decrypt back: %q, %v", pt, err)
	}

	xmp := doc.Objects[raw.ObjectRef{Num: 5}].(raw.Stream)
	if bytes.Contains(xmp.RawData(), []byte("xmpmeta")) {
		t.Error("XMP payload still plaintext after processing")
	}
	if length, ok := raw.DictInt(xmp.Dictionary(), "Length"); !ok || length != xmp.Length() {
		t.Errorf("Length entry %d does not match payload %d", length, xmp.Length())
	}
}

func TestProcessMetadataSignsFields(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	h := configuredHandler(t, AlgorithmAESCBC)
	if err := h.ConfigureSignature(key, []byte("test-cert"), SignatureECDSAP256SHA256); err != nil {
		t.Fatalf("ConfigureSignature failed: %v", err)
	}

	doc := metadataDoc()
	objectsBefore := len(doc.Objects)

	stats, err := h.ProcessMetadata(context.Background(), doc)
	if err != nil {
		t.Fatalf("ProcessMetadata failed: %v", err)
	}
	if stats.FieldsSigned != stats.FieldsEncrypted {
		t.Errorf("signed %d != encrypted fields %d", stats.FieldsSigned, stats.FieldsEncrypted)
	}
	if stats.VerificationsPerformed != stats.FieldsSigned {
		t.Errorf("verifications %d != signed %d", stats.VerificationsPerformed, stats.FieldsSigned)
	}
	if stats.CryptoFailures != 0 {
		t.Errorf("crypto failures = %d, want 0", stats.CryptoFailures)
	}

	sigs := h.LastSignatures()
	if len(sigs) != stats.FieldsSigned {
		t.Fatalf("LastSignatures returned %d, want %d", len(sigs), stats.FieldsSigned)
	}
	for _, sig := range sigs {
		if !ecdsa.VerifyASN1(&key.PublicKey, sig.Digest, sig.Signature) {
			t.Errorf("signature over %s does not verify", sig.Field)
		}
	}

	// Signatures stay detached from the document.
	if len(doc.Objects) != objectsBefore {
		t.Errorf("object count changed from %d to %d; signatures must not be persisted", objectsBefore, len(doc.Objects))
	}
}

func TestConfigureSignatureRejectsMismatchedKey(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	h := New()
	if err := h.ConfigureSignature(key, []byte("test-cert"), SignatureRSAPKCS1SHA256); err == nil {
		t.Error("ECDSA key with RSA algorithm should fail")
	}
	if err := h.ConfigureSignature(key, nil, SignatureECDSAP256SHA256); err == nil {
		t.Error("empty certificate should fail")
	}
	if h.sig != nil {
		t.Error("failed configuration must not install signature settings")
	}
}
