// Package secure encrypts document metadata in place and optionally
// signs the encrypted fields. Keys are derived from a password with
// PBKDF2-HMAC-SHA256; signatures are computed but never written into
// the document graph.
package secure

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/sha256"
	"sort"
	"time"

	"github.com/kartik4091/pdfsanitize/errs"
	"github.com/kartik4091/pdfsanitize/ir/raw"
	"github.com/kartik4091/pdfsanitize/observability"
)

// Signature is a detached signature over one encrypted field. The
// handler collects these instead of persisting them into the graph, so
// the document's byte layout stays independent of the signing key.
type Signature struct {
	Field     string
	ObjectID  int
	Algorithm SignatureAlgorithm
	Digest    []byte
	Signature []byte
}

// Stats reports what a metadata pass did. Counters only increase
// during a pass; CryptoFailures is nonzero exactly when the pass
// returned a CryptoError.
type Stats struct {
	FieldsEncrypted        int
	FieldsSigned           int
	VerificationsPerformed int
	CryptoFailures         int
	Duration               time.Duration
}

// Handler processes document metadata. Configure encryption (and
// optionally signing) before calling ProcessMetadata.
type Handler struct {
	enc    *encryptionSettings
	sig    *signatureSettings
	log    observability.Logger
	tracer observability.Tracer

	lastSignatures []Signature
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger used during processing.
func WithLogger(l observability.Logger) Option {
	return func(h *Handler) { h.log = l }
}

// WithTracer sets the tracer used during processing.
func WithTracer(t observability.Tracer) Option {
	return func(h *Handler) { h.tracer = t }
}

// New creates an unconfigured Handler.
func New(opts ...Option) *Handler {
	h := &Handler{
		log:    observability.NopLogger{},
		tracer: observability.NopTracer(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ConfigureEncryption derives the field key from keyMaterial (which
// must already be keyLength bits long) and installs the settings. On
// validation failure the handler keeps whatever settings it had
// before.
func (h *Handler) ConfigureEncryption(keyMaterial []byte, algorithm EncryptionAlgorithm, keyLength int, salt []byte, iterations int) error {
	settings, err := deriveSettings(keyMaterial, algorithm, keyLength, salt, iterations)
	if err != nil {
		return err
	}
	h.enc = settings
	h.log.Info("encryption configured",
		observability.String("algorithm", algorithm.String()),
		observability.Int("key_bits", keyLength),
		observability.Int("iterations", iterations))
	return nil
}

// ConfigureSignature installs a signing key and its certificate after
// a self test. On failure the handler keeps its previous signature
// settings.
func (h *Handler) ConfigureSignature(signer crypto.Signer, certificate []byte, algorithm SignatureAlgorithm) error {
	if len(certificate) == 0 {
		return errs.Configf("secure", "certificate must not be empty")
	}
	if err := validateSigner(signer, algorithm); err != nil {
		return err
	}
	h.sig = &signatureSettings{algorithm: algorithm, signer: signer, certificate: certificate}
	h.log.Info("signing configured", observability.String("algorithm", algorithm.String()))
	return nil
}

// LastSignatures returns the detached signatures computed by the most
// recent ProcessMetadata call.
func (h *Handler) LastSignatures() []Signature {
	out := make([]Signature, len(h.lastSignatures))
	copy(out, h.lastSignatures)
	return out
}

// ProcessMetadata encrypts every string in the Info dictionary and the
// payload of every XMP metadata stream, in place. Unlike scanning,
// metadata processing stops on the first crypto failure: a partially
// rekeyed document is worse than an unprocessed one.
func (h *Handler) ProcessMetadata(ctx context.Context, doc *raw.Document) (*Stats, error) {
	ctx, span := h.tracer.StartSpan(ctx, "secure.ProcessMetadata")
	defer span.Finish()

	if h.enc == nil {
		return nil, errs.Configf("secure", "encryption not configured")
	}

	start := time.Now()
	stats := &Stats{}
	h.lastSignatures = nil

	if infoRef, ok := doc.Info(); ok {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if info, isDict := doc.Objects[infoRef].(raw.Dictionary); isDict {
			if err := h.processInfoDict(infoRef, info, stats); err != nil {
				stats.CryptoFailures++
				stats.Duration = time.Since(start)
				span.SetError(err)
				return stats, err
			}
		}
	}

	for _, ref := range doc.SortedRefs() {
		obj := doc.Objects[ref]
		if !raw.IsMetadataStream(obj) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := h.processMetadataStream(ref, obj.(raw.Stream), stats); err != nil {
			stats.CryptoFailures++
			stats.Duration = time.Since(start)
			span.SetError(err)
			return stats, err
		}
	}

	stats.Duration = time.Since(start)
	h.log.Info("metadata processed",
		observability.Int("encrypted", stats.FieldsEncrypted),
		observability.Int("signed", stats.FieldsSigned),
		observability.Int("verified", stats.VerificationsPerformed),
		observability.Duration("duration", stats.Duration))
	return stats, nil
}

func (h *Handler) processInfoDict(ref raw.ObjectRef, info raw.Dictionary, stats *Stats) error {
	keys := info.Keys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].Value() < keys[j].Value() })
	for _, key := range keys {
		val, ok := info.Get(raw.NameLiteral(key.Value()))
		if !ok {
			continue
		}
		str, isString := val.(raw.String)
		if !isString {
			continue
		}
		ct, err := h.encrypt(str.Value())
		if err != nil {
			return errs.Cryptof("secure", "encrypt "+key.Value(), err)
		}
		str.SetValue(ct)
		stats.FieldsEncrypted++
		if err := h.signField(key.Value(), ref, ct, stats); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) processMetadataStream(ref raw.ObjectRef, stream raw.Stream, stats *Stats) error {
	ct, err := h.encrypt(stream.RawData())
	if err != nil {
		return errs.Cryptof("secure", "encrypt metadata stream", err)
	}
	stream.SetData(ct)
	if _, ok := stream.Dictionary().Get(raw.NameLiteral("Length")); ok {
		stream.Dictionary().Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(ct))))
	}
	stats.FieldsEncrypted++
	return h.signField("XMP", ref, ct, stats)
}

func (h *Handler) encrypt(plaintext []byte) ([]byte, error) {
	switch h.enc.algorithm {
	case AlgorithmAESCBC:
		return encryptAESCBC(h.enc.key, plaintext)
	case AlgorithmRC4Drop:
		return cryptRC4Drop(h.enc.key, plaintext)
	default:
		return nil, errs.Configf("secure", "unknown encryption algorithm %d", h.enc.algorithm)
	}
}

// Decrypt reverses the configured cipher for a single field value.
// Useful for verifying a pass and for authorized readers.
func (h *Handler) Decrypt(ciphertext []byte) ([]byte, error) {
	if h.enc == nil {
		return nil, errs.Configf("secure", "encryption not configured")
	}
	switch h.enc.algorithm {
	case AlgorithmAESCBC:
		return decryptAESCBC(h.enc.key, ciphertext)
	case AlgorithmRC4Drop:
		return cryptRC4Drop(h.enc.key, ciphertext)
	default:
		return nil, errs.Configf("secure", "unknown encryption algorithm %d", h.enc.algorithm)
	}
}

func (h *Handler) signField(field string, ref raw.ObjectRef, ciphertext []byte, stats *Stats) error {
	if h.sig == nil {
		return nil
	}
	digest := sha256.Sum256(ciphertext)
	sig, err := h.sig.signer.Sign(rand.Reader, digest[:], crypto.SHA256)
	if err != nil {
		return errs.Cryptof("secure", "sign "+field, err)
	}
	if err := verifySignature(h.sig.signer.Public(), h.sig.algorithm, digest[:], sig); err != nil {
		return errs.Cryptof("secure", "verify "+field, err)
	}
	stats.VerificationsPerformed++
	h.lastSignatures = append(h.lastSignatures, Signature{
		Field:     field,
		ObjectID:  ref.Num,
		Algorithm: h.sig.algorithm,
		Digest:    digest[:],
		Signature: sig,
	})
	stats.FieldsSigned++
	return nil
}
