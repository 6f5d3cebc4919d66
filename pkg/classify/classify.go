// Package classify decides whether a candidate enters the collection:
// it validates the category against the closed set, fingerprints the
// image for dedup, and applies the size constraints. Classification is
// a pure function of the candidate and the known-fingerprint set; it
// never touches disk or network.
package classify

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	errs "cheeseagent/pkg/errors"
	"cheeseagent/pkg/source"
)

// fingerprintLen truncates the sha256 hex to keep ids filename-friendly.
const fingerprintLen = 16

// Classifier holds the validation limits applied to every candidate.
type Classifier struct {
	MinWidth    int
	MinHeight   int
	MaxFileSize int64
}

// Result is an accepted candidate's identity.
type Result struct {
	// Fingerprint is the stable content identifier used for dedup and
	// as the ScrapedItem id.
	Fingerprint string
	Width       int
	Height      int
}

// KnownFunc reports whether a fingerprint is already recorded.
type KnownFunc func(fingerprint string) bool

// Fingerprint computes the stable identifier for a candidate: sha256
// of the image bytes when available, else of the canonical URL.
func Fingerprint(c source.Candidate) string {
	var sum [sha256.Size]byte
	if len(c.Data) > 0 {
		sum = sha256.Sum256(c.Data)
	} else {
		sum = sha256.Sum256([]byte(c.URL))
	}
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// Classify validates a candidate whose bytes have been resolved.
// Rejections come back as candidate_rejected errors; the caller skips
// the candidate and moves on.
func (cl *Classifier) Classify(c source.Candidate, known KnownFunc) (Result, error) {
	if !c.Category.Valid() {
		return Result{}, errs.New(errs.ErrorTypeCandidateRejected,
			"unrecognized category %q", c.Category)
	}
	if len(c.Data) == 0 {
		return Result{}, errs.New(errs.ErrorTypeCandidateRejected,
			"candidate has no image bytes")
	}
	if cl.MaxFileSize > 0 && int64(len(c.Data)) > cl.MaxFileSize {
		return Result{}, errs.New(errs.ErrorTypeCandidateRejected,
			"image is %d bytes, over the %d byte limit", len(c.Data), cl.MaxFileSize)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(c.Data))
	if err != nil {
		return Result{}, errs.Wrap(errs.ErrorTypeCandidateRejected, err,
			"bytes are not a decodable image")
	}
	if cfg.Width < cl.MinWidth || cfg.Height < cl.MinHeight {
		return Result{}, errs.New(errs.ErrorTypeCandidateRejected,
			"image is %dx%d, below the %dx%d minimum", cfg.Width, cfg.Height, cl.MinWidth, cl.MinHeight)
	}

	fp := Fingerprint(c)
	if known != nil && known(fp) {
		return Result{}, errs.New(errs.ErrorTypeCandidateRejected,
			"duplicate of already scraped item %s", fp)
	}

	return Result{Fingerprint: fp, Width: cfg.Width, Height: cfg.Height}, nil
}

// IsRejection reports whether err is a per-candidate rejection, which a
// run recovers from by skipping the candidate.
func IsRejection(err error) bool {
	return errs.IsType(err, errs.ErrorTypeCandidateRejected)
}
