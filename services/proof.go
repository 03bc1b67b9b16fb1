// services/proof.go
package services

import (
	"net/url"
	"strings"

	"task-staking-system/blob"
	"task-staking-system/models"
)

// ProofInput carries whatever proof fields came with a submission. More than
// one may be set; SelectProof decides which one counts.
type ProofInput struct {
	File *blob.Upload
	URL  string
	Text string
}

// SelectProof applies the precedence file > url > text. Empty values count
// as absent.
func SelectProof(in ProofInput) (models.ProofKind, bool) {
	switch {
	case in.File != nil && in.File.Size > 0:
		return models.ProofKindFile, true
	case strings.TrimSpace(in.URL) != "":
		return models.ProofKindURL, true
	case strings.TrimSpace(in.Text) != "":
		return models.ProofKindText, true
	default:
		return "", false
	}
}

func validProofURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
