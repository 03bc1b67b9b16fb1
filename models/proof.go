// models/proof.go
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type ProofKind string

const (
	ProofKindFile ProofKind = "file"
	ProofKindURL  ProofKind = "url"
	ProofKindText ProofKind = "text"
)

type FileProof struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Path         string `json:"path"`
	MimeType     string `json:"mimetype"`
	Size         int64  `json:"size"`
}

type URLProof struct {
	URL string `json:"url"`
}

type TextProof struct {
	Content string `json:"content"`
}

// ProofRecord is how a task's completion was evidenced. Exactly one of File,
// URL and Text is set, matching Kind.
type ProofRecord struct {
	Kind        ProofKind
	File        *FileProof
	URL         *URLProof
	Text        *TextProof
	SubmittedAt time.Time
}

var ErrMalformedProof = errors.New("malformed proof record")

func NewFileProof(f FileProof, at time.Time) *ProofRecord {
	return &ProofRecord{Kind: ProofKindFile, File: &f, SubmittedAt: at.UTC()}
}

func NewURLProof(url string, at time.Time) *ProofRecord {
	return &ProofRecord{Kind: ProofKindURL, URL: &URLProof{URL: url}, SubmittedAt: at.UTC()}
}

func NewTextProof(content string, at time.Time) *ProofRecord {
	return &ProofRecord{Kind: ProofKindText, Text: &TextProof{Content: content}, SubmittedAt: at.UTC()}
}

// wireProof is the flat JSON layout stored in tasks.proof.
type wireProof struct {
	Type         ProofKind `json:"type"`
	Filename     *string   `json:"filename,omitempty"`
	OriginalName *string   `json:"originalName,omitempty"`
	Path         *string   `json:"path,omitempty"`
	MimeType     *string   `json:"mimetype,omitempty"`
	Size         *int64    `json:"size,omitempty"`
	URL          *string   `json:"url,omitempty"`
	Content      *string   `json:"content,omitempty"`
	SubmittedAt  time.Time `json:"submittedAt"`
}

func (p *ProofRecord) validate() error {
	set := 0
	if p.File != nil {
		set++
	}
	if p.URL != nil {
		set++
	}
	if p.Text != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("%w: %d variants populated", ErrMalformedProof, set)
	}
	switch p.Kind {
	case ProofKindFile:
		if p.File == nil || p.File.Filename == "" || p.File.Path == "" {
			return fmt.Errorf("%w: incomplete file proof", ErrMalformedProof)
		}
	case ProofKindURL:
		if p.URL == nil || p.URL.URL == "" {
			return fmt.Errorf("%w: empty url proof", ErrMalformedProof)
		}
	case ProofKindText:
		if p.Text == nil || p.Text.Content == "" {
			return fmt.Errorf("%w: empty text proof", ErrMalformedProof)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformedProof, p.Kind)
	}
	if p.SubmittedAt.IsZero() {
		return fmt.Errorf("%w: missing submittedAt", ErrMalformedProof)
	}
	return nil
}

func (p ProofRecord) MarshalJSON() ([]byte, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	w := wireProof{Type: p.Kind, SubmittedAt: p.SubmittedAt}
	switch p.Kind {
	case ProofKindFile:
		w.Filename = &p.File.Filename
		w.OriginalName = &p.File.OriginalName
		w.Path = &p.File.Path
		w.MimeType = &p.File.MimeType
		w.Size = &p.File.Size
	case ProofKindURL:
		w.URL = &p.URL.URL
	case ProofKindText:
		w.Content = &p.Text.Content
	}
	return json.Marshal(w)
}

func (p *ProofRecord) UnmarshalJSON(data []byte) error {
	var w wireProof
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}

	fileFields := w.Filename != nil || w.OriginalName != nil || w.Path != nil || w.MimeType != nil || w.Size != nil
	rec := ProofRecord{Kind: w.Type, SubmittedAt: w.SubmittedAt}
	switch w.Type {
	case ProofKindFile:
		if w.URL != nil || w.Content != nil {
			return fmt.Errorf("%w: file proof carries url/text fields", ErrMalformedProof)
		}
		rec.File = &FileProof{
			Filename:     deref(w.Filename),
			OriginalName: deref(w.OriginalName),
			Path:         deref(w.Path),
			MimeType:     deref(w.MimeType),
		}
		if w.Size != nil {
			rec.File.Size = *w.Size
		}
	case ProofKindURL:
		if fileFields || w.Content != nil {
			return fmt.Errorf("%w: url proof carries file/text fields", ErrMalformedProof)
		}
		rec.URL = &URLProof{URL: deref(w.URL)}
	case ProofKindText:
		if fileFields || w.URL != nil {
			return fmt.Errorf("%w: text proof carries file/url fields", ErrMalformedProof)
		}
		rec.Text = &TextProof{Content: deref(w.Content)}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformedProof, w.Type)
	}
	if err := rec.validate(); err != nil {
		return err
	}
	*p = rec
	return nil
}

// Encode serializes the record for tasks.proof.
func (p *ProofRecord) Encode() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func DecodeProof(raw string) (*ProofRecord, error) {
	var p ProofRecord
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		if errors.Is(err, ErrMalformedProof) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}
	return &p, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
