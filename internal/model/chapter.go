package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

type ChapterStatus string

const (
	ChapterStatusPending  ChapterStatus = "pending"
	ChapterStatusPolished ChapterStatus = "polished"
)

func ParseChapterStatus(v string) (ChapterStatus, error) {
	s := ChapterStatus(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown chapter status %q", v)
	}
	return s, nil
}

func (s ChapterStatus) Valid() bool {
	return s == ChapterStatusPending || s == ChapterStatusPolished
}

func (s ChapterStatus) String() string {
	return string(s)
}

func (s ChapterStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown chapter status %q", string(s))
	}
	return string(s), nil
}

func (s *ChapterStatus) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("scan chapter status: unsupported type %T", src)
	}
	parsed, err := ParseChapterStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type Chapter struct {
	ID              int64         `json:"id"`
	UserID          int64         `json:"user_id"`
	Title           string        `json:"title"`
	AnchorPrompt    *string       `json:"anchor_prompt"`
	SegmentIndex    int           `json:"segment_index"`
	AudioURL        *string       `json:"audio_url"`
	TranscriptText  *string       `json:"transcript_text"`
	PolishedText    *string       `json:"polished_text"`
	PolishedByModel *string       `json:"polished_by_model"`
	Status          ChapterStatus `json:"status"`
	CreatedAt       int64         `json:"created_at"`
}

func (c *Chapter) Transcript() string {
	return Deref(c.TranscriptText)
}

func (c *Chapter) Anchor() string {
	return Deref(c.AnchorPrompt)
}

// BookText is the text a book uses for this chapter: polished, then raw, then nothing.
func (c *Chapter) BookText() string {
	if v := Deref(c.PolishedText); v != "" {
		return v
	}
	return Deref(c.TranscriptText)
}

// StringPtr returns nil for blank strings so optional columns stay NULL.
func StringPtr(v string) *string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return &v
}

func Deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
