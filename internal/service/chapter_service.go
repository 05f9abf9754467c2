package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bioweaver/internal/ai"
	"github.com/xxxsen/bioweaver/internal/filestore"
	"github.com/xxxsen/bioweaver/internal/model"
	"github.com/xxxsen/bioweaver/internal/notify"
	appErr "github.com/xxxsen/bioweaver/internal/pkg/errors"
	"github.com/xxxsen/bioweaver/internal/pkg/timeutil"
)

const defaultAudioExt = ".wav"

type ChapterService struct {
	chapters    ChapterStore
	audio       filestore.Store
	transcriber Transcriber
	rewriter    Rewriter
	notifier    Notifier
}

func NewChapterService(chapters ChapterStore, audio filestore.Store, transcriber Transcriber, rewriter Rewriter, notifier Notifier) *ChapterService {
	return &ChapterService{
		chapters:    chapters,
		audio:       audio,
		transcriber: transcriber,
		rewriter:    rewriter,
		notifier:    orNop(notifier),
	}
}

type UploadInput struct {
	UserID       int64
	Title        string
	AnchorPrompt string
	SegmentIndex int
	FileName     string
	Body         io.ReadSeeker
	Size         int64
}

type ChapterPatch struct {
	Title          *string `json:"title"`
	AnchorPrompt   *string `json:"anchor_prompt"`
	Status         *string `json:"status"`
	TranscriptText *string `json:"transcript_text"`
	PolishedText   *string `json:"polished_text"`
	AudioURL       *string `json:"audio_url"`
	SegmentIndex   *int    `json:"segment_index"`
}

// Upload stores the audio, records a pending chapter and then runs the
// transcribe and rewrite steps inline. Upstream failures only leave the chapter
// pending; the returned error covers ingest and the final write.
func (s *ChapterService) Upload(ctx context.Context, in UploadInput) (*model.Chapter, error) {
	title := strings.TrimSpace(in.Title)
	if in.UserID <= 0 || title == "" || in.Body == nil {
		return nil, appErr.ErrInvalid
	}
	key := uuid.NewString() + audioExt(in.FileName)
	if err := s.audio.Save(ctx, key, in.Body, in.Size); err != nil {
		return nil, internalErr("save audio", err)
	}
	audioURL := s.audio.URL(key)
	ch := &model.Chapter{
		UserID:       in.UserID,
		Title:        title,
		AnchorPrompt: model.StringPtr(in.AnchorPrompt),
		SegmentIndex: in.SegmentIndex,
		AudioURL:     &audioURL,
		Status:       model.ChapterStatusPending,
		CreatedAt:    timeutil.NowUnix(),
	}
	if err := s.chapters.Create(ctx, ch); err != nil {
		if delErr := s.audio.Delete(ctx, key); delErr != nil {
			logutil.GetLogger(ctx).Warn("remove orphan audio failed", zap.String("key", key), zap.Error(delErr))
		}
		return nil, err
	}

	// The record exists from here on, later steps must not be cut short by the caller.
	ctx = context.WithoutCancel(ctx)
	logger := logutil.GetLogger(ctx).With(zap.Int64("chapter_id", ch.ID))
	transcript := s.transcriber.Transcribe(ctx, key, func(ctx context.Context) (io.ReadCloser, error) {
		return s.audio.Open(ctx, key)
	})
	ch.TranscriptText = model.StringPtr(transcript)
	rw := s.rewriter.Rewrite(ctx, ch.Anchor(), transcript, "")
	applyRewrite(ch, rw)
	if err := s.chapters.Update(ctx, ch); err != nil {
		logger.Error("persist processed chapter failed", zap.Error(err))
		return nil, internalErr("persist chapter", err)
	}
	logger.Info("chapter processed",
		zap.Bool("transcribed", transcript != ""), zap.String("status", ch.Status.String()))
	s.notifier.Notify(ctx, notify.Message{
		Text: fmt.Sprintf("New upload: user %d, title '%s', anchor '%s', file %s, transcribed=%s",
			ch.UserID, ch.Title, ch.Anchor(), key, yesNo(transcript != "")),
	})
	return ch, nil
}

// Polish reruns the rewrite on the stored transcript. A failed rewrite leaves
// the chapter exactly as it was.
func (s *ChapterService) Polish(ctx context.Context, chapterID int64, modelName string) (*model.Chapter, error) {
	ch, err := s.chapters.GetByID(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(ch.Transcript()) == "" {
		return nil, fmt.Errorf("%w: no transcript to polish", appErr.ErrPrecondition)
	}
	ctx = context.WithoutCancel(ctx)
	rw := s.rewriter.Rewrite(ctx, ch.Anchor(), ch.Transcript(), modelName)
	if rw.OK {
		applyRewrite(ch, rw)
		if err := s.chapters.Update(ctx, ch); err != nil {
			return nil, internalErr("persist chapter", err)
		}
	}
	s.notifier.Notify(ctx, notify.Message{
		Text: fmt.Sprintf("Chapter polished (existing): id %d, title '%s', polished=%s", ch.ID, ch.Title, yesNo(rw.OK)),
	})
	return ch, nil
}

// SubmitTranscript replaces the transcript with caller supplied text and rewrites
// it. anchor overrides the stored anchor for this rewrite only.
func (s *ChapterService) SubmitTranscript(ctx context.Context, chapterID int64, text string, anchor string, modelName string) (*model.Chapter, error) {
	ch, err := s.chapters.GetByID(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	ch.TranscriptText = model.StringPtr(text)
	ch.PolishedText = nil
	ch.PolishedByModel = nil
	ch.Status = model.ChapterStatusPending
	if strings.TrimSpace(anchor) == "" {
		anchor = ch.Anchor()
	}
	ctx = context.WithoutCancel(ctx)
	rw := s.rewriter.Rewrite(ctx, anchor, ch.Transcript(), modelName)
	applyRewrite(ch, rw)
	if err := s.chapters.Update(ctx, ch); err != nil {
		return nil, internalErr("persist chapter", err)
	}
	s.notifier.Notify(ctx, notify.Message{
		Text: fmt.Sprintf("Chapter polished: id %d, title '%s', polished=%s", ch.ID, ch.Title, yesNo(rw.OK)),
	})
	return ch, nil
}

// ProcessPending retries the rewrite for pending chapters that already carry a
// transcript and reports how many were polished.
func (s *ChapterService) ProcessPending(ctx context.Context, limit uint) (int, error) {
	items, err := s.chapters.ListPending(ctx, limit)
	if err != nil {
		return 0, err
	}
	polished := 0
	for i := range items {
		ch := &items[i]
		rw := s.rewriter.Rewrite(ctx, ch.Anchor(), ch.Transcript(), "")
		if !rw.OK {
			continue
		}
		applyRewrite(ch, rw)
		if err := s.chapters.Update(ctx, ch); err != nil {
			logutil.GetLogger(ctx).Error("persist pending chapter failed", zap.Int64("chapter_id", ch.ID), zap.Error(err))
			continue
		}
		polished++
	}
	return polished, nil
}

func (s *ChapterService) Get(ctx context.Context, chapterID int64) (*model.Chapter, error) {
	return s.chapters.GetByID(ctx, chapterID)
}

func (s *ChapterService) List(ctx context.Context, userID int64) ([]model.Chapter, error) {
	return s.chapters.List(ctx, userID)
}

func (s *ChapterService) Update(ctx context.Context, chapterID int64, patch ChapterPatch) (*model.Chapter, error) {
	ch, err := s.chapters.GetByID(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, appErr.ErrInvalid
		}
		ch.Title = title
	}
	if patch.AnchorPrompt != nil {
		ch.AnchorPrompt = patch.AnchorPrompt
	}
	if patch.Status != nil {
		status, err := model.ParseChapterStatus(*patch.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", appErr.ErrInvalid, err)
		}
		ch.Status = status
	}
	if patch.TranscriptText != nil {
		ch.TranscriptText = patch.TranscriptText
	}
	if patch.PolishedText != nil {
		ch.PolishedText = patch.PolishedText
	}
	if patch.AudioURL != nil {
		ch.AudioURL = patch.AudioURL
	}
	if patch.SegmentIndex != nil {
		ch.SegmentIndex = *patch.SegmentIndex
	}
	if err := s.chapters.Update(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// Delete removes the chapter and then, best effort, its audio.
func (s *ChapterService) Delete(ctx context.Context, chapterID int64) error {
	ch, err := s.chapters.GetByID(ctx, chapterID)
	if err != nil {
		return err
	}
	if err := s.chapters.Delete(ctx, chapterID); err != nil {
		return err
	}
	removeArtifact(ctx, s.audio, ch.AudioURL)
	return nil
}

func applyRewrite(ch *model.Chapter, rw ai.Rewrite) {
	if !rw.OK {
		return
	}
	text := rw.Text
	ch.PolishedText = &text
	ch.PolishedByModel = model.StringPtr(rw.Model)
	ch.Status = model.ChapterStatusPolished
}

func audioExt(name string) string {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(name)))
	if len(ext) < 2 || len(ext) > 6 {
		return defaultAudioExt
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return defaultAudioExt
		}
	}
	return ext
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
