package service

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bioweaver/internal/filestore"
	"github.com/xxxsen/bioweaver/internal/model"
	"github.com/xxxsen/bioweaver/internal/notify"
	appErr "github.com/xxxsen/bioweaver/internal/pkg/errors"
	"github.com/xxxsen/bioweaver/internal/pkg/timeutil"
)

const (
	DemoEmail      = "demo@bioweaver.local"
	demoName       = "Dr. Demo"
	demoModel      = "demo/seed-data"
	demoAudioKey   = "demo-silence.wav"
	demoBookKey    = "demo-book.txt"
	demoBookTitle  = "Demo Memory Book"
	demoBookDesc   = "Seeded demo output"
	demoChapterMax = 20
)

var demoAnchors = []string{
	"The Stethoscope",
	"Old Clinic Sign",
	"Night Shift Pager",
	"First White Coat",
	"The Waiting Room Clock",
	"A Handwritten Prescription",
	"The Ambulance Siren",
	"A Cup of Cold Tea",
	"The Ward Window",
	"A Family Photo",
	"The Operating Lamp",
	"A Patient’s Letter",
	"The Hospital Elevator",
	"Rain on the Roof",
	"A Broken Pen",
	"The Library Card",
	"The Village Road",
	"A Wedding Invitation",
	"A Retirement Badge",
	"The Final Rounds",
}

type SeedUser struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type SeedResult struct {
	User            SeedUser `json:"user"`
	CreatedChapters int      `json:"created_chapters"`
	CreatedBooks    int      `json:"created_books"`
	AudioURL        string   `json:"audio_url"`
	BookURL         string   `json:"book_url"`
}

type ClearResult struct {
	DeletedUser     *string `json:"deleted_user"`
	DeletedChapters int     `json:"deleted_chapters"`
	DeletedBooks    int     `json:"deleted_books"`
}

type SeedService struct {
	users    UserStore
	chapters ChapterStore
	books    BookStore
	audio    filestore.Store
	bookFile filestore.Store
	notifier Notifier
}

func NewSeedService(users UserStore, chapters ChapterStore, books BookStore, audio filestore.Store, bookFile filestore.Store, notifier Notifier) *SeedService {
	return &SeedService{
		users:    users,
		chapters: chapters,
		books:    books,
		audio:    audio,
		bookFile: bookFile,
		notifier: orNop(notifier),
	}
}

// SeedDemo creates the demo user with its chapters and book. Running it again
// only fills in what is missing.
func (s *SeedService) SeedDemo(ctx context.Context) (*SeedResult, error) {
	user, err := s.users.GetByEmail(ctx, DemoEmail)
	if errors.Is(err, appErr.ErrNotFound) {
		user = &model.User{Name: demoName, Email: DemoEmail, CreatedAt: timeutil.NowUnix()}
		err = s.users.Create(ctx, user)
	}
	if err != nil {
		return nil, err
	}

	wav := SilentWAV(8000, 1)
	if err := s.audio.Save(ctx, demoAudioKey, bytes.NewReader(wav), int64(len(wav))); err != nil {
		return nil, internalErr("save demo audio", err)
	}
	audioURL := s.audio.URL(demoAudioKey)

	existing, err := s.chapters.List(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	seeded := make(map[int]bool, len(existing))
	for _, ch := range existing {
		seeded[ch.SegmentIndex] = true
	}
	created := 0
	for i := 0; i < demoChapterMax; i++ {
		if seeded[i] {
			continue
		}
		ch := demoChapter(user.ID, i, audioURL)
		if err := s.chapters.Create(ctx, ch); err != nil {
			return nil, err
		}
		created++
	}

	books, err := s.books.List(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	bookURL := s.bookFile.URL(demoBookKey)
	createdBooks := 0
	if len(books) == 0 {
		chapters, err := s.chapters.List(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		content := []byte(demoBookBody(chapters))
		if err := s.bookFile.Save(ctx, demoBookKey, bytes.NewReader(content), int64(len(content))); err != nil {
			return nil, internalErr("save demo book", err)
		}
		desc := demoBookDesc
		book := &model.Book{
			UserID:      user.ID,
			Title:       demoBookTitle,
			Description: &desc,
			PDFURL:      &bookURL,
			CreatedAt:   timeutil.NowUnix(),
		}
		if err := s.books.Create(ctx, book); err != nil {
			return nil, err
		}
		createdBooks = 1
	}

	logutil.GetLogger(ctx).Info("demo data seeded",
		zap.Int64("user_id", user.ID), zap.Int("chapters", created), zap.Int("books", createdBooks))
	s.notifier.Notify(ctx, notify.Message{
		Text: fmt.Sprintf("Demo seeded: user %s, chapters +%d, books +%d", user.Email, created, createdBooks),
	})
	return &SeedResult{
		User:            SeedUser{ID: user.ID, Email: user.Email, Name: user.Name},
		CreatedChapters: created,
		CreatedBooks:    createdBooks,
		AudioURL:        audioURL,
		BookURL:         bookURL,
	}, nil
}

// ClearDemo removes the demo user, its records and the demo files.
func (s *SeedService) ClearDemo(ctx context.Context) (*ClearResult, error) {
	result := &ClearResult{}
	user, err := s.users.GetByEmail(ctx, DemoEmail)
	switch {
	case errors.Is(err, appErr.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		chapters, err := s.chapters.List(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		books, err := s.books.List(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		if err := s.users.Delete(ctx, user.ID); err != nil {
			return nil, err
		}
		email := user.Email
		result.DeletedUser = &email
		result.DeletedChapters = len(chapters)
		result.DeletedBooks = len(books)
	}
	for _, item := range []struct {
		store filestore.Store
		key   string
	}{{s.audio, demoAudioKey}, {s.bookFile, demoBookKey}} {
		if err := item.store.Delete(ctx, item.key); err != nil {
			logutil.GetLogger(ctx).Warn("delete demo file failed", zap.String("key", item.key), zap.Error(err))
		}
	}
	return result, nil
}

func demoChapter(userID int64, i int, audioURL string) *model.Chapter {
	anchor := demoAnchors[i]
	title := fmt.Sprintf("Chapter %d: %s", i+1, anchor)
	if i == 0 || i == 6 || i == 12 {
		title += " (Segment 1 of 2)"
	}
	transcript := fmt.Sprintf("I remember %s—how it sat there, ordinary, until it became a doorway.\n"+
		"The scene returns in fragments: smells of antiseptic, murmurs in corridors, a pulse under my fingertips.",
		strings.ToLower(anchor))
	ch := &model.Chapter{
		UserID:         userID,
		Title:          title,
		AnchorPrompt:   model.StringPtr(anchor),
		SegmentIndex:   i,
		AudioURL:       model.StringPtr(audioURL),
		TranscriptText: model.StringPtr(transcript),
		Status:         model.ChapterStatusPending,
		CreatedAt:      timeutil.NowUnix(),
	}
	if i < 6 || i >= 10 {
		polished := fmt.Sprintf("Anchor: %s.\n"+
			"It begins in my palm—cool metal, warm purpose.\n"+
			"Then the montage: a village clinic at dawn, a crowded ward at midnight, a quiet promise whispered over a heartbeat.\n"+
			"And at the end, the echo: healing is time, lent to us, and never truly owned.", anchor)
		ch.PolishedText = model.StringPtr(polished)
		ch.PolishedByModel = model.StringPtr(demoModel)
		ch.Status = model.ChapterStatusPolished
	}
	return ch
}

func demoBookBody(chapters []model.Chapter) string {
	var sb strings.Builder
	sb.WriteString("# BioWeaver Demo Book\n\n")
	for i := range chapters {
		sb.WriteString("## " + chapters[i].Title + "\n\n")
		sb.WriteString(chapters[i].BookText() + "\n\n")
	}
	return sb.String()
}

// SilentWAV builds a mono 16-bit PCM wav of the given length filled with silence.
func SilentWAV(sampleRate int, seconds int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	blockAlign := channels * bitsPerSample / 8
	dataSize := sampleRate * seconds * blockAlign
	buf := bytes.NewBuffer(make([]byte, 0, 44+dataSize))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}
