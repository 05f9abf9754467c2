package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/bioweaver/internal/ai"
	"github.com/xxxsen/bioweaver/internal/filestore"
	"github.com/xxxsen/bioweaver/internal/model"
	"github.com/xxxsen/bioweaver/internal/notify"
	appErr "github.com/xxxsen/bioweaver/internal/pkg/errors"
)

type memDB struct {
	mu        sync.Mutex
	nextID    int64
	users     map[int64]model.User
	chapters  map[int64]model.Chapter
	books     map[int64]model.Book
	updates   int
	updateErr error
	createErr error
}

func newMemDB() *memDB {
	return &memDB{
		users:    map[int64]model.User{},
		chapters: map[int64]model.Chapter{},
		books:    map[int64]model.Book{},
	}
}

func (m *memDB) id() int64 {
	m.nextID++
	return m.nextID
}

type memUsers struct{ *memDB }
type memChapters struct{ *memDB }
type memBooks struct{ *memDB }

func (m memUsers) Create(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return appErr.ErrConflict
		}
	}
	user.ID = m.id()
	m.users[user.ID] = *user
	return nil
}

func (m memUsers) GetByID(ctx context.Context, userID int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &u, nil
}

func (m memUsers) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (m memUsers) List(ctx context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memUsers) Update(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return appErr.ErrNotFound
	}
	m.users[user.ID] = *user
	return nil
}

func (m memUsers) Delete(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return appErr.ErrNotFound
	}
	delete(m.users, userID)
	for id, ch := range m.chapters {
		if ch.UserID == userID {
			delete(m.chapters, id)
		}
	}
	for id, b := range m.books {
		if b.UserID == userID {
			delete(m.books, id)
		}
	}
	return nil
}

func (m memUsers) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

func (m memChapters) Create(ctx context.Context, ch *model.Chapter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.users[ch.UserID]; !ok {
		return appErr.ErrNotFound
	}
	ch.ID = m.id()
	m.chapters[ch.ID] = *ch
	return nil
}

func (m memChapters) GetByID(ctx context.Context, chapterID int64) (*model.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.chapters[chapterID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &ch, nil
}

func (m memChapters) filter(keep func(model.Chapter) bool) []model.Chapter {
	out := make([]model.Chapter, 0)
	for _, ch := range m.chapters {
		if keep(ch) {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SegmentIndex != out[j].SegmentIndex {
			return out[i].SegmentIndex < out[j].SegmentIndex
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m memChapters) List(ctx context.Context, userID int64) ([]model.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(func(ch model.Chapter) bool { return userID == 0 || ch.UserID == userID }), nil
}

func (m memChapters) ListByIDs(ctx context.Context, userID int64, ids []int64) ([]model.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	return m.filter(func(ch model.Chapter) bool { return ch.UserID == userID && want[ch.ID] }), nil
}

func (m memChapters) ListPending(ctx context.Context, limit uint) ([]model.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.filter(func(ch model.Chapter) bool {
		return ch.Status == model.ChapterStatusPending && ch.Transcript() != ""
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if uint(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m memChapters) Update(ctx context.Context, ch *model.Chapter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.chapters[ch.ID]; !ok {
		return appErr.ErrNotFound
	}
	m.chapters[ch.ID] = *ch
	return nil
}

func (m memChapters) Delete(ctx context.Context, chapterID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chapters[chapterID]; !ok {
		return appErr.ErrNotFound
	}
	delete(m.chapters, chapterID)
	return nil
}

func (m memChapters) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.chapters)), nil
}

func (m memBooks) Create(ctx context.Context, book *model.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.users[book.UserID]; !ok {
		return appErr.ErrNotFound
	}
	book.ID = m.id()
	m.books[book.ID] = *book
	return nil
}

func (m memBooks) GetByID(ctx context.Context, bookID int64) (*model.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[bookID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &b, nil
}

func (m memBooks) List(ctx context.Context, userID int64) ([]model.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Book, 0)
	for _, b := range m.books {
		if userID == 0 || b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m memBooks) Update(ctx context.Context, book *model.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[book.ID]; !ok {
		return appErr.ErrNotFound
	}
	m.books[book.ID] = *book
	return nil
}

func (m memBooks) Delete(ctx context.Context, bookID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[bookID]; !ok {
		return appErr.ErrNotFound
	}
	delete(m.books, bookID)
	return nil
}

func (m memBooks) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.books)), nil
}

func (m *memDB) addUser(t *testing.T, name, email string) int64 {
	t.Helper()
	u := &model.User{Name: name, Email: email}
	require.NoError(t, memUsers{m}.Create(context.Background(), u))
	return u.ID
}

func (m *memDB) addChapter(t *testing.T, ch model.Chapter) int64 {
	t.Helper()
	if ch.Status == "" {
		ch.Status = model.ChapterStatusPending
	}
	require.NoError(t, memChapters{m}.Create(context.Background(), &ch))
	return ch.ID
}

func newLocalStore(t *testing.T, kind string) (filestore.Store, string) {
	t.Helper()
	dir := t.TempDir()
	st, err := filestore.New("local", map[string]interface{}{"dir": dir, "kind": kind})
	require.NoError(t, err)
	return st, dir
}

type brokenStore struct {
	filestore.Store
}

func (brokenStore) Save(ctx context.Context, key string, r io.ReadSeeker, size int64) error {
	return errors.New("disk full")
}

type fakeTranscriber struct {
	text   string
	called int
	// before runs ahead of the fake call, to observe state mid pipeline.
	before func()
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, name string, open ai.AudioOpener) string {
	f.called++
	if f.before != nil {
		f.before()
	}
	rc, err := open(ctx)
	if err != nil {
		return ""
	}
	_ = rc.Close()
	return f.text
}

type fakeRewriter struct {
	text   string
	model  string
	fail   bool
	called int
	anchor string
	models []string
}

func (f *fakeRewriter) Rewrite(ctx context.Context, anchor string, transcript string, model string) ai.Rewrite {
	f.called++
	f.anchor = anchor
	f.models = append(f.models, model)
	if f.fail || transcript == "" {
		return ai.Rewrite{Text: transcript}
	}
	return ai.Rewrite{Text: f.text, Model: f.model, OK: true}
}

type recNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (r *recNotifier) Notify(ctx context.Context, msg notify.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recNotifier) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.Text)
	}
	return out
}

type fakeProvider struct {
	text  string
	model string
}

func (p *fakeProvider) Name() string     { return "fake" }
func (p *fakeProvider) Configured() bool { return true }
func (p *fakeProvider) Generate(ctx context.Context, req ai.GenerateRequest) (*ai.GenerateResult, error) {
	return &ai.GenerateResult{Text: p.text, Model: p.model}, nil
}
func (p *fakeProvider) Ping(ctx context.Context, model string) error { return nil }
