package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/mkessler/zettelwerk/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLLM replays canned responses in call order; an entry starting with
// "ERR:" is returned as an error instead.
type fakeLLM struct {
	responses []string
	calls     int
	prompts   []string
}

func (f *fakeLLM) Generate(_ context.Context, prompt, _ string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.calls >= len(f.responses) {
		return "", fmt.Errorf("no canned response for call %d", f.calls)
	}
	resp := f.responses[f.calls]
	f.calls++
	if len(resp) > 4 && resp[:4] == "ERR:" {
		return "", fmt.Errorf("%s", resp[4:])
	}
	return resp, nil
}

type fakeJobRepo struct {
	jobs    map[string]*domain.Job
	pending []string
	updates int
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: map[string]*domain.Job{}}
}

func (f *fakeJobRepo) Create(_ context.Context, job *domain.Job) error {
	cp := *job
	f.jobs[job.ID] = &cp
	f.pending = append(f.pending, job.ID)
	return nil
}

func (f *fakeJobRepo) GetByID(_ context.Context, id string) (*domain.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (f *fakeJobRepo) NextPending(_ context.Context) (*domain.Job, error) {
	for _, id := range f.pending {
		if f.jobs[id].Status == domain.JobPending {
			cp := *f.jobs[id]
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeJobRepo) Update(_ context.Context, job *domain.Job) error {
	cp := *job
	f.jobs[job.ID] = &cp
	f.updates++
	return nil
}

type linkedTag struct {
	DocID string
	TagID int64
}

type fakeDocRepo struct {
	docs       map[string]*domain.Document
	byHash     map[string]*domain.Document
	tags       map[string]*domain.Tag
	links      []linkedTag
	warranties []*domain.WarrantyInfo
	audits     []*domain.AuditEntry
	nextTagID  int64
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{
		docs:   map[string]*domain.Document{},
		byHash: map[string]*domain.Document{},
		tags:   map[string]*domain.Tag{},
	}
}

func (f *fakeDocRepo) Create(_ context.Context, doc *domain.Document) error {
	cp := *doc
	f.docs[doc.ID] = &cp
	f.byHash[doc.FileHash] = &cp
	return nil
}

func (f *fakeDocRepo) GetByID(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	cp := *doc
	return &cp, nil
}

func (f *fakeDocRepo) FindByHash(_ context.Context, hash string) (*domain.Document, error) {
	doc, ok := f.byHash[hash]
	if !ok {
		return nil, nil
	}
	cp := *doc
	return &cp, nil
}

func (f *fakeDocRepo) Update(_ context.Context, doc *domain.Document) error {
	cp := *doc
	f.docs[doc.ID] = &cp
	f.byHash[doc.FileHash] = &cp
	return nil
}

func (f *fakeDocRepo) GetOrCreateTag(_ context.Context, name string) (*domain.Tag, error) {
	if tag, ok := f.tags[name]; ok {
		return tag, nil
	}
	f.nextTagID++
	tag := &domain.Tag{ID: f.nextTagID, Name: name, IsAutoGenerated: true}
	f.tags[name] = tag
	return tag, nil
}

func (f *fakeDocRepo) LinkTag(_ context.Context, docID string, tagID int64) error {
	f.links = append(f.links, linkedTag{DocID: docID, TagID: tagID})
	return nil
}

func (f *fakeDocRepo) CreateWarranty(_ context.Context, w *domain.WarrantyInfo) error {
	cp := *w
	f.warranties = append(f.warranties, &cp)
	return nil
}

func (f *fakeDocRepo) AppendAudit(_ context.Context, entry *domain.AuditEntry) error {
	cp := *entry
	f.audits = append(f.audits, &cp)
	return nil
}

type fakeReviewRepo struct {
	questions map[string]*domain.ReviewQuestion
	order     []string
	createErr error
}

func newFakeReviewRepo() *fakeReviewRepo {
	return &fakeReviewRepo{questions: map[string]*domain.ReviewQuestion{}}
}

func (f *fakeReviewRepo) CreateQuestion(_ context.Context, q *domain.ReviewQuestion) error {
	if f.createErr != nil {
		return f.createErr
	}
	cp := *q
	f.questions[q.ID] = &cp
	f.order = append(f.order, q.ID)
	return nil
}

func (f *fakeReviewRepo) GetQuestion(_ context.Context, id string) (*domain.ReviewQuestion, error) {
	q, ok := f.questions[id]
	if !ok {
		return nil, fmt.Errorf("question %s not found", id)
	}
	cp := *q
	return &cp, nil
}

func (f *fakeReviewRepo) MarkAnswered(_ context.Context, id, answer string) error {
	q, ok := f.questions[id]
	if !ok {
		return fmt.Errorf("question %s not found", id)
	}
	q.Answer = answer
	q.IsAnswered = true
	return nil
}

func (f *fakeReviewRepo) CountOpen(_ context.Context, documentID string) (int, error) {
	n := 0
	for _, q := range f.questions {
		if q.DocumentID == documentID && !q.IsAnswered {
			n++
		}
	}
	return n, nil
}

func (f *fakeReviewRepo) byField(field string) *domain.ReviewQuestion {
	for _, id := range f.order {
		if f.questions[id].FieldAffected == field {
			return f.questions[id]
		}
	}
	return nil
}

// fakeTx gives the in-memory fakes transactional behavior: a failed
// callback restores both repositories to their pre-call state.
type fakeTx struct {
	docs    *fakeDocRepo
	reviews *fakeReviewRepo
}

func (f *fakeTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	docsSnap := f.docs.snapshot()
	reviewsSnap := f.reviews.snapshot()
	if err := fn(ctx); err != nil {
		f.docs.restore(docsSnap)
		f.reviews.restore(reviewsSnap)
		return err
	}
	return nil
}

func (f *fakeDocRepo) snapshot() fakeDocRepo {
	cp := fakeDocRepo{
		docs:       map[string]*domain.Document{},
		byHash:     map[string]*domain.Document{},
		tags:       map[string]*domain.Tag{},
		links:      append([]linkedTag(nil), f.links...),
		warranties: append([]*domain.WarrantyInfo(nil), f.warranties...),
		audits:     append([]*domain.AuditEntry(nil), f.audits...),
		nextTagID:  f.nextTagID,
	}
	for k, v := range f.docs {
		cp.docs[k] = v
	}
	for k, v := range f.byHash {
		cp.byHash[k] = v
	}
	for k, v := range f.tags {
		cp.tags[k] = v
	}
	return cp
}

func (f *fakeDocRepo) restore(snap fakeDocRepo) {
	f.docs = snap.docs
	f.byHash = snap.byHash
	f.tags = snap.tags
	f.links = snap.links
	f.warranties = snap.warranties
	f.audits = snap.audits
	f.nextTagID = snap.nextTagID
}

func (f *fakeReviewRepo) snapshot() fakeReviewRepo {
	cp := fakeReviewRepo{
		questions: map[string]*domain.ReviewQuestion{},
		order:     append([]string(nil), f.order...),
	}
	for k, v := range f.questions {
		q := *v
		cp.questions[k] = &q
	}
	return cp
}

func (f *fakeReviewRepo) restore(snap fakeReviewRepo) {
	f.questions = snap.questions
	f.order = snap.order
}

type fakeScopeRepo struct {
	scopes []domain.FilingScope
}

func (f *fakeScopeRepo) List(_ context.Context) ([]domain.FilingScope, error) {
	return f.scopes, nil
}

func (f *fakeScopeRepo) FindByName(_ context.Context, name string) (*domain.FilingScope, error) {
	for i := range f.scopes {
		if f.scopes[i].Name == name {
			cp := f.scopes[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeScopeRepo) Create(_ context.Context, scope *domain.FilingScope) error {
	f.scopes = append(f.scopes, *scope)
	return nil
}

type fakeCorrectionRepo struct {
	mappings []*domain.CorrectionMapping
}

func (f *fakeCorrectionRepo) Find(_ context.Context, field, original, corrected string) (*domain.CorrectionMapping, error) {
	for _, m := range f.mappings {
		if m.Field == field && m.OriginalValue == original && m.CorrectedValue == corrected {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeCorrectionRepo) Create(_ context.Context, m *domain.CorrectionMapping) error {
	cp := *m
	f.mappings = append(f.mappings, &cp)
	return nil
}

func (f *fakeCorrectionRepo) Update(_ context.Context, m *domain.CorrectionMapping) error {
	for i := range f.mappings {
		if f.mappings[i].ID == m.ID {
			cp := *m
			f.mappings[i] = &cp
			return nil
		}
	}
	return fmt.Errorf("mapping %s not found", m.ID)
}

type fakeSearchIndexer struct {
	indexed int
	fail    bool
}

func (f *fakeSearchIndexer) Index(_ context.Context, _, _, _, _, _, _ string) error {
	if f.fail {
		return fmt.Errorf("index unavailable")
	}
	f.indexed++
	return nil
}

type fakeFileStore struct {
	copies   []string
	moves    []string
	archived map[string]string
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{archived: map[string]string{}}
}

func (f *fakeFileStore) StoreCopy(_ context.Context, srcPath, storedName string) (string, error) {
	f.copies = append(f.copies, srcPath)
	return "/uploads/" + storedName, nil
}

func (f *fakeFileStore) StoreMove(_ context.Context, srcPath, storedName string) (string, error) {
	f.moves = append(f.moves, srcPath)
	return "/uploads/" + storedName, nil
}

func (f *fakeFileStore) MoveToArchive(_ context.Context, srcPath, relArchivePath string) (string, error) {
	f.archived[srcPath] = relArchivePath
	return "/archive/" + relArchivePath, nil
}
