package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/joingroups-backend/internal/backfill"
	"github.com/tbourn/joingroups-backend/internal/captcha"
	"github.com/tbourn/joingroups-backend/internal/domain"
	"github.com/tbourn/joingroups-backend/internal/repo"
	"github.com/tbourn/joingroups-backend/internal/translate"
)

func newListingDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:listingsvc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// ----- Fakes -----

type fakeSubmissionRepo struct {
	mu         sync.Mutex
	linkTaken  bool
	slugTaken  bool
	existsErr  error
	createErr  error
	created    []*domain.Listing
	linkChecks []string
	slugChecks []string
}

func (r *fakeSubmissionRepo) ExistsByLink(ctx context.Context, db *gorm.DB, link string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.linkChecks = append(r.linkChecks, link)
	return r.linkTaken, r.existsErr
}

func (r *fakeSubmissionRepo) ExistsBySlug(ctx context.Context, db *gorm.DB, slug string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slugChecks = append(r.slugChecks, slug)
	return r.slugTaken, nil
}

func (r *fakeSubmissionRepo) CreateListing(ctx context.Context, db *gorm.DB, l *domain.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	l.ID = "new-id"
	r.created = append(r.created, l)
	return nil
}

type fakeVerifier struct {
	err   error
	calls int
}

func (v *fakeVerifier) Verify(ctx context.Context, id, answer string) error {
	v.calls++
	return v.err
}

type fakeEnqueuer struct {
	jobs []backfill.Job
	err  error
}

func (e *fakeEnqueuer) Enqueue(ctx context.Context, j backfill.Job) error {
	e.jobs = append(e.jobs, j)
	return e.err
}

func validInput() SubmitInput {
	return SubmitInput{
		Network:       "telegram",
		Name:          "Test Group",
		Link:          "https://t.me/testgroup123/",
		DescriptionES: strings.Repeat("a", 25),
		Categories:    []string{"Tecnología"},
		ContentFlag:   "no",
		Email:         "owner@example.com",
		EmailRepeat:   "owner@example.com",
		AcceptTerms:   true,
		CaptchaID:     "cid",
		CaptchaAnswer: "1234",
	}
}

// ----- Tests -----

func TestSubmit_ValidationCollectsAllFields(t *testing.T) {
	r := &fakeSubmissionRepo{}
	v := &fakeVerifier{}
	svc := &SubmissionService{Repo: r, Captcha: v}

	_, err := svc.Submit(context.Background(), SubmitInput{
		Network:     "telegram",
		Name:        "  ",
		Link:        "https://example.com/x",
		Categories:  []string{"a", "b", "c", "d"},
		ContentFlag: "maybe",
		City:        "zz",
		Email:       "nope",
	})

	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageValidating {
		t.Fatalf("expected validating stage error, got %v", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, f := range []string{"name", "link", "description_es", "description_en", "categories", "content_flag", "city", "email", "email_repeat", "accept_terms"} {
		if ve.Fields[f] == "" {
			t.Errorf("missing field error %q in %v", f, ve.Fields)
		}
	}
	if v.calls != 0 || len(r.linkChecks) != 0 || len(r.created) != 0 {
		t.Fatalf("nothing past validation may run: verify=%d checks=%d created=%d", v.calls, len(r.linkChecks), len(r.created))
	}
}

func TestSubmit_UnknownNetwork(t *testing.T) {
	in := validInput()
	in.Network = "myspace"
	_, err := (&SubmissionService{Repo: &fakeSubmissionRepo{}}).Submit(context.Background(), in)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Fields["network"] == "" {
		t.Fatalf("expected network field error, got %v", err)
	}
	if _, ok := ve.Fields["link"]; ok {
		t.Fatalf("link cannot be checked without a network")
	}
}

func TestSubmit_BothDescriptionsTooShort(t *testing.T) {
	in := validInput()
	in.DescriptionES = "corto"
	in.DescriptionEN = "short"
	r := &fakeSubmissionRepo{}
	_, err := (&SubmissionService{Repo: r}).Submit(context.Background(), in)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Fields["description_es"] == "" || ve.Fields["description_en"] == "" {
		t.Fatalf("expected description errors, got %v", err)
	}
	if len(r.created) != 0 {
		t.Fatalf("insert must not be called")
	}
}

func TestSubmit_VerificationFailure(t *testing.T) {
	for _, cause := range []error{captcha.ErrMismatch, captcha.ErrNotFound} {
		r := &fakeSubmissionRepo{}
		svc := &SubmissionService{Repo: r, Captcha: &fakeVerifier{err: cause}}
		_, err := svc.Submit(context.Background(), validInput())

		var se *StageError
		if !errors.As(err, &se) || se.Stage != StageVerifying || !errors.Is(err, ErrVerificationFailed) {
			t.Fatalf("cause %v: got %v", cause, err)
		}
		if len(r.linkChecks) != 0 || len(r.created) != 0 {
			t.Fatalf("duplicate checks and insert must not run after failed verification")
		}
	}

	// store outages are not the submitter's fault
	svc := &SubmissionService{Repo: &fakeSubmissionRepo{}, Captcha: &fakeVerifier{err: errors.New("redis down")}}
	if _, err := svc.Submit(context.Background(), validInput()); errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("infrastructure error reported as verification failure")
	}
}

func TestSubmit_DisabledCaptchaPasses(t *testing.T) {
	r := &fakeSubmissionRepo{}
	svc := &SubmissionService{Repo: r, Captcha: captcha.Disabled{}}
	if _, err := svc.Submit(context.Background(), validInput()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
}

func TestSubmit_Duplicates(t *testing.T) {
	cases := []struct {
		name      string
		repo      *fakeSubmissionRepo
		wantErr   error
		wantStage Stage
	}{
		{"link", &fakeSubmissionRepo{linkTaken: true}, ErrDuplicateLink, StageCheckingDuplicates},
		{"name", &fakeSubmissionRepo{slugTaken: true}, ErrDuplicateName, StageCheckingDuplicates},
		{"both reports link", &fakeSubmissionRepo{linkTaken: true, slugTaken: true}, ErrDuplicateLink, StageCheckingDuplicates},
		{"insert race on link", &fakeSubmissionRepo{createErr: repo.ErrLinkTaken}, ErrDuplicateLink, StagePersisting},
		{"insert race on slug", &fakeSubmissionRepo{createErr: repo.ErrSlugTaken}, ErrDuplicateName, StagePersisting},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := (&SubmissionService{Repo: tc.repo}).Submit(context.Background(), validInput())
			var se *StageError
			if !errors.As(err, &se) || se.Stage != tc.wantStage || !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v; want %v at %s", err, tc.wantErr, tc.wantStage)
			}
			if tc.wantStage == StageCheckingDuplicates && len(tc.repo.created) != 0 {
				t.Fatalf("insert must not be called on a duplicate")
			}
		})
	}
}

func TestSubmit_DuplicateChecksUseNormalizedValues(t *testing.T) {
	r := &fakeSubmissionRepo{}
	if _, err := (&SubmissionService{Repo: r}).Submit(context.Background(), validInput()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(r.linkChecks) != 1 || r.linkChecks[0] != "https://t.me/testgroup123" {
		t.Fatalf("link checks = %v", r.linkChecks)
	}
	if len(r.slugChecks) != 1 || r.slugChecks[0] != "test-group" {
		t.Fatalf("slug checks = %v", r.slugChecks)
	}
}

func TestSubmit_DuplicateCheckError(t *testing.T) {
	r := &fakeSubmissionRepo{existsErr: errors.New("db down")}
	_, err := (&SubmissionService{Repo: r}).Submit(context.Background(), validInput())
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageCheckingDuplicates {
		t.Fatalf("got %v", err)
	}
	if errors.Is(err, ErrDuplicateLink) || errors.Is(err, ErrDuplicateName) {
		t.Fatalf("query failure must not look like a duplicate")
	}
}

func TestSubmit_BuildsRecordAndSchedulesBackfill(t *testing.T) {
	r := &fakeSubmissionRepo{}
	q := &fakeEnqueuer{}
	in := validInput()
	in.City = "MX"
	in.Categories = []string{"technology", "Tecnología"}
	svc := &SubmissionService{Repo: r, Backfill: q, SiteDomain: "joingroups.pro"}

	res, err := svc.Submit(context.Background(), in)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Stage != StageDone || !res.Backfill {
		t.Fatalf("result = %+v", res)
	}
	l := res.Listing
	if l.Kind != domain.KindGroup || l.Slug != "test-group" || l.Link != "https://t.me/testgroup123" {
		t.Fatalf("listing = %+v", l)
	}
	if l.DescriptionEN != "" || !l.TranslationPending {
		t.Fatalf("expected pending translation, got en=%q pending=%v", l.DescriptionEN, l.TranslationPending)
	}
	if len(l.Categories) != 1 || l.Categories[0] != "Tecnología" {
		t.Fatalf("categories = %v", l.Categories)
	}
	if res.RedirectPath != "/comunidades/grupos-de-telegram/test-group" {
		t.Fatalf("path = %q", res.RedirectPath)
	}
	if res.RedirectURL != "https://mx.joingroups.pro/comunidades/grupos-de-telegram/test-group" {
		t.Fatalf("url = %q", res.RedirectURL)
	}
	if len(q.jobs) != 1 {
		t.Fatalf("jobs = %v", q.jobs)
	}
	j := q.jobs[0]
	if j.ListingID != "new-id" || j.Source != "es" || j.Target != "en" || j.Text != in.DescriptionES {
		t.Fatalf("job = %+v", j)
	}
}

func TestSubmit_EnglishOnlyTargetsSpanish(t *testing.T) {
	q := &fakeEnqueuer{}
	in := validInput()
	in.DescriptionES = ""
	in.DescriptionEN = strings.Repeat("b", 30)
	if _, err := (&SubmissionService{Repo: &fakeSubmissionRepo{}, Backfill: q}).Submit(context.Background(), in); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(q.jobs) != 1 || q.jobs[0].Source != "en" || q.jobs[0].Target != "es" {
		t.Fatalf("jobs = %+v", q.jobs)
	}
}

func TestSubmit_BothSlotsSkipBackfill(t *testing.T) {
	q := &fakeEnqueuer{}
	in := validInput()
	in.DescriptionEN = strings.Repeat("b", 30)
	res, err := (&SubmissionService{Repo: &fakeSubmissionRepo{}, Backfill: q}).Submit(context.Background(), in)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Listing.TranslationPending || res.Backfill || len(q.jobs) != 0 {
		t.Fatalf("no back-fill expected: %+v jobs=%v", res, q.jobs)
	}
}

func TestSubmit_EnqueueFailureStillSucceeds(t *testing.T) {
	q := &fakeEnqueuer{err: errors.New("disk full")}
	res, err := (&SubmissionService{Repo: &fakeSubmissionRepo{}, Backfill: q}).Submit(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Backfill || res.Stage != StageDone {
		t.Fatalf("result = %+v", res)
	}
}

func TestSubmit_ClanRedirect(t *testing.T) {
	in := validInput()
	in.Network = "clash-royale"
	in.Link = "https://link.clashroyale.com/invite/clan/es?tag=ABC"
	res, err := (&SubmissionService{Repo: &fakeSubmissionRepo{}, SiteDomain: "joingroups.pro"}).Submit(context.Background(), in)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Listing.Kind != domain.KindClan || res.RedirectPath != "/clanes/clanes-de-clash-royale/test-group" {
		t.Fatalf("result = %+v", res)
	}
}

type repoShim struct{}

func (repoShim) ExistsByLink(ctx context.Context, db *gorm.DB, link string) (bool, error) {
	return repo.ExistsByLink(ctx, db, link)
}

func (repoShim) ExistsBySlug(ctx context.Context, db *gorm.DB, slug string) (bool, error) {
	return repo.ExistsBySlug(ctx, db, slug)
}

func (repoShim) CreateListing(ctx context.Context, db *gorm.DB, l *domain.Listing) error {
	return repo.CreateListing(ctx, db, l)
}

// End to end: real store, real queue and worker, stubbed translation service.
func TestSubmit_EndToEndBackfillPatchesRecord(t *testing.T) {
	db := newListingDB(t)
	q, err := backfill.OpenQueue("")
	if err != nil {
		t.Fatalf("OpenQueue: %v", err)
	}
	defer q.Close()

	done := make(chan backfill.Outcome, 1)
	stub := translate.Func(func(ctx context.Context, text, src, dst string) string {
		return "an english translation of the description"
	})
	w := backfill.NewWorker(q, stub, DescriptionPatcher{DB: db}, backfill.Options{
		Interval: time.Millisecond,
		OnFinish: func(j backfill.Job, o backfill.Outcome) { done <- o },
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = w.Shutdown(ctx)
	}()

	svc := &SubmissionService{DB: db, Repo: repoShim{}, Backfill: w, SiteDomain: "joingroups.pro"}
	in := validInput()
	in.Link = "https://t.me/testgroup123"

	res, err := svc.Submit(context.Background(), in)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Listing.DescriptionES != strings.Repeat("a", 25) || res.Listing.DescriptionEN != "" || !res.Listing.TranslationPending {
		t.Fatalf("inserted = %+v", res.Listing)
	}

	select {
	case o := <-done:
		if o != backfill.OutcomePatched {
			t.Fatalf("outcome = %s", o)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("back-fill did not finish")
	}

	got, err := repo.GetListing(context.Background(), db, res.Listing.ID)
	if err != nil {
		t.Fatalf("GetListing: %v", err)
	}
	if got.TranslationPending || got.DescriptionEN != "an english translation of the description" {
		t.Fatalf("after back-fill = pending:%v en:%q", got.TranslationPending, got.DescriptionEN)
	}

	// a second submission of the same link is rejected by the pre-check
	_, err = svc.Submit(context.Background(), in)
	if !errors.Is(err, ErrDuplicateLink) {
		t.Fatalf("expected duplicate link, got %v", err)
	}
	in.Link = "https://t.me/othergroup123"
	if _, err := svc.Submit(context.Background(), in); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected duplicate name, got %v", err)
	}
}

func TestDescriptionPatcher_MissingListing(t *testing.T) {
	db := newListingDB(t)
	err := DescriptionPatcher{DB: db}.PatchDescription(context.Background(), "missing", "en", "text")
	if !errors.Is(err, backfill.ErrListingGone) {
		t.Fatalf("expected ErrListingGone, got %v", err)
	}
}

func TestStageError_Format(t *testing.T) {
	err := &StageError{Stage: StagePersisting, Err: ErrDuplicateName}
	if err.Error() != "persisting: name already listed" {
		t.Fatalf("Error() = %q", err.Error())
	}
	ve := &ValidationError{Fields: map[string]string{"name": "is required", "email": "is required"}}
	if ve.Error() != "validation failed: email: is required; name: is required" {
		t.Fatalf("ValidationError = %q", ve.Error())
	}
}
