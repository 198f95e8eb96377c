// Package services – SubmissionService
//
// This file implements the listing submission workflow. A submission walks a
// fixed sequence of stages and stops at the first failing one:
//
//	validating → awaiting_human_verification → checking_duplicates →
//	persisting → backfilling_translation → done
//
// Failures are returned as *StageError so handlers can tell where the
// workflow stopped; errors.Is on the result matches the service sentinels
// (ErrDuplicateLink, ErrDuplicateName, ErrVerificationFailed) and
// errors.As matches *ValidationError.
//
// The duplicate pre-checks are advisory. The unique indexes on listings.link
// and listings.slug are the real guarantee, and an insert-time violation maps
// to the same sentinels.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/joingroups-backend/internal/backfill"
	"github.com/tbourn/joingroups-backend/internal/captcha"
	"github.com/tbourn/joingroups-backend/internal/domain"
	"github.com/tbourn/joingroups-backend/internal/repo"
)

// Stage is a step of the submission workflow.
type Stage string

const (
	StageValidating         Stage = "validating"
	StageVerifying          Stage = "awaiting_human_verification"
	StageCheckingDuplicates Stage = "checking_duplicates"
	StagePersisting         Stage = "persisting"
	StageBackfilling        Stage = "backfilling_translation"
	StageDone               Stage = "done"
)

// SubmissionRepo is the persistence contract of SubmissionService.
type SubmissionRepo interface {
	ExistsByLink(ctx context.Context, db *gorm.DB, link string) (bool, error)
	ExistsBySlug(ctx context.Context, db *gorm.DB, slug string) (bool, error)
	CreateListing(ctx context.Context, db *gorm.DB, l *domain.Listing) error
}

// Enqueuer schedules a translation back-fill.
type Enqueuer interface {
	Enqueue(ctx context.Context, j backfill.Job) error
}

// SubmitInput is the submitted form.
type SubmitInput struct {
	Network       string
	Name          string
	Link          string
	DescriptionES string
	DescriptionEN string
	Categories    []string
	ContentFlag   string
	City          string
	Email         string
	EmailRepeat   string
	AcceptTerms   bool

	CaptchaID     string
	CaptchaAnswer string
}

// SubmitResult describes a created listing and where to send the submitter.
type SubmitResult struct {
	Listing      *domain.Listing
	Stage        Stage
	Backfill     bool   // a translation back-fill was scheduled
	RedirectPath string // site path of the detail page
	RedirectURL  string // absolute URL on the city subdomain
}

// SubmissionService coordinates validation, verification, duplicate checks,
// persistence, and back-fill scheduling for new listings.
type SubmissionService struct {
	DB   *gorm.DB
	Repo SubmissionRepo

	// Captcha gates submission. Nil skips the gate; config uses
	// captcha.Disabled for the same effect.
	Captcha captcha.Verifier
	// Backfill receives a job when one description slot is empty. Nil
	// leaves translation_pending set with nothing scheduled.
	Backfill Enqueuer

	SiteDomain string
}

// Submit runs the workflow. On success the listing has been inserted and the
// result carries StageDone.
func (s *SubmissionService) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	tr := otel.Tracer("services/SubmissionService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(attribute.String("listing.network", in.Network)),
	)
	defer span.End()

	l, verr := buildListing(in)
	if verr != nil {
		return nil, &StageError{Stage: StageValidating, Err: verr}
	}

	if s.Captcha != nil {
		if err := s.Captcha.Verify(ctx, in.CaptchaID, in.CaptchaAnswer); err != nil {
			if errors.Is(err, captcha.ErrNotFound) || errors.Is(err, captcha.ErrMismatch) {
				err = ErrVerificationFailed
			}
			return nil, &StageError{Stage: StageVerifying, Err: err}
		}
	}

	if err := s.checkDuplicates(ctx, l.Link, l.Slug); err != nil {
		return nil, &StageError{Stage: StageCheckingDuplicates, Err: err}
	}

	if err := s.Repo.CreateListing(ctx, s.DB, l); err != nil {
		switch {
		case errors.Is(err, repo.ErrLinkTaken):
			err = ErrDuplicateLink
		case errors.Is(err, repo.ErrSlugTaken):
			err = ErrDuplicateName
		}
		return nil, &StageError{Stage: StagePersisting, Err: err}
	}
	span.SetAttributes(attribute.String("listing.id", l.ID))

	res := &SubmitResult{
		Listing:      l,
		RedirectPath: domain.PublicPath(l.Network, l.Slug),
	}
	res.RedirectURL = domain.PublicURL(s.SiteDomain, l.City, res.RedirectPath)

	if l.TranslationPending && s.Backfill != nil {
		if err := s.Backfill.Enqueue(ctx, backfillJob(l)); err != nil {
			// the listing exists; a lost back-fill only leaves the flag set
			log.Warn().Err(err).Str("listing_id", l.ID).Msg("schedule translation back-fill")
		} else {
			res.Backfill = true
		}
	}
	res.Stage = StageDone
	return res, nil
}

// checkDuplicates runs both existence queries concurrently and waits for
// both. A link match wins over a name match.
func (s *SubmissionService) checkDuplicates(ctx context.Context, link, slug string) error {
	var linkTaken, slugTaken bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		linkTaken, err = s.Repo.ExistsByLink(gctx, s.DB, link)
		return err
	})
	g.Go(func() error {
		var err error
		slugTaken, err = s.Repo.ExistsBySlug(gctx, s.DB, slug)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("duplicate check: %w", err)
	}
	switch {
	case linkTaken:
		return ErrDuplicateLink
	case slugTaken:
		return ErrDuplicateName
	}
	return nil
}

// buildListing validates every field and assembles the record. All field
// errors are collected before returning.
func buildListing(in SubmitInput) (*domain.Listing, error) {
	fields := map[string]string{}

	network, ok := domain.ParseNetwork(in.Network)
	if !ok {
		fields["network"] = "is not supported"
	}

	name := strings.TrimSpace(in.Name)
	if msg := domain.ValidateName(name); msg != "" {
		fields["name"] = msg
	}

	link := domain.NormalizeLink(in.Link)
	if ok {
		if _, err := domain.ValidateLink(network, link); err != nil {
			fields["link"] = err.Error()
		}
	}

	es := strings.TrimSpace(in.DescriptionES)
	en := strings.TrimSpace(in.DescriptionEN)
	for k, v := range domain.ValidateDescription(es, en) {
		fields[k] = v
	}

	cats, msg := domain.ValidateCategories(in.Categories)
	if msg != "" {
		fields["categories"] = msg
	}

	flag := strings.ToLower(strings.TrimSpace(in.ContentFlag))
	if !domain.ValidContentFlag(flag) {
		fields["content_flag"] = "must be yes or no"
	}

	city := strings.ToLower(strings.TrimSpace(in.City))
	if city != "" && !domain.ValidCountry(city) {
		fields["city"] = "is not a known country"
	}

	for k, v := range domain.ValidateEmail(in.Email, in.EmailRepeat) {
		fields[k] = v
	}

	if !in.AcceptTerms {
		fields["accept_terms"] = "must be accepted"
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	return &domain.Listing{
		Kind:               network.Kind(),
		Network:            network,
		Name:               name,
		Slug:               domain.Slugify(name),
		Link:               link,
		DescriptionES:      es,
		DescriptionEN:      en,
		TranslationPending: es == "" || en == "",
		Categories:         cats,
		ContentFlag:        flag,
		City:               city,
		Email:              strings.TrimSpace(in.Email),
	}, nil
}

func backfillJob(l *domain.Listing) backfill.Job {
	if l.DescriptionES != "" {
		return backfill.Job{ListingID: l.ID, Text: l.DescriptionES, Source: domain.LangES, Target: domain.LangEN}
	}
	return backfill.Job{ListingID: l.ID, Text: l.DescriptionEN, Source: domain.LangEN, Target: domain.LangES}
}
