package services

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"yoma-api/auth"
	"yoma-api/errs"
	"yoma-api/models"
	"yoma-api/store"
)

const topCompletedLimit = 5

type OrganizationAnalyticsFilter struct {
	OrganizationID uuid.UUID   `json:"organization_id" query:"organization_id" validate:"required"`
	OpportunityIDs []uuid.UUID `json:"opportunities" query:"opportunities"`
	CategoryIDs    []uuid.UUID `json:"categories" query:"categories"`
	StartDate      *time.Time  `json:"start_date" query:"start_date"`
	EndDate        *time.Time  `json:"end_date" query:"end_date"`
}

type OpportunityCounts struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

type EngagementCounts struct {
	Viewed    int `json:"viewed"`
	Saved     int `json:"saved"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Rejected  int `json:"rejected"`
	// ConversionRatio is completed as a percentage of viewed.
	ConversionRatio float64 `json:"conversion_ratio"`
}

type WeeklyEngagement struct {
	WeekStart time.Time `json:"week_start"`
	Viewed    int       `json:"viewed"`
	Completed int       `json:"completed"`
}

type OpportunityCompletions struct {
	OpportunityID uuid.UUID `json:"opportunity_id"`
	Title         string    `json:"title"`
	Completed     int       `json:"completed"`
}

type OrganizationSummary struct {
	Opportunities OpportunityCounts        `json:"opportunities"`
	Engagement    EngagementCounts         `json:"engagement"`
	ZltoRewarded  float64                  `json:"zlto_rewarded"`
	Weekly        []WeeklyEngagement       `json:"weekly"`
	TopCompleted  []OpportunityCompletions `json:"top_completed"`
}

type YouthSummary struct {
	Saved        int     `json:"saved"`
	Pending      int     `json:"pending"`
	Completed    int     `json:"completed"`
	Rejected     int     `json:"rejected"`
	ZltoRewarded float64 `json:"zlto_rewarded"`
}

// AnalyticsService builds dashboard summaries from engagement records.
type AnalyticsService struct {
	store store.Store
	orgs  *OrganizationService
}

func NewAnalyticsService(st store.Store, orgs *OrganizationService) *AnalyticsService {
	return &AnalyticsService{store: st, orgs: orgs}
}

func (s *AnalyticsService) OrganizationSummary(ctx context.Context, caller auth.Identity, filter OrganizationAnalyticsFilter) (*OrganizationSummary, error) {
	if err := validateStruct(filter); err != nil {
		return nil, err
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, errs.Validation("'end_date' must be on or after 'start_date'")
	}
	if err := s.orgs.Authorize(ctx, caller, filter.OrganizationID); err != nil {
		return nil, err
	}

	var (
		opps []models.Opportunity
		rows []store.EngagementRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		opps, _, err = s.store.Opportunities().Search(gctx, store.OpportunityFilter{
			OrganizationIDs: []uuid.UUID{filter.OrganizationID},
			CategoryIDs:     filter.CategoryIDs,
		})
		return err
	})
	g.Go(func() error {
		var err error
		rows, err = s.store.MyOpportunities().Engagement(gctx, store.EngagementFilter{
			OrganizationID: &filter.OrganizationID,
			OpportunityIDs: filter.OpportunityIDs,
			CategoryIDs:    filter.CategoryIDs,
			StartDate:      filter.StartDate,
			EndDate:        filter.EndDate,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, wrap(err, "failed to load analytics")
	}

	summary := &OrganizationSummary{
		Weekly:       []WeeklyEngagement{},
		TopCompleted: []OpportunityCompletions{},
	}
	for _, o := range opps {
		if len(filter.OpportunityIDs) > 0 && !slices.Contains(filter.OpportunityIDs, o.ID) {
			continue
		}
		summary.Opportunities.Total++
		if o.Status == models.OpportunityStatusActive {
			summary.Opportunities.Active++
		}
	}

	weeks := map[time.Time]*WeeklyEngagement{}
	week := func(t time.Time) *WeeklyEngagement {
		start := weekStart(t)
		w, ok := weeks[start]
		if !ok {
			w = &WeeklyEngagement{WeekStart: start}
			weeks[start] = w
		}
		return w
	}
	completions := map[uuid.UUID]*OpportunityCompletions{}

	for _, row := range rows {
		if !inRange(rowDate(row), filter.StartDate, filter.EndDate) {
			continue
		}
		switch row.Action {
		case models.ActionViewed:
			summary.Engagement.Viewed++
			week(row.DateCreated).Viewed++
		case models.ActionSaved:
			summary.Engagement.Saved++
		case models.ActionVerification:
			switch deref(row.VerificationStatus) {
			case models.VerificationStatusPending:
				summary.Engagement.Pending++
			case models.VerificationStatusRejected:
				summary.Engagement.Rejected++
			case models.VerificationStatusCompleted:
				summary.Engagement.Completed++
				summary.ZltoRewarded += deref(row.ZltoReward)
				week(rowDate(row)).Completed++
				c, ok := completions[row.OpportunityID]
				if !ok {
					c = &OpportunityCompletions{OpportunityID: row.OpportunityID, Title: row.OpportunityTitle}
					completions[row.OpportunityID] = c
				}
				c.Completed++
			}
		}
	}

	if summary.Engagement.Viewed > 0 {
		summary.Engagement.ConversionRatio = round2(float64(summary.Engagement.Completed) / float64(summary.Engagement.Viewed) * 100)
	}
	summary.ZltoRewarded = round2(summary.ZltoRewarded)

	for _, w := range weeks {
		summary.Weekly = append(summary.Weekly, *w)
	}
	slices.SortFunc(summary.Weekly, func(a, b WeeklyEngagement) int { return a.WeekStart.Compare(b.WeekStart) })

	for _, c := range completions {
		summary.TopCompleted = append(summary.TopCompleted, *c)
	}
	slices.SortFunc(summary.TopCompleted, func(a, b OpportunityCompletions) int {
		if n := cmp.Compare(b.Completed, a.Completed); n != 0 {
			return n
		}
		return cmp.Compare(a.Title, b.Title)
	})
	if len(summary.TopCompleted) > topCompletedLimit {
		summary.TopCompleted = summary.TopCompleted[:topCompletedLimit]
	}
	return summary, nil
}

// YouthSummary totals a user's engagement.
func (s *AnalyticsService) YouthSummary(ctx context.Context, userID uuid.UUID) (*YouthSummary, error) {
	rows, err := s.store.MyOpportunities().Engagement(ctx, store.EngagementFilter{UserID: &userID})
	if err != nil {
		return nil, wrap(err, "failed to load engagement")
	}

	summary := &YouthSummary{}
	for _, row := range rows {
		switch row.Action {
		case models.ActionSaved:
			summary.Saved++
		case models.ActionVerification:
			switch deref(row.VerificationStatus) {
			case models.VerificationStatusPending:
				summary.Pending++
			case models.VerificationStatusRejected:
				summary.Rejected++
			case models.VerificationStatusCompleted:
				summary.Completed++
				summary.ZltoRewarded += deref(row.ZltoReward)
			}
		}
	}
	summary.ZltoRewarded = round2(summary.ZltoRewarded)
	return summary, nil
}

// rowDate is the date a row counts on: completion for completed
// verifications, creation otherwise.
func rowDate(row store.EngagementRow) time.Time {
	if row.DateCompleted != nil && deref(row.VerificationStatus) == models.VerificationStatusCompleted {
		return *row.DateCompleted
	}
	return row.DateCreated
}

func inRange(t time.Time, start, end *time.Time) bool {
	if start != nil && t.Before(*start) {
		return false
	}
	if end != nil && t.After(*end) {
		return false
	}
	return true
}

// weekStart returns the Monday 00:00 UTC of t's week.
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
}
