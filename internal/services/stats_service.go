package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quangtmn/visitreg/internal/access"
	"github.com/quangtmn/visitreg/internal/cache"
	"github.com/quangtmn/visitreg/internal/models"
)

// StatsStore defines the interface for aggregation data access
type StatsStore interface {
	CountScoped(ctx context.Context, scope access.Scope, rng models.TimeRange) (int64, error)
	GroupCounts(ctx context.Context, scope access.Scope, dim models.Dimension, rng models.TimeRange) ([]models.ReportGroup, error)
	Summary(ctx context.Context, scope access.Scope, rng models.TimeRange) (*models.SummaryReport, error)
}

// RegionStore defines the interface for administrative unit access
type RegionStore interface {
	List(ctx context.Context) ([]models.Region, error)
	KnownCodes(ctx context.Context) (map[string]bool, error)
}

// VersionSource reads the monotonic store version.
type VersionSource interface {
	CurrentVersion(ctx context.Context) (int64, error)
}

// StatsService builds grouped statistics reports over the caller's visible
// scope. Reports zero-fill every requested group so a chart axis never
// shifts when a bucket is empty.
type StatsService struct {
	stats    StatsStore
	regions  RegionStore
	versions VersionSource
	cache    cache.Cache
	maxRows  int
	logger   *slog.Logger
}

// NewStatsService creates a new StatsService
func NewStatsService(stats StatsStore, regions RegionStore, versions VersionSource, c cache.Cache, maxRows int, logger *slog.Logger) *StatsService {
	return &StatsService{
		stats:    stats,
		regions:  regions,
		versions: versions,
		cache:    c,
		maxRows:  maxRows,
		logger:   logger,
	}
}

// Report computes a grouped count report for one dimension over the range.
func (s *StatsService) Report(ctx context.Context, user *models.User, dim models.Dimension, rng models.TimeRange) (*models.StatisticsReport, error) {
	if !models.ValidDimension(dim) {
		return nil, fmt.Errorf("%w: unsupported dimension %q", models.ErrBadRequest, dim)
	}
	if !rng.From.IsZero() && !rng.To.IsZero() && rng.To.Before(rng.From) {
		return nil, fmt.Errorf("%w: range end before range start", models.ErrBadRequest)
	}

	version, err := s.versions.CurrentVersion(ctx)
	if err != nil {
		return nil, s.mapErr("failed to read store version", err)
	}

	scope := access.ScopeFor(user)
	key := cache.Key{
		Shape:   reportShape(dim, rng),
		Scope:   scope.CacheKey(),
		Version: version,
	}

	value, err := cache.GetOrCompute(ctx, s.cache, key, func(ctx context.Context) (any, error) {
		return s.buildReport(ctx, scope, dim, rng, version)
	})
	if err != nil {
		return nil, s.mapErr("report failed", err)
	}

	report, ok := value.(*models.StatisticsReport)
	if !ok {
		s.logger.Error("unexpected cached type for report")
		return nil, models.ErrInternalServer
	}
	return report, nil
}

func (s *StatsService) buildReport(ctx context.Context, scope access.Scope, dim models.Dimension, rng models.TimeRange, version int64) (*models.StatisticsReport, error) {
	report := &models.StatisticsReport{
		Dimension: dim,
		Range:     rng,
		Groups:    []models.ReportGroup{},
		Version:   version,
	}

	if scope.IsNone() {
		report.Groups = zeroGroups(requestedKeys(dim, rng, nil))
		return report, nil
	}

	count, err := s.stats.CountScoped(ctx, scope, rng)
	if err != nil {
		return nil, err
	}
	if count > int64(s.maxRows) {
		s.logger.Info("report over row budget",
			slog.Int64("rows", count), slog.Int("max", s.maxRows))
		return nil, models.ErrQueryTooLarge
	}

	observed, err := s.stats.GroupCounts(ctx, scope, dim, rng)
	if err != nil {
		return nil, err
	}

	var regions []models.Region
	if dim == models.DimRegion {
		if regions, err = s.regions.List(ctx); err != nil {
			return nil, err
		}
	}

	report.Groups = fillGroups(requestedKeys(dim, rng, regions), observed)
	for _, g := range report.Groups {
		report.Total += g.Count
	}
	return report, nil
}

// Summary computes the headline totals over the caller's scope, with every
// purpose present in the breakdown even at zero.
func (s *StatsService) Summary(ctx context.Context, user *models.User, rng models.TimeRange) (*models.SummaryReport, error) {
	version, err := s.versions.CurrentVersion(ctx)
	if err != nil {
		return nil, s.mapErr("failed to read store version", err)
	}

	scope := access.ScopeFor(user)
	key := cache.Key{
		Shape:   "summary:" + rangeShape(rng),
		Scope:   scope.CacheKey(),
		Version: version,
	}

	value, err := cache.GetOrCompute(ctx, s.cache, key, func(ctx context.Context) (any, error) {
		summary := &models.SummaryReport{ByPurpose: make(map[string]int64), Version: version}
		if !scope.IsNone() {
			count, err := s.stats.CountScoped(ctx, scope, rng)
			if err != nil {
				return nil, err
			}
			if count > int64(s.maxRows) {
				s.logger.Info("summary over row budget",
					slog.Int64("rows", count), slog.Int("max", s.maxRows))
				return nil, models.ErrQueryTooLarge
			}

			computed, err := s.stats.Summary(ctx, scope, rng)
			if err != nil {
				return nil, err
			}
			computed.Version = version
			summary = computed
		}
		for _, p := range models.Purposes {
			if _, ok := summary.ByPurpose[string(p)]; !ok {
				summary.ByPurpose[string(p)] = 0
			}
		}
		return summary, nil
	})
	if err != nil {
		return nil, s.mapErr("summary failed", err)
	}

	summary, ok := value.(*models.SummaryReport)
	if !ok {
		s.logger.Error("unexpected cached type for summary")
		return nil, models.ErrInternalServer
	}
	return summary, nil
}

func (s *StatsService) mapErr(msg string, err error) error {
	if errors.Is(err, models.ErrStoreUnavailable) || errors.Is(err, models.ErrBadRequest) ||
		errors.Is(err, models.ErrQueryTooLarge) {
		return err
	}
	s.logger.Error(msg, slog.Any("error", err))
	return models.ErrInternalServer
}

// requestedKeys enumerates the group keys a report must contain even when
// empty. Time dimensions enumerate buckets across a closed range; the region
// dimension enumerates every known region, with out-of-scope regions left at
// zero by the scoped count query; purpose enumerates the closed purpose set.
// Nationality and open-ended time ranges are observed-only.
func requestedKeys(dim models.Dimension, rng models.TimeRange, regions []models.Region) []string {
	switch dim {
	case models.DimMonth, models.DimQuarter, models.DimYear:
		return timeBuckets(dim, rng)
	case models.DimRegion:
		keys := make([]string, 0, len(regions))
		for _, reg := range regions {
			keys = append(keys, reg.Code)
		}
		return keys
	case models.DimPurpose:
		keys := make([]string, 0, len(models.Purposes))
		for _, p := range models.Purposes {
			keys = append(keys, string(p))
		}
		return keys
	default:
		return nil
	}
}

// timeBuckets enumerates the bucket keys between From and To inclusive. An
// open-ended range cannot be enumerated and returns nil.
func timeBuckets(dim models.Dimension, rng models.TimeRange) []string {
	if rng.From.IsZero() || rng.To.IsZero() {
		return nil
	}

	keys := make([]string, 0)
	switch dim {
	case models.DimYear:
		for y := rng.From.Year(); y <= rng.To.Year(); y++ {
			keys = append(keys, fmt.Sprintf("%04d", y))
		}
	case models.DimQuarter:
		start := time.Date(rng.From.Year(), quarterStartMonth(rng.From.Month()), 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(rng.To.Year(), quarterStartMonth(rng.To.Month()), 1, 0, 0, 0, 0, time.UTC)
		for t := start; !t.After(end); t = t.AddDate(0, 3, 0) {
			keys = append(keys, fmt.Sprintf("%04d-Q%d", t.Year(), (int(t.Month())-1)/3+1))
		}
	case models.DimMonth:
		start := time.Date(rng.From.Year(), rng.From.Month(), 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(rng.To.Year(), rng.To.Month(), 1, 0, 0, 0, 0, time.UTC)
		for t := start; !t.After(end); t = t.AddDate(0, 1, 0) {
			keys = append(keys, t.Format("2006-01"))
		}
	}
	return keys
}

func quarterStartMonth(m time.Month) time.Month {
	return time.Month((int(m)-1)/3*3 + 1)
}

// fillGroups merges observed counts into the requested key list, zero-filling
// absent groups. Observed keys outside the requested set are appended so
// nothing the query returned is dropped.
func fillGroups(requested []string, observed []models.ReportGroup) []models.ReportGroup {
	byKey := make(map[string]models.ReportGroup, len(observed))
	for _, g := range observed {
		byKey[g.Key] = g
	}

	groups := make([]models.ReportGroup, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, key := range requested {
		seen[key] = true
		if g, ok := byKey[key]; ok {
			groups = append(groups, g)
			continue
		}
		groups = append(groups, models.ReportGroup{Key: key})
	}
	for _, g := range observed {
		if !seen[g.Key] {
			groups = append(groups, g)
		}
	}
	return groups
}

func zeroGroups(requested []string) []models.ReportGroup {
	groups := make([]models.ReportGroup, 0, len(requested))
	for _, key := range requested {
		groups = append(groups, models.ReportGroup{Key: key})
	}
	return groups
}

func reportShape(dim models.Dimension, rng models.TimeRange) string {
	return fmt.Sprintf("report:%s:%s", dim, rangeShape(rng))
}

func rangeShape(rng models.TimeRange) string {
	from, to := "open", "open"
	if !rng.From.IsZero() {
		from = rng.From.Format("2006-01-02")
	}
	if !rng.To.IsZero() {
		to = rng.To.Format("2006-01-02")
	}
	return from + ".." + to
}
