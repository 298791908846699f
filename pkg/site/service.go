package site

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/parklane/parkcore/internal/apierr"
)

const (
	statsCacheTTL    = 30 * time.Second
	statsCachePrefix = "site:stats:"
)

// statsCacheKey returns the Redis key a site's cached statistics are stored
// under.
func statsCacheKey(siteID uuid.UUID) string {
	return statsCachePrefix + siteID.String()
}

// Service encapsulates site registry business logic.
type Service struct {
	store  *Store
	redis  *redis.Client
	logger *slog.Logger
}

// NewService creates a site Service backed by the given global pool and cache.
func NewService(pool *pgxpool.Pool, rdb *redis.Client, logger *slog.Logger) *Service {
	return &Service{
		store:  NewStore(pool),
		redis:  rdb,
		logger: logger,
	}
}

// CreateRequest is the payload for creating a site.
type CreateRequest struct {
	Name                 string
	Address              string
	Latitude             *float64
	Longitude            *float64
	OperatingHours       OperatingHours
	Pricing              Pricing
	DeclaredMachineCount int
	DeclaredCapacity     int
}

// Create registers a new site with a freshly minted site code.
func (s *Service) Create(ctx context.Context, req CreateRequest, actor uuid.UUID) (Site, error) {
	code, err := s.generateSiteCode(ctx)
	if err != nil {
		return Site{}, err
	}

	row, err := s.store.Create(ctx, CreateParams{
		SiteCode:             code,
		Name:                 req.Name,
		Address:              req.Address,
		Latitude:             req.Latitude,
		Longitude:            req.Longitude,
		OperatingHours:       req.OperatingHours,
		Pricing:              req.Pricing,
		DeclaredMachineCount: req.DeclaredMachineCount,
		DeclaredCapacity:     req.DeclaredCapacity,
		CreatedBy:            &actor,
	})
	if err != nil {
		return Site{}, apierr.Wrap(apierr.KindInternal, "creating site", err)
	}
	return row, nil
}

// generateSiteCode mints a short, unused site code of the form ST{6 hex
// chars}, retrying on the rare collision the way idgen's membership
// generators retry against a UniquenessChecker.
func (s *Service) generateSiteCode(ctx context.Context) (string, error) {
	const maxAttempts = 10
	for i := 0; i < maxAttempts; i++ {
		candidate := fmt.Sprintf("ST%06X", time.Now().UnixNano()%0xFFFFFF)
		_, err := s.store.GetBySiteCode(ctx, candidate)
		if errors.Is(err, pgx.ErrNoRows) {
			return candidate, nil
		}
		if err != nil {
			return "", apierr.Wrap(apierr.KindInternal, "generating site code", err)
		}
	}
	return "", apierr.New(apierr.KindInternal, "exhausted attempts generating a unique site code")
}

// Get fetches a site by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Site, error) {
	row, err := s.store.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Site{}, apierr.NotFound("site")
	}
	if err != nil {
		return Site{}, apierr.Wrap(apierr.KindInternal, "fetching site", err)
	}
	return row, nil
}

// List returns a page of sites, optionally filtered by status.
func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]Site, int, error) {
	items, err := s.store.List(ctx, status, limit, offset)
	if err != nil {
		return nil, 0, apierr.Wrap(apierr.KindInternal, "listing sites", err)
	}
	total, err := s.store.Count(ctx, status)
	if err != nil {
		return nil, 0, apierr.Wrap(apierr.KindInternal, "counting sites", err)
	}
	return items, total, nil
}

// UpdateRequest is the payload for updating a site's mutable fields.
type UpdateRequest struct {
	Name                 string
	Address              string
	Latitude             *float64
	Longitude            *float64
	OperatingHours       OperatingHours
	Pricing              Pricing
	DeclaredMachineCount int
	DeclaredCapacity     int
}

// Update modifies a site's mutable fields.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest, actor uuid.UUID) (Site, error) {
	row, err := s.store.Update(ctx, id, UpdateParams{
		Name:                 req.Name,
		Address:              req.Address,
		Latitude:             req.Latitude,
		Longitude:            req.Longitude,
		OperatingHours:       req.OperatingHours,
		Pricing:              req.Pricing,
		DeclaredMachineCount: req.DeclaredMachineCount,
		DeclaredCapacity:     req.DeclaredCapacity,
		UpdatedBy:            &actor,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return Site{}, apierr.NotFound("site")
	}
	if err != nil {
		return Site{}, apierr.Wrap(apierr.KindInternal, "updating site", err)
	}
	s.invalidateStats(ctx, id)
	return row, nil
}

// Deactivate transitions a site to inactive. Rejected if the site has any
// active bookings — operators must let those complete or cancel first. Once
// deactivated, every machine at the site is forced to offline, since an
// inactive site has no attendant to supervise retrieval/parking operations.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID, actor uuid.UUID) (Site, error) {
	activeBookings, err := s.store.CountActiveBookings(ctx, id)
	if err != nil {
		return Site{}, apierr.Wrap(apierr.KindInternal, "checking active bookings", err)
	}
	if activeBookings > 0 {
		return Site{}, apierr.New(apierr.KindConflict, "site has active bookings and cannot be deactivated")
	}

	row, err := s.store.SetStatus(ctx, id, StatusInactive, &actor)
	if errors.Is(err, pgx.ErrNoRows) {
		return Site{}, apierr.NotFound("site")
	}
	if err != nil {
		return Site{}, apierr.Wrap(apierr.KindInternal, "deactivating site", err)
	}

	if err := s.store.SetMachinesOffline(ctx, id); err != nil {
		return Site{}, apierr.Wrap(apierr.KindInternal, "forcing site machines offline", err)
	}

	s.invalidateStats(ctx, id)
	return row, nil
}

// DeletePermanently removes a site along with all of its user assignments.
// force must be true if the site still has machines or active bookings
// attached; in that case the machines and bookings are removed atomically
// with the site row itself, since neither table cascades from sites.
func (s *Service) DeletePermanently(ctx context.Context, id uuid.UUID, force bool, recordAudit func(detail json.RawMessage)) error {
	site, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	machineCount, err := s.store.CountActiveMachines(ctx, id)
	if err != nil {
		return apierr.Wrap(apierr.KindInternal, "checking site machines", err)
	}
	bookingCount, err := s.store.CountActiveBookings(ctx, id)
	if err != nil {
		return apierr.Wrap(apierr.KindInternal, "checking site bookings", err)
	}
	if (machineCount > 0 || bookingCount > 0) && !force {
		return apierr.New(apierr.KindConflict, "site has machines or active bookings attached; pass force=true to delete anyway")
	}

	if recordAudit != nil {
		detail, _ := json.Marshal(map[string]any{
			"siteCode":     site.SiteCode,
			"name":         site.Name,
			"machineCount": machineCount,
			"bookingCount": bookingCount,
			"forced":       force,
		})
		recordAudit(detail)
	}

	if force && (machineCount > 0 || bookingCount > 0) {
		if err := s.store.ForceDeleteWithDependents(ctx, id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apierr.NotFound("site")
			}
			return apierr.Wrap(apierr.KindInternal, "force-deleting site", err)
		}
		s.invalidateStats(ctx, id)
		return nil
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return apierr.Wrap(apierr.KindInternal, "deleting site", err)
	}
	s.invalidateStats(ctx, id)
	return nil
}

// AssignUser assigns a user to a site with the given role and permissions.
// If the user has no prior assignments, the new assignment is automatically
// marked primary.
func (s *Service) AssignUser(ctx context.Context, siteID, userID uuid.UUID, siteRole string, permissions []string) (UserAssignment, error) {
	existing, err := s.store.CountUserAssignments(ctx, userID)
	if err != nil {
		return UserAssignment{}, apierr.Wrap(apierr.KindInternal, "checking existing site assignments", err)
	}

	assignment, err := s.store.AssignUser(ctx, siteID, userID, siteRole, permissions, existing == 0)
	if err != nil {
		return UserAssignment{}, apierr.Wrap(apierr.KindInternal, "assigning user to site", err)
	}
	return assignment, nil
}

// Statistics returns a site's on-demand summary, served from a short-lived
// Redis cache to absorb dashboard polling.
func (s *Service) Statistics(ctx context.Context, siteID uuid.UUID) (Statistics, error) {
	cacheKey := statsCacheKey(siteID)

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var stats Statistics
			if json.Unmarshal(cached, &stats) == nil {
				return stats, nil
			}
		}
	}

	stats, err := s.store.Statistics(ctx, siteID)
	if err != nil {
		return Statistics{}, apierr.Wrap(apierr.KindInternal, "computing site statistics", err)
	}
	stats.ComputedAt = time.Now()

	if s.redis != nil {
		if raw, err := json.Marshal(stats); err == nil {
			if err := s.redis.Set(ctx, cacheKey, raw, statsCacheTTL).Err(); err != nil {
				s.logger.Warn("caching site statistics", "error", err, "site_id", siteID)
			}
		}
	}
	return stats, nil
}

func (s *Service) invalidateStats(ctx context.Context, siteID uuid.UUID) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, statsCacheKey(siteID)).Err(); err != nil {
		s.logger.Warn("invalidating site statistics cache", "error", err, "site_id", siteID)
	}
}
