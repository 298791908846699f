package machine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/parklane/parkcore/internal/apierr"
	"github.com/parklane/parkcore/internal/opsalert"
	"github.com/parklane/parkcore/pkg/site"
)

// Service implements the machine and pallet operations of spec.md §4.D.
type Service struct {
	store  *Store
	alerts *opsalert.Notifier
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a machine Service.
func NewService(store *Store, alerts *opsalert.Notifier, logger *slog.Logger) *Service {
	return &Service{store: store, alerts: alerts, logger: logger, now: time.Now}
}

// CreateRequest holds the inputs for provisioning a new machine.
type CreateRequest struct {
	SiteID            uuid.UUID
	MachineCode       string
	KinematicType     string
	TargetVehicleType string
	Specifications    Specifications
	PalletCount       int
	OperatingHours    site.OperatingHours
}

// Create provisions a new machine with an auto-initialized pallet array
// (spec.md §4.D.2).
func (s *Service) Create(ctx context.Context, req CreateRequest, actor uuid.UUID) (Machine, error) {
	if _, err := s.store.GetByMachineCode(ctx, req.SiteID, req.MachineCode); err == nil {
		return Machine{}, apierr.Conflict("machine code already in use at this site")
	} else if err != pgx.ErrNoRows {
		return Machine{}, apierr.Wrap(apierr.KindInternal, "checking machine code uniqueness", err)
	}

	pallets := InitPallets(req.KinematicType, req.TargetVehicleType, req.PalletCount)
	return s.store.Create(ctx, CreateParams{
		SiteID:            req.SiteID,
		MachineCode:       req.MachineCode,
		KinematicType:     req.KinematicType,
		TargetVehicleType: req.TargetVehicleType,
		Specifications:    req.Specifications,
		Pallets:           pallets,
		OperatingHours:    req.OperatingHours,
		CreatedBy:         &actor,
	})
}

// Get returns a machine by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Machine, error) {
	m, err := s.store.GetByID(ctx, id)
	if err == pgx.ErrNoRows {
		return Machine{}, apierr.NotFound("machine")
	}
	if err != nil {
		return Machine{}, apierr.Wrap(apierr.KindInternal, "loading machine", err)
	}
	return m, nil
}

// List returns machines, optionally scoped to a site and/or status.
func (s *Service) List(ctx context.Context, siteID *uuid.UUID, status string, limit, offset int) ([]Machine, error) {
	machines, err := s.store.List(ctx, siteID, status, limit, offset)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "listing machines", err)
	}
	return machines, nil
}

// FindAvailable implements spec.md §4.D.7: candidate machines for a vehicle
// type that are online (IsOnline: a heartbeat within onlineThreshold), with
// at least one non-maintenance pallet that has a free slot, sorted by
// capacity.available descending.
func (s *Service) FindAvailable(ctx context.Context, vehicleType string, siteID *uuid.UUID) ([]Machine, error) {
	machines, err := s.store.ListAvailable(ctx, siteID, vehicleType)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "finding available machines", err)
	}

	now := s.now()
	out := machines[:0]
	for _, m := range machines {
		if m.IsOnline(now) && hasFreePallet(m.Pallets) {
			out = append(out, m)
		}
	}
	return out, nil
}

func hasFreePallet(pallets []Pallet) bool {
	for _, p := range pallets {
		if p.Status != PalletMaintenance && p.CurrentOccupancy < p.VehicleCapacity {
			return true
		}
	}
	return false
}

// OccupyPallet implements spec.md §4.D.3: the full five-precondition
// occupy algorithm, executed under a machine row lock so concurrent
// occupants on the same machine serialize rather than race.
func (s *Service) OccupyPallet(ctx context.Context, machineID uuid.UUID, palletKey string, bookingID uuid.UUID, plate string, requestedPosition int) (Machine, int, error) {
	var assignedPosition int

	m, err := s.store.WithLockedMachine(ctx, machineID, func(m *Machine) error {
		if m.Status != StatusOnline {
			return apierr.New(apierr.KindMachineOffline, "machine is not online")
		}
		palletNumber, ok := ResolvePalletKey(m.Pallets, palletKey)
		if !ok {
			return apierr.NotFound("pallet")
		}
		idx := findPallet(m.Pallets, palletNumber)
		if m.Pallets[idx].Status == PalletMaintenance {
			return apierr.New(apierr.KindPalletMaintenance, "pallet is under maintenance")
		}
		if m.Pallets[idx].CurrentOccupancy >= m.Pallets[idx].VehicleCapacity {
			return apierr.New(apierr.KindPalletFull, "pallet has no free capacity")
		}

		pos, err := occupyPallet(m.Pallets, palletNumber, bookingID, plate, m.TargetVehicleType, requestedPosition, s.now())
		if err != nil {
			return err
		}
		assignedPosition = pos
		return nil
	})
	if err == pgx.ErrNoRows {
		return Machine{}, 0, apierr.NotFound("machine")
	}
	if err != nil {
		return Machine{}, 0, err
	}
	return m, assignedPosition, nil
}

// ReleasePalletByBooking implements spec.md §4.D.4's first release key.
func (s *Service) ReleasePalletByBooking(ctx context.Context, machineID uuid.UUID, bookingID uuid.UUID) (Machine, error) {
	m, err := s.store.WithLockedMachine(ctx, machineID, func(m *Machine) error {
		if _, ok := releasePalletByBooking(m.Pallets, bookingID, s.now()); !ok {
			return apierr.New(apierr.KindOccupantNotFound, "no pallet holds this booking")
		}
		return nil
	})
	if err == pgx.ErrNoRows {
		return Machine{}, apierr.NotFound("machine")
	}
	return m, err
}

// ReleaseVehicle implements spec.md §4.D.4's second release key.
func (s *Service) ReleaseVehicle(ctx context.Context, machineID uuid.UUID, plate string) (Machine, error) {
	m, err := s.store.WithLockedMachine(ctx, machineID, func(m *Machine) error {
		if _, ok := releaseByVehicle(m.Pallets, plate, s.now()); !ok {
			return apierr.New(apierr.KindOccupantNotFound, "no pallet holds this vehicle")
		}
		return nil
	})
	if err == pgx.ErrNoRows {
		return Machine{}, apierr.NotFound("machine")
	}
	return m, err
}

// SetPalletMaintenance implements spec.md §4.D.5. Declaring maintenance on
// an occupied pallet does not force-release occupants; it only emits a
// warning alert (see internal/opsalert).
func (s *Service) SetPalletMaintenance(ctx context.Context, machineID uuid.UUID, palletKey, notes string) (Machine, error) {
	var machineCode string
	var palletNumber, occupants int
	var hadOccupants bool

	m, err := s.store.WithLockedMachine(ctx, machineID, func(m *Machine) error {
		machineCode = m.MachineCode
		n, ok := ResolvePalletKey(m.Pallets, palletKey)
		if !ok {
			return apierr.NotFound("pallet")
		}
		palletNumber = n
		had, err := setMaintenance(m.Pallets, n, notes, s.now())
		if err != nil {
			return err
		}
		hadOccupants = had
		if idx := findPallet(m.Pallets, n); idx >= 0 {
			occupants = m.Pallets[idx].CurrentOccupancy
		}
		return nil
	})
	if err == pgx.ErrNoRows {
		return Machine{}, apierr.NotFound("machine")
	}
	if err != nil {
		return Machine{}, err
	}

	if hadOccupants && s.alerts != nil {
		s.alerts.MaintenanceOnOccupiedPallet(ctx, machineCode, palletNumber, occupants, notes)
	}
	return m, nil
}

// ClearPalletMaintenance returns a pallet to service.
func (s *Service) ClearPalletMaintenance(ctx context.Context, machineID uuid.UUID, palletKey string) (Machine, error) {
	m, err := s.store.WithLockedMachine(ctx, machineID, func(m *Machine) error {
		n, ok := ResolvePalletKey(m.Pallets, palletKey)
		if !ok {
			return apierr.NotFound("pallet")
		}
		return clearMaintenance(m.Pallets, n)
	})
	if err == pgx.ErrNoRows {
		return Machine{}, apierr.NotFound("machine")
	}
	return m, err
}

// DeactivateMachine requires zero total occupancy across all pallets.
func (s *Service) DeactivateMachine(ctx context.Context, machineID uuid.UUID, actor uuid.UUID) (Machine, error) {
	m, err := s.Get(ctx, machineID)
	if err != nil {
		return Machine{}, err
	}
	for _, p := range m.Pallets {
		if p.CurrentOccupancy > 0 {
			return Machine{}, apierr.New(apierr.KindConflict, "machine has occupied pallets")
		}
	}
	if err := s.store.SetStatus(ctx, machineID, StatusOffline, &actor); err != nil {
		return Machine{}, apierr.Wrap(apierr.KindInternal, "deactivating machine", err)
	}
	m.Status = StatusOffline
	return m, nil
}

// UpdateHeartbeat implements spec.md §4.D.6.
func (s *Service) UpdateHeartbeat(ctx context.Context, machineID uuid.UUID, firmwareVersion string) error {
	if err := s.store.UpdateHeartbeat(ctx, machineID, s.now(), firmwareVersion, "connected"); err != nil {
		if err == pgx.ErrNoRows {
			return apierr.NotFound("machine")
		}
		return apierr.Wrap(apierr.KindInternal, "updating heartbeat", err)
	}
	return nil
}

// SweepStaleHeartbeats finds machines marked online whose heartbeat has gone
// stale past onlineThreshold and posts an alert for each. Intended to be
// called periodically by a background worker (see internal/app.Run).
func (s *Service) SweepStaleHeartbeats(ctx context.Context) error {
	if s.alerts == nil {
		return nil
	}

	now := s.now()
	stale, err := s.store.ListStaleHeartbeats(ctx, now, onlineThreshold)
	if err != nil {
		return fmt.Errorf("listing stale-heartbeat machines: %w", err)
	}

	for _, m := range stale {
		lastSeenAgo := "an unknown duration"
		if m.LastHeartbeat != nil {
			lastSeenAgo = now.Sub(*m.LastHeartbeat).Round(time.Second).String()
		}
		s.alerts.StaleHeartbeat(ctx, m.MachineCode, lastSeenAgo)
	}
	return nil
}
