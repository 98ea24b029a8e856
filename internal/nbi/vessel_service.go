package nbi

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/vessel-systems/core"
	"github.com/signalsfoundry/vessel-systems/internal/logging"
	"github.com/signalsfoundry/vessel-systems/internal/persistence"
	sim "github.com/signalsfoundry/vessel-systems/internal/sim/state"
	"github.com/signalsfoundry/vessel-systems/model"
)

// SnapshotStore is the subset of persistence.Store the service uses.
type SnapshotStore interface {
	Save(ctx context.Context, tick uint64, label string, snaps []model.VesselSnapshot) (persistence.Record, error)
	Load(ctx context.Context, id string) (persistence.Record, []model.VesselSnapshot, error)
	Latest(ctx context.Context) (persistence.Record, []model.VesselSnapshot, error)
	List(ctx context.Context) ([]persistence.Record, error)
}

// Request and response shapes carried in the Struct bodies.

type VesselRequest struct {
	VesselID int64 `json:"vessel_id"`
}

type VesselsResponse struct {
	Vessels []*model.VesselDefinition `json:"vessels"`
}

type DockRequest struct {
	ParentID   int64 `json:"parent_id"`
	ParentPort int   `json:"parent_port"`
	ChildID    int64 `json:"child_id"`
	ChildPort  int   `json:"child_port"`
}

type UndockRequest struct {
	VesselID int64 `json:"vessel_id"`
	Port     int   `json:"port"`
}

type DetailsRequest struct {
	VesselID    int64 `json:"vessel_id"`
	ChangedOnly bool  `json:"changed_only"`
}

type DetailsResponse struct {
	VesselID int64               `json:"vessel_id"`
	Tick     uint64              `json:"tick"`
	Details  model.VesselDetails `json:"details"`
}

type TelemetryResponse struct {
	Telemetry []*sim.VesselTelemetry `json:"telemetry"`
}

type SaveSnapshotRequest struct {
	Label string `json:"label,omitempty"`
}

type RestoreSnapshotRequest struct {
	// ID selects a snapshot; empty means the latest.
	ID string `json:"id,omitempty"`
}

type RestoreSnapshotResponse struct {
	Record  persistence.Record `json:"record"`
	Applied int                `json:"applied"`
}

type SnapshotsResponse struct {
	Snapshots []persistence.Record `json:"snapshots"`
}

// VesselService implements VesselServiceServer over a ScenarioState.
type VesselService struct {
	state *sim.ScenarioState
	store SnapshotStore
	log   logging.Logger
}

// NewVesselService wires the service. store may be nil, in which case
// the snapshot methods return Unavailable.
func NewVesselService(state *sim.ScenarioState, store SnapshotStore, log logging.Logger) *VesselService {
	if log == nil {
		log = logging.Noop()
	}
	return &VesselService{state: state, store: store, log: log}
}

func (s *VesselService) ensureReady() error {
	if s == nil || s.state == nil {
		return status.Error(codes.FailedPrecondition, "vessel service is not initialised")
	}
	return nil
}

// serve decodes in into a Req, runs fn and encodes its result.
func serve[Req any](s *VesselService, in *structpb.Struct, fn func(Req) (any, error)) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	var req Req
	if err := decodeStruct(in, &req); err != nil {
		return nil, ToStatusError(err)
	}
	out, err := fn(req)
	if err != nil {
		return nil, ToStatusError(err)
	}
	resp, err := encodeStruct(out)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

func (s *VesselService) ListVessels(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serve(s, in, func(struct{}) (any, error) {
		return VesselsResponse{Vessels: s.state.ListVessels()}, nil
	})
}

func (s *VesselService) GetVessel(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serve(s, in, func(req VesselRequest) (any, error) {
		return s.state.GetVessel(req.VesselID)
	})
}

func (s *VesselService) SpawnVessel(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serve(s, in, func(def model.VesselDefinition) (any, error) {
		if def.ID <= 0 || def.Class == "" {
			return nil, fmt.Errorf("%w: id and class are required", ErrInvalidRequest)
		}
		if err := s.state.SpawnVessel(&def); err != nil {
			return nil, err
		}
		s.logger(ctx).Info(ctx, "vessel spawned",
			logging.Int64("vessel_id", def.ID),
			logging.String("class", def.Class),
		)
		return s.state.GetVessel(def.ID)
	})
}

func (s *VesselService) RemoveVessel(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serve(s, in, func(req VesselRequest) (any, error) {
		return struct{}{}, s.state.RemoveVessel(req.VesselID)
	})
}

func (s *VesselService) Dock(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serve(s, in, func(req DockRequest) (any, error) {
		ctx, span := startVesselSpan(ctx, "ScenarioState.Dock", req.ChildID,
			attribute.Int64("parent.id", req.ParentID))
		err := s.state.Dock(ctx, req.ParentID, req.ParentPort, req.ChildID, req.ChildPort)
		endSpan(span, err)
		if err != nil {
			return nil, err
		}
		return s.state.GetVessel(req.ChildID)
	})
}

func (s *VesselService) Undock(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serve(s, in, func(req UndockRequest) (any, error) {
		return struct{}{}, s.state.Undock(ctx, req.VesselID, req.Port)
	})
}

func (s *VesselService) GetDetails(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serve(s, in, func(req DetailsRequest) (any, error) {
		d, err := s.state.Details(req.VesselID, req.ChangedOnly)
		if err != nil {
			return nil, err
		}
		return DetailsResponse{VesselID: req.VesselID, Tick: s.state.TickCount(), Details: d}, nil
	})
}

func (s *VesselService) Command(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serve(s, in, func(req CommandRequest) (any, error) {
		ctx, span := startVesselSpan(ctx, "VesselService.Command", req.VesselID,
			attribute.String("command", req.Command))

		var resp CommandResponse
		err := s.state.WithManager(req.VesselID, func(m *core.DistributionManager) error {
			var err error
			resp, err = applyCommand(m, req)
			return err
		})
		endSpan(span, err)
		if err != nil {
			return nil, err
		}
		s.logger(ctx).Debug(ctx, "command applied",
			logging.String("command", req.Command),
			logging.String("target", req.Target.String()),
		)
		return resp, nil
	})
}

func (s *VesselService) GetTelemetry(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serve(s, in, func(req VesselRequest) (any, error) {
		tel := s.state.Telemetry()
		if tel == nil {
			return nil, status.Error(codes.Unavailable, "telemetry is not enabled")
		}
		if req.VesselID == 0 {
			return TelemetryResponse{Telemetry: tel.ListAll()}, nil
		}
		entry := tel.Get(req.VesselID)
		if entry == nil {
			return nil, fmt.Errorf("%w: no telemetry for vessel %d", sim.ErrVesselNotFound, req.VesselID)
		}
		return TelemetryResponse{Telemetry: []*sim.VesselTelemetry{entry}}, nil
	})
}

func (s *VesselService) SaveSnapshot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serve(s, in, func(req SaveSnapshotRequest) (any, error) {
		if s.store == nil {
			return nil, errNoStore
		}
		return s.store.Save(ctx, s.state.TickCount(), req.Label, s.state.SnapshotAll())
	})
}

func (s *VesselService) RestoreSnapshot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serve(s, in, func(req RestoreSnapshotRequest) (any, error) {
		if s.store == nil {
			return nil, errNoStore
		}
		var (
			rec   persistence.Record
			snaps []model.VesselSnapshot
			err   error
		)
		if req.ID == "" {
			rec, snaps, err = s.store.Latest(ctx)
		} else {
			rec, snaps, err = s.store.Load(ctx, req.ID)
		}
		if err != nil {
			return nil, err
		}
		applied := s.state.Restore(ctx, snaps...)
		s.logger(ctx).Info(ctx, "snapshot restored",
			logging.String("snapshot_id", rec.ID),
			logging.Int("applied", applied),
		)
		return RestoreSnapshotResponse{Record: rec, Applied: applied}, nil
	})
}

func (s *VesselService) ListSnapshots(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serve(s, in, func(struct{}) (any, error) {
		if s.store == nil {
			return nil, errNoStore
		}
		recs, err := s.store.List(ctx)
		if err != nil {
			return nil, err
		}
		return SnapshotsResponse{Snapshots: recs}, nil
	})
}

var errNoStore = status.Error(codes.Unavailable, "snapshot store is not configured")

var _ VesselServiceServer = (*VesselService)(nil)

// logger prefers the request-scoped logger installed by the interceptor.
func (s *VesselService) logger(ctx context.Context) logging.Logger {
	if l := logging.LoggerFromContext(ctx); l != nil {
		return l
	}
	return s.log
}
