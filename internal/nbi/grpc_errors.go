package nbi

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/vessel-systems/core"
	"github.com/signalsfoundry/vessel-systems/internal/persistence"
	sim "github.com/signalsfoundry/vessel-systems/internal/sim/state"
	"github.com/signalsfoundry/vessel-systems/kb"
)

// ToStatusError maps simulator errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, core.ErrVesselNotFound),
		errors.Is(err, kb.ErrVesselNotFound),
		errors.Is(err, core.ErrStructureNotFound),
		errors.Is(err, core.ErrPortNotFound),
		errors.Is(err, core.ErrComponentNotFound),
		errors.Is(err, core.ErrDoorNotFound),
		errors.Is(err, persistence.ErrSnapshotNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, core.ErrInvalidStructure),
		errors.Is(err, core.ErrInvalidCommand),
		errors.Is(err, persistence.ErrUnsupportedVersion):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, core.ErrDoorLocked),
		errors.Is(err, core.ErrAlreadyDocked),
		errors.Is(err, core.ErrNotDocked),
		errors.Is(err, sim.ErrVesselDocked):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, core.ErrVesselExists),
		errors.Is(err, kb.ErrVesselExists),
		errors.Is(err, core.ErrStructureExists):
		return status.Error(codes.AlreadyExists, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
