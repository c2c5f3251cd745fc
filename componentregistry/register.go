// Package componentregistry registers every component of the DroneID
// gateway with a component registry.
package componentregistry

import (
	"errors"

	"github.com/alphafox02/antsdr-dji-droneid/component"
	pkgerrors "github.com/alphafox02/antsdr-dji-droneid/errors"
	"github.com/alphafox02/antsdr-dji-droneid/input/antsdr"
	"github.com/alphafox02/antsdr-dji-droneid/output/cot"
	"github.com/alphafox02/antsdr-dji-droneid/processor/droneid"
)

// Register registers the gateway's components with the provided registry:
//
//   - AntSDR input (TCP frame stream)
//   - DroneID processor (decode, validate, publish)
//   - CoT output (XML events over UDP for TAK)
func Register(registry *component.Registry) error {
	// Nil registry is a programming error (fatal), not invalid input
	if registry == nil {
		return pkgerrors.WrapFatal(
			errors.New("registry cannot be nil"),
			"ComponentRegistry", "Register", "registry validation")
	}

	if err := antsdr.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "AntSDR input component registration")
	}

	if err := droneid.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "DroneID processor component registration")
	}

	if err := cot.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "CoT output component registration")
	}

	return nil
}
