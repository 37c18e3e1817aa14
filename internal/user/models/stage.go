package models

import (
	dErrors "monedero/pkg/domain-errors"
)

// RegistrationStage is the step of the onboarding flow a user has reached.
// The wire values are the canonical names used since the first version of the
// platform and must not change.
//
// Invariant: a stage only ever advances forward through the fixed sequence.
// No operation sets an arbitrary stage; the only mutation is AdvanceFrom on
// the User aggregate, plus the documented reset to pre_registro when a new
// verification is issued before registration completes.
type RegistrationStage string

const (
	StagePreRegistration      RegistrationStage = "pre_registro"
	StagePhoneConfirmed       RegistrationStage = "numero_confirmado"
	StageClientDataCompleted  RegistrationStage = "datos_cliente_completado"
	StageEmailRegistered      RegistrationStage = "correo_registrado"
	StageEmailVerified        RegistrationStage = "correo_verificado"
	StageBiometricsRegistered RegistrationStage = "datos_biometricos_registrado"
	StageTermsAccepted        RegistrationStage = "terminos_condiciones_aceptado"
	StageCompleted            RegistrationStage = "registro_completado"
)

// stageOrder fixes the forward-only sequence.
var stageOrder = map[RegistrationStage]int{
	StagePreRegistration:      0,
	StagePhoneConfirmed:       1,
	StageClientDataCompleted:  2,
	StageEmailRegistered:      3,
	StageEmailVerified:        4,
	StageBiometricsRegistered: 5,
	StageTermsAccepted:        6,
	StageCompleted:            7,
}

var stageSequence = []RegistrationStage{
	StagePreRegistration,
	StagePhoneConfirmed,
	StageClientDataCompleted,
	StageEmailRegistered,
	StageEmailVerified,
	StageBiometricsRegistered,
	StageTermsAccepted,
	StageCompleted,
}

// ParseRegistrationStage constructs a stage from external input.
func ParseRegistrationStage(s string) (RegistrationStage, error) {
	stage := RegistrationStage(s)
	if !stage.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown registration stage").
			WithParam("stage", s)
	}
	return stage, nil
}

// IsValid reports whether the stage is one of the known values.
func (s RegistrationStage) IsValid() bool {
	_, ok := stageOrder[s]
	return ok
}

// Next returns the following stage in the sequence. ok is false for the
// final stage.
func (s RegistrationStage) Next() (RegistrationStage, bool) {
	idx, known := stageOrder[s]
	if !known || idx == len(stageSequence)-1 {
		return "", false
	}
	return stageSequence[idx+1], true
}

// Completed reports whether the registration has reached the final stage.
func (s RegistrationStage) Completed() bool { return s == StageCompleted }

func (s RegistrationStage) String() string { return string(s) }
