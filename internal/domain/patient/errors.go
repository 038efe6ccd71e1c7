package patient

import "errors"

var (
	ErrPatientNotFound            = errors.New("patient not found")
	ErrPatientAlreadyExists       = errors.New("patient with this id already exists")
	ErrInvalidStage               = errors.New("invalid care stage")
	ErrInvalidPriority            = errors.New("invalid priority value")
	ErrInvalidPatientCode         = errors.New("invalid patient code: expected PS followed by 5 digits")
	ErrReevaluationReasonRequired = errors.New("reevaluation reason is required")
	ErrReevaluationPending        = errors.New("a reevaluation request is already pending")
)
