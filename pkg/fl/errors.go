package fl

import "errors"

var (
	ErrNoUpdates            = errors.New("no updates provided for aggregation")
	ErrDimensionMismatch    = errors.New("mismatched vector dimensions")
	ErrDuplicateAgent       = errors.New("duplicate agent update")
	ErrMissingWeight        = errors.New("missing agent weight")
	ErrZeroWeight           = errors.New("total agent weight is not positive")
	ErrUnknownRule          = errors.New("unknown aggregation rule")
	ErrUnknownDefense       = errors.New("unknown defense rule")
	ErrInvalidConfig        = errors.New("invalid aggregator configuration")
	ErrNegativeDiscriminant = errors.New("min-max attack: negative discriminant")
	ErrNoHonestAgents       = errors.New("no honest agents left")
	ErrUnknownFormat        = errors.New("unknown update format")
)
