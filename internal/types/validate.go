package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateRecord checks a stage record against its struct tags. Callers
// quarantine records that fail instead of aborting the batch.
func ValidateRecord(record any) error {
	if err := validate.Struct(record); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("invalid record: field %s failed %q", first.Field(), first.Tag())
		}
		return fmt.Errorf("invalid record: %w", err)
	}
	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}
