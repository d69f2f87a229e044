package widetable

import (
	"github.com/juju/errors"

	"github.com/myuser/widetable/internal/schema"
)

// SchemaError is returned when a write names a column family the table does
// not have.
type SchemaError = schema.FamilyError

// IsTableNotFound reports an operation on a table the connection does not know.
func IsTableNotFound(err error) bool {
	return errors.IsNotFound(err)
}

// IsTableExists reports a CreateTable on a name already taken.
func IsTableExists(err error) bool {
	return errors.IsAlreadyExists(err)
}

// IsInvalidArgument reports arguments rejected before any work began.
func IsInvalidArgument(err error) bool {
	return errors.IsNotValid(err)
}

// IsSchemaError reports a write to an unregistered column family.
func IsSchemaError(err error) bool {
	_, ok := errors.Cause(err).(*SchemaError)
	return ok
}
