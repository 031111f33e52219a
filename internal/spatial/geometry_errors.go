package spatial

import (
	stderrors "errors"
	"fmt"
)

var errEmptyGeometry = stderrors.New("empty geometry")

type errNotPolygonal struct {
	geometryType string
}

func (e errNotPolygonal) Error() string {
	return fmt.Sprintf("geometry type %s is not polygonal", e.geometryType)
}
