package resolve

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/biomap-cli/internal/model"
)

// StageError reports that a resolution stage could not complete because an
// external dependency failed. It never aborts the pipeline.
type StageError struct {
	Stage model.StageName
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("resolve: stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func parseScore(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "parse score %q", s)
	}
	return model.ClampConfidence(v), nil
}
