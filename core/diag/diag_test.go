package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiagnosticFormat(t *testing.T) {
	d := Errorf(SourceLoc{File: 1, Line: 4, Column: 7}, "bad %s", "operand")
	assert.Equal(t, "bad operand", d.Error())
	assert.Equal(t, "1:4:7: error: bad operand", d.Format())

	noLoc := Errorf(SourceLoc{}, "no location")
	assert.Equal(t, "error: no location", noLoc.Format())
}

func TestCodedError(t *testing.T) {
	d := CodedError(EhStackLeak, SourceLoc{}, "leak")
	assert.Equal(t, EhStackLeak, d.Code)
	assert.Equal(t, "EhStackLeak", d.Code.String())
	assert.Equal(t, SeverityError, d.Severity)
}

func TestCollectingSink(t *testing.T) {
	var sink CollectingSink
	sink.Report(Warningf(SourceLoc{}, "w1"))
	sink.Report(Warningf(SourceLoc{}, "w2"))
	assert.Len(t, sink.Diagnostics(), 2)
	sink.Clear()
	assert.Empty(t, sink.Diagnostics())
}

func TestAggregatePrependsWarnings(t *testing.T) {
	var sink CollectingSink
	sink.Report(Warningf(SourceLoc{}, "huge alloca"))
	failure := Errorf(SourceLoc{}, "missing terminator")

	combined := Aggregate(failure, sink.Diagnostics())
	assert.Contains(t, combined.Message, "huge alloca")
	assert.Contains(t, combined.Message, "missing terminator")

	// No warnings: the failure passes through untouched.
	same := Aggregate(failure, nil)
	assert.Equal(t, failure, same)
}
