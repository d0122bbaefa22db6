package buildwire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateErrorsSingle(t *testing.T) {
	err := aggregateErrors("Build failed", []Message{
		{Text: "unexpected token", Location: &Location{File: "a.ts", Line: 3, Column: 7}},
	}, nil)

	assert.Equal(t, "Build failed with 1 error:\na.ts:3:7: error: unexpected token", err.Error())
	assert.Len(t, err.Errors, 1)
	assert.Empty(t, err.Warnings)
}

func TestAggregateErrorsNoLocation(t *testing.T) {
	err := aggregateErrors("Transform failed", []Message{{Text: "worker crashed"}}, nil)
	assert.Equal(t, "Transform failed with 1 error:\nerror: worker crashed", err.Error())
}

func TestAggregateErrorsTruncation(t *testing.T) {
	var errs []Message
	for i := 0; i < 7; i++ {
		errs = append(errs, Message{Text: "problem"})
	}

	err := aggregateErrors("Build failed", errs, nil)
	lines := strings.Split(err.Error(), "\n")

	// Header, six formatted lines, then the truncation marker.
	require.Len(t, lines, 8)
	assert.Equal(t, "Build failed with 7 errors:", lines[0])
	for _, line := range lines[1:7] {
		assert.Equal(t, "error: problem", line)
	}
	assert.Equal(t, "...", lines[7])

	// The structured list is never truncated.
	assert.Len(t, err.Errors, 7)
}

func TestAggregateErrorsAtLimitNoMarker(t *testing.T) {
	var errs []Message
	for i := 0; i < 6; i++ {
		errs = append(errs, Message{Text: "problem"})
	}

	err := aggregateErrors("Build failed", errs, nil)
	assert.NotContains(t, err.Error(), "...")
	assert.Len(t, strings.Split(err.Error(), "\n"), 7)
}

func TestAggregateErrorsDetachesLists(t *testing.T) {
	loc := &Location{File: "e.ts", Line: 1}
	errs := []Message{{Text: "bad", Location: loc}}
	warns := []Message{{Text: "meh"}}

	err := aggregateErrors("Build failed", errs, warns)
	loc.File = "mutated.ts"
	errs[0].Text = "mutated"

	require.Len(t, err.Errors, 1)
	assert.Equal(t, "bad", err.Errors[0].Text)
	assert.Equal(t, "e.ts", err.Errors[0].Location.File)
	assert.Equal(t, "meh", err.Warnings[0].Text)
}
