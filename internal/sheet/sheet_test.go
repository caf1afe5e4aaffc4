package sheet_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadrallyhq/rally-api/internal/sheet"
	"github.com/roadrallyhq/rally-api/internal/types"
)

func TestParse(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		csv := strings.Join([]string{
			"location,description,max_points,judged",
			"1,Photo of the whole team at the fountain,10,no",
			"2,Best themed costume,25,yes",
			"2,Find the oldest gravestone,5,",
		}, "\n")

		tasks, err := sheet.Parse(context.Background(), strings.NewReader(csv))
		require.NoError(t, err)
		require.Len(t, tasks, 3)

		assert.Equal(t, types.CreateTaskRequest{
			Location:    1,
			Description: "Photo of the whole team at the fountain",
			MaxPoints:   10,
			Judged:      false,
		}, tasks[0])
		assert.True(t, tasks[1].Judged)
		assert.False(t, tasks[2].Judged)
	})

	t.Run("NoHeader", func(t *testing.T) {
		tasks, err := sheet.Parse(context.Background(), strings.NewReader("3,Sing the town anthem,15,true\n"))
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, 3, tasks[0].Location)
	})

	t.Run("RejectsBadLocation", func(t *testing.T) {
		csv := "location,description,max_points,judged\n0,Task,10,no\n"
		_, err := sheet.Parse(context.Background(), strings.NewReader(csv))
		assert.ErrorContains(t, err, "location must be positive")
	})

	t.Run("RejectsEmptyDescription", func(t *testing.T) {
		csv := "1,   ,10,no\n"
		_, err := sheet.Parse(context.Background(), strings.NewReader(csv))
		assert.ErrorContains(t, err, "empty description")
	})

	t.Run("RejectsBadJudgedFlag", func(t *testing.T) {
		csv := "1,Task,10,maybe\n"
		_, err := sheet.Parse(context.Background(), strings.NewReader(csv))
		assert.ErrorContains(t, err, "bad judged flag")
	})

	t.Run("RejectsWrongColumnCount", func(t *testing.T) {
		csv := "1,Task,10\n"
		_, err := sheet.Parse(context.Background(), strings.NewReader(csv))
		assert.Error(t, err)
	})

	t.Run("WholeSheetFailsOnOneBadRow", func(t *testing.T) {
		csv := "1,Good task,10,no\n2,Bad task,zero,no\n"
		_, err := sheet.Parse(context.Background(), strings.NewReader(csv))
		assert.ErrorContains(t, err, "row 2")
	})
}
