package memory

import (
	"testing"

	"github.com/AutoByteus/autobyteus-sub000/pkg/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkingContextSnapshot_EpochIncrementsOncePerReset(t *testing.T) {
	s := NewWorkingContextSnapshot()
	require.Equal(t, 1, s.EpochID())

	inputs := [][]providers.Message{
		nil,
		{providers.SystemMessage("sys")},
		{providers.SystemMessage("sys"), providers.UserMessage("a"), providers.UserMessage("b")},
		{},
	}
	for i, msgs := range inputs {
		before := s.EpochID()
		s.Reset(msgs, nil)
		assert.Equal(t, before+1, s.EpochID(), "reset %d", i)
		assert.Equal(t, len(msgs), s.Len())
	}
	assert.Equal(t, 1+len(inputs), s.EpochID())
}

func TestWorkingContextSnapshot_AppendsInOrder(t *testing.T) {
	s := NewWorkingContextSnapshot()
	s.AppendUser("list files")
	s.AppendToolCalls([]providers.ToolCallSpec{{ID: "c1", Name: "list_dir", Arguments: map[string]interface{}{"path": "."}}})
	s.AppendToolResult("c1", "list_dir", []interface{}{"a.go"}, "")
	s.AppendAssistant("One file.", "looked at output")

	msgs := s.BuildMessages()
	require.Len(t, msgs, 4)
	assert.Equal(t, providers.RoleUser, msgs[0].Role)
	assert.Equal(t, "c1", msgs[1].ToolCalls()[0].ID)
	res, ok := msgs[2].ToolResult()
	require.True(t, ok)
	assert.Equal(t, providers.RoleTool, msgs[2].Role)
	assert.Equal(t, "list_dir", res.ToolName)
	assert.Equal(t, "looked at output", msgs[3].ReasoningContent)
	assert.Equal(t, 1, s.EpochID(), "appends never change the epoch")
}

func TestWorkingContextSnapshot_BuildMessagesReturnsCopy(t *testing.T) {
	s := NewWorkingContextSnapshot()
	s.AppendUser("hello")
	msgs := s.BuildMessages()
	msgs[0].Content = "mutated"

	again := s.BuildMessages()
	require.Len(t, again, 1)
	assert.Equal(t, "hello", again[0].Content)
}

func TestWorkingContextSnapshot_ResetKeepsCompactionTSWhenNil(t *testing.T) {
	s := NewWorkingContextSnapshot()
	ts := 1700000000.5
	s.Reset(nil, &ts)
	require.NotNil(t, s.LastCompactionTS)
	ts = 1
	assert.Equal(t, 1700000000.5, *s.LastCompactionTS, "reset copies the timestamp")

	s.Reset([]providers.Message{providers.UserMessage("x")}, nil)
	assert.Equal(t, 1700000000.5, *s.LastCompactionTS)
}
