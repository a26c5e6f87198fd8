package extraction

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRecordsOK(t *testing.T) {
	records := []QuestionRecord{
		{Number: 1, PromptText: "問1"},
		{Number: 2, PromptText: "問2"},
	}
	assert.NoError(t, ValidateRecords(records))
	assert.NoError(t, ValidateRecords(nil))
}

func TestValidateRecordsMissingPrompt(t *testing.T) {
	err := ValidateRecords([]QuestionRecord{{Number: 1}})
	require.Error(t, err)

	var exErr *Error
	require.True(t, errors.As(err, &exErr))
	assert.Equal(t, CodeGenerationFailed, exErr.Code)
	assert.True(t, exErr.Retriable)
}

func TestValidateRecordsDuplicateNumber(t *testing.T) {
	err := ValidateRecords([]QuestionRecord{
		{Number: 1, PromptText: "問1"},
		{Number: 1, PromptText: "問2"},
	})
	require.Error(t, err)

	var exErr *Error
	require.True(t, errors.As(err, &exErr))
	assert.True(t, exErr.Retriable)
}
