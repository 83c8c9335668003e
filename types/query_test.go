package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchParamsValidation(t *testing.T) {
	assert.Nil(t, (&SearchParams{Query: "what is this"}).Validate())

	errs := (&SearchParams{}).Validate()
	assert.Contains(t, errs, "Query")

	errs = (&SearchParams{Query: "q", Limit: 500}).Validate()
	assert.Contains(t, errs, "Limit")
}

func TestChatParamsValidation(t *testing.T) {
	assert.Nil(t, (&ChatParams{Message: "hi"}).Validate())
	assert.Contains(t, (&ChatParams{}).Validate(), "Message")
}

func TestIngestParamsValidation(t *testing.T) {
	assert.Nil(t, (&IngestParams{DocumentID: "0f8fad5b-d9cb-469f-a165-70867728950e"}).Validate())
	assert.Contains(t, (&IngestParams{DocumentID: "not-a-uuid"}).Validate(), "DocumentID")
}
