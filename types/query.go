package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

type SearchParams struct {
	Query     string `json:"query" validate:"required"`
	Limit     int    `json:"limit" validate:"omitempty,gt=0,lte=100"`
	Hybrid    *bool  `json:"hybrid,omitempty"`
	Graph     *bool  `json:"graph,omitempty"`
	Reranking *bool  `json:"reranking,omitempty"`
}

type ChatParams struct {
	Message string        `json:"message" validate:"required"`
	History []ChatMessage `json:"history"`
	Stream  bool          `json:"stream"`
}

type IngestParams struct {
	DocumentID string `json:"document_id" validate:"required,uuid"`
}

func (params *SearchParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *ChatParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *IngestParams) Validate() map[string]string {
	return validateStruct(params)
}

func validateStruct(v any) map[string]string {
	validate := validator.New()
	if err := validate.Struct(v); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}
