package types

import (
	"bytes"
	"encoding/json"
)

type Validater interface {
	Validate() map[string]string
}

type SearchParams struct {
	Query     string  `json:"query" validate:"required"`
	TopK      int     `json:"top_k" validate:"omitempty,gte=1,lte=20"`
	Threshold float64 `json:"threshold" validate:"gte=0,lte=1"`
}

type PlanParams struct {
	Profile UserProfile `json:"profile"`
	Days    int         `json:"days" validate:"omitempty,gte=1,lte=7"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *SearchParams) Validate() map[string]string {
	return validateStruct(params)
}

// Validate checks the envelope only; the profile is validated by NewUserProfile.
func (params *PlanParams) Validate() map[string]string {
	if params.Days < 0 || params.Days > 7 {
		return map[string]string{"Days": "failed on 'lte' tag"}
	}
	return nil
}

// DecodePlanParams decodes a plan request strictly and builds its profile.
func DecodePlanParams(body []byte) (PlanParams, error) {
	var params PlanParams
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&params); err != nil {
		return PlanParams{}, NewValidationError(map[string]string{"body": err.Error()})
	}
	if errs := params.Validate(); len(errs) > 0 {
		return PlanParams{}, NewValidationError(errs)
	}
	profile, err := NewUserProfile(params.Profile)
	if err != nil {
		return PlanParams{}, err
	}
	params.Profile = profile
	return params, nil
}

type SearchResponse struct {
	Query   string            `json:"query"`
	Results []RetrievalResult `json:"results"`
}
