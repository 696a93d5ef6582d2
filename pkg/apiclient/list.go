package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
)

// List is a page of results. Next and Previous are empty when the server
// returned a bare array.
type List[T any] struct {
	Count    int    `json:"count"`
	Next     string `json:"next,omitempty"`
	Previous string `json:"previous,omitempty"`
	Results  []T    `json:"results"`
}

type page[T any] struct {
	Count    *int    `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// NormalizeList accepts either a JSON array or a paginated object and always
// returns a List. Anything else yields an empty list. Results is never nil.
func NormalizeList[T any](raw []byte) (List[T], error) {
	raw = bytes.TrimSpace(raw)
	out := List[T]{Results: []T{}}
	if len(raw) == 0 {
		return out, nil
	}

	switch raw[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return out, errors.Join(ErrDecodeResponse, err)
		}
		if items != nil {
			out.Results = items
		}
		out.Count = len(out.Results)
		return out, nil

	case '{':
		var p page[T]
		if err := json.Unmarshal(raw, &p); err != nil {
			return out, errors.Join(ErrDecodeResponse, err)
		}
		if p.Results == nil {
			return out, nil
		}
		out.Results = p.Results
		out.Count = len(out.Results)
		if p.Count != nil {
			out.Count = *p.Count
		}
		if p.Next != nil {
			out.Next = *p.Next
		}
		if p.Previous != nil {
			out.Previous = *p.Previous
		}
		return out, nil
	}
	return out, nil
}
