package resource

import (
	"encoding/json"
	"fmt"
)

// PolicyDocument is a parsed IAM resource policy.
type PolicyDocument struct {
	Version   string      `json:"Version,omitempty"`
	Statement []Statement `json:"Statement"`
}

// Statement is one policy statement. Principal keeps the raw principal
// values flattened to a list, "*" for an anonymous principal.
type Statement struct {
	Sid       string          `json:"Sid,omitempty"`
	Effect    string          `json:"Effect"`
	Principal []string        `json:"Principal,omitempty"`
	Action    []string        `json:"Action,omitempty"`
	Condition json.RawMessage `json:"Condition,omitempty"`
}

// ParsePolicy decodes a policy document. Statement may be a single object or
// a list, and Principal may be a string or a map of string or list values.
func ParsePolicy(raw string) (*PolicyDocument, error) {
	var doc struct {
		Version   string          `json:"Version"`
		Statement json.RawMessage `json:"Statement"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}

	var rawStatements []json.RawMessage
	if len(doc.Statement) > 0 {
		if doc.Statement[0] == '[' {
			if err := json.Unmarshal(doc.Statement, &rawStatements); err != nil {
				return nil, fmt.Errorf("decode statements: %w", err)
			}
		} else {
			rawStatements = []json.RawMessage{doc.Statement}
		}
	}

	out := &PolicyDocument{Version: doc.Version}
	for i, rs := range rawStatements {
		st, err := parseStatement(rs)
		if err != nil {
			return nil, fmt.Errorf("statement %d: %w", i, err)
		}
		out.Statement = append(out.Statement, st)
	}
	return out, nil
}

func parseStatement(raw json.RawMessage) (Statement, error) {
	var s struct {
		Sid       string          `json:"Sid"`
		Effect    string          `json:"Effect"`
		Principal json.RawMessage `json:"Principal"`
		Action    json.RawMessage `json:"Action"`
		Condition json.RawMessage `json:"Condition"`
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return Statement{}, err
	}

	principals, err := flattenPrincipal(s.Principal)
	if err != nil {
		return Statement{}, fmt.Errorf("principal: %w", err)
	}
	actions, err := stringOrList(s.Action)
	if err != nil {
		return Statement{}, fmt.Errorf("action: %w", err)
	}

	st := Statement{
		Sid:       s.Sid,
		Effect:    s.Effect,
		Principal: principals,
		Action:    actions,
	}
	if len(s.Condition) > 0 && string(s.Condition) != "null" {
		st.Condition = s.Condition
	}
	return st, nil
}

func flattenPrincipal(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '"' {
		return stringOrList(raw)
	}

	var byType map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byType); err != nil {
		return nil, err
	}
	var out []string
	for _, v := range byType {
		vals, err := stringOrList(v)
		if err != nil {
			return nil, err
		}
		out = append(out, vals...)
	}
	return out, nil
}

func stringOrList(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '[' {
		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return []string{s}, nil
}
