package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Param is one named action parameter. Order is the declaration order of
// the underlying function and is significant for the wire encoding.
type Param struct {
	Name string
	Node SchemaNode
}

// ActionDescriptor is one discovered callable as persisted in the manifest.
// Module is the source reference (import path + export name) used only for
// binding regeneration; the runtime contract does not require it.
type ActionDescriptor struct {
	Name        string
	Description string
	Params      []Param
	Module      string
}

// Manifest is the persisted, deterministic description of all discovered
// actions. It is the sole contract between generation time and run time.
type Manifest struct {
	Actions []ActionDescriptor `json:"actions"`
}

// Lookup returns the descriptor with the given name, or nil.
func (m *Manifest) Lookup(name string) *ActionDescriptor {
	for i := range m.Actions {
		if m.Actions[i].Name == name {
			return &m.Actions[i]
		}
	}
	return nil
}

// CheckUnique verifies that every action name appears at most once.
func (m *Manifest) CheckUnique() error {
	seen := make(map[string]bool, len(m.Actions))
	for _, a := range m.Actions {
		if a.Name == "" {
			return NewError(ErrCodeValidation, "action name is empty")
		}
		if seen[a.Name] {
			return NewErrorf(ErrCodeConflict, "duplicate action name %q in manifest", a.Name)
		}
		seen[a.Name] = true
	}
	return nil
}

// MarshalJSON emits the fields in the fixed order name, description,
// parameters, module, with parameters as an ordered JSON object.
func (a ActionDescriptor) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"name":`)
	name, err := json.Marshal(a.Name)
	if err != nil {
		return nil, err
	}
	buf.Write(name)
	buf.WriteString(`,"description":`)
	desc, err := json.Marshal(a.Description)
	if err != nil {
		return nil, err
	}
	buf.Write(desc)
	buf.WriteString(`,"parameters":{`)
	for i, p := range a.Params {
		if i > 0 {
			buf.WriteByte(',')
		}
		pn, err := json.Marshal(p.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(pn)
		buf.WriteByte(':')
		b, err := p.Node.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	if a.Module != "" {
		buf.WriteString(`,"module":`)
		mod, err := json.Marshal(a.Module)
		if err != nil {
			return nil, err
		}
		buf.Write(mod)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a descriptor, preserving parameter order.
func (a *ActionDescriptor) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok != json.Delim('{') {
		return fmt.Errorf("schema: action descriptor must be an object, got %v", tok)
	}

	out := ActionDescriptor{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		switch key {
		case "name":
			if err := dec.Decode(&out.Name); err != nil {
				return err
			}
		case "description":
			if err := dec.Decode(&out.Description); err != nil {
				return err
			}
		case "module":
			if err := dec.Decode(&out.Module); err != nil {
				return err
			}
		case "parameters":
			params, err := decodeParams(dec)
			if err != nil {
				return err
			}
			out.Params = params
		default:
			// Unknown fields are skipped for forward compatibility.
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return err
			}
		}
	}
	if _, err := dec.Token(); err != nil { // consume '}'
		return err
	}
	*a = out
	return nil
}

// decodeParams reads the parameters object preserving key order.
func decodeParams(dec *json.Decoder) ([]Param, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok != json.Delim('{') {
		return nil, fmt.Errorf("schema: parameters must be an object, got %v", tok)
	}

	var params []Param
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("schema: parameter name must be a string, got %v", keyTok)
		}
		node, err := decodeNode(dec)
		if err != nil {
			return nil, err
		}
		params = append(params, Param{Name: key, Node: node})
	}
	if _, err := dec.Token(); err != nil { // consume '}'
		return nil, err
	}
	return params, nil
}

// Encode renders the manifest to its canonical textual form: two-space
// indentation and a trailing newline. Given the same actions in the same
// order the output is byte-for-byte identical across runs.
func (m *Manifest) Encode() ([]byte, error) {
	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// Decode parses a manifest document and checks name uniqueness.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, NewErrorf(ErrCodeValidation, "manifest parse error: %s", err.Error()).WithCause(err)
	}
	if err := m.CheckUnique(); err != nil {
		return nil, err
	}
	return &m, nil
}
