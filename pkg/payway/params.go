package payway

import "net/url"

// Field is one name/value pair of a gateway request.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ParameterSet is an ordered set of string fields. Order matters because the
// gateway hashes a concatenation of values in a fixed sequence.
type ParameterSet struct {
	fields []Field
	index  map[string]int
}

// NewParameterSet returns a set holding every name with an empty value.
func NewParameterSet(names ...string) *ParameterSet {
	p := &ParameterSet{index: make(map[string]int, len(names))}
	for _, name := range names {
		p.Set(name, "")
	}
	return p
}

// Set replaces the value of an existing field or appends a new one.
func (p *ParameterSet) Set(name, value string) {
	if p.index == nil {
		p.index = make(map[string]int)
	}
	if i, ok := p.index[name]; ok {
		p.fields[i].Value = value
		return
	}
	p.index[name] = len(p.fields)
	p.fields = append(p.fields, Field{Name: name, Value: value})
}

func (p *ParameterSet) Get(name string) string {
	if p == nil {
		return ""
	}
	if i, ok := p.index[name]; ok {
		return p.fields[i].Value
	}
	return ""
}

func (p *ParameterSet) Has(name string) bool {
	if p == nil {
		return false
	}
	_, ok := p.index[name]
	return ok
}

func (p *ParameterSet) Len() int {
	if p == nil {
		return 0
	}
	return len(p.fields)
}

// Fields returns a copy of the fields in order.
func (p *ParameterSet) Fields() []Field {
	if p == nil {
		return nil
	}
	out := make([]Field, len(p.fields))
	copy(out, p.fields)
	return out
}

// Values returns the fields in the given order, empty for missing names.
func (p *ParameterSet) Values(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, p.Get(name))
	}
	return out
}

func (p *ParameterSet) Clone() *ParameterSet {
	out := NewParameterSet()
	for _, f := range p.Fields() {
		out.Set(f.Name, f.Value)
	}
	return out
}

// Form renders the set as url.Values for a form submission.
func (p *ParameterSet) Form() url.Values {
	form := url.Values{}
	for _, f := range p.Fields() {
		form.Set(f.Name, f.Value)
	}
	return form
}
