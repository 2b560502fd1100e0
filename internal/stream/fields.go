package stream

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/markis/omnom/internal/nom"
	"github.com/markis/omnom/internal/producer"
)

// FieldSpec names one field of a record and the literal that ends it.
type FieldSpec struct {
	Name       string
	Terminator []byte
}

// ParseFieldSpecs reads name=terminator pairs. Terminators accept Go string
// escapes, so `line=\n` ends a field at a newline.
func ParseFieldSpecs(specs []string) ([]FieldSpec, error) {
	if len(specs) == 0 {
		return nil, errors.New("no fields given")
	}
	out := make([]FieldSpec, 0, len(specs))
	seen := map[string]bool{}
	for _, s := range specs {
		name, lit, ok := strings.Cut(s, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid field %q: want name=terminator", s)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate field %q", name)
		}
		seen[name] = true

		term, err := strconv.Unquote(`"` + strings.ReplaceAll(lit, `"`, `\"`) + `"`)
		if err != nil {
			return nil, fmt.Errorf("invalid terminator for field %q: %w", name, err)
		}
		if term == "" {
			return nil, fmt.Errorf("empty terminator for field %q", name)
		}
		out = append(out, FieldSpec{Name: name, Terminator: []byte(term)})
	}
	return out, nil
}

// Record is one parsed set of fields, in the order they were declared.
type Record struct {
	Names  []string
	Values [][]byte
}

func (r Record) String() string {
	parts := make([]string, len(r.Names))
	for i, name := range r.Names {
		parts[i] = name + "=" + strconv.Quote(string(r.Values[i]))
	}
	return strings.Join(parts, " ")
}

// Records parses as many complete records as the input holds. Each field
// takes the bytes up to its terminator, and the terminator is consumed.
func Records(specs []FieldSpec) nom.Parser[[]Record] {
	names := make([]string, len(specs))
	fields := make([]nom.Field, 0, 2*len(specs))
	for i, spec := range specs {
		names[i] = spec.Name
		fields = append(fields,
			nom.Bind(spec.Name, nom.TakeUntil(spec.Terminator)),
			nom.Bind("", nom.Tag(spec.Terminator)),
		)
	}

	record := nom.Chain(func(b nom.Bindings) Record {
		r := Record{Names: names, Values: make([][]byte, len(names))}
		for i, name := range names {
			r.Values[i] = nom.Value[[]byte](b, name)
		}
		return r
	}, fields...)
	return nom.Many(record)
}

func recordChunk(r Record) (Chunk, bool) {
	return Chunk{Content: r.String() + "\n"}, true
}

// ProcessRecords pushes src through the record grammar built from specs and
// sends each record as a line.
func (p *Parser) ProcessRecords(src producer.Producer, specs []FieldSpec) {
	Drive(p, src, Records(specs), recordChunk)
}
