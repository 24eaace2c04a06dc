// Package query builds the ordered fallback predicates used to shortlist
// library photos that may be copies of a source photo.
package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"phototagger/imageprocessor"
	"phototagger/metadata"
	"phototagger/types"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Tier names
const (
	TierMetadata = "metadata"
	TierFileName = "filename"
)

// Field is a catalogue column a clause can constrain
type Field string

const (
	FieldPath        Field = "path"
	FieldFileName    Field = "file_name"
	FieldFileNameKey Field = "file_name_key"
	FieldContentType Field = "content_type"
	FieldWidth       Field = "width"
	FieldHeight      Field = "height"
	FieldCameraModel Field = "camera_model"
	FieldCaptureTime Field = "capture_time"
)

// Operator compares a field with a literal
type Operator string

const (
	// OpEquals is exact equality
	OpEquals Operator = "="
	// OpEqualsFold is equality ignoring case. It compares the field's
	// folded key column with the folded value.
	OpEqualsFold Operator = "=~"
)

// foldColumns maps a field to the column holding its FoldKey
var foldColumns = map[Field]Field{
	FieldFileName: FieldFileNameKey,
}

// FoldKey returns the case-folded, NFC-normalized form of s. Two names
// that differ only in case, in any script, share a key.
func FoldKey(s string) string {
	return norm.NFC.String(cases.Fold().String(norm.NFC.String(s)))
}

// Clause is one (field, operator, value) constraint. Value is a string or an int.
type Clause struct {
	Field Field
	Op    Operator
	Value interface{}
}

// Predicate is one fallback tier. It is built once and never modified.
type Predicate struct {
	tier    string
	columns []Field
	clauses []Clause
}

// NewPredicate creates a predicate projecting columns and constrained by clauses
func NewPredicate(tier string, columns []Field, clauses ...Clause) Predicate {
	return Predicate{
		tier:    tier,
		columns: append([]Field(nil), columns...),
		clauses: append([]Clause(nil), clauses...),
	}
}

// Tier returns the tier name
func (p Predicate) Tier() string { return p.tier }

// Render produces the query text against table. scope, when not empty, is
// an already rendered condition ANDed in front of the clauses.
func (p Predicate) Render(table, scope string) string {
	cols := make([]string, len(p.columns))
	for i, c := range p.columns {
		cols[i] = string(c)
	}

	var conds []string
	if scope != "" {
		conds = append(conds, scope)
	}
	for _, c := range p.clauses {
		conds = append(conds, c.render())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(cols, ", "), table)
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	return b.String()
}

// String renders the predicate without a table for log output
func (p Predicate) String() string {
	parts := make([]string, len(p.clauses))
	for i, c := range p.clauses {
		parts[i] = c.render()
	}
	return p.tier + ": " + strings.Join(parts, " AND ")
}

func (c Clause) render() string {
	if c.Op == OpEqualsFold {
		key, ok := foldColumns[c.Field]
		if !ok {
			key = c.Field + "_key"
		}
		return fmt.Sprintf("%s = %s", key, Quote(FoldKey(fmt.Sprint(c.Value))))
	}
	return fmt.Sprintf("%s = %s", c.Field, Literal(c.Value))
}

// Escape doubles every single quote so s can sit inside a quoted literal
func Escape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// Quote returns s as a quoted, escaped string literal
func Quote(s string) string {
	return "'" + Escape(s) + "'"
}

// Literal renders a clause value. Integers are emitted bare; everything
// else is quoted.
func Literal(v interface{}) string {
	switch t := v.(type) {
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case string:
		return Quote(t)
	default:
		return Quote(fmt.Sprint(t))
	}
}

// Options controls tier construction
type Options struct {
	// CaptureOffset is the fixed UTC offset that capture wall-clock times are
	// interpreted in before comparison
	CaptureOffset time.Duration
}

// resultColumns is the projection every tier uses
var resultColumns = []Field{FieldPath}

// BuildTiers returns the lookup tiers for a source photo in the order they
// must be tried. The metadata tier is only present when camera model and
// capture time are both known; the file name tier is always last.
func BuildTiers(meta types.PhotoMetadata, opts Options) []Predicate {
	tiers := make([]Predicate, 0, 2)

	if meta.HasCaptureInfo() {
		tiers = append(tiers, NewPredicate(TierMetadata, resultColumns,
			Clause{Field: FieldContentType, Op: OpEquals, Value: imageprocessor.ContentTypeJPEG},
			Clause{Field: FieldCameraModel, Op: OpEquals, Value: meta.CameraModel},
			Clause{Field: FieldCaptureTime, Op: OpEquals, Value: metadata.FormatCaptureTime(meta.CaptureTime, opts.CaptureOffset)},
			Clause{Field: FieldWidth, Op: OpEquals, Value: meta.Width},
			Clause{Field: FieldHeight, Op: OpEquals, Value: meta.Height},
		))
	}

	tiers = append(tiers, NewPredicate(TierFileName, resultColumns,
		Clause{Field: FieldContentType, Op: OpEquals, Value: imageprocessor.ContentTypeJPEG},
		Clause{Field: FieldFileName, Op: OpEqualsFold, Value: meta.FileName},
		Clause{Field: FieldWidth, Op: OpEquals, Value: meta.Width},
		Clause{Field: FieldHeight, Op: OpEquals, Value: meta.Height},
	))

	return tiers
}
