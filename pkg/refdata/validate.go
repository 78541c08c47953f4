package refdata

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/ohler55/ojg/oj"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/mod/semver"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mpapenbr/f1-race-predictor/pkg/model"
)

const (
	SupportedMajor    = "v1"
	MinCatalogVersion = "v1.0.0"
	schemaName        = "catalog.schema.json"
)

//go:embed data/catalog.schema.json
var catalogSchemaJSON string

var (
	catalogSchema = mustCompileSchema(catalogSchemaJSON, schemaName)
	schemaPrinter = message.NewPrinter(language.English)
)

func mustCompileSchema(raw, name string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}
	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// ValidateDocument checks a generic decoded document (as produced by yaml or
// ojg) against the catalog schema.
func ValidateDocument(doc any) error {
	// normalize numbers and maps to what the schema validator expects
	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(oj.JSON(doc)))
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrDataUnavailable, err)
	}
	err = catalogSchema.Validate(inst)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("%w: schema: %w", model.ErrDataUnavailable, err)
	}
	var msgs []string
	collectSchemaErrors(ve, &msgs)
	return fmt.Errorf("%w: schema: %s", model.ErrDataUnavailable, strings.Join(msgs, "; "))
}

func collectSchemaErrors(ve *jsonschema.ValidationError, msgs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/" + strings.Join(ve.InstanceLocation, "/")
		*msgs = append(*msgs,
			fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(schemaPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, msgs)
	}
}

// CheckVersion verifies the catalog version is compatible with this build.
// The "v" prefix is optional.
func CheckVersion(v string) error {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return fmt.Errorf("%w: invalid catalog version %q", model.ErrDataUnavailable, v)
	}
	if semver.Major(v) != SupportedMajor {
		return fmt.Errorf("%w: catalog version %s not supported (want %s.x)",
			model.ErrDataUnavailable, v, SupportedMajor)
	}
	if semver.Compare(v, MinCatalogVersion) < 0 {
		return fmt.Errorf("%w: catalog version %s is older than %s",
			model.ErrDataUnavailable, v, MinCatalogVersion)
	}
	return nil
}

// Check performs the checks the schema cannot express.
// All findings are reported in the returned error.
func Check(c *model.Catalog) error {
	errs := []error{}
	if err := CheckVersion(c.Version); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, checkUnique("model", c.Models,
		func(m model.ModelResult) string { return m.Name })...)
	errs = append(errs, checkUnique("feature", c.Features,
		func(f model.FeatureImportance) string { return f.Feature })...)
	errs = append(errs, checkUnique("race", c.Races,
		func(r model.RaceData) string { return r.Info.ID })...)
	for i := range c.Races {
		errs = append(errs, checkQualifying(&c.Races[i])...)
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", model.ErrDataUnavailable, errors.Join(errs...))
}

func checkUnique[T any](kind string, items []T, key func(T) string) []error {
	seen := make(map[string]struct{}, len(items))
	ret := []error{}
	for _, item := range items {
		k := key(item)
		if _, ok := seen[k]; ok {
			ret = append(ret, fmt.Errorf("duplicate %s %q", kind, k))
		}
		seen[k] = struct{}{}
	}
	return ret
}

// positions have to be unique and form the sequence 1..n
func checkQualifying(r *model.RaceData) []error {
	ret := checkUnique("qualifying driver in "+r.Info.ID, r.Qualifying,
		func(q model.QualifyingResult) string { return q.Driver })
	seen := make([]bool, len(r.Qualifying)+1)
	for _, q := range r.Qualifying {
		if q.Position < 1 || q.Position > len(r.Qualifying) || seen[q.Position] {
			ret = append(ret, fmt.Errorf("race %s: invalid qualifying position %d for %s",
				r.Info.ID, q.Position, q.Driver))
			continue
		}
		seen[q.Position] = true
	}
	return ret
}
