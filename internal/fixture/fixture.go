// Package fixture loads YAML seed files and writes them through the
// repositories in a single transaction.
//
// A fixture is checked twice before anything is written: against the
// embedded CUE schema (value constraints) and by a strict YAML decode
// (unknown fields are rejected).
package fixture

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/roach88/lifeplan/internal/domain"
)

//go:embed schema.cue
var schemaSource string

// ErrInvalid is returned for fixtures that fail schema validation or
// strict decoding.
var ErrInvalid = errors.New("invalid fixture")

// File is a decoded fixture.
type File struct {
	Plans []Plan `yaml:"plans"`
}

type Plan struct {
	Name          string                       `yaml:"name"`
	UserID        string                       `yaml:"userId"`
	HouseholdType string                       `yaml:"householdType"`
	HousingType   domain.HousingType           `yaml:"housingType"`
	Preset        domain.HousingPreset         `yaml:"preset"`
	Scenarios     map[domain.ScenarioKey]Rates `yaml:"scenarios"`
	Monthly       []Month                      `yaml:"monthly"`
	Events        []Event                      `yaml:"events"`
}

type Rates struct {
	WageGrowthRate       decimal.Decimal `yaml:"wageGrowthRate"`
	InflationRate        decimal.Decimal `yaml:"inflationRate"`
	InvestmentReturnRate decimal.Decimal `yaml:"investmentReturnRate"`
}

type Month struct {
	Ym                    domain.YearMonth `yaml:"ym"`
	IncomeTotalYen        *int64           `yaml:"incomeTotalYen"`
	ExpenseTotalYen       *int64           `yaml:"expenseTotalYen"`
	AssetsBalanceYen      *int64           `yaml:"assetsBalanceYen"`
	LiabilitiesBalanceYen *int64           `yaml:"liabilitiesBalanceYen"`
	IsFinalized           *bool            `yaml:"isFinalized"`
	Note                  *string          `yaml:"note"`
	Items                 []Item           `yaml:"items"`
}

type Item struct {
	Kind      domain.ItemKind `yaml:"kind"`
	Category  string          `yaml:"category"`
	AmountYen int64           `yaml:"amountYen"`
	Note      string          `yaml:"note"`
}

type Event struct {
	EventType      string               `yaml:"eventType"`
	Title          string               `yaml:"title"`
	StartYm        domain.YearMonth     `yaml:"startYm"`
	Cadence        domain.Cadence       `yaml:"cadence"`
	DurationMonths int                  `yaml:"durationMonths"`
	AmountYen      int64                `yaml:"amountYen"`
	Direction      domain.FlowDirection `yaml:"direction"`
	Note           string               `yaml:"note"`
}

// Load reads and parses the fixture at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return Parse(path, data)
}

// Parse validates data against the schema, then decodes it strictly.
// name labels error positions.
func Parse(name string, data []byte) (*File, error) {
	if err := validate(name, data); err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return &f, nil
}

func validate(name string, data []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile fixture schema: %w", err)
	}

	file, err := cueyaml.Extract(name, data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, cueerrors.Details(err, nil))
	}

	v := schema.LookupPath(cue.ParsePath("#Fixture")).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, cueerrors.Details(err, nil))
	}
	return nil
}
