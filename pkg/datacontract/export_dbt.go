package datacontract

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/contractd/contractd/pkg/engine"
)

type dbtProject struct {
	Version int        `yaml:"version"`
	Models  []dbtModel `yaml:"models"`
}

type dbtModel struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Config      dbtConfig   `yaml:"config"`
	Columns     []dbtColumn `yaml:"columns"`
}

type dbtConfig struct {
	Meta         map[string]string `yaml:"meta,omitempty"`
	Materialized string            `yaml:"materialized"`
	Contract     dbtContract       `yaml:"contract"`
}

type dbtContract struct {
	Enforced bool `yaml:"enforced"`
}

type dbtColumn struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	DataType    string          `yaml:"data_type,omitempty"`
	Constraints []dbtConstraint `yaml:"constraints,omitempty"`
	Tests       []any           `yaml:"data_tests,omitempty"`
	Meta        map[string]any  `yaml:"meta,omitempty"`
}

type dbtConstraint struct {
	Type string `yaml:"type"`
}

// exportDBT renders a dbt models file. Column data types are set when the
// SQL dialect can be resolved; contract enforcement needs them.
func exportDBT(req *exportRequest) (string, error) {
	d, err := req.dialect()
	if err != nil {
		if !strings.EqualFold(req.opts.SQLServerType, engine.SQLServerTypeAuto) || engine.IsKind(err, engine.KindNotFound) {
			return "", err
		}
		d = nil
	}

	project := dbtProject{Version: 2}
	for _, m := range req.models {
		project.Models = append(project.Models, dbtModelFor(req.contract, m, d))
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(project); err != nil {
		return "", engine.Wrap(engine.KindInternal, err, "cannot render dbt models")
	}
	if err := enc.Close(); err != nil {
		return "", engine.Wrap(engine.KindInternal, err, "cannot render dbt models")
	}
	return buf.String(), nil
}

func dbtModelFor(c *Contract, m namedModel, d *Dialect) dbtModel {
	materialized := "table"
	if m.Type == "view" {
		materialized = "view"
	}
	model := dbtModel{
		Name:        m.Name,
		Description: m.Description,
		Config: dbtConfig{
			Materialized: materialized,
			Contract:     dbtContract{Enforced: d != nil},
		},
	}
	if c.ID != "" {
		model.Config.Meta = map[string]string{"data_contract": c.ID}
	}
	if c.Info.Owner != "" {
		if model.Config.Meta == nil {
			model.Config.Meta = map[string]string{}
		}
		model.Config.Meta["owner"] = c.Info.Owner
	}

	for name, f := range m.Fields.All() {
		col := dbtColumn{Name: name, Description: f.Description}
		if d != nil {
			col.DataType = d.ColumnType(f)
		}
		if f.Required || f.PrimaryKey {
			col.Constraints = append(col.Constraints, dbtConstraint{Type: "not_null"})
		}
		if f.Unique || f.PrimaryKey {
			col.Constraints = append(col.Constraints, dbtConstraint{Type: "unique"})
		}
		if len(f.Enum) > 0 {
			col.Tests = append(col.Tests, map[string]any{
				"accepted_values": map[string]any{"values": f.Enum},
			})
		}
		if f.PII || f.Classification != "" {
			col.Meta = map[string]any{}
			if f.PII {
				col.Meta["pii"] = true
			}
			if f.Classification != "" {
				col.Meta["classification"] = f.Classification
			}
		}
		model.Columns = append(model.Columns, col)
	}
	return model
}
