package registry

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/dreamseed2025/formation-intake/internal/model"
)

// fixtureFile is the on-disk shape of a field-spec fixture.
type fixtureFile struct {
	Stages []model.StageSpec `yaml:"stages"`
}

// LoadStagesFromFile reads stage specs from a YAML fixture. The file holds
// a `stages` list, each entry a stage number and its fields.
func LoadStagesFromFile(path string) ([]model.StageSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read fixture")
	}

	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "registry: unmarshal fixture")
	}
	if len(f.Stages) == 0 {
		return nil, eris.Errorf("registry: fixture %s defines no stages", path)
	}
	return f.Stages, nil
}
