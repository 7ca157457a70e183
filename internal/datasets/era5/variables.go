package era5

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed variables.yaml
var variablesYAML []byte

// Variable maps a CDS request name to the variable in the returned file.
type Variable struct {
	Request  string `yaml:"request"`
	Name     string `yaml:"name"`
	Units    string `yaml:"units"`
	LongName string `yaml:"long_name"`
}

type catalog struct {
	SingleLevels []Variable `yaml:"single_levels"`
	Land         []Variable `yaml:"land"`
}

var variables = mustLoadCatalog(variablesYAML)

func mustLoadCatalog(b []byte) catalog {
	var c catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		panic(fmt.Sprintf("era5: bad variable catalog: %v", err))
	}
	return c
}

// Variables returns the variables of the single-levels or land family.
func Variables(land bool) []Variable {
	if land {
		return variables.Land
	}
	return variables.SingleLevels
}

// Lookup finds a variable by request name.
func Lookup(land bool, request string) (Variable, bool) {
	for _, v := range Variables(land) {
		if v.Request == request {
			return v, true
		}
	}
	return Variable{}, false
}
