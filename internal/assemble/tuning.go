package assemble

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Tuning holds the knobs that shape report assembly. Values are
// loaded from YAML and fall back to defaults where omitted.
type Tuning struct {
	// QuickWinMaxUSD is the upper savings bound for a quick-win item.
	QuickWinMaxUSD float64 `yaml:"quick_win_max_usd"`
	// MajorMinUSD is the lower savings bound for a major project.
	// Anything between the two bounds is a medium-effort item.
	MajorMinUSD float64 `yaml:"major_min_usd"`
	// ExecutiveTopN bounds the opportunity list in executive reports.
	ExecutiveTopN int `yaml:"executive_top_n"`
}

// DefaultTuning returns the assembly defaults.
func DefaultTuning() Tuning {
	return Tuning{
		QuickWinMaxUSD: 500,
		MajorMinUSD:    2000,
		ExecutiveTopN:  10,
	}
}

// LoadTuning reads assembly tuning from a YAML file. Fields missing
// from the file keep their defaults.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()

	data, err := os.ReadFile(path)
	if err != nil {
		return t, eris.Wrapf(err, "assemble: read tuning %s", path)
	}

	// The YAML has a top-level "assembly" key
	var wrapper struct {
		Assembly Tuning `yaml:"assembly"`
	}
	wrapper.Assembly = t
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return t, eris.Wrap(err, "assemble: parse tuning")
	}

	out := wrapper.Assembly
	if out.QuickWinMaxUSD <= 0 {
		out.QuickWinMaxUSD = t.QuickWinMaxUSD
	}
	if out.MajorMinUSD <= out.QuickWinMaxUSD {
		// Inverted or missing bounds fall back together.
		out.QuickWinMaxUSD = t.QuickWinMaxUSD
		out.MajorMinUSD = t.MajorMinUSD
	}
	if out.ExecutiveTopN <= 0 {
		out.ExecutiveTopN = t.ExecutiveTopN
	}
	return out, nil
}

func (t Tuning) quickWinMax() decimal.Decimal {
	return decimal.NewFromFloat(t.QuickWinMaxUSD)
}

func (t Tuning) majorMin() decimal.Decimal {
	return decimal.NewFromFloat(t.MajorMinUSD)
}
