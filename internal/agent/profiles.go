package agent

import (
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/config"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/quiz"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/tools"
)

var (
	simpleTools = []tools.Kind{tools.KindClick, tools.KindFillText, tools.KindCallAPI, tools.KindReadFile, tools.KindSubmit}
	codeTools   = append(append([]tools.Kind{}, simpleTools...), tools.KindRunPython)
	proTools    = append(append([]tools.Kind{}, codeTools...), tools.KindScreenshot)
)

// ProfileSpec is the model and toolset a profile runs with.
type ProfileSpec struct {
	Profile quiz.Profile
	Model   string
	Tools   []tools.Kind
}

// Allows reports whether k is in the profile's toolset.
func (p ProfileSpec) Allows(k tools.Kind) bool {
	for _, t := range p.Tools {
		if t == k {
			return true
		}
	}
	return false
}

// ProfileSet resolves profiles to their specs.
type ProfileSet struct {
	specs map[quiz.Profile]ProfileSpec
}

// NewProfileSet binds each profile to its configured model. An empty model id
// resolves to the registry default at call time.
func NewProfileSet(cfg config.ProfilesConfig) ProfileSet {
	return ProfileSet{specs: map[quiz.Profile]ProfileSpec{
		quiz.ProfileSimple: {Profile: quiz.ProfileSimple, Model: cfg.SimpleModel, Tools: simpleTools},
		quiz.ProfileCode:   {Profile: quiz.ProfileCode, Model: cfg.CodeModel, Tools: codeTools},
		quiz.ProfilePro:    {Profile: quiz.ProfilePro, Model: cfg.ProModel, Tools: proTools},
	}}
}

// Spec returns the spec for p; unknown profiles get the most capable one.
func (s ProfileSet) Spec(p quiz.Profile) ProfileSpec {
	if spec, ok := s.specs[p]; ok {
		return spec
	}
	return s.specs[quiz.ProfilePro]
}

// FallbackProfile parses the configured routing fallback, defaulting to PRO.
func FallbackProfile(cfg config.ProfilesConfig) quiz.Profile {
	if p, ok := quiz.ParseProfile(cfg.Fallback); ok {
		return p
	}
	return quiz.ProfilePro
}

// Toolset returns the tools a profile may call.
func Toolset(p quiz.Profile) []tools.Kind {
	switch p {
	case quiz.ProfileSimple:
		return append([]tools.Kind(nil), simpleTools...)
	case quiz.ProfileCode:
		return append([]tools.Kind(nil), codeTools...)
	default:
		return append([]tools.Kind(nil), proTools...)
	}
}
