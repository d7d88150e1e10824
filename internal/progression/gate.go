// Package progression decides module entry and certification from recorded
// module outcomes. Nothing here performs I/O.
package progression

import (
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/training-assessment-service/internal/models"
)

// QuizlessPolicy says how a module without a quiz affects later modules.
type QuizlessPolicy string

const (
	// QuizlessBlock treats a quiz-less module as never passed.
	QuizlessBlock QuizlessPolicy = "block"
	// QuizlessPassThrough lets learners progress past quiz-less modules.
	QuizlessPassThrough QuizlessPolicy = "pass_through"
)

func ParseQuizlessPolicy(s string) (QuizlessPolicy, error) {
	switch QuizlessPolicy(s) {
	case QuizlessBlock, QuizlessPassThrough:
		return QuizlessPolicy(s), nil
	case "":
		return QuizlessBlock, nil
	}
	return "", fmt.Errorf("unknown quiz-less module policy %q", s)
}

// GatedModule is the slice of a training module the gate needs.
type GatedModule struct {
	ID           string
	Title        string
	HasQuiz      bool
	PassingScore int
}

// clearedBy reports whether o is a pass that still meets the module's current
// passing score, which may have been raised since o was recorded.
func (m GatedModule) clearedBy(o models.ModuleOutcome) bool {
	return o.Cleared() && o.Score >= m.PassingScore
}

// ModulesFromTraining lists the training's modules in order.
func ModulesFromTraining(t *models.Training) []GatedModule {
	modules := make([]GatedModule, len(t.Modules))
	for i, m := range t.Modules {
		passing := models.DefaultModulePassingScore
		if m.PassingScore != nil {
			passing = *m.PassingScore
		}
		modules[i] = GatedModule{ID: m.ID, Title: m.Title, HasQuiz: m.HasQuiz(), PassingScore: passing}
	}
	return modules
}

type Reason string

const (
	ReasonOpen          Reason = "open"
	ReasonFirstModule   Reason = "first module"
	ReasonUnknownModule Reason = "unknown module"
	ReasonNotAttempted  Reason = "previous module not attempted"
	ReasonNotPassed     Reason = "previous module not passed"
	ReasonBelowPassing  Reason = "previous module score below passing score"
	ReasonNoQuiz        Reason = "module has no quiz"
)

// Decision explains a gate verdict. BlockingIndex is -1 when nothing blocks.
type Decision struct {
	Allowed       bool   `json:"allowed"`
	ModuleIndex   int    `json:"module_index"`
	BlockingIndex int    `json:"blocking_index"`
	BlockingID    string `json:"blocking_module_id,omitempty"`
	Reason        Reason `json:"reason"`
}

type ModuleGate struct {
	modules []GatedModule
	policy  QuizlessPolicy
	logger  *slog.Logger
}

func NewModuleGate(modules []GatedModule, policy QuizlessPolicy, logger *slog.Logger) *ModuleGate {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == "" {
		policy = QuizlessBlock
	}
	return &ModuleGate{modules: modules, policy: policy, logger: logger}
}

// CanEnter reports whether the learner may enter the module at moduleIndex.
func (g *ModuleGate) CanEnter(moduleIndex int, outcomes []models.ModuleOutcome) bool {
	return g.Evaluate(moduleIndex, outcomes).Allowed
}

// Evaluate is CanEnter with the reason attached. Module 0 is always open;
// every earlier module needs an attempted, passed outcome scoring at least
// that module's passing score.
func (g *ModuleGate) Evaluate(moduleIndex int, outcomes []models.ModuleOutcome) Decision {
	d := Decision{ModuleIndex: moduleIndex, BlockingIndex: -1}

	if moduleIndex == 0 {
		d.Allowed = true
		d.Reason = ReasonFirstModule
		return d
	}
	if moduleIndex < 0 || moduleIndex >= len(g.modules) {
		d.Reason = ReasonUnknownModule
		return d
	}

	return g.check(d, moduleIndex, outcomes)
}

// EvaluateFinalExam opens the final exam once every module is cleared. Its
// ModuleIndex is the number of modules.
func (g *ModuleGate) EvaluateFinalExam(outcomes []models.ModuleOutcome) Decision {
	d := Decision{ModuleIndex: len(g.modules), BlockingIndex: -1}
	return g.check(d, len(g.modules), outcomes)
}

func (g *ModuleGate) check(d Decision, upto int, outcomes []models.ModuleOutcome) Decision {
	byModule := indexOutcomes(outcomes)
	for i := 0; i < upto; i++ {
		m := g.modules[i]

		if !m.HasQuiz {
			if g.policy == QuizlessPassThrough {
				continue
			}
			g.logger.Warn("Module without a quiz blocks progression",
				"module_id", m.ID,
				"module_index", i,
				"requested_index", upto)
			return blocked(d, i, m.ID, ReasonNoQuiz)
		}

		o, ok := byModule[m.ID]
		if !ok || !o.Attempted {
			return blocked(d, i, m.ID, ReasonNotAttempted)
		}
		if !o.Passed {
			return blocked(d, i, m.ID, ReasonNotPassed)
		}
		if !m.clearedBy(o) {
			return blocked(d, i, m.ID, ReasonBelowPassing)
		}
	}

	d.Allowed = true
	d.Reason = ReasonOpen
	return d
}

func blocked(d Decision, index int, id string, reason Reason) Decision {
	d.BlockingIndex = index
	d.BlockingID = id
	d.Reason = reason
	return d
}

func indexOutcomes(outcomes []models.ModuleOutcome) map[string]models.ModuleOutcome {
	byModule := make(map[string]models.ModuleOutcome, len(outcomes))
	for _, o := range outcomes {
		if o.FinalExam {
			continue
		}
		byModule[o.ModuleID] = o
	}
	return byModule
}
