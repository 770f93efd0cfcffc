package resolver

import (
	"context"
	"fmt"
	"slices"

	"github.com/klauern/rulebook/internal/model"
)

// RelevanceJudge decides which intelligent-rule candidates apply to a query.
// It is the only place where relevance is decided; the resolver never
// guesses.
type RelevanceJudge interface {
	Select(ctx context.Context, candidates []model.Rule, q model.QueryContext) ([]model.Rule, error)
}

// JudgeFunc adapts a function to RelevanceJudge.
type JudgeFunc func(ctx context.Context, candidates []model.Rule, q model.QueryContext) ([]model.Rule, error)

// Select calls f.
func (f JudgeFunc) Select(ctx context.Context, candidates []model.Rule, q model.QueryContext) ([]model.Rule, error) {
	return f(ctx, candidates, q)
}

// NoneJudge selects nothing, leaving every candidate for the agent.
type NoneJudge struct{}

// Select implements RelevanceJudge.
func (NoneJudge) Select(context.Context, []model.Rule, model.QueryContext) ([]model.Rule, error) {
	return nil, nil
}

// AllJudge selects every candidate.
type AllJudge struct{}

// Select implements RelevanceJudge.
func (AllJudge) Select(_ context.Context, candidates []model.Rule, _ model.QueryContext) ([]model.Rule, error) {
	return slices.Clone(candidates), nil
}

// StaticJudge selects the candidates whose ids are listed. Unknown ids are
// ignored.
type StaticJudge struct {
	IDs []string
}

// Select implements RelevanceJudge.
func (j StaticJudge) Select(_ context.Context, candidates []model.Rule, _ model.QueryContext) ([]model.Rule, error) {
	var out []model.Rule
	for _, c := range candidates {
		if slices.Contains(j.IDs, c.ID) {
			out = append(out, c)
		}
	}
	return out, nil
}

// UnknownCandidateError is returned when a judge selects a rule that was not
// offered as a candidate.
type UnknownCandidateError struct {
	ID string
}

func (e *UnknownCandidateError) Error() string {
	return fmt.Sprintf("judge selected %q, which is not a candidate", e.ID)
}

// ResolveWithJudge resolves q and then asks judge to pick among the
// candidates. Picked rules are appended to Included after the deterministic
// set, in candidate order; the rest stay candidates.
func ResolveWithJudge(ctx context.Context, q model.QueryContext, src Source, judge RelevanceJudge) (model.ResolvedSet, error) {
	set := Resolve(q, src)
	if judge == nil || len(set.Candidates) == 0 {
		return set, nil
	}

	selected, err := judge.Select(ctx, slices.Clone(set.Candidates), q)
	if err != nil {
		return model.ResolvedSet{}, fmt.Errorf("relevance judge: %w", err)
	}
	if len(selected) == 0 {
		return set, nil
	}

	picked := make(map[string]bool, len(selected))
	for _, r := range selected {
		if !slices.ContainsFunc(set.Candidates, func(c model.Rule) bool { return c.ID == r.ID }) {
			return model.ResolvedSet{}, &UnknownCandidateError{ID: r.ID}
		}
		picked[r.ID] = true
	}

	remaining := make([]model.Rule, 0, len(set.Candidates)-len(picked))
	for _, c := range set.Candidates {
		if picked[c.ID] {
			set.Included = append(set.Included, c)
			set.Reasons[c.ID] = model.ReasonJudge
			continue
		}
		remaining = append(remaining, c)
	}
	set.Candidates = remaining
	set.ComposedText = Compose(set.Included, set.Candidates, set.Commands)
	return set, nil
}
