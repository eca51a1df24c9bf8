package translate

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/dgallion1/doctrans/internal/htmldoc"
	"github.com/dgallion1/doctrans/internal/llm"
)

// FitStatus is the outcome of fitting one translated group back into the
// tree. It is produced once per group and never retracted.
type FitStatus string

const (
	// FitSuccess: exact match or trivial single-leaf replacement.
	FitSuccess FitStatus = "success"
	// FitCompromise: best-effort restructure applied despite an imperfect
	// fuzzy match.
	FitCompromise FitStatus = "compromise"
	// FitFail: no usable result after exhausting retries; tree untouched.
	FitFail FitStatus = "fail"
)

// restructTempGrowth multiplies the sampling temperature on each failed
// restructure attempt, nudging the model out of a deterministic rut.
const restructTempGrowth = 1.6

// fitIn reconciles a translated string against the original multi-node
// group, mutating the tree in place on FitSuccess or FitCompromise.
func (t *Translator) fitIn(ctx context.Context, group *htmldoc.InlineGroup, original, translated string) (FitStatus, error) {
	// Identical after normalization means the group needed no translation,
	// e.g. a code identifier.
	if MatchScore(group.String(), translated) == 1.0 {
		return FitSuccess, nil
	}
	if group.Len() == 1 {
		if err := group.ReplaceShred(0, translated); err != nil {
			return FitFail, err
		}
		return FitSuccess, nil
	}
	return t.restructure(ctx, group, original, translated)
}

type fitCandidate struct {
	score  float64
	shreds map[string]string
}

// restructure asks the model to split the translated text into fragments
// keyed by the group's shred indices, validates the fit, and applies the
// best candidate seen across all attempts.
func (t *Translator) restructure(ctx context.Context, group *htmldoc.InlineGroup, original, translated string) (FitStatus, error) {
	shredPairs := make([][2]string, group.Len())
	for i, shred := range group.Shreds {
		shredPairs[i] = [2]string{strconv.Itoa(i), shred}
	}
	prompt := restructUserPrompt(translated, original, encodeOrderedObject(shredPairs))

	session := llm.Session{Model: t.cfg.RestructModel, System: restructSystemPrompt}
	temperature := 0.01
	var candidates []fitCandidate

	for retry := 0; ; {
		attemptErr := func() error {
			content, _, err := t.complete(ctx, session, prompt, llm.Options{
				Temperature: temperature,
				JSONMode:    true,
			})
			if err != nil {
				return err
			}
			shredsOut, err := DecodeLooseObject(content)
			if err != nil {
				return err
			}
			score, msg := validateFit(group.Shreds, translated, shredsOut)
			candidates = append(candidates, fitCandidate{score: score, shreds: shredsOut})
			if msg != "" {
				return fmt.Errorf("imperfect fit: %s", msg)
			}
			return nil
		}()
		if attemptErr == nil {
			break
		}
		retry++
		temperature *= restructTempGrowth
		if retry > t.cfg.RestructMaxRetry {
			break
		}
		if ctx.Err() != nil {
			break
		}
		t.log.Debug("restructure attempt failed",
			"attempt", retry, "max_retry", t.cfg.RestructMaxRetry,
			"temperature", temperature, "error", attemptErr)
	}

	if len(candidates) == 0 {
		return FitFail, nil
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.score > best.score {
			best = c
		}
	}
	if err := applyCandidate(group, best.shreds); err != nil {
		return FitFail, err
	}
	if best.score < 1.0 {
		return FitCompromise, nil
	}
	return FitSuccess, nil
}

// validateFit checks whether a candidate split fits the original structure.
// It returns a score in [0, 1], where 1 is a perfect fit, and a diagnostic
// message when the fit is imperfect.
func validateFit(shredsIn []string, translated string, shredsOut map[string]string) (float64, string) {
	if len(shredsOut) != len(shredsIn) {
		return 0, fmt.Sprintf("shred count mismatch: in(%d) != out(%d)", len(shredsIn), len(shredsOut))
	}
	keys, err := numericKeys(shredsOut)
	if err != nil {
		return 0, err.Error()
	}
	var fit string
	for _, k := range keys {
		fit += shredsOut[k]
	}
	if score := MatchScore(translated, fit); score != 1.0 {
		return score, fmt.Sprintf("string mismatch: to_fit=%q fit=%q", translated, fit)
	}
	return 1.0, ""
}

// numericKeys returns the map's keys sorted by their integer value.
func numericKeys(m map[string]string) ([]string, error) {
	type kv struct {
		key string
		n   int
	}
	out := make([]kv, 0, len(m))
	for k := range m {
		n, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("non-numeric shred key %q", k)
		}
		out = append(out, kv{key: k, n: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].n < out[j].n })
	keys := make([]string, len(out))
	for i, e := range out {
		keys[i] = e.key
	}
	return keys, nil
}

// applyCandidate substitutes each shred by its assigned index. All indices
// are validated before any mutation so a bad candidate leaves the tree
// unmodified.
func applyCandidate(group *htmldoc.InlineGroup, shreds map[string]string) error {
	idx := make(map[int]string, len(shreds))
	for k, v := range shreds {
		i, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("non-numeric shred key %q", k)
		}
		if i < 0 || i >= group.Len() {
			return fmt.Errorf("shred key %d out of range (0..%d)", i, group.Len()-1)
		}
		idx[i] = v
	}
	for i, v := range idx {
		if err := group.ReplaceShred(i, v); err != nil {
			return err
		}
	}
	return nil
}
