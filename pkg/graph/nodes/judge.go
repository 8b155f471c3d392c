package nodes

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/mcs-logistics/shipmentqa/pkg/graph"
	"github.com/mcs-logistics/shipmentqa/pkg/models"
)

var numberTokenRe = regexp.MustCompile(`\d[\d,.]*\d|\d`)

// Judge verifies the composed answer against the evidence before it reaches
// the user. The check is deterministic: every numeric claim in the answer
// must literally appear in the evidence (or be the hit count). A failed
// check sends the turn back through the search planner up to the retry
// ceiling; after that the answer goes out flagged as unverified rather
// than looping forever.
type Judge struct {
	retryCeiling int
}

func (j *Judge) Name() string { return graph.NodeJudge }

func (j *Judge) Run(ctx context.Context, state *models.ConversationState) (graph.Outcome, error) {
	reason, ok := j.grounded(state)
	if ok {
		state.JudgeReason = ""
		return graph.OutcomeSatisfied, nil
	}

	if state.RetryCount >= j.retryCeiling {
		state.AddNotice("parts of this answer could not be verified against shipment records")
		return graph.OutcomeExhausted, nil
	}

	state.RetryCount++
	state.JudgeReason = reason
	return graph.OutcomeRetry, nil
}

// grounded checks the answer's numeric claims against the evidence token
// set. Answers without numbers pass; an apology over empty evidence passes.
func (j *Judge) grounded(state *models.ConversationState) (string, bool) {
	claims := numberTokenRe.FindAllString(state.Answer, -1)
	if len(claims) == 0 {
		return "", true
	}

	allowed := map[string]bool{
		// The hit count itself is a legitimate claim.
		fmt.Sprintf("%d", len(state.Evidence)): true,
	}
	for _, hit := range state.Evidence {
		for _, v := range hit.Fields {
			for _, tok := range numberTokenRe.FindAllString(v, -1) {
				allowed[normalizeNumber(tok)] = true
			}
		}
	}

	var ungrounded []string
	for _, claim := range claims {
		if !allowed[normalizeNumber(claim)] {
			ungrounded = append(ungrounded, claim)
		}
	}
	if len(ungrounded) == 0 {
		return "", true
	}
	return "the values " + strings.Join(ungrounded, ", ") + " are not in the retrieved records", false
}

// normalizeNumber strips formatting so "1,234" and "1234" compare equal.
func normalizeNumber(s string) string {
	s = strings.ReplaceAll(s, ",", "")
	return strings.TrimSuffix(s, ".")
}
