package rebalance

import (
	"context"
	"strings"

	"github.com/harborfin/drift/internal/interfaces"
	"github.com/harborfin/drift/internal/models"
)

// buildAdvisorRequest assembles the sanitized computation view sent to the
// advisory: constraints, per-security features, and the deterministic
// candidate lists. Nothing else about the user or portfolio leaves the process.
func buildAdvisorRequest(snapshot *models.PositionSnapshot, samples map[string]models.TimingSample, sells, buys []models.Candidate, constraints models.Constraints, risk *models.RiskStats) *interfaces.AdvisorRequest {
	features := make([]interfaces.SecurityFeatures, 0, len(snapshot.Positions))
	for _, p := range snapshot.Positions {
		if p.CurrentAllocationPct == nil || p.TargetAllocationPct == nil {
			continue
		}

		f := interfaces.SecurityFeatures{
			Ticker:           p.Ticker,
			CurrentPct:       *p.CurrentAllocationPct,
			TargetPct:        *p.TargetAllocationPct,
			Deviation:        *p.TargetAllocationPct - *p.CurrentAllocationPct,
			GapValue:         (*p.TargetAllocationPct - *p.CurrentAllocationPct) / 100 * snapshot.TotalValue,
			UnrealizedPnLPct: p.UnrealizedPnLPct,
			MarketValue:      p.MarketValue,
		}

		if sample, ok := samples[p.Ticker]; ok {
			price := sample.CurrentPrice
			percentile := sample.Percentile
			f.Price = &price
			f.TimingPercentile = &percentile
		}

		features = append(features, f)
	}

	return &interfaces.AdvisorRequest{
		PortfolioName: snapshot.PortfolioName,
		Constraints:   constraints,
		Features:      features,
		Sells:         sells,
		Buys:          buys,
		Risk:          risk,
	}
}

// advisorResult is the outcome of an advisory pass.
type advisorResult struct {
	applied bool
	summary string
	sells   []models.Action
	buys    []models.Action
}

// runAdvisor invokes the advisory with a bounded timeout and validates its
// output. Any failure (transport error, timeout, malformed or empty response,
// nothing surviving the validation funnel) yields applied=false and the
// caller keeps the deterministic result. Advisory failures are logged, never
// surfaced to the end user.
func (s *Service) runAdvisor(ctx context.Context, req *interfaces.AdvisorRequest, snapshot *models.PositionSnapshot, samples map[string]models.TimingSample, originalSellTotal float64) advisorResult {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.advisorTimeout)
	defer cancel()

	proposal, err := s.advisor.ProposeRebalance(timeoutCtx, req)
	if err != nil {
		s.logger.Warn().Err(err).Str("portfolio", req.PortfolioName).Msg("Advisor call failed, using deterministic result")
		return advisorResult{}
	}
	if proposal == nil {
		s.logger.Warn().Str("portfolio", req.PortfolioName).Msg("Advisor returned no proposal, using deterministic result")
		return advisorResult{}
	}

	sells, buys, ok := SanitizeProposal(proposal.Actions, snapshot.Tickers(), originalSellTotal, req.Constraints.CashAvailable)
	if !ok {
		s.logger.Warn().
			Str("portfolio", req.PortfolioName).
			Int("proposed", len(proposal.Actions)).
			Msg("Advisor proposal empty after validation, using deterministic result")
		return advisorResult{}
	}

	positionIndex := indexPositions(snapshot.Positions)

	return advisorResult{
		applied: true,
		summary: strings.TrimSpace(proposal.Summary),
		sells:   enrichProposed(sells, models.ActionSell, positionIndex, samples),
		buys:    enrichProposed(buys, models.ActionBuy, positionIndex, samples),
	}
}

// SanitizeProposal is the validation funnel for untrusted advisory output.
// It is mandatory even when the advisory is trusted: it is the correctness
// boundary that keeps an external component from violating portfolio-funding
// invariants. Steps, in order:
//
//  1. drop actions whose ticker is outside the known security universe
//  2. drop actions whose type is not Buy or Sell
//  3. drop actions with a non-positive amount
//  4. clamp confidence into [0, 1]
//  5. scale all sells down if they exceed the deterministic sell total, then
//     scale all buys down if they exceed post-scaling sells plus cash
//  6. round every amount to 2 decimals after scaling
//
// Returns ok=false when nothing survives; callers must then treat the
// proposal as not applied. Pure function.
func SanitizeProposal(proposed []models.ProposedAction, universe map[string]bool, originalSellTotal, cashAvailable float64) (sells, buys []models.ProposedAction, ok bool) {
	for _, p := range proposed {
		ticker := strings.ToUpper(strings.TrimSpace(p.Ticker))
		if !universe[ticker] {
			continue
		}

		actionType := strings.ToUpper(strings.TrimSpace(p.Action))
		if actionType != string(models.ActionBuy) && actionType != string(models.ActionSell) {
			continue
		}

		if p.Amount <= 0 {
			continue
		}

		sanitized := models.ProposedAction{
			Action:     actionType,
			Ticker:     ticker,
			Amount:     p.Amount,
			Confidence: clamp(p.Confidence, 0, 1),
			Reason:     p.Reason,
		}

		if actionType == string(models.ActionSell) {
			sells = append(sells, sanitized)
		} else {
			buys = append(buys, sanitized)
		}
	}

	// Sells may not exceed what the deterministic pass established as sellable.
	sellTotal := proposedTotal(sells)
	if sellTotal > originalSellTotal && sellTotal > 0 {
		scaleProposed(sells, originalSellTotal/sellTotal)
		sellTotal = proposedTotal(sells)
	}

	// Buys may not exceed sell proceeds plus cash.
	buyTotal := proposedTotal(buys)
	fundsAvailable := sellTotal + cashAvailable
	if buyTotal > fundsAvailable && buyTotal > 0 {
		if fundsAvailable <= 0 {
			buys = nil
		} else {
			scaleProposed(buys, fundsAvailable/buyTotal)
		}
	}

	sells = roundProposed(sells)
	buys = roundProposed(buys)

	if len(sells) == 0 && len(buys) == 0 {
		return nil, nil, false
	}
	return sells, buys, true
}

func proposedTotal(actions []models.ProposedAction) float64 {
	total := 0.0
	for _, a := range actions {
		total += a.Amount
	}
	return total
}

func scaleProposed(actions []models.ProposedAction, ratio float64) {
	for i := range actions {
		actions[i].Amount *= ratio
	}
}

// roundProposed rounds amounts to 2 decimals and drops anything that rounds
// to zero; amounts must stay strictly positive.
func roundProposed(actions []models.ProposedAction) []models.ProposedAction {
	kept := actions[:0]
	for _, a := range actions {
		a.Amount = round2(a.Amount)
		if a.Amount <= 0 {
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

// enrichProposed converts sanitized advisory actions into full Actions,
// attaching allocation context and timing data from the deterministic
// computation. Priority follows the advisory's ordering.
func enrichProposed(proposed []models.ProposedAction, actionType models.ActionType, positions map[string]models.Position, samples map[string]models.TimingSample) []models.Action {
	actions := make([]models.Action, 0, len(proposed))
	for i, p := range proposed {
		action := models.Action{
			Type:       actionType,
			Ticker:     p.Ticker,
			Amount:     p.Amount,
			Confidence: p.Confidence,
			Reason:     p.Reason,
			Priority:   i + 1,
		}
		if action.Reason == "" {
			action.Reason = "Proposed by advisor."
		}

		if pos, ok := positions[p.Ticker]; ok {
			if pos.CurrentAllocationPct != nil {
				action.CurrentAllocationPct = *pos.CurrentAllocationPct
			}
			if pos.TargetAllocationPct != nil {
				action.TargetAllocationPct = *pos.TargetAllocationPct
			}
			action.Deviation = round2(action.TargetAllocationPct - action.CurrentAllocationPct)
		}

		if sample, ok := samples[p.Ticker]; ok {
			price := sample.CurrentPrice
			percentile := sample.Percentile
			action.CurrentPrice = &price
			action.TimingPercentile = &percentile
		}

		actions = append(actions, action)
	}
	return actions
}

// indexPositions maps positions by ticker.
func indexPositions(positions []models.Position) map[string]models.Position {
	index := make(map[string]models.Position, len(positions))
	for _, p := range positions {
		index[p.Ticker] = p
	}
	return index
}
