// Package admission decides which buy signals of a cycle get funded.
package admission

import (
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rxtech-lab/argo-bitso/internal/logger"
	"github.com/rxtech-lab/argo-bitso/internal/types"
	"go.uber.org/zap"
)

// Policy selects signals when the budget cannot fund all of them.
type Policy string

const (
	PolicyFirstComeFirstServed Policy = "first_come_first_served"
	PolicyRandom               Policy = "random"
	PolicyEqualSplit           Policy = "equal_split"
)

// ParsePolicy maps a configured name to a policy. Unknown names fall back to
// first_come_first_served; ok reports whether the name was recognized.
func ParsePolicy(name string) (policy Policy, ok bool) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(name))); p {
	case PolicyFirstComeFirstServed, PolicyRandom, PolicyEqualSplit:
		return p, true
	default:
		return PolicyFirstComeFirstServed, false
	}
}

// Decision is the outcome of one admission round.
type Decision struct {
	Policy     Policy
	Affordable int
	// Admitted carries the currency amount to spend on each signal.
	Admitted []types.BuySignal
	Rejected []types.RejectedSignal
}

// Controller applies the configured policy.
type Controller struct {
	policy Policy
	rng    *rand.Rand
	logger *logger.Logger
}

// NewController creates a controller for the named policy. rng drives the
// random policy; nil seeds one from the clock.
func NewController(policyName string, rng *rand.Rand, log *logger.Logger) *Controller {
	policy, ok := ParsePolicy(policyName)
	if !ok {
		log.Warn("Unknown allocation strategy, using first_come_first_served", zap.String("strategy", policyName))
	}

	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}

	return &Controller{
		policy: policy,
		rng:    rng,
		logger: log,
	}
}

// Policy returns the effective policy.
func (c *Controller) Policy() Policy {
	return c.policy
}

// Select funds at most floor(budget/tradeSize) signals. When every signal is
// affordable all are admitted at tradeSize; otherwise the policy picks which
// ones. Signals that are not admitted are reported as rejected and dropped.
func (c *Controller) Select(signals []types.BuySignal, budget, tradeSize float64) Decision {
	decision := Decision{
		Policy:     c.policy,
		Affordable: affordable(budget, tradeSize),
		Admitted:   make([]types.BuySignal, 0, len(signals)),
		Rejected:   make([]types.RejectedSignal, 0),
	}

	if len(signals) == 0 {
		return decision
	}

	if decision.Affordable == 0 {
		for _, s := range signals {
			decision.Rejected = append(decision.Rejected, types.RejectedSignal{Signal: s, Reason: types.RejectReasonInsufficientFunds})
		}

		c.logger.Warn("Insufficient balance for any buy",
			zap.Float64("budget", budget),
			zap.Float64("trade_size", tradeSize),
			zap.Int("signals", len(signals)),
		)

		return decision
	}

	if len(signals) <= decision.Affordable {
		for _, s := range signals {
			s.Amount = tradeSize
			decision.Admitted = append(decision.Admitted, s)
		}

		return decision
	}

	selected := c.pick(len(signals), decision.Affordable)
	amount := tradeSize

	if c.policy == PolicyEqualSplit {
		amount = budget / float64(decision.Affordable)
	}

	for i, s := range signals {
		if selected[i] {
			s.Amount = amount
			decision.Admitted = append(decision.Admitted, s)

			continue
		}

		decision.Rejected = append(decision.Rejected, types.RejectedSignal{Signal: s, Reason: types.RejectReasonAllocationLimit})
	}

	c.logger.Info("Buy signals exceed budget",
		zap.String("policy", string(c.policy)),
		zap.Int("signals", len(signals)),
		zap.Int("admitted", len(decision.Admitted)),
		zap.Float64("amount_per_signal", amount),
	)

	for _, r := range decision.Rejected {
		c.logger.Info("Buy signal rejected",
			zap.String("pair", r.Signal.Pair.String()),
			zap.String("reason", string(r.Reason)),
		)
	}

	return decision
}

// pick marks k of n signal indexes.
func (c *Controller) pick(n, k int) []bool {
	selected := make([]bool, n)

	switch c.policy {
	case PolicyRandom:
		for _, i := range c.rng.Perm(n)[:k] {
			selected[i] = true
		}
	default:
		for i := 0; i < k; i++ {
			selected[i] = true
		}
	}

	return selected
}

func affordable(budget, tradeSize float64) int {
	if tradeSize <= 0 || budget <= 0 || math.IsNaN(budget) || math.IsInf(budget, 0) {
		return 0
	}

	return int(math.Floor(budget / tradeSize))
}
