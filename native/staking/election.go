package staking

import (
	"math/big"
	"sort"
)

// The proportional election below is a sequential Phragmén. Scores and voter
// loads are exact rationals (big.Rat); given identical inputs every node
// derives bit-identical winners and assignments. Ties on score resolve to the
// candidate appearing first in the address-sorted candidate list.

type electionVoter struct {
	who     [20]byte
	targets [][20]byte
}

type electionCandidate struct {
	who           [20]byte
	approvalStake *big.Int
	score         *big.Rat
	elected       bool
}

type electionEdge struct {
	candidate *electionCandidate
	load      *big.Rat
}

type electionBallot struct {
	who    [20]byte
	self   bool
	budget *big.Int
	load   *big.Rat
	edges  []*electionEdge
}

type assignmentEdge struct {
	candidate [20]byte
	ratio     *big.Rat
}

type voterAssignment struct {
	who          [20]byte
	distribution []assignmentEdge
}

type electionResult struct {
	winners     [][20]byte
	assignments []voterAssignment
}

// elect runs the proportional election: up to validatorCount winners from
// candidates, weighted by each voter's power spread over its approved
// targets. Candidates vote for themselves. Returns nil when fewer than
// minValidatorCount candidates exist.
func elect(validatorCount, minValidatorCount int, candidates [][20]byte, voters []electionVoter, powerOf func([20]byte) *big.Int) *electionResult {
	if minValidatorCount < 1 {
		minValidatorCount = 1
	}
	if len(candidates) < minValidatorCount {
		return nil
	}

	index := make(map[[20]byte]*electionCandidate, len(candidates))
	ordered := make([]*electionCandidate, 0, len(candidates))
	for _, who := range candidates {
		c := &electionCandidate{who: who, approvalStake: big.NewInt(0), score: new(big.Rat)}
		index[who] = c
		ordered = append(ordered, c)
	}

	ballots := make([]*electionBallot, 0, len(voters)+len(candidates))
	for _, voter := range voters {
		ballot := &electionBallot{who: voter.who, budget: powerOf(voter.who), load: new(big.Rat)}
		for _, target := range voter.targets {
			candidate, ok := index[target]
			if !ok {
				continue
			}
			ballot.edges = append(ballot.edges, &electionEdge{candidate: candidate, load: new(big.Rat)})
		}
		if len(ballot.edges) == 0 || ballot.budget.Sign() <= 0 {
			continue
		}
		ballots = append(ballots, ballot)
	}
	// Candidates are voters as well: a self-vote carrying their own power.
	for _, candidate := range ordered {
		budget := powerOf(candidate.who)
		if budget.Sign() <= 0 {
			continue
		}
		ballots = append(ballots, &electionBallot{
			who:    candidate.who,
			self:   true,
			budget: budget,
			load:   new(big.Rat),
			edges:  []*electionEdge{{candidate: candidate, load: new(big.Rat)}},
		})
	}

	for _, ballot := range ballots {
		for _, edge := range ballot.edges {
			edge.candidate.approvalStake.Add(edge.candidate.approvalStake, ballot.budget)
		}
	}

	rounds := validatorCount
	if rounds > len(ordered) {
		rounds = len(ordered)
	}

	winners := make([][20]byte, 0, rounds)
	for round := 0; round < rounds; round++ {
		for _, candidate := range ordered {
			if candidate.elected || candidate.approvalStake.Sign() <= 0 {
				continue
			}
			candidate.score = new(big.Rat).SetFrac(big.NewInt(1), candidate.approvalStake)
		}
		for _, ballot := range ballots {
			if ballot.load.Sign() == 0 {
				continue
			}
			contribution := new(big.Rat).Mul(ballot.load, new(big.Rat).SetInt(ballot.budget))
			for _, edge := range ballot.edges {
				if edge.candidate.elected || edge.candidate.approvalStake.Sign() <= 0 {
					continue
				}
				edge.candidate.score.Add(edge.candidate.score, new(big.Rat).Quo(contribution, new(big.Rat).SetInt(edge.candidate.approvalStake)))
			}
		}

		var winner *electionCandidate
		for _, candidate := range ordered {
			if candidate.elected || candidate.approvalStake.Sign() <= 0 {
				continue
			}
			if winner == nil || candidate.score.Cmp(winner.score) < 0 {
				winner = candidate
			}
		}
		if winner == nil {
			break
		}
		winner.elected = true
		winners = append(winners, winner.who)

		for _, ballot := range ballots {
			for _, edge := range ballot.edges {
				if edge.candidate != winner {
					continue
				}
				edge.load = new(big.Rat).Sub(winner.score, ballot.load)
				ballot.load = winner.score
			}
		}
	}

	if len(winners) < minValidatorCount {
		return nil
	}

	assignments := make([]voterAssignment, 0, len(ballots))
	for _, ballot := range ballots {
		if ballot.self || ballot.load.Sign() == 0 {
			continue
		}
		assignment := voterAssignment{who: ballot.who}
		for _, edge := range ballot.edges {
			if !edge.candidate.elected || edge.load.Sign() == 0 {
				continue
			}
			assignment.distribution = append(assignment.distribution, assignmentEdge{
				candidate: edge.candidate.who,
				ratio:     new(big.Rat).Quo(edge.load, ballot.load),
			})
		}
		if len(assignment.distribution) > 0 {
			assignments = append(assignments, assignment)
		}
	}

	return &electionResult{winners: winners, assignments: assignments}
}

type support struct {
	own    *big.Int
	total  *big.Int
	others []IndividualExposure
}

// selectValidators reassigns Stakers from the assembled validator and
// nominator maps, returning the new SlotStake and elected set. A nil set
// means too few candidates stood; the previous exposures stay untouched.
func (m *Module) selectValidators() (*big.Int, [][20]byte, error) {
	candidates, err := m.validatorStashes()
	if err != nil {
		return nil, nil, err
	}
	nominators, err := m.nominatorStashes()
	if err != nil {
		return nil, nil, err
	}
	voters := make([]electionVoter, 0, len(nominators))
	for _, nominator := range nominators {
		targets, ok, err := m.nominationsOf(nominator)
		if err != nil {
			return nil, nil, err
		}
		if !ok || len(targets) == 0 {
			continue
		}
		voters = append(voters, electionVoter{who: nominator, targets: targets})
	}
	validatorCount, err := m.validatorCount()
	if err != nil {
		return nil, nil, err
	}

	result := elect(
		int(validatorCount),
		int(m.params.minimumValidatorCount()),
		candidates,
		voters,
		m.PowerOf,
	)
	if result == nil {
		// Not enough candidates for even the minimal level of functionality.
		// Keep the previous set and SlotStake.
		stake, err := m.slotStake()
		if err != nil {
			return nil, nil, err
		}
		return stake, nil, nil
	}

	supports := make(map[[20]byte]*support, len(result.winners))
	for _, winner := range result.winners {
		own := m.PowerOf(winner)
		supports[winner] = &support{own: own, total: new(big.Int).Set(own)}
	}
	for _, assignment := range result.assignments {
		nominatorPower := m.PowerOf(assignment.who)
		for _, edge := range assignment.distribution {
			target, ok := supports[edge.candidate]
			if !ok {
				continue
			}
			share := ratMulInt(edge.ratio, nominatorPower)
			target.total.Add(target.total, share)
			target.others = append(target.others, IndividualExposure{Who: assignment.who, Value: share})
		}
	}

	if m.params.Equalize {
		staked := make([]stakedAssignment, 0, len(result.assignments))
		for _, assignment := range result.assignments {
			nominatorPower := m.PowerOf(assignment.who)
			edges := make([]stakedEdge, 0, len(assignment.distribution))
			for _, edge := range assignment.distribution {
				edges = append(edges, stakedEdge{
					candidate: edge.candidate,
					stake:     ratMulInt(edge.ratio, nominatorPower),
				})
			}
			staked = append(staked, stakedAssignment{who: assignment.who, edges: edges})
		}
		equalize(staked, supports, equalizeTolerance, equalizeIterations, m.PowerOf)
	}

	// Clear the previous exposures before writing the new ones.
	previous, err := m.currentElected()
	if err != nil {
		return nil, nil, err
	}
	for _, stash := range previous {
		if err := m.removeExposure(stash); err != nil {
			return nil, nil, err
		}
	}

	var slotStake *big.Int
	for _, winner := range result.winners {
		s := supports[winner]
		exposure := &Exposure{Total: s.total, Own: s.own, Others: s.others}
		if err := m.putExposure(winner, exposure); err != nil {
			return nil, nil, err
		}
		if slotStake == nil || exposure.Total.Cmp(slotStake) < 0 {
			slotStake = new(big.Int).Set(exposure.Total)
		}
	}
	if slotStake == nil {
		slotStake = big.NewInt(0)
	}
	if err := m.putSlotStake(slotStake); err != nil {
		return nil, nil, err
	}
	if err := m.putCurrentElected(result.winners); err != nil {
		return nil, nil, err
	}

	if m.telemetry != nil {
		m.telemetry.SetElectedCount(len(result.winners))
		stakeValue, _ := new(big.Float).SetInt(slotStake).Float64()
		m.telemetry.SetSlotStake(stakeValue)
	}
	return slotStake, result.winners, nil
}

// ratMulInt floors ratio×value into a fresh big.Int.
func ratMulInt(ratio *big.Rat, value *big.Int) *big.Int {
	if ratio == nil || value == nil || ratio.Sign() <= 0 || value.Sign() <= 0 {
		return big.NewInt(0)
	}
	product := new(big.Rat).Mul(ratio, new(big.Rat).SetInt(value))
	return new(big.Int).Quo(product.Num(), product.Denom())
}

// --- equalization pass ---

const equalizeIterations = 2

var equalizeTolerance = big.NewInt(0)

type stakedEdge struct {
	candidate [20]byte
	stake     *big.Int
}

type stakedAssignment struct {
	who   [20]byte
	edges []stakedEdge
}

// equalize iteratively rebalances the staked assignments to reduce the
// variance of winners' supports. It runs at most iterations rounds, stopping
// early when the largest per-voter difference is at or below tolerance.
func equalize(assignments []stakedAssignment, supports map[[20]byte]*support, tolerance *big.Int, iterations int, powerOf func([20]byte) *big.Int) {
	for i := 0; i < iterations; i++ {
		maxDifference := big.NewInt(0)
		for idx := range assignments {
			voter := &assignments[idx]
			difference := doEqualize(voter.who, powerOf(voter.who), voter.edges, supports, tolerance)
			if difference.Cmp(maxDifference) > 0 {
				maxDifference = difference
			}
		}
		if maxDifference.Cmp(tolerance) <= 0 {
			return
		}
	}
}

func doEqualize(voter [20]byte, budget *big.Int, edges []stakedEdge, supports map[[20]byte]*support, tolerance *big.Int) *big.Int {
	if len(edges) == 0 || budget.Sign() <= 0 {
		return big.NewInt(0)
	}

	elected := make([]*stakedEdge, 0, len(edges))
	for i := range edges {
		if _, ok := supports[edges[i].candidate]; ok {
			elected = append(elected, &edges[i])
		}
	}
	if len(elected) == 0 {
		return big.NewInt(0)
	}

	var maxBacked, minBacked *big.Int
	for _, edge := range elected {
		backed := supports[edge.candidate].total
		if minBacked == nil || backed.Cmp(minBacked) < 0 {
			minBacked = backed
		}
		if edge.stake.Sign() > 0 && (maxBacked == nil || backed.Cmp(maxBacked) > 0) {
			maxBacked = backed
		}
	}
	difference := new(big.Int).Set(budget)
	if maxBacked != nil {
		difference = new(big.Int).Sub(maxBacked, minBacked)
		if difference.Sign() < 0 {
			difference.SetInt64(0)
		}
		if difference.Cmp(tolerance) <= 0 {
			return difference
		}
	}

	// Remove this voter's stake everywhere, then redistribute the budget so
	// the lowest supports are raised to a common level.
	for _, edge := range elected {
		s := supports[edge.candidate]
		s.total.Sub(s.total, edge.stake)
		others := s.others[:0]
		for _, other := range s.others {
			if other.Who != voter {
				others = append(others, other)
			}
		}
		s.others = others
		edge.stake = big.NewInt(0)
	}

	sort.SliceStable(elected, func(i, j int) bool {
		return supports[elected[i].candidate].total.Cmp(supports[elected[j].candidate].total) < 0
	})

	cumulative := big.NewInt(0)
	lastIndex := len(elected) - 1
	for idx, edge := range elected {
		backed := supports[edge.candidate].total
		scaled := new(big.Int).Mul(backed, big.NewInt(int64(idx)))
		needed := new(big.Int).Sub(scaled, cumulative)
		if needed.Cmp(budget) > 0 {
			lastIndex = idx - 1
			break
		}
		cumulative.Add(cumulative, backed)
	}
	if lastIndex < 0 {
		return difference
	}

	lastBacked := supports[elected[lastIndex].candidate].total
	splitWays := int64(lastIndex + 1)
	cumulative = big.NewInt(0)
	for _, edge := range elected[:splitWays] {
		cumulative.Add(cumulative, supports[edge.candidate].total)
	}
	excess := new(big.Int).Add(budget, cumulative)
	excess.Sub(excess, new(big.Int).Mul(lastBacked, big.NewInt(splitWays)))

	for _, edge := range elected[:splitWays] {
		s := supports[edge.candidate]
		share := new(big.Int).Quo(excess, big.NewInt(splitWays))
		share.Add(share, lastBacked)
		share.Sub(share, s.total)
		if share.Sign() < 0 {
			share.SetInt64(0)
		}
		edge.stake = share
		s.total.Add(s.total, share)
		if share.Sign() > 0 {
			s.others = append(s.others, IndividualExposure{Who: voter, Value: new(big.Int).Set(share)})
		}
	}
	return difference
}
