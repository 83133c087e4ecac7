package rubric

// Knees of the inverse-cap curve: the raw value at which a signal scores 0.5.
const (
	KneeFirstCommitLatency = 900.0  // seconds
	KneeTimeToGreen        = 1800.0 // seconds
	KneePRSize             = 300.0  // changed lines
	KneeLintErrors         = 10.0
	KneeAvgCyclomatic      = 5.0
)

// InvCap maps x >= 0 into (0,1] with InvCap(0,k) == 1 and InvCap(k,k) == 0.5.
// It is strictly decreasing in x for k > 0.
func InvCap(x, k float64) float64 {
	return 1.0 / (1.0 + x/k)
}
