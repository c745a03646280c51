package game

// Score computes the points awarded for one verified round entry.
// A failed call loses ten points per called hand regardless of the
// blind flag; a made call earns ten per called hand plus one per
// overtrick, doubled when the call was blind.
func Score(calledHands, verifiedHands int, blindCall bool) int {
	if verifiedHands < calledHands {
		return calledHands * -10
	}
	base := calledHands*10 + (verifiedHands - calledHands)
	if blindCall {
		return base * 2
	}
	return base
}
