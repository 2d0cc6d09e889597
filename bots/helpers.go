package bots

// midPrice estimates a mid from the observed top of book. With only one side
// populated it leans on that side; with neither it reports zero.
func midPrice(bid, ask int64) int64 {
	switch {
	case bid > 0 && ask > 0:
		return (bid + ask) / 2
	case bid > 0:
		return bid
	case ask > 0:
		return ask
	default:
		return 0
	}
}
