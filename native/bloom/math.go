package bloom

import "math/big"

// Basis point split applied to every stake. The protocol receives the
// remainder so the three shares always sum to the stake.
const (
	AuthorShareBps = 7000
	LikerShareBps  = 2500
	BpsDenominator = 10000
)

// BaseWeight is the weight of the first liker (one unit with 18 decimals).
var BaseWeight = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// WeightPolicy maps a 1-based arrival index to a liker weight. Implementations
// must return BaseWeight for index 1 and strictly smaller, positive values for
// every later index.
type WeightPolicy interface {
	Weight(likeIndex uint64) *big.Int
}

// HarmonicWeight decays weight as BaseWeight / likeIndex.
type HarmonicWeight struct{}

// Weight implements WeightPolicy.
func (HarmonicWeight) Weight(likeIndex uint64) *big.Int {
	if likeIndex == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Quo(BaseWeight, new(big.Int).SetUint64(likeIndex))
}

// SplitStake divides a stake into author, liker and protocol shares using
// truncating integer arithmetic.
func SplitStake(amount *big.Int) (author, liker, protocol *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0), big.NewInt(0), big.NewInt(0)
	}
	author = bps(amount, AuthorShareBps)
	liker = bps(amount, LikerShareBps)
	protocol = new(big.Int).Sub(amount, author)
	protocol.Sub(protocol, liker)
	return author, liker, protocol
}

// LikerShare computes pool * weight / totalWeight, truncating. Claims and
// estimates both go through this function.
func LikerShare(pool, weight, totalWeight *big.Int) *big.Int {
	if pool == nil || weight == nil || totalWeight == nil || totalWeight.Sign() <= 0 {
		return big.NewInt(0)
	}
	share := new(big.Int).Mul(pool, weight)
	return share.Quo(share, totalWeight)
}

func bps(amount *big.Int, points int64) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(points))
	return out.Quo(out, big.NewInt(BpsDenominator))
}
