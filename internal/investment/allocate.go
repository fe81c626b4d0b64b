package investment

import "time"

// Move is the part of a source fund that ended up in one sink.
type Move[S Investable] struct {
	Sink   S
	Amount int64
	Closed bool
}

// Allocate pours the remaining capacity of source into sinks, oldest first.
//
// sinks must already be ordered by creation and contain open funds only. The
// same routine serves a new donation funding open projects and a new project
// absorbing pending donations. Only sinks that received money are returned;
// the source is mutated in place and closed once it is exhausted.
func Allocate[S Investable](source Investable, sinks []S, now time.Time) []Move[S] {
	src := source.Funds()
	var moves []Move[S]

	for _, sink := range sinks {
		if src.Remaining() <= 0 {
			break
		}
		dst := sink.Funds()

		amount := min(src.Remaining(), dst.Remaining())
		if amount <= 0 {
			continue
		}
		dst.InvestedAmount += amount
		src.InvestedAmount += amount

		move := Move[S]{Sink: sink, Amount: amount}
		if dst.InvestedAmount == dst.FullAmount {
			Close(dst, now)
			move.Closed = true
		}
		moves = append(moves, move)

		if src.InvestedAmount == src.FullAmount {
			Close(src, now)
			break
		}
	}

	return moves
}
