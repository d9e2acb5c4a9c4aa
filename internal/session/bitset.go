package session

import "math/bits"

// bitSet is a fixed-size bit map used to track which
// (sequence offset + concurrency index) slots have a live instance.
type bitSet struct {
	words []uint64
}

func newBitSet(size int) *bitSet {
	return &bitSet{words: make([]uint64, (size+63)/64)}
}

func (b *bitSet) Set(i int) {
	b.words[i>>6] |= 1 << (uint(i) & 63)
}

func (b *bitSet) Clear(i int) {
	b.words[i>>6] &^= 1 << (uint(i) & 63)
}

func (b *bitSet) Test(i int) bool {
	return b.words[i>>6]&(1<<(uint(i)&63)) != 0
}

func (b *bitSet) IsEmpty() bool {
	for _, w := range b.words {
		if w != 0 {
			return false
		}
	}
	return true
}

func (b *bitSet) Count() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}
