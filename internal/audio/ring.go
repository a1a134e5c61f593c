package audio

// Chunk is one fixed-size block of mono 16-bit PCM. Immutable once
// produced: the source hands out a fresh slice per read.
type Chunk []int16

// PreRoll keeps the most recent chunks so speech spoken just before a
// wake trigger is confirmed is not lost. Oldest chunk is evicted first.
type PreRoll struct {
	chunks []Chunk
	cap    int
}

func NewPreRoll(capacity int) *PreRoll {
	if capacity < 1 {
		capacity = 1
	}
	return &PreRoll{cap: capacity}
}

func (p *PreRoll) Append(c Chunk) {
	if len(p.chunks) == p.cap {
		copy(p.chunks, p.chunks[1:])
		p.chunks[len(p.chunks)-1] = c
		return
	}
	p.chunks = append(p.chunks, c)
}

func (p *PreRoll) Len() int { return len(p.chunks) }

// Snapshot returns the buffered chunks concatenated into one buffer.
func (p *PreRoll) Snapshot() []int16 {
	var n int
	for _, c := range p.chunks {
		n += len(c)
	}
	out := make([]int16, 0, n)
	for _, c := range p.chunks {
		out = append(out, c...)
	}
	return out
}

func (p *PreRoll) Flush() {
	p.chunks = p.chunks[:0]
}
