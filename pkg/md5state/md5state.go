// Package md5state implements streaming MD5 with an exportable,
// re-importable internal state.
//
// The standard library's crypto/md5 can marshal its state, but the
// encoding is an opaque byte blob that is not guaranteed stable across
// Go releases. This package instead exposes the state as a plain word
// array (registers, byte count, buffered tail) so it can be persisted
// in a BIGINT[] database column and restored by any future version.
//
// Reference: RFC 1321.
package md5state

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"hash"
	"math/bits"
)

const (
	// Size is the length, in bytes, of an MD5 digest.
	Size = 16

	// BlockSize is the MD5 block size, in bytes.
	BlockSize = 64

	// stateHeaderWords is the number of fixed words in an exported
	// state: four registers, the byte count, and the tail length.
	stateHeaderWords = 6
)

// ErrBadState reports a malformed or inconsistent exported state.
var ErrBadState = errors.New("md5state: malformed hash state")

// Initial register values from RFC 1321 §3.3.
const (
	init0 = 0x67452301
	init1 = 0xefcdab89
	init2 = 0x98badcfe
	init3 = 0x10325476
)

// sines holds the 64 per-step addition constants, floor(2^32·|sin(i+1)|).
var sines = [64]uint32{
	0xd76aa478, 0xe8c7b756, 0x242070db, 0xc1bdceee,
	0xf57c0faf, 0x4787c62a, 0xa8304613, 0xfd469501,
	0x698098d8, 0x8b44f7af, 0xffff5bb1, 0x895cd7be,
	0x6b901122, 0xfd987193, 0xa679438e, 0x49b40821,
	0xf61e2562, 0xc040b340, 0x265e5a51, 0xe9b6c7aa,
	0xd62f105d, 0x02441453, 0xd8a1e681, 0xe7d3fbc8,
	0x21e1cde6, 0xc33707d6, 0xf4d50d87, 0x455a14ed,
	0xa9e3e905, 0xfcefa3f8, 0x676f02d9, 0x8d2a4c8a,
	0xfffa3942, 0x8771f681, 0x6d9d6122, 0xfde5380c,
	0xa4beea44, 0x4bdecfa9, 0xf6bb4b60, 0xbebfbc70,
	0x289b7ec6, 0xeaa127fa, 0xd4ef3085, 0x04881d05,
	0xd9d4d039, 0xe6db99e5, 0x1fa27cf8, 0xc4ac5665,
	0xf4292244, 0x432aff97, 0xab9423a7, 0xfc93a039,
	0x655b59c3, 0x8f0ccc92, 0xffeff47d, 0x85845dd1,
	0x6fa87e4f, 0xfe2ce6e0, 0xa3014314, 0x4e0811a1,
	0xf7537e82, 0xbd3af235, 0x2ad7d2bb, 0xeb86d391,
}

// rotations holds the per-step left-rotation amounts.
var rotations = [64]int{
	7, 12, 17, 22, 7, 12, 17, 22, 7, 12, 17, 22, 7, 12, 17, 22,
	5, 9, 14, 20, 5, 9, 14, 20, 5, 9, 14, 20, 5, 9, 14, 20,
	4, 11, 16, 23, 4, 11, 16, 23, 4, 11, 16, 23, 4, 11, 16, 23,
	6, 10, 15, 21, 6, 10, 15, 21, 6, 10, 15, 21, 6, 10, 15, 21,
}

// Digest is the running state of an MD5 computation.
type Digest struct {
	s   [4]uint32
	x   [BlockSize]byte
	nx  int
	len uint64
}

// New returns a fresh MD5 digest.
func New() *Digest {
	d := &Digest{}
	d.Reset()

	return d
}

// Reset resets the digest to its initial state.
func (d *Digest) Reset() {
	d.s = [4]uint32{init0, init1, init2, init3}
	d.nx = 0
	d.len = 0
}

// Size returns the number of bytes Sum will append.
func (d *Digest) Size() int { return Size }

// BlockSize returns the hash's underlying block size.
func (d *Digest) BlockSize() int { return BlockSize }

// Len returns the total number of bytes absorbed so far.
func (d *Digest) Len() uint64 { return d.len }

// Write absorbs more data into the running hash.
// It always returns len(p), nil.
func (d *Digest) Write(p []byte) (int, error) {
	n := len(p)
	d.len += uint64(n)

	if d.nx > 0 {
		c := copy(d.x[d.nx:], p)
		d.nx += c

		if d.nx == BlockSize {
			d.block(d.x[:])
			d.nx = 0
		}

		p = p[c:]
	}

	if len(p) >= BlockSize {
		whole := len(p) &^ (BlockSize - 1)
		d.block(p[:whole])
		p = p[whole:]
	}

	if len(p) > 0 {
		d.nx = copy(d.x[:], p)
	}

	return n, nil
}

// block absorbs one or more complete 64-byte blocks.
func (d *Digest) block(p []byte) {
	a0, b0, c0, d0 := d.s[0], d.s[1], d.s[2], d.s[3]

	for len(p) >= BlockSize {
		var m [16]uint32
		for i := range m {
			m[i] = binary.LittleEndian.Uint32(p[i*4:])
		}

		a, b, c, dd := a0, b0, c0, d0

		for i := 0; i < 64; i++ {
			var f uint32
			var g int

			switch {
			case i < 16:
				f = (b & c) | (^b & dd)
				g = i
			case i < 32:
				f = (dd & b) | (^dd & c)
				g = (5*i + 1) % 16
			case i < 48:
				f = b ^ c ^ dd
				g = (3*i + 5) % 16
			default:
				f = c ^ (b | ^dd)
				g = (7 * i) % 16
			}

			f += a + sines[i] + m[g]
			a = dd
			dd = c
			c = b
			b += bits.RotateLeft32(f, rotations[i])
		}

		a0 += a
		b0 += b
		c0 += c
		d0 += dd

		p = p[BlockSize:]
	}

	d.s[0], d.s[1], d.s[2], d.s[3] = a0, b0, c0, d0
}

// Sum appends the current digest to b and returns the resulting slice.
// It does not change the underlying hash state.
func (d *Digest) Sum(b []byte) []byte {
	// Finalize a copy so that Sum is non-destructive.
	dup := *d

	var pad [BlockSize + 8]byte
	pad[0] = 0x80

	msgLen := dup.len
	padLen := BlockSize - int(msgLen%BlockSize) - 8
	if padLen <= 0 {
		padLen += BlockSize
	}

	binary.LittleEndian.PutUint64(pad[padLen:], msgLen<<3)
	dup.Write(pad[:padLen+8]) //nolint:errcheck // Write cannot fail

	var out [Size]byte
	for i, s := range dup.s {
		binary.LittleEndian.PutUint32(out[i*4:], s)
	}

	return append(b, out[:]...)
}

// SumHex returns the current digest as a 32-character lowercase hex
// string without disturbing the running state.
func (d *Digest) SumHex() string {
	return hex.EncodeToString(d.Sum(nil))
}

// State exports the running state as a word array:
//
//	[a, b, c, d, totalBytes, tailLen, tailWords...]
//
// where tailWords pack the buffered partial block little-endian, eight
// bytes per word. The layout is stable and self-describing; Restore
// accepts it back at any later time.
func (d *Digest) State() []uint64 {
	tailWords := (d.nx + 7) / 8

	out := make([]uint64, stateHeaderWords+tailWords)
	out[0] = uint64(d.s[0])
	out[1] = uint64(d.s[1])
	out[2] = uint64(d.s[2])
	out[3] = uint64(d.s[3])
	out[4] = d.len
	out[5] = uint64(d.nx)

	var tail [BlockSize]byte
	copy(tail[:], d.x[:d.nx])

	for i := 0; i < tailWords; i++ {
		out[stateHeaderWords+i] = binary.LittleEndian.Uint64(tail[i*8:])
	}

	return out
}

// Restore rebuilds a mid-stream digest from a word array produced by
// State. It returns ErrBadState when the array is malformed or
// internally inconsistent.
func Restore(state []uint64) (*Digest, error) {
	if len(state) < stateHeaderWords {
		return nil, ErrBadState
	}

	nx := state[5]
	if nx >= BlockSize {
		return nil, ErrBadState
	}

	totalLen := state[4]
	if totalLen%BlockSize != nx {
		return nil, ErrBadState
	}

	tailWords := (int(nx) + 7) / 8
	if len(state) != stateHeaderWords+tailWords {
		return nil, ErrBadState
	}

	for _, reg := range state[:4] {
		if reg > 0xffffffff {
			return nil, ErrBadState
		}
	}

	d := &Digest{
		s: [4]uint32{
			uint32(state[0]), uint32(state[1]),
			uint32(state[2]), uint32(state[3]),
		},
		nx:  int(nx),
		len: totalLen,
	}

	var tail [BlockSize]byte
	for i := 0; i < tailWords; i++ {
		binary.LittleEndian.PutUint64(tail[i*8:], state[stateHeaderWords+i])
	}

	copy(d.x[:], tail[:d.nx])

	return d, nil
}

var _ hash.Hash = (*Digest)(nil)
