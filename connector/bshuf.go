package connector

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/ssrl-px/interceptor/constants"
	"github.com/ssrl-px/interceptor/models/data"
)

// Eiger pixel data arrives lz4 block-compressed, usually behind a
// bitshuffle pass that transposes bit planes for better ratios.
// DecodeFrameData undoes whichever encoding the data header names
// and returns raw little-endian pixel bytes.

// DecodeFrameData decompresses the pixel data frame. The expected
// output length comes from the data header shape and type.
func DecodeFrameData(dh data.ImageDataHeader, raw []byte) ([]byte, error) {
	bpp, err := dh.BytesPerPixel()
	if err != nil {
		return nil, err
	}
	want := dh.Pixels() * bpp
	if want == 0 {
		return nil, fmt.Errorf("data header has no shape")
	}

	switch dh.Encoding {
	case "", constants.EncodingRaw, "<u2", "<u4", "<i4":
		if len(raw) < want {
			return nil, fmt.Errorf("raw frame is %d bytes, want %d", len(raw), want)
		}
		return raw[:want], nil
	case constants.EncodingLZ4:
		dst := make([]byte, want)
		n, err := lz4.UncompressBlock(raw, dst)
		if err != nil {
			return nil, fmt.Errorf("lz4 frame: %v", err)
		}
		return dst[:n], nil
	case constants.EncodingBS8:
		return decodeBitshuffleLZ4(raw, 1, want)
	case constants.EncodingBS16:
		return decodeBitshuffleLZ4(raw, 2, want)
	case constants.EncodingBS32:
		return decodeBitshuffleLZ4(raw, 4, want)
	}
	return nil, fmt.Errorf("unsupported frame encoding %q", dh.Encoding)
}

// decodeBitshuffleLZ4 unpacks the bitshuffle container: an 8-byte
// big-endian total size, a 4-byte big-endian block size in bytes,
// then per block a 4-byte big-endian compressed length and an lz4
// block. Whole blocks are bit-transposed; a sub-group trailer is
// stored verbatim.
func decodeBitshuffleLZ4(raw []byte, elem, want int) ([]byte, error) {
	if len(raw) < 12 {
		return nil, fmt.Errorf("bitshuffle frame too short: %d bytes", len(raw))
	}
	total := int(binary.BigEndian.Uint64(raw[0:8]))
	blockBytes := int(binary.BigEndian.Uint32(raw[8:12]))
	if total != want {
		return nil, fmt.Errorf("bitshuffle frame says %d bytes, header says %d", total, want)
	}
	if blockBytes == 0 {
		blockBytes = 8192 * elem
	}

	group := 8 * elem
	out := make([]byte, 0, total)
	pos := 12
	remaining := total
	for remaining > 0 {
		chunk := blockBytes
		if chunk > remaining {
			chunk = remaining
		}
		// Trailing elements that do not fill a transpose group
		// are stored uncompressed after the last block.
		chunk -= chunk % group
		if chunk == 0 {
			if len(raw)-pos < remaining {
				return nil, fmt.Errorf("bitshuffle trailer truncated")
			}
			out = append(out, raw[pos:pos+remaining]...)
			break
		}
		if len(raw)-pos < 4 {
			return nil, fmt.Errorf("bitshuffle block header truncated")
		}
		compLen := int(binary.BigEndian.Uint32(raw[pos : pos+4]))
		pos += 4
		if len(raw)-pos < compLen {
			return nil, fmt.Errorf("bitshuffle block truncated: want %d bytes, have %d",
				compLen, len(raw)-pos)
		}
		block := make([]byte, chunk)
		n, err := lz4.UncompressBlock(raw[pos:pos+compLen], block)
		if err != nil {
			return nil, fmt.Errorf("bitshuffle lz4 block at %d: %v", pos, err)
		}
		if n != chunk {
			return nil, fmt.Errorf("bitshuffle block decompressed to %d bytes, want %d", n, chunk)
		}
		pos += compLen
		out = append(out, bitunshuffle(block, elem)...)
		remaining -= chunk
	}
	return out, nil
}

// bitunshuffle undoes the bit-plane transpose for one block. The
// shuffled block stores plane b (bit b of every element) as a run of
// n/8 bytes, for b in [0, 8*elem).
func bitunshuffle(src []byte, elem int) []byte {
	n := len(src) / elem
	planeLen := n / 8
	out := make([]byte, len(src))
	for b := 0; b < 8*elem; b++ {
		plane := src[b*planeLen : (b+1)*planeLen]
		byteIdx := b >> 3
		bitIdx := uint(b & 7)
		for i, v := range plane {
			for j := 0; j < 8; j++ {
				if v&(1<<uint(j)) != 0 {
					e := i*8 + j
					out[e*elem+byteIdx] |= 1 << bitIdx
				}
			}
		}
	}
	return out
}

// bitshuffleForward is the inverse of bitunshuffle. The simulator
// uses it to produce realistic streams.
func bitshuffleForward(src []byte, elem int) []byte {
	n := len(src) / elem
	planeLen := n / 8
	out := make([]byte, len(src))
	for b := 0; b < 8*elem; b++ {
		byteIdx := b >> 3
		bitIdx := uint(b & 7)
		for i := 0; i < planeLen; i++ {
			var v byte
			for j := 0; j < 8; j++ {
				e := i*8 + j
				if src[e*elem+byteIdx]&(1<<bitIdx) != 0 {
					v |= 1 << uint(j)
				}
			}
			out[b*planeLen+i] = v
		}
	}
	return out
}

// EncodeBitshuffleLZ4 packs pixel bytes into the bitshuffle+lz4
// container. Used by the simulator and by tests.
func EncodeBitshuffleLZ4(pixels []byte, elem, blockBytes int) ([]byte, error) {
	if blockBytes == 0 {
		blockBytes = 8192 * elem
	}
	group := 8 * elem

	out := make([]byte, 12)
	binary.BigEndian.PutUint64(out[0:8], uint64(len(pixels)))
	binary.BigEndian.PutUint32(out[8:12], uint32(blockBytes))

	var compressor lz4.Compressor
	pos := 0
	for pos < len(pixels) {
		chunk := blockBytes
		if chunk > len(pixels)-pos {
			chunk = len(pixels) - pos
		}
		chunk -= chunk % group
		if chunk == 0 {
			out = append(out, pixels[pos:]...)
			break
		}
		shuffled := bitshuffleForward(pixels[pos:pos+chunk], elem)
		buf := make([]byte, lz4.CompressBlockBound(chunk))
		n, err := compressor.CompressBlock(shuffled, buf)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			// Incompressible block; lz4 stores it raw.
			return nil, fmt.Errorf("lz4 could not compress block at %d", pos)
		}
		var lenHdr [4]byte
		binary.BigEndian.PutUint32(lenHdr[:], uint32(n))
		out = append(out, lenHdr[:]...)
		out = append(out, buf[:n]...)
		pos += chunk
	}
	return out, nil
}
