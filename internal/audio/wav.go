package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// wavHeader is the canonical 44-byte PCM header
type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// EncodeWAV encodes mono PCM-16 samples into a canonical WAV file
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples to encode")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	dataSize := uint32(len(samples) * 2)
	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("writing samples: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWAV extracts mono PCM-16 samples and the sample rate. It walks
// the RIFF chunk list, so extra vendor chunks between fmt and data are
// tolerated. Anything other than mono 16-bit PCM is rejected.
func DecodeWAV(data []byte) ([]int16, int, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a RIFF WAVE file")
	}

	var (
		sampleRate int
		channels   uint16
		bits       uint16
		fmtSeen    bool
	)

	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			if codec := binary.LittleEndian.Uint16(data[body : body+2]); codec != 1 {
				return nil, 0, fmt.Errorf("unsupported codec %d, want PCM", codec)
			}
			channels = binary.LittleEndian.Uint16(data[body+2 : body+4])
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = binary.LittleEndian.Uint16(data[body+14 : body+16])
			fmtSeen = true

		case "data":
			if !fmtSeen {
				return nil, 0, fmt.Errorf("data chunk before fmt chunk")
			}
			if channels != 1 {
				return nil, 0, fmt.Errorf("unsupported channel count %d, want mono", channels)
			}
			if bits != 16 {
				return nil, 0, fmt.Errorf("unsupported bit depth %d, want 16", bits)
			}
			if sampleRate <= 0 {
				return nil, 0, fmt.Errorf("invalid sample rate %d", sampleRate)
			}
			n := size / 2
			if n == 0 {
				return nil, 0, fmt.Errorf("empty data chunk")
			}
			samples := make([]int16, n)
			for i := 0; i < n; i++ {
				samples[i] = int16(binary.LittleEndian.Uint16(data[body+2*i:]))
			}
			return samples, sampleRate, nil
		}

		offset = body + size
		if size%2 == 1 {
			offset++
		}
	}

	return nil, 0, fmt.Errorf("no data chunk found")
}

// Duration returns the playback length of a WAV file in seconds
func Duration(data []byte) (float64, error) {
	samples, rate, err := DecodeWAV(data)
	if err != nil {
		return 0, err
	}
	return float64(len(samples)) / float64(rate), nil
}

// Concat stitches WAV parts into one file in the given order. All
// parts must share a sample rate.
func Concat(parts [][]byte) ([]byte, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("nothing to concatenate")
	}

	var all []int16
	rate := 0
	for i, part := range parts {
		samples, r, err := DecodeWAV(part)
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		if rate == 0 {
			rate = r
		} else if r != rate {
			return nil, fmt.Errorf("part %d: sample rate %d differs from %d", i, r, rate)
		}
		all = append(all, samples...)
	}

	return EncodeWAV(all, rate)
}
