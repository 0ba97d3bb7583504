package pcm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Minimal RIFF/WAVE codec for PCM16. Stereo input is downmixed to mono on
// decode; everything the pipeline writes is mono.

const (
	wavFormatPCM = 1
)

// EncodeWAV serializes the buffer as a mono PCM16 WAV stream.
func EncodeWAV(w io.Writer, b *Buffer) error {
	dataLen := uint32(len(b.Samples) * 2)
	var hdr bytes.Buffer
	hdr.WriteString("RIFF")
	binary.Write(&hdr, binary.LittleEndian, uint32(36+dataLen))
	hdr.WriteString("WAVE")
	hdr.WriteString("fmt ")
	binary.Write(&hdr, binary.LittleEndian, uint32(16))
	binary.Write(&hdr, binary.LittleEndian, uint16(wavFormatPCM))
	binary.Write(&hdr, binary.LittleEndian, uint16(1)) // channels
	binary.Write(&hdr, binary.LittleEndian, uint32(b.SampleRate))
	binary.Write(&hdr, binary.LittleEndian, uint32(b.SampleRate*2)) // byte rate
	binary.Write(&hdr, binary.LittleEndian, uint16(2))              // block align
	binary.Write(&hdr, binary.LittleEndian, uint16(16))             // bits per sample
	hdr.WriteString("data")
	binary.Write(&hdr, binary.LittleEndian, dataLen)
	if _, err := w.Write(hdr.Bytes()); err != nil {
		return err
	}
	raw := make([]byte, dataLen)
	for i, s := range b.Samples {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(s))
	}
	_, err := w.Write(raw)
	return err
}

// DecodeWAV parses a PCM16 WAV stream. Multi-channel audio is averaged
// down to mono.
func DecodeWAV(r io.Reader) (*Buffer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("pcm: not a RIFF/WAVE stream")
	}

	var (
		sampleRate int
		channels   int
		bits       int
		haveFmt    bool
	)
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			size = len(data) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("pcm: short fmt chunk")
			}
			format := int(binary.LittleEndian.Uint16(data[body:]))
			if format != wavFormatPCM {
				return nil, fmt.Errorf("pcm: unsupported wav format %d", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bits = int(binary.LittleEndian.Uint16(data[body+14:]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("pcm: data chunk before fmt")
			}
			if bits != 16 {
				return nil, fmt.Errorf("pcm: unsupported bit depth %d", bits)
			}
			if channels < 1 {
				return nil, fmt.Errorf("pcm: invalid channel count %d", channels)
			}
			frames := size / (2 * channels)
			samples := make([]int16, frames)
			for f := 0; f < frames; f++ {
				var sum int
				for c := 0; c < channels; c++ {
					off := body + (f*channels+c)*2
					sum += int(int16(binary.LittleEndian.Uint16(data[off:])))
				}
				samples[f] = int16(sum / channels)
			}
			return &Buffer{SampleRate: sampleRate, Samples: samples}, nil
		}
		// Chunks are word-aligned.
		pos = body + size + (size & 1)
	}
	return nil, fmt.Errorf("pcm: no data chunk found")
}

// ReadWAVFile decodes the WAV file at path.
func ReadWAVFile(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeWAV(f)
}

// WriteWAVFile encodes the buffer into a WAV file at path.
func WriteWAVFile(path string, b *Buffer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeWAV(f, b); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
