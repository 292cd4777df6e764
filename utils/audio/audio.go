package audio

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/zaf/g711"
)

// Telephony G.711 payloads arrive as 8kHz mono byte streams.
const (
	g711SampleRate = 8000
	g711Channels   = 1
)

// PrepareForTranscription converts audio into a form STT providers accept.
// G.711 µ-law and A-law payloads (telephony captures) are decoded to 16-bit
// PCM and wrapped in a WAV container; every other supported codec passes
// through untouched. Returns the payload and its effective MIME type.
func PrepareForTranscription(data []byte, mimeType string) ([]byte, string, error) {
	if len(data) == 0 {
		return nil, "", errors.New("empty audio payload")
	}

	switch mimeType {
	case "audio/basic", "audio/mulaw", "audio/x-mulaw":
		pcm := g711.DecodeUlaw(data)
		wav, err := PCMBytesToWavBytes(pcm, g711Channels, g711SampleRate)
		if err != nil {
			return nil, "", err
		}
		return wav, "audio/wav", nil
	case "audio/alaw", "audio/x-alaw", "audio/x-alaw-basic":
		pcm := g711.DecodeAlaw(data)
		wav, err := PCMBytesToWavBytes(pcm, g711Channels, g711SampleRate)
		if err != nil {
			return nil, "", err
		}
		return wav, "audio/wav", nil
	default:
		return data, mimeType, nil
	}
}

// PCMBytesToWavBytes wraps PCM []byte into WAV []byte (16-bit little endian).
func PCMBytesToWavBytes(pcm []byte, numChannels, sampleRate int) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, errors.New("pcm data length must be even for 16-bit samples")
	}
	if numChannels <= 0 || sampleRate <= 0 {
		return nil, errors.New("channels and sample rate must be positive")
	}

	const bitsPerSample = 16
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8
	dataSize := len(pcm)

	buf := bytes.NewBuffer(make([]byte, 0, 44+dataSize))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16)) // fmt chunk size
	binary.Write(buf, binary.LittleEndian, uint16(1))  // PCM format
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(pcm)

	return buf.Bytes(), nil
}

// MimeTypeForExtension maps an uploaded file extension to the MIME type
// passed through the pipeline. Unknown extensions report empty.
func MimeTypeForExtension(ext string) string {
	switch ext {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".ogg":
		return "audio/ogg"
	case ".webm":
		return "audio/webm"
	case ".m4a":
		return "audio/mp4"
	default:
		return ""
	}
}
