package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"
)

// WyomingSynthesizer speaks the Wyoming protocol to a Piper TTS server over
// TCP. It is an alternative to the exec model host for setups that run Piper
// as a service (e.g. the linuxserver/piper container on port 10200).
//
// Wyoming event framing:
//
//	<json_length> <payload_length>\n
//	<json_bytes>\n
//	<payload_bytes>   (if payload_length > 0)
type WyomingSynthesizer struct {
	endpoint     string
	defaultVoice string
}

// NewWyomingSynthesizer creates a synthesizer talking to the given host:port.
// defaultVoice is the Piper model name used when a request does not name one.
func NewWyomingSynthesizer(endpoint, defaultVoice string) (*WyomingSynthesizer, error) {
	endpoint = strings.TrimPrefix(endpoint, "tcp://")
	if endpoint == "" {
		return nil, fmt.Errorf("wyoming endpoint empty")
	}
	return &WyomingSynthesizer{endpoint: endpoint, defaultVoice: defaultVoice}, nil
}

func (s *WyomingSynthesizer) Synthesize(ctx context.Context, text string, opts Opts) (*Result, error) {
	voice := opts.Voice
	if voice == "" {
		voice = s.defaultVoice
	}

	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("connecting to piper: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(30 * time.Second))
	}

	synthEvent := wyomingEvent{
		Type: "synthesize",
		Data: map[string]any{
			"text": text,
			"voice": map[string]any{
				"name": voice,
			},
		},
	}
	if err := writeWyomingEvent(conn, synthEvent, nil); err != nil {
		return nil, fmt.Errorf("sending synthesize event: %w", err)
	}

	// Response events: audio-start, audio-chunk repeated, audio-stop.
	var (
		pcmBuf     bytes.Buffer
		sampleRate = 22050
	)
	for {
		evt, payload, err := readWyomingEvent(conn)
		if err != nil {
			return nil, fmt.Errorf("reading piper event: %w", err)
		}

		switch evt.Type {
		case "audio-start":
			if rate, ok := evt.Data["rate"].(float64); ok {
				sampleRate = int(rate)
			}

		case "audio-chunk":
			pcmBuf.Write(payload)

		case "audio-stop":
			pcm, err := decodePCM16(pcmBuf.Bytes())
			if err != nil {
				return nil, err
			}
			return &Result{PCM: pcm, SampleRate: sampleRate}, nil

		case "error":
			msg := "unknown error"
			if text, ok := evt.Data["text"].(string); ok {
				msg = text
			}
			return nil, fmt.Errorf("piper error: %s", msg)

		default:
			slog.Debug("piper unknown event", "type", evt.Type)
		}
	}
}

// Close is a no-op. Connections are per-request.
func (s *WyomingSynthesizer) Close() error { return nil }

type wyomingEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Length bounds for one event, so a corrupt header cannot drive allocation.
const (
	maxEventJSON    = 1 << 20
	maxEventPayload = 1 << 26
)

func writeWyomingEvent(w io.Writer, evt wyomingEvent, payload []byte) error {
	jsonBytes, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}

	header := fmt.Sprintf("%d %d\n", len(jsonBytes), len(payload))
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	if _, err := w.Write(jsonBytes); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

func readWyomingEvent(r io.Reader) (*wyomingEvent, []byte, error) {
	// Header line: "<json_length> <payload_length>\n"
	headerBuf := make([]byte, 0, 64)
	oneByte := make([]byte, 1)
	for {
		if _, err := io.ReadFull(r, oneByte); err != nil {
			return nil, nil, fmt.Errorf("reading header: %w", err)
		}
		if oneByte[0] == '\n' {
			break
		}
		headerBuf = append(headerBuf, oneByte[0])
	}

	parts := strings.SplitN(string(headerBuf), " ", 2)
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("invalid wyoming header: %q", string(headerBuf))
	}
	jsonLen, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing json_length: %w", err)
	}
	payloadLen, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing payload_length: %w", err)
	}
	if jsonLen < 0 || jsonLen > maxEventJSON {
		return nil, nil, fmt.Errorf("json length %d out of range", jsonLen)
	}
	if payloadLen < 0 || payloadLen > maxEventPayload {
		return nil, nil, fmt.Errorf("payload length %d out of range", payloadLen)
	}

	jsonBuf := make([]byte, jsonLen+1) // +1 for the trailing \n
	if _, err := io.ReadFull(r, jsonBuf); err != nil {
		return nil, nil, fmt.Errorf("reading json: %w", err)
	}
	jsonBuf = jsonBuf[:jsonLen]

	var evt wyomingEvent
	if err := json.Unmarshal(jsonBuf, &evt); err != nil {
		return nil, nil, fmt.Errorf("unmarshalling event: %w", err)
	}

	var payload []byte
	if payloadLen > 0 {
		payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, nil, fmt.Errorf("reading payload: %w", err)
		}
	}
	return &evt, payload, nil
}
