package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
)

const (
	// SampleRate and Channels describe the PCM layout Capture emits (s16le).
	SampleRate = 16000
	Channels   = 1

	frameBytes   = 640 // 20ms
	frameLatency = 0.02
	chunkBuffer  = 128
	mediaName    = "speechcraft practice"
)

// Capture is one live recording from a Pulse source, delivered as 20ms PCM frames.
type Capture struct {
	device Device
	client *pulse.Client
	stream *pulse.RecordStream

	chunks chan []byte
	done   chan struct{}

	mu      sync.Mutex
	frame   []byte
	stopped bool
	bytes   atomic.Int64
}

func newCapture(device Device) *Capture {
	return &Capture{
		device: device,
		chunks: make(chan []byte, chunkBuffer),
		done:   make(chan struct{}),
		frame:  make([]byte, 0, frameBytes),
	}
}

// StartCapture opens a 16kHz mono record stream on selected. It stops when ctx ends.
func StartCapture(ctx context.Context, selected Device) (*Capture, error) {
	client, err := newClient()
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	c := newCapture(selected)
	c.client = client
	stream, err := client.NewRecord(
		pulse.Int16Writer(c.write),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordLatency(frameLatency),
		pulse.RecordMediaName(mediaName),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	c.stream = stream
	stream.Start()

	go func() {
		select {
		case <-ctx.Done():
			_ = c.Stop()
		case <-c.done:
		}
	}()
	return c, nil
}

// Device returns the source being recorded.
func (c *Capture) Device() Device {
	return c.device
}

// Chunks delivers PCM frames until Stop closes it.
func (c *Capture) Chunks() <-chan []byte {
	return c.chunks
}

// BytesCaptured reports PCM bytes accepted so far.
func (c *Capture) BytesCaptured() int64 {
	return c.bytes.Load()
}

// write packs samples little-endian into frames. Sends happen under mu so
// Stop can close chunks once no write is in flight.
func (c *Capture) write(samples []int16) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return 0, io.EOF
	}

	for _, s := range samples {
		c.frame = binary.LittleEndian.AppendUint16(c.frame, uint16(s))
		if len(c.frame) == frameBytes {
			c.chunks <- c.frame
			c.frame = make([]byte, 0, frameBytes)
		}
	}
	c.bytes.Add(int64(2 * len(samples)))
	return len(samples), nil
}

// Stop ends the stream, emits any partial frame, and closes Chunks. It is
// idempotent. Like write, it blocks while the chunk buffer is full.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	if len(c.frame) > 0 {
		c.chunks <- c.frame
		c.frame = nil
	}
	close(c.chunks)
	close(c.done)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}
	return nil
}
