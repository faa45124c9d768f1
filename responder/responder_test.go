package responder

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/binkynet/BinkyHardware/I2CResponder/bus"
	"github.com/binkynet/BinkyHardware/I2CResponder/bus/fifo"
)

const testAddress = 0x09

func testBusConfig() bus.Config {
	return bus.Config{
		SendBufDepth:    128,
		ReceiveBufDepth: 128,
		Address:         testAddress,
		AddressWidth:    bus.Address7Bit,
	}
}

func newTestResponder(t *testing.T, opts Options) (*Responder, *fifo.Target, *fifo.Controller) {
	t.Helper()
	target := fifo.New()
	r, err := New(target, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := bus.Open(target, testBusConfig(), r); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return r, target, fifo.NewController(target)
}

// syncBuffer is a bytes.Buffer safe for a logger goroutine and a reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestNewErrors(t *testing.T) {
	if _, err := New(nil, Options{}); !errors.Is(err, ErrInit) {
		t.Errorf("New(nil) error = %v, want ErrInit", err)
	}
	if _, err := New(fifo.New(), Options{InitialSelector: TableSize}); !errors.Is(err, ErrInit) {
		t.Errorf("New(selector %d) error = %v, want ErrInit", TableSize, err)
	}
	if _, err := New(fifo.New(), Options{QueueDepth: -1}); !errors.Is(err, ErrInit) {
		t.Errorf("New(queue -1) error = %v, want ErrInit", err)
	}
}

func TestWriteThenReadSequence(t *testing.T) {
	r, _, ctrl := newTestResponder(t, Options{})
	tests := []struct {
		cmd  byte
		want byte
	}{
		{0xDD, 0x00},
		{0xF9, 0x02},
		{0x01, 0x04},
		{0xFC, 0x04},
		{0xDE, 0x00},
	}
	for _, tt := range tests {
		if err := ctrl.WriteCommand(testAddress, tt.cmd); err != nil {
			t.Fatalf("WriteCommand(0x%02x) error = %v", tt.cmd, err)
		}
		got, err := ctrl.ReadReply(testAddress)
		if err != nil {
			t.Fatalf("ReadReply() after 0x%02x error = %v", tt.cmd, err)
		}
		if got != tt.want {
			t.Errorf("reply after 0x%02x = 0x%02x, want 0x%02x", tt.cmd, got, tt.want)
		}
		if last := r.State().LastCommand(); last != tt.cmd {
			t.Errorf("LastCommand() = 0x%02x, want 0x%02x", last, tt.cmd)
		}
	}
}

func TestReadBeforeCommand(t *testing.T) {
	_, _, ctrl := newTestResponder(t, Options{})
	got, err := ctrl.ReadReply(testAddress)
	if err != nil {
		t.Fatalf("ReadReply() error = %v", err)
	}
	if got != DefaultReplyTable[0] {
		t.Errorf("first reply = 0x%02x, want 0x%02x", got, DefaultReplyTable[0])
	}
}

func TestInitialSelector(t *testing.T) {
	_, _, ctrl := newTestResponder(t, Options{InitialSelector: 2})
	got, err := ctrl.ReadReply(testAddress)
	if err != nil {
		t.Fatalf("ReadReply() error = %v", err)
	}
	if got != 0x02 {
		t.Errorf("first reply = 0x%02x, want 0x02", got)
	}
}

func TestRepeatedReadsKeepSelection(t *testing.T) {
	_, _, ctrl := newTestResponder(t, Options{QueueDepth: 64})
	if err := ctrl.WriteCommand(testAddress, 0xF9); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		got, err := ctrl.ReadReply(testAddress)
		if err != nil {
			t.Fatal(err)
		}
		if got != 0x02 {
			t.Errorf("read #%d = 0x%02x, want 0x02", i, got)
		}
	}
}

func TestMultiByteWriteUsesFirstByte(t *testing.T) {
	r, _, ctrl := newTestResponder(t, Options{})
	if err := ctrl.Write(testAddress, []byte{0xF9, 0xDD, 0xDE}); err != nil {
		t.Fatal(err)
	}
	if got := r.State().Selector(); got != 2 {
		t.Errorf("Selector() = %d, want 2", got)
	}
}

func TestEmptyWriteIgnored(t *testing.T) {
	r, _, ctrl := newTestResponder(t, Options{})
	if err := ctrl.Write(testAddress, nil); err != nil {
		t.Fatal(err)
	}
	st := r.Stats()
	if st.Received != 0 || st.Queued != 0 {
		t.Errorf("Stats() = %+v, want no events", st)
	}
	if got := r.State().Selector(); got != 0 {
		t.Errorf("Selector() = %d, want 0", got)
	}
}

func TestOneEventPerTransaction(t *testing.T) {
	r, target, ctrl := newTestResponder(t, Options{})
	ctx := context.Background()

	if err := ctrl.WriteCommand(testAddress, 0xDD); err != nil {
		t.Fatal(err)
	}
	if evt, ok := r.events.Receive(ctx, time.Second); !ok || evt != EventReceived {
		t.Fatalf("after write got %s, %v; want received", evt, ok)
	}
	if r.events.Len() != 0 {
		t.Errorf("%d extra events after write", r.events.Len())
	}

	if _, err := ctrl.ReadReply(testAddress); err != nil {
		t.Fatal(err)
	}
	if evt, ok := r.events.Receive(ctx, time.Second); !ok || evt != EventTransmitted {
		t.Fatalf("after read got %s, %v; want transmitted", evt, ok)
	}
	if r.events.Len() != 0 {
		t.Errorf("%d extra events after read", r.events.Len())
	}
	if got := target.Written(); got != 1 {
		t.Errorf("Written() = %d, want 1", got)
	}
	if st := r.Stats(); st.Received != 1 || st.Transmitted != 1 || st.Dropped != 0 {
		t.Errorf("Stats() = %+v, want 1 received, 1 transmitted", st)
	}
}

func TestFullChannelDropsNotification(t *testing.T) {
	r, target, ctrl := newTestResponder(t, Options{})
	for i := 0; i < DefaultQueueDepth+1; i++ {
		if err := ctrl.WriteCommand(testAddress, 0xF9); err != nil {
			t.Fatalf("WriteCommand #%d error = %v", i, err)
		}
	}
	if queued := r.OnReceive([]byte{0xDD}); queued {
		t.Error("OnReceive on full channel reported queued")
	}
	st := r.Stats()
	if st.Received != DefaultQueueDepth+2 || st.Dropped != 2 || st.Queued != DefaultQueueDepth {
		t.Errorf("Stats() = %+v", st)
	}
	// The reply is still correct and still exactly one byte
	got, err := ctrl.ReadReply(testAddress)
	if err != nil {
		t.Fatalf("ReadReply() on full channel error = %v", err)
	}
	if got != 0x00 {
		t.Errorf("reply = 0x%02x, want 0x00", got)
	}
	if n := target.Written(); n != 1 {
		t.Errorf("Written() = %d, want 1", n)
	}
	st = r.Stats()
	if st.Transmitted != 1 || st.Dropped != 3 || st.Queued != DefaultQueueDepth {
		t.Errorf("Stats() after read = %+v, want 1 transmitted, 3 dropped", st)
	}
	if queued, err := r.OnRequest(); queued || err != nil {
		t.Errorf("OnRequest() on full channel = %v, %v; want false, nil", queued, err)
	}
	if r.Stats().Dropped != 4 {
		t.Errorf("Dropped = %d, want 4", r.Stats().Dropped)
	}
}

func TestReplyFault(t *testing.T) {
	r, target, ctrl := newTestResponder(t, Options{})
	target.WriteErr = bus.ErrWriteTimeout

	_, err := ctrl.ReadReply(testAddress)
	if !errors.Is(err, ErrReplyFault) || !errors.Is(err, bus.ErrWriteTimeout) {
		t.Fatalf("ReadReply() error = %v, want ErrReplyFault wrapping ErrWriteTimeout", err)
	}
	if st := r.Stats(); st.Transmitted != 0 || st.Queued != 0 {
		t.Errorf("Stats() = %+v, want no transmission", st)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := target.Serve(ctx); !errors.Is(err, ErrReplyFault) {
		t.Errorf("Serve() error = %v, want ErrReplyFault", err)
	}
	if err := ctrl.WriteCommand(testAddress, 0xDD); !errors.Is(err, fifo.ErrFaulted) {
		t.Errorf("WriteCommand() after fault error = %v, want ErrFaulted", err)
	}
}

type shortTarget struct{ fifo.Target }

func (*shortTarget) Write([]byte, time.Duration) (int, error) { return 0, nil }

func TestShortWriteIsFault(t *testing.T) {
	r, err := New(&shortTarget{}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.OnRequest(); !errors.Is(err, ErrReplyFault) {
		t.Errorf("OnRequest() error = %v, want ErrReplyFault", err)
	}
}

func TestRunReportsEvents(t *testing.T) {
	var out syncBuffer
	r, _, ctrl := newTestResponder(t, Options{
		Logger: zerolog.New(&out),
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	if err := ctrl.WriteCommand(testAddress, 0xF9); err != nil {
		t.Fatal(err)
	}
	if _, err := ctrl.ReadReply(testAddress); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), "I2C replied data") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}

	logs := out.String()
	for _, want := range []string{
		`"command":"0xf9"`,
		`"message":"Command data received"`,
		`"reply":"0x02"`,
		`"level":"warn"`,
	} {
		if !strings.Contains(logs, want) {
			t.Errorf("logs missing %s:\n%s", want, logs)
		}
	}
}

func TestRunIdle(t *testing.T) {
	var out syncBuffer
	r, _, _ := newTestResponder(t, Options{
		Logger:       zerolog.New(&out),
		PollInterval: time.Millisecond,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := r.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want DeadlineExceeded", err)
	}
	logs := out.String()
	if strings.Contains(logs, "Command data received") || strings.Contains(logs, "I2C replied data") {
		t.Errorf("idle loop reported events:\n%s", logs)
	}
}

type countObserver struct {
	mu     sync.Mutex
	counts []int
}

func (o *countObserver) Observe(count int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.counts = append(o.counts, count)
	return count > 0
}

func (o *countObserver) total() (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	sum := 0
	for _, c := range o.counts {
		sum += c
	}
	return len(o.counts), sum
}

func TestRunFeedsMonitor(t *testing.T) {
	var out syncBuffer
	obs := &countObserver{}
	r, _, ctrl := newTestResponder(t, Options{
		Logger:        zerolog.New(&out),
		PollInterval:  time.Millisecond,
		Monitor:       obs,
		MonitorWindow: 20 * time.Millisecond,
	})
	for i := 0; i < 3; i++ {
		if err := ctrl.WriteCommand(testAddress, 0xFC); err != nil {
			t.Fatal(err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	windows, events := obs.total()
	if windows == 0 {
		t.Fatal("monitor was never fed")
	}
	if events != 3 {
		t.Errorf("monitor saw %d events, want 3", events)
	}
	if !strings.Contains(out.String(), "Bus activity burst") {
		t.Errorf("burst not logged:\n%s", out.String())
	}
}
