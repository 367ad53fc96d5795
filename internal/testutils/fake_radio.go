package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/srg/sensectl/internal/transport"
)

// FakeHandle is the handle produced by FakeRadio.
type FakeHandle struct {
	address string
	id      int
}

func (h *FakeHandle) Address() string { return h.address }

// WriteRecord is one successful write observed by FakeRadio.
type WriteRecord struct {
	Address string
	UUID    string
	Data    []byte
	Ack     bool
}

// FakeRadio is a scripted, in-memory transport.Radio. Errors queued with the Fail*
// helpers are consumed one per call; once a queue is empty the call succeeds unless the
// corresponding Always* error is set.
type FakeRadio struct {
	mu sync.Mutex

	// Characteristic table reported for connected handles.
	Table []transport.Characteristic

	ResolveErr       error
	AlwaysConnectErr error
	AlwaysWriteErr   error

	connectErrs []error
	writeErrs   []error

	// OnWrite runs after a write is accepted, outside the radio lock.
	OnWrite func(WriteRecord)

	nextID    int
	connected map[*FakeHandle]bool
	stale     map[*FakeHandle]bool

	Resolves    int
	Connects    int
	Disconnects int
	Probes      int
	Writes      []WriteRecord
	LastTimeout time.Duration
}

var _ transport.Radio = (*FakeRadio)(nil)

// NewFakeRadio creates a radio whose peripherals expose one writable characteristic.
func NewFakeRadio(commandUUID string) *FakeRadio {
	return &FakeRadio{
		Table: []transport.Characteristic{
			{Service: "fff0", UUID: transport.NormalizeUUID(commandUUID), Properties: transport.PropWrite | transport.PropWriteWithoutResponse},
		},
		connected: make(map[*FakeHandle]bool),
		stale:     make(map[*FakeHandle]bool),
	}
}

// FailConnect queues errors for the next Connect calls.
func (r *FakeRadio) FailConnect(errs ...error) *FakeRadio {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectErrs = append(r.connectErrs, errs...)
	return r
}

// FailWrite queues errors for the next WriteCharacteristic calls.
func (r *FakeRadio) FailWrite(errs ...error) *FakeRadio {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeErrs = append(r.writeErrs, errs...)
	return r
}

// DropAll marks every live link as disconnected, as if the peripheral went away.
func (r *FakeRadio) DropAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for h := range r.connected {
		r.connected[h] = false
	}
}

// Degrade keeps every link's connected flag set but empties its characteristic table.
func (r *FakeRadio) Degrade() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for h, up := range r.connected {
		if up {
			r.stale[h] = true
		}
	}
}

// LiveLinks returns the number of handles the radio still considers connected.
func (r *FakeRadio) LiveLinks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, up := range r.connected {
		if up {
			n++
		}
	}
	return n
}

// Counts returns a consistent snapshot of the call counters.
func (r *FakeRadio) Counts() (resolves, connects, disconnects, writes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Resolves, r.Connects, r.Disconnects, len(r.Writes)
}

// WrittenPayloads returns the data of every accepted write.
func (r *FakeRadio) WrittenPayloads() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, 0, len(r.Writes))
	for _, w := range r.Writes {
		out = append(out, w.Data)
	}
	return out
}

func (r *FakeRadio) Resolve(_ context.Context, address string) (transport.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Resolves++
	if r.ResolveErr != nil {
		return nil, r.ResolveErr
	}
	r.nextID++
	return &FakeHandle{address: address, id: r.nextID}, nil
}

func (r *FakeRadio) Connect(ctx context.Context, h transport.Handle, timeout time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Connects++
	r.LastTimeout = timeout
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(r.connectErrs) > 0 {
		err := r.connectErrs[0]
		r.connectErrs = r.connectErrs[1:]
		if err != nil {
			return err
		}
	} else if r.AlwaysConnectErr != nil {
		return r.AlwaysConnectErr
	}
	fh := h.(*FakeHandle)
	r.connected[fh] = true
	delete(r.stale, fh)
	return nil
}

func (r *FakeRadio) Disconnect(h transport.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Disconnects++
	fh := h.(*FakeHandle)
	r.connected[fh] = false
	delete(r.stale, fh)
	return nil
}

func (r *FakeRadio) IsConnected(h transport.Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Probes++
	return r.connected[h.(*FakeHandle)]
}

func (r *FakeRadio) Characteristics(h transport.Handle) ([]transport.Characteristic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fh := h.(*FakeHandle)
	if !r.connected[fh] {
		return nil, transport.NewError(transport.KindNotConnected, "discover", fh.address, nil)
	}
	if r.stale[fh] {
		return nil, nil
	}
	out := make([]transport.Characteristic, len(r.Table))
	copy(out, r.Table)
	return out, nil
}

func (r *FakeRadio) WriteCharacteristic(ctx context.Context, h transport.Handle, uuid string, data []byte, ack bool) error {
	r.mu.Lock()
	fh := h.(*FakeHandle)
	if err := ctx.Err(); err != nil {
		r.mu.Unlock()
		return err
	}
	if !r.connected[fh] {
		r.mu.Unlock()
		return transport.NewError(transport.KindNotConnected, "write", fh.address, nil)
	}
	if len(r.writeErrs) > 0 {
		err := r.writeErrs[0]
		r.writeErrs = r.writeErrs[1:]
		if err != nil {
			r.mu.Unlock()
			return err
		}
	} else if r.AlwaysWriteErr != nil {
		r.mu.Unlock()
		return r.AlwaysWriteErr
	}
	rec := WriteRecord{Address: fh.address, UUID: uuid, Data: append([]byte(nil), data...), Ack: ack}
	r.Writes = append(r.Writes, rec)
	onWrite := r.OnWrite
	r.mu.Unlock()

	if onWrite != nil {
		onWrite(rec)
	}
	return nil
}
