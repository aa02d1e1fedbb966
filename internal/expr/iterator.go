package expr

import "github.com/roach88/flwor/internal/ir"

// Iterator is a pull cursor over a sequence. Next returns nil at the end.
// Close may be called at any point and must be safe to call twice.
type Iterator interface {
	Next() (ir.Item, error)
	Close() error
}

type sequenceIterator struct {
	seq ir.Sequence
	pos int
}

// SequenceIterator iterates a materialized sequence.
func SequenceIterator(seq ir.Sequence) Iterator {
	return &sequenceIterator{seq: seq}
}

func (it *sequenceIterator) Next() (ir.Item, error) {
	if it.pos >= len(it.seq) {
		return nil, nil
	}
	item := it.seq[it.pos]
	it.pos++
	return item, nil
}

func (it *sequenceIterator) Close() error {
	it.pos = len(it.seq)
	return nil
}

// Drain reads an iterator to the end and closes it.
func Drain(it Iterator) (ir.Sequence, error) {
	var out ir.Sequence
	for {
		item, err := it.Next()
		if err != nil {
			_ = it.Close()
			return nil, err
		}
		if item == nil {
			break
		}
		out = append(out, item)
	}
	return out, it.Close()
}

// Receiver accepts items pushed by Process.
type Receiver interface {
	Append(item ir.Item) error
}

// SequenceReceiver buffers pushed items.
type SequenceReceiver struct {
	Items ir.Sequence
}

// Append adds an item to the buffer.
func (r *SequenceReceiver) Append(item ir.Item) error {
	r.Items = append(r.Items, item)
	return nil
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc func(item ir.Item) error

// Append calls f.
func (f ReceiverFunc) Append(item ir.Item) error {
	return f(item)
}

// appendAll pushes every item of seq.
func appendAll(out Receiver, seq ir.Sequence) error {
	for _, item := range seq {
		if err := out.Append(item); err != nil {
			return err
		}
	}
	return nil
}
