package randomaccessmanager

import "io"

// Filter implements §4.7: it pulls records from a RecordDecoder in file
// order and emits only those overlapping [beg, end) on refID, stopping as
// soon as the sorted stream guarantees no further record can match.
type Filter struct {
	dec             RecordDecoder
	stream          *Stream
	refID, beg, end int
	stats           *Stats
	done            bool
	closers         []io.Closer
}

// NewFilter returns a Filter pulling records via dec from stream.
func NewFilter(dec RecordDecoder, stream *Stream, refID, beg, end int, stats *Stats) *Filter {
	return &Filter{dec: dec, stream: stream, refID: refID, beg: beg, end: end, stats: stats}
}

// Next returns the next overlapping record, or io.EOF once the query is
// exhausted (either the stream ended or a record proved the remainder of
// the sorted stream cannot overlap).
func (f *Filter) Next() (Record, error) {
	if f.done {
		return nil, io.EOF
	}
	for {
		rec, err := f.dec.Decode(f.stream)
		if err != nil {
			f.done = true
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, err
		}
		if f.stats != nil {
			f.stats.RecordsDecoded++
		}
		switch {
		case rec.RefID() > f.refID:
			f.done = true
			return nil, io.EOF
		case rec.RefID() < f.refID:
			continue
		case rec.Start() >= f.end:
			f.done = true
			return nil, io.EOF
		case rec.Start() > f.beg:
			f.emitted()
			return rec, nil
		case rec.Start()+rec.BasesCovered() <= f.beg:
			continue
		default:
			f.emitted()
			return rec, nil
		}
	}
}

func (f *Filter) emitted() {
	if f.stats != nil {
		f.stats.RecordsEmitted++
	}
}

// Close releases the pipeline stages feeding this Filter, cancelling any
// in-flight prefetch tasks.
func (f *Filter) Close() error {
	var first error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
