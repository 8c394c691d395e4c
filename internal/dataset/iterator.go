package dataset

// Iterator yields minibatches lazily and can be restarted with Reset.
type Iterator interface {
	HasNext() bool
	Next() *DataSet
	Reset()
	BatchSize() int
}

// ListIterator iterates over consecutive minibatches of one in-memory dataset.
type ListIterator struct {
	batches   []*DataSet
	batchSize int
	pos       int
}

// NewListIterator splits ds into minibatches of batchSize examples.
func NewListIterator(ds *DataSet, batchSize int) *ListIterator {
	if batchSize <= 0 {
		batchSize = ds.NumExamples()
	}
	return &ListIterator{batches: ds.Batches(batchSize), batchSize: batchSize}
}

// NewIteratorOf iterates over already-built minibatches.
func NewIteratorOf(batches ...*DataSet) *ListIterator {
	size := 0
	if len(batches) > 0 {
		size = batches[0].NumExamples()
	}
	return &ListIterator{batches: batches, batchSize: size}
}

// HasNext reports whether another minibatch is available.
func (it *ListIterator) HasNext() bool {
	return it.pos < len(it.batches)
}

// Next returns the next minibatch, or nil when exhausted.
func (it *ListIterator) Next() *DataSet {
	if !it.HasNext() {
		return nil
	}
	ds := it.batches[it.pos]
	it.pos++
	return ds
}

// Reset restarts the iteration.
func (it *ListIterator) Reset() {
	it.pos = 0
}

// BatchSize returns the nominal minibatch size.
func (it *ListIterator) BatchSize() int {
	return it.batchSize
}

// NumBatches returns the number of minibatches per pass.
func (it *ListIterator) NumBatches() int {
	return len(it.batches)
}
