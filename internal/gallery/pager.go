package gallery

// DefaultBatchSize is the number of items revealed per batch
const DefaultBatchSize = 20

// Pager reveals a newest-first item list in fixed-size batches.
// The cursor only moves forward until the list is replaced by Initialize.
type Pager struct {
	batchSize int
	items     []string
	cursor    int
}

// NewPager creates a pager. Non-positive batch sizes fall back to DefaultBatchSize.
func NewPager(batchSize int) *Pager {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Pager{batchSize: batchSize}
}

// Initialize replaces the list and reveals the first batch.
func (p *Pager) Initialize(items []string) {
	p.items = append([]string(nil), items...)
	p.cursor = min(p.batchSize, len(p.items))
}

// RevealNext reveals up to one more batch. It is a no-op once everything is shown.
func (p *Pager) RevealNext() {
	p.cursor += p.NextBatch()
}

// RevealAll reveals every item.
func (p *Pager) RevealAll() {
	p.cursor = len(p.items)
}

// Displayed returns the revealed prefix of the list.
func (p *Pager) Displayed() []string {
	return append([]string(nil), p.items[:p.cursor]...)
}

// Remaining returns how many items are still hidden
func (p *Pager) Remaining() int {
	return len(p.items) - p.cursor
}

// NextBatch returns how many items the next RevealNext will add
func (p *Pager) NextBatch() int {
	return min(p.batchSize, p.Remaining())
}

// AllRevealed reports whether the cursor reached the end of the list
func (p *Pager) AllRevealed() bool {
	return p.cursor == len(p.items)
}

// Len returns the size of the full list
func (p *Pager) Len() int {
	return len(p.items)
}

// Cursor returns the number of revealed items
func (p *Pager) Cursor() int {
	return p.cursor
}

// BatchSize returns the configured batch size
func (p *Pager) BatchSize() int {
	return p.batchSize
}
