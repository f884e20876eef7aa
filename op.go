package store

// defaultSearchLimit applies when SearchOptions.Limit is unset.
const defaultSearchLimit = 10

// Op is one operation destined for a BatchStore. It is a closed union:
// GetOp, PutOp, or SearchOp. Deletion is a PutOp with a nil Value.
type Op interface {
	isOp()
}

// GetOp retrieves the item stored under (Namespace, Key).
type GetOp struct {
	Namespace []string
	Key       string
}

// PutOp stores Value under (Namespace, Key), or deletes the key when Value
// is nil.
type PutOp struct {
	Namespace []string
	Key       string
	Value     map[string]any
}

// SearchOp lists items whose namespace starts with NamespacePrefix, optionally
// filtered by a document filter, with pagination applied after filtering.
type SearchOp struct {
	NamespacePrefix []string
	Filter          map[string]any
	Limit           int
	Offset          int
}

func (GetOp) isOp()    {}
func (PutOp) isOp()    {}
func (SearchOp) isOp() {}

// SearchOptions configures a Store.Search call. A zero or negative Limit means
// the default of 10; a negative Offset means 0.
type SearchOptions struct {
	Filter map[string]any
	Limit  int
	Offset int
}

// normalize applies search defaults. Called before an op is enqueued so every
// SearchOp carries explicit pagination.
func (o SearchOptions) normalize() SearchOptions {
	if o.Limit <= 0 {
		o.Limit = defaultSearchLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
