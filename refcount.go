package glove

// refObject counts the live bindings and attachments of a shared GL object.
// Objects are never destroyed while the count is nonzero; a delete request
// only marks the object and parks it on the resource manager's purge list
// until FreeForDeletion holds.
type refObject struct {
	refCount          int
	markedForDeletion bool
}

func (r *refObject) Bind() {
	r.refCount++
}

func (r *refObject) Unbind() {
	if r.refCount > 0 {
		r.refCount--
	}
}

func (r *refObject) RefCount() int {
	return r.refCount
}

func (r *refObject) MarkForDeletion() {
	r.markedForDeletion = true
}

func (r *refObject) IsMarkedForDeletion() bool {
	return r.markedForDeletion
}

// FreeForDeletion reports whether a purge sweep may release the object.
func (r *refObject) FreeForDeletion() bool {
	return r.refCount == 0
}
