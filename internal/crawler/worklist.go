package crawler

import "github.com/sematext/imap-email-extractor/internal/mailbox"

// Worklist is an immutable stack of folders still to visit. Every
// operation returns a new Worklist and leaves the receiver untouched, so a
// copy taken at any point is a valid snapshot to resume from.
type Worklist struct {
	top  *entry
	size int
}

type entry struct {
	folder mailbox.Folder
	next   *entry
}

// NewWorklist returns a worklist whose first pop yields folders[0].
func NewWorklist(folders ...mailbox.Folder) Worklist {
	return Worklist{}.PushAll(folders)
}

// Push puts f on top.
func (w Worklist) Push(f mailbox.Folder) Worklist {
	return Worklist{top: &entry{folder: f, next: w.top}, size: w.size + 1}
}

// PushAll pushes folders so that they pop in the order given.
func (w Worklist) PushAll(folders []mailbox.Folder) Worklist {
	for i := len(folders) - 1; i >= 0; i-- {
		w = w.Push(folders[i])
	}
	return w
}

// Pop returns the top folder and the worklist without it. ok is false when
// the worklist is empty.
func (w Worklist) Pop() (f mailbox.Folder, rest Worklist, ok bool) {
	if w.top == nil {
		return mailbox.Folder{}, w, false
	}
	return w.top.folder, Worklist{top: w.top.next, size: w.size - 1}, true
}

func (w Worklist) Len() int {
	return w.size
}

func (w Worklist) Empty() bool {
	return w.top == nil
}

// Folders lists the pending folders in pop order.
func (w Worklist) Folders() []mailbox.Folder {
	out := make([]mailbox.Folder, 0, w.size)
	for e := w.top; e != nil; e = e.next {
		out = append(out, e.folder)
	}
	return out
}
